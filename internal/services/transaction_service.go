package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finpanel/internal/attachments"
	apperrors "finpanel/internal/errors"
	"finpanel/internal/ledger"
	"finpanel/internal/models"
	"finpanel/internal/money"
	"finpanel/internal/pagination"
	"finpanel/internal/uuid"
)

const transactionModel = "Transaction"

// transactionService implements the payment record lifecycle on top of the
// ledger mutator.
type transactionService struct {
	db       *gorm.DB
	accounts AccountServicer
	opts     Options
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accounts AccountServicer, opts Options) TransactionServicer {
	return &transactionService{
		db:       db,
		accounts: accounts,
		opts:     opts.withDefaults(),
	}
}

// CreateTransaction validates and persists a transaction. Committed
// transactions update account balances in the same database transaction;
// drafts and transactions scheduled for a later day are stored without any
// balance effect. A scheduled transaction dated today executes at once.
func (s *transactionService) CreateTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	start := time.Now()

	var created *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		created, txErr = s.CreateTransactionWithDB(ctx, tx, in)
		return txErr
	})
	if err = observe(s.opts.Metrics, "transaction.create", start, err,
		"account_id", in.PaymentAccountID, "type", in.Type, "amount", in.Amount); err != nil {
		return nil, err
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:         models.AuditCreated,
		ModelName:     transactionModel,
		SubjectID:     created.ID,
		ChangedFields: transactionFields(created),
	})
	return created, nil
}

// CreateTransactionWithDB creates a transaction with a given database connection (useful for transactions)
func (s *transactionService) CreateTransactionWithDB(ctx context.Context, tx *gorm.DB, in TransactionInput) (*models.Transaction, error) {
	t := &models.Transaction{
		Code:               uuid.NewCode("TRX"),
		Name:               strings.TrimSpace(in.Name),
		Type:               in.Type,
		Amount:             in.Amount,
		Date:               in.Date,
		PaymentAccountID:   in.PaymentAccountID,
		PaymentAccountToID: normalizeDestination(in.PaymentAccountToID),
		HasItems:           in.HasItems,
		IsScheduled:        in.IsScheduled,
		IsDraft:            in.IsDraft,
		Attachments:        slices.Clone(in.Attachments),
	}
	if t.Date.IsZero() {
		t.Date = s.opts.Now()
	}
	if t.HasItems && t.Amount != 0 {
		return nil, apperrors.ErrAmountDerived
	}
	if err := s.validate(t, true); err != nil {
		return nil, err
	}
	if s.isDue(t) {
		t.IsScheduled = false
	}

	tx = tx.WithContext(ctx)
	accounts, err := s.accounts.LockAccounts(tx, t.PaymentAccountID, t.Destination())
	if err != nil {
		return nil, err
	}

	if t.IsDraft || t.IsScheduled {
		if err := requireAccounts(accounts, t); err != nil {
			return nil, err
		}
	} else if err := applyTo(accounts, t, true); err != nil {
		return nil, err
	}

	if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if t.BalanceEffectApplied {
		if err := s.accounts.SaveBalances(tx, accounts); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// GetTransactions retrieves a paginated, filtered list of transactions.
func (s *transactionService) GetTransactions(ctx context.Context, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	base := applyTransactionFilters(s.db.WithContext(ctx).Model(&models.Transaction{}), filter)

	result, err := pagination.Find[models.Transaction](base, page, pagination.Order{Column: "date", Desc: true, Tiebreak: []string{"id"}})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.AccountID != nil {
		q = q.Where("(payment_account_id = ? OR payment_account_to_id = ?)", *f.AccountID, *f.AccountID)
	}
	if f.IsDraft != nil {
		q = q.Where("is_draft = ?", *f.IsDraft)
	}
	if f.IsScheduled != nil {
		q = q.Where("is_scheduled = ?", *f.IsScheduled)
	}
	return q
}

// GetTransactionByID retrieves a transaction and its attached items.
func (s *transactionService) GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Item").
		Where("id = ?", id).
		First(&t).Error; err != nil {
		return nil, dbError(err, apperrors.ErrTransactionNotFound)
	}
	return &t, nil
}

// UpdateTransaction edits a transaction. When the stored effect is live in
// account balances, the old effect is reversed and the new one applied in a
// single database transaction, with sufficiency checked against the
// post-reversal balance.
func (s *transactionService) UpdateTransaction(ctx context.Context, id string, fields TransactionUpdateFields) (*models.Transaction, error) {
	start := time.Now()

	var (
		removed  []string
		changed  map[string]any
		previous map[string]any
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransaction(tx, id, false)
		if err != nil {
			return err
		}
		if fields.Amount != nil && t.HasItems {
			return apperrors.ErrAmountDerived
		}

		old := *t
		old.Attachments = slices.Clone(t.Attachments)
		scheduleMoved := mergeTransactionFields(t, fields)
		if err := s.validate(t, scheduleMoved); err != nil {
			return err
		}

		accounts, err := s.accounts.LockAccounts(tx,
			old.PaymentAccountID, old.Destination(), t.PaymentAccountID, t.Destination())
		if err != nil {
			return err
		}

		if old.BalanceEffectApplied {
			if err := reverseFrom(accounts, &old); err != nil {
				return err
			}
			t.BalanceEffectApplied = false
			t.AppliedAmount = 0
			if err := applyTo(accounts, t, true); err != nil {
				return err
			}
			if err := s.accounts.SaveBalances(tx, accounts); err != nil {
				return err
			}
		} else if s.isDue(t) {
			t.IsScheduled = false
			if err := applyTo(accounts, t, true); err != nil {
				return err
			}
			if err := s.accounts.SaveBalances(tx, accounts); err != nil {
				return err
			}
		} else if err := requireAccounts(accounts, t); err != nil {
			return err
		}

		if err := saveTransaction(tx, t); err != nil {
			return err
		}

		removed = attachments.Removed(old.Attachments, t.Attachments)
		changed, previous = diffTransactions(&old, t)
		return nil
	})
	if err = observe(s.opts.Metrics, "transaction.update", start, err, "transaction_id", id); err != nil {
		return nil, err
	}

	attachments.Purge(ctx, s.opts.Attachments, removed)
	if len(changed) > 0 {
		s.opts.Audit.Record(ctx, AuditEntry{
			Event:          models.AuditUpdated,
			ModelName:      transactionModel,
			SubjectID:      id,
			ChangedFields:  changed,
			PreviousValues: previous,
		})
	}
	return s.GetTransactionByID(ctx, id)
}

// DeleteTransaction soft-deletes a transaction, reversing its balance effect
// if one is applied and removing its attachment files.
func (s *transactionService) DeleteTransaction(ctx context.Context, id string) error {
	start := time.Now()

	var paths []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransaction(tx, id, false)
		if err != nil {
			return err
		}
		if err := s.reverseAndSave(tx, t); err != nil {
			return err
		}

		paths = t.Attachments
		t.Attachments = nil
		if err := saveTransaction(tx, t); err != nil {
			return err
		}
		if err := tx.Delete(t).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err = observe(s.opts.Metrics, "transaction.delete", start, err, "transaction_id", id); err != nil {
		return err
	}

	attachments.Purge(ctx, s.opts.Attachments, paths)
	s.opts.Audit.Record(ctx, AuditEntry{
		Event:          models.AuditDeleted,
		ModelName:      transactionModel,
		SubjectID:      id,
		PreviousValues: map[string]any{"attachments": paths},
	})
	return nil
}

// RestoreTransaction undeletes a soft-deleted transaction. A committed
// transaction, or a scheduled one whose day has arrived, re-applies its
// effect and is refused if funds are insufficient.
func (s *transactionService) RestoreTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	start := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransaction(tx, id, true)
		if err != nil {
			return err
		}
		if !t.IsDeleted() {
			return apperrors.ErrTransactionNotDeleted
		}

		if s.isDue(t) {
			t.IsScheduled = false
		}
		if !t.IsDraft && !t.IsScheduled {
			accounts, err := s.accounts.LockAccounts(tx, t.PaymentAccountID, t.Destination())
			if err != nil {
				return err
			}
			if err := applyTo(accounts, t, true); err != nil {
				return err
			}
			if err := s.accounts.SaveBalances(tx, accounts); err != nil {
				return err
			}
		}

		t.DeletedAt = gorm.DeletedAt{}
		if err := tx.Unscoped().Omit(clause.Associations).Save(t).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err = observe(s.opts.Metrics, "transaction.restore", start, err, "transaction_id", id); err != nil {
		return nil, err
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:     models.AuditRestored,
		ModelName: transactionModel,
		SubjectID: id,
	})
	return s.GetTransactionByID(ctx, id)
}

// ForceDeleteTransaction permanently removes a transaction, including a
// soft-deleted one. A balance effect is reversed only if still applied.
func (s *transactionService) ForceDeleteTransaction(ctx context.Context, id string) error {
	start := time.Now()

	var paths []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransaction(tx, id, true)
		if err != nil {
			return err
		}
		if err := s.reverseAndSave(tx, t); err != nil {
			return err
		}

		if err := tx.Where("transaction_id = ?", t.ID).Delete(&models.TransactionItem{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Delete(t).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		paths = t.Attachments
		return nil
	})
	if err = observe(s.opts.Metrics, "transaction.force_delete", start, err, "transaction_id", id); err != nil {
		return err
	}

	attachments.Purge(ctx, s.opts.Attachments, paths)
	s.opts.Audit.Record(ctx, AuditEntry{
		Event:     models.AuditForceDeleted,
		ModelName: transactionModel,
		SubjectID: id,
	})
	return nil
}

// reverseAndSave undoes t's balance effect, if any, and persists the accounts.
func (s *transactionService) reverseAndSave(tx *gorm.DB, t *models.Transaction) error {
	if !t.BalanceEffectApplied {
		return nil
	}
	accounts, err := s.accounts.LockAccounts(tx, t.PaymentAccountID, t.Destination())
	if err != nil {
		return err
	}
	if err := reverseFrom(accounts, t); err != nil {
		return err
	}
	return s.accounts.SaveBalances(tx, accounts)
}

// validate checks the invariants of a transaction before it is stored.
// checkSchedule enables the "scheduled date not in the past" rule, which only
// applies when the schedule is being set or moved.
func (s *transactionService) validate(t *models.Transaction, checkSchedule bool) error {
	if !t.Type.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidTransactionType,
			fmt.Sprintf("unsupported transaction type %q", string(t.Type)))
	}
	if t.PaymentAccountID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "payment account is required")
	}

	if t.Type.NeedsDestination() {
		if t.PaymentAccountToID == nil {
			return apperrors.WithMessage(apperrors.ErrInvalidDestination,
				fmt.Sprintf("a destination account is required for a %s", string(t.Type)))
		}
		if *t.PaymentAccountToID == t.PaymentAccountID {
			return apperrors.ErrSameAccountTransfer
		}
	} else if t.PaymentAccountToID != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidDestination,
			fmt.Sprintf("a %s does not take a destination account", string(t.Type)))
	}

	if !t.HasItems && t.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}

	if checkSchedule && t.IsScheduled && t.Date.Before(startOfDay(s.opts.Now())) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "a scheduled transaction cannot be dated in the past")
	}
	return nil
}

// mergeTransactionFields copies the non-nil fields onto t and reports whether
// the date of a scheduled transaction moved.
func mergeTransactionFields(t *models.Transaction, f TransactionUpdateFields) bool {
	if f.Name != nil {
		t.Name = strings.TrimSpace(*f.Name)
	}
	if f.Type != nil {
		t.Type = *f.Type
	}
	if f.Amount != nil {
		t.Amount = *f.Amount
	}
	dateMoved := false
	if f.Date != nil && !f.Date.Equal(t.Date) {
		t.Date = *f.Date
		dateMoved = t.IsScheduled
	}
	if f.PaymentAccountID != nil {
		t.PaymentAccountID = *f.PaymentAccountID
	}
	if f.PaymentAccountToID != nil {
		t.PaymentAccountToID = normalizeDestination(f.PaymentAccountToID)
	} else if !t.Type.NeedsDestination() {
		t.PaymentAccountToID = nil
	}
	if f.Attachments != nil {
		t.Attachments = slices.Clone(*f.Attachments)
	}
	return dateMoved
}

func normalizeDestination(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

// lockTransaction loads a transaction FOR UPDATE.
func lockTransaction(tx *gorm.DB, id string, includeDeleted bool) (*models.Transaction, error) {
	q := tx
	if includeDeleted {
		q = q.Unscoped()
	}
	var t models.Transaction
	if err := q.Clauses(forUpdate).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, dbError(err, apperrors.ErrTransactionNotFound)
	}
	return &t, nil
}

// requireAccounts checks that t's accounts exist and are not deleted.
func requireAccounts(accounts map[string]*models.Account, t *models.Transaction) error {
	if src, ok := accounts[t.PaymentAccountID]; !ok || src.IsDeleted() {
		return apperrors.WithMessage(apperrors.ErrAccountNotFound, "payment account not found")
	}
	if t.Type.NeedsDestination() {
		if dst, ok := accounts[t.Destination()]; !ok || dst.IsDeleted() {
			return apperrors.WithMessage(apperrors.ErrInvalidDestination, "destination account does not exist")
		}
	}
	return nil
}

// applyTo runs the ledger for t against the locked accounts and marks the
// effect as applied. Balances are only changed in memory.
func applyTo(accounts map[string]*models.Account, t *models.Transaction, enforceSufficiency bool) error {
	if err := requireAccounts(accounts, t); err != nil {
		return err
	}
	src := accounts[t.PaymentAccountID]

	var dst *models.Account
	var destBalance *int64
	if t.Type.NeedsDestination() {
		dst = accounts[t.Destination()]
		v := dst.Deposit
		destBalance = &v
	}

	res, err := ledger.Apply(t.Type, t.Amount, src.Deposit, destBalance, enforceSufficiency)
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientFunds) {
			return apperrors.WithMessage(apperrors.ErrInsufficientFunds,
				fmt.Sprintf("insufficient balance in %s: %s available, %s required",
					src.Name, money.Format(src.Deposit), money.Format(t.Amount)))
		}
		return err
	}

	src.Deposit = res.SourceBalance
	if res.HasDest {
		dst.Deposit = res.DestBalance
	}
	t.BalanceEffectApplied = true
	t.AppliedAmount = t.Amount
	return nil
}

// reverseFrom undoes t's applied effect against the locked accounts and
// clears the applied flag. It is a no-op when no effect is applied.
func reverseFrom(accounts map[string]*models.Account, t *models.Transaction) error {
	if !t.BalanceEffectApplied {
		return nil
	}
	src, ok := accounts[t.PaymentAccountID]
	if !ok {
		return apperrors.Wrap(apperrors.ErrInternalServer,
			fmt.Errorf("account %s of transaction %s is missing", t.PaymentAccountID, t.Code))
	}

	var dst *models.Account
	var destBalance *int64
	if t.Type.NeedsDestination() {
		dst, ok = accounts[t.Destination()]
		if !ok {
			return apperrors.Wrap(apperrors.ErrInternalServer,
				fmt.Errorf("destination account %s of transaction %s is missing", t.Destination(), t.Code))
		}
		v := dst.Deposit
		destBalance = &v
	}

	res, err := ledger.Reverse(t.Type, t.AppliedAmount, src.Deposit, destBalance)
	if err != nil {
		return err
	}

	src.Deposit = res.SourceBalance
	if res.HasDest {
		dst.Deposit = res.DestBalance
	}
	t.BalanceEffectApplied = false
	t.AppliedAmount = 0
	return nil
}

func transactionFields(t *models.Transaction) map[string]any {
	return map[string]any{
		"code":                  t.Code,
		"name":                  t.Name,
		"type":                  t.Type,
		"amount":                t.Amount,
		"date":                  t.Date,
		"payment_account_id":    t.PaymentAccountID,
		"payment_account_to_id": t.Destination(),
		"has_items":             t.HasItems,
		"is_scheduled":          t.IsScheduled,
		"is_draft":              t.IsDraft,
		"attachments":           t.Attachments,
	}
}

// diffTransactions returns the fields that differ between before and after,
// keyed by column name, with both the new and the old values.
func diffTransactions(before, after *models.Transaction) (map[string]any, map[string]any) {
	oldFields, newFields := transactionFields(before), transactionFields(after)
	changed := make(map[string]any)
	previous := make(map[string]any)
	for key, newValue := range newFields {
		oldValue := oldFields[key]
		if fmt.Sprint(oldValue) != fmt.Sprint(newValue) {
			changed[key] = newValue
			previous[key] = oldValue
		}
	}
	return changed, previous
}

// isDue reports whether t is a pending scheduled transaction whose day has
// already arrived. The runner only scans the current day once, so such a
// transaction is executed by whichever write brings it into this state.
func (s *transactionService) isDue(t *models.Transaction) bool {
	return t.IsScheduled && !t.IsDraft && t.Date.Before(startOfDay(s.opts.Now()).AddDate(0, 0, 1))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
