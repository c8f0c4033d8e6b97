package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"finpanel/internal/config"
	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/pagination"
)

const accountModel = "Account"

// accountService handles account-related business logic.
type accountService struct {
	db   *gorm.DB
	opts Options
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB, opts Options) AccountServicer {
	return &accountService{db: db, opts: opts.withDefaults()}
}

// CreateAccount creates a payment account with an opening deposit.
func (s *accountService) CreateAccount(ctx context.Context, name string, accountType models.AccountType, description, currency string, initialDeposit int64) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	switch accountType {
	case models.AccountTypeBank, models.AccountTypeEWallet, models.AccountTypeCash:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account type must be one of bank, ewallet, cash")
	}
	if initialDeposit < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "initial deposit must not be negative")
	}

	if currency == "" {
		currency = s.opts.Config.Setting(config.KeyCurrencyCode)
	}
	if currency == "" {
		currency = "IDR"
	}

	account := &models.Account{
		Name:        name,
		Type:        accountType,
		Description: description,
		Deposit:     initialDeposit,
		Currency:    strings.ToUpper(currency),
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:     models.AuditCreated,
		ModelName: accountModel,
		SubjectID: account.ID,
		ChangedFields: map[string]any{
			"name":    account.Name,
			"type":    account.Type,
			"deposit": account.Deposit,
		},
	})
	return account, nil
}

// GetAccounts retrieves a paginated list of active accounts.
func (s *accountService) GetAccounts(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	result, err := pagination.Find[models.Account](s.db.WithContext(ctx).Model(&models.Account{}), page, pagination.Order{Column: "name"})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetAccountByID retrieves an active account by ID
func (s *accountService) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, dbError(err, apperrors.ErrAccountNotFound)
	}
	return &account, nil
}

// UpdateAccount updates the descriptive fields of an account.
func (s *accountService) UpdateAccount(ctx context.Context, id string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	previous := make(map[string]any)

	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name must not be empty")
		}
		if name != account.Name {
			updates["name"] = name
			previous["name"] = account.Name
		}
	}
	if fields.Description != nil && *fields.Description != account.Description {
		updates["description"] = *fields.Description
		previous["description"] = account.Description
	}

	if len(updates) == 0 {
		return account, nil
	}

	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:          models.AuditUpdated,
		ModelName:      accountModel,
		SubjectID:      account.ID,
		ChangedFields:  updates,
		PreviousValues: previous,
	})
	return s.GetAccountByID(ctx, id)
}

// DeleteAccount soft-deletes an account. Its history stays intact.
func (s *accountService) DeleteAccount(ctx context.Context, id string) error {
	account, err := s.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(account).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:     models.AuditDeleted,
		ModelName: accountModel,
		SubjectID: account.ID,
	})
	return nil
}

// RestoreAccount clears the soft-delete tombstone of an account.
func (s *accountService) RestoreAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&account).Error; err != nil {
		return nil, dbError(err, apperrors.ErrAccountNotFound)
	}
	if !account.IsDeleted() {
		return nil, apperrors.ErrAccountNotDeleted
	}

	if err := s.db.WithContext(ctx).Unscoped().Model(&account).Update("deleted_at", nil).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:     models.AuditRestored,
		ModelName: accountModel,
		SubjectID: account.ID,
	})
	return s.GetAccountByID(ctx, id)
}

// CorrectDeposit overwrites an account's deposit as an explicit, audited
// correction outside the transaction ledger.
func (s *accountService) CorrectDeposit(ctx context.Context, id string, deposit int64, reason string) (*models.Account, error) {
	start := time.Now()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "a reason is required to correct a deposit")
	}

	var previous int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := s.LockAccounts(tx, id)
		if err != nil {
			return err
		}
		account, ok := accounts[id]
		if !ok || account.IsDeleted() {
			return apperrors.ErrAccountNotFound
		}
		previous = account.Deposit
		account.Deposit = deposit
		return s.SaveBalances(tx, accounts)
	})
	if err = observe(s.opts.Metrics, "account.correct_deposit", start, err, "account_id", id); err != nil {
		return nil, err
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:          models.AuditUpdated,
		ModelName:      accountModel,
		SubjectID:      id,
		ChangedFields:  map[string]any{"deposit": deposit, "reason": reason},
		PreviousValues: map[string]any{"deposit": previous},
	})
	return s.GetAccountByID(ctx, id)
}

// LockAccounts loads accounts FOR UPDATE one at a time in ascending id
// order, so two transactions touching the same pair never deadlock.
func (s *accountService) LockAccounts(tx *gorm.DB, ids ...string) (map[string]*models.Account, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)

	accounts := make(map[string]*models.Account, len(unique))
	for _, id := range unique {
		var account models.Account
		err := tx.Unscoped().Clauses(forUpdate).Where("id = ?", id).First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		accounts[id] = &account
	}
	return accounts, nil
}

// SaveBalances writes back the deposit of every account in the map.
func (s *accountService) SaveBalances(tx *gorm.DB, accounts map[string]*models.Account) error {
	ids := make([]string, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		account := accounts[id]
		if err := tx.Unscoped().Model(account).Update("deposit", account.Deposit).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}
