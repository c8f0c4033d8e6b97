package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finpanel/internal/config"
	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
)

// ApproveTransaction clears the draft flag of a transaction. A draft that is
// not scheduled, or whose scheduled day is today or earlier, executes
// immediately; a draft scheduled for a later day becomes a pending scheduled
// transaction. A failed execution leaves the record a draft.
func (s *transactionService) ApproveTransaction(ctx context.Context, id string) (*ApprovalResult, error) {
	start := time.Now()

	var executed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransaction(tx, id, false)
		if err != nil {
			return err
		}
		if !t.IsDraft {
			return apperrors.WithMessage(apperrors.ErrAlreadyApproved,
				fmt.Sprintf("transaction %s has already been approved", t.Code))
		}

		t.IsDraft = false
		if t.IsScheduled && !s.isDue(t) {
			return saveTransaction(tx, t)
		}

		t.IsScheduled = false
		if !t.HasItems && t.Amount <= 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
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
		executed = true
		return saveTransaction(tx, t)
	})
	if err = observe(s.opts.Metrics, "transaction.approve", start, err, "transaction_id", id); err != nil {
		return nil, err
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:          models.AuditUpdated,
		ModelName:      transactionModel,
		SubjectID:      id,
		ChangedFields:  map[string]any{"is_draft": false, "executed": executed},
		PreviousValues: map[string]any{"is_draft": true},
	})

	approved, err := s.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ApprovalResult{
		Transaction:  approved,
		Executed:     executed,
		ShouldNotify: s.opts.Config.Bool(config.KeyNotifyOnApproval),
	}, nil
}

func saveTransaction(tx *gorm.DB, t *models.Transaction) error {
	if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
