package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"finpanel/internal/config"
	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/money"
	"finpanel/internal/pagination"
	"finpanel/internal/uuid"
)

const goalModel = "PaymentGoal"

// goalService manages payment goals and funds them through expense
// transactions.
type goalService struct {
	db           *gorm.DB
	accounts     AccountServicer
	transactions TransactionServicer
	opts         Options
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB, accounts AccountServicer, transactions TransactionServicer, opts Options) GoalServicer {
	return &goalService{
		db:           db,
		accounts:     accounts,
		transactions: transactions,
		opts:         opts.withDefaults(),
	}
}

// CreateGoal creates an ongoing goal with nothing contributed yet.
func (s *goalService) CreateGoal(ctx context.Context, name, description string, targetAmount int64, targetDate *time.Time) (*models.PaymentGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name is required")
	}
	if targetAmount < 1 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be at least 1")
	}

	goal := &models.PaymentGoal{
		Code:         uuid.NewCode("GOAL"),
		Name:         name,
		Description:  description,
		TargetAmount: targetAmount,
		Status:       models.GoalStatusOngoing,
		TargetDate:   targetDate,
	}
	if err := s.db.WithContext(ctx).Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:         models.AuditCreated,
		ModelName:     goalModel,
		SubjectID:     goal.ID,
		ChangedFields: map[string]any{"name": goal.Name, "target_amount": goal.TargetAmount},
	})
	return goal, nil
}

// GetGoals retrieves a paginated list of goals, optionally by status.
func (s *goalService) GetGoals(ctx context.Context, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.PaymentGoal], error) {
	base := s.db.WithContext(ctx).Model(&models.PaymentGoal{})
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	result, err := pagination.Find[models.PaymentGoal](base, page, pagination.Order{Column: "created_at", Desc: true, Tiebreak: []string{"id"}})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetGoalByID retrieves a goal by ID
func (s *goalService) GetGoalByID(ctx context.Context, id string) (*models.PaymentGoal, error) {
	var goal models.PaymentGoal
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&goal).Error; err != nil {
		return nil, dbError(err, apperrors.ErrGoalNotFound)
	}
	return &goal, nil
}

// UpdateGoal edits a goal's descriptive fields and target. Progress and
// status are recomputed against the new target; the contributed amount is
// never edited here.
func (s *goalService) UpdateGoal(ctx context.Context, id string, fields GoalUpdateFields) (*models.PaymentGoal, error) {
	var changed, previous map[string]any
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := lockGoal(tx, id)
		if err != nil {
			return err
		}
		before := *goal

		if fields.Name != nil {
			name := strings.TrimSpace(*fields.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name must not be empty")
			}
			goal.Name = name
		}
		if fields.Description != nil {
			goal.Description = *fields.Description
		}
		if fields.TargetAmount != nil {
			if *fields.TargetAmount < 1 {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be at least 1")
			}
			goal.TargetAmount = *fields.TargetAmount
		}
		if fields.TargetDate != nil {
			goal.TargetDate = fields.TargetDate
		}
		s.recompute(goal)

		if err := tx.Save(goal).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		changed, previous = diffGoals(&before, goal)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		s.opts.Audit.Record(ctx, AuditEntry{
			Event:          models.AuditUpdated,
			ModelName:      goalModel,
			SubjectID:      id,
			ChangedFields:  changed,
			PreviousValues: previous,
		})
	}
	return s.GetGoalByID(ctx, id)
}

// DeleteGoal soft-deletes a goal. Its contribution transactions are kept.
func (s *goalService) DeleteGoal(ctx context.Context, id string) error {
	goal, err := s.GetGoalByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(goal).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.opts.Audit.Record(ctx, AuditEntry{Event: models.AuditDeleted, ModelName: goalModel, SubjectID: id})
	return nil
}

// RestoreGoal clears the soft-delete tombstone of a goal.
func (s *goalService) RestoreGoal(ctx context.Context, id string) (*models.PaymentGoal, error) {
	var goal models.PaymentGoal
	if err := s.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&goal).Error; err != nil {
		return nil, dbError(err, apperrors.ErrGoalNotFound)
	}
	if !goal.IsDeleted() {
		return nil, apperrors.ErrGoalNotDeleted
	}
	if err := s.db.WithContext(ctx).Unscoped().Model(&goal).Update("deleted_at", nil).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.opts.Audit.Record(ctx, AuditEntry{Event: models.AuditRestored, ModelName: goalModel, SubjectID: id})
	return s.GetGoalByID(ctx, id)
}

// Allocate moves amount from an account into a goal. The expense that debits
// the account and the goal's progress update commit together or not at all.
func (s *goalService) Allocate(ctx context.Context, goalID, accountID string, amount int64) (*AllocationResult, error) {
	start := time.Now()

	goal, err := s.GetGoalByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := checkAllocation(goal, account, amount); err != nil {
		return nil, observe(s.opts.Metrics, "goal.allocate", start, err, "goal_id", goalID)
	}

	var contribution *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockGoal(tx, goalID)
		if err != nil {
			return err
		}
		if err := checkAllocation(locked, account, amount); err != nil {
			return err
		}

		contribution, err = s.transactions.CreateTransactionWithDB(ctx, tx, TransactionInput{
			Name:             fmt.Sprintf("Contribution: %s (%s)", locked.Name, locked.Code),
			Type:             models.TransactionTypeExpense,
			Amount:           amount,
			Date:             s.opts.Now(),
			PaymentAccountID: accountID,
		})
		if err != nil {
			return err
		}

		locked.Amount += amount
		s.recompute(locked)
		if err := tx.Model(locked).Updates(map[string]interface{}{
			"amount":           locked.Amount,
			"progress_percent": locked.ProgressPercent,
			"status":           locked.Status,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		goal = locked
		return nil
	})
	if err = observe(s.opts.Metrics, "goal.allocate", start, err,
		"goal_id", goalID, "account_id", accountID, "amount", amount); err != nil {
		return nil, err
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		Event:         models.AuditCreated,
		ModelName:     transactionModel,
		SubjectID:     contribution.ID,
		ChangedFields: transactionFields(contribution),
	})
	s.opts.Audit.Record(ctx, AuditEntry{
		Event:     models.AuditUpdated,
		ModelName: goalModel,
		SubjectID: goal.ID,
		ChangedFields: map[string]any{
			"amount":           goal.Amount,
			"progress_percent": goal.ProgressPercent,
			"status":           goal.Status,
		},
	})

	return &AllocationResult{
		Goal:         goal,
		Transaction:  contribution,
		ShouldNotify: s.opts.Config.Bool(config.KeyNotifyOnAllocation),
	}, nil
}

// checkAllocation runs the allocation pre-checks in order.
func checkAllocation(goal *models.PaymentGoal, account *models.Account, amount int64) error {
	if amount < 1 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "allocation amount must be at least 1")
	}
	if goal.ProgressPercent >= 100 {
		return apperrors.WithMessage(apperrors.ErrGoalAlreadyComplete,
			fmt.Sprintf("goal %s is already complete", goal.Code))
	}
	if remaining := goal.Remaining(); amount > remaining {
		return apperrors.WithMessage(apperrors.ErrExceedsRemaining,
			fmt.Sprintf("amount exceeds the remaining %s needed for %s", money.Format(remaining), goal.Name))
	}
	if account.Deposit < amount {
		return apperrors.WithMessage(apperrors.ErrInsufficientFunds,
			fmt.Sprintf("insufficient balance in %s: %s available, %s required",
				account.Name, money.Format(account.Deposit), money.Format(amount)))
	}
	return nil
}

// recompute derives progress and status from the contributed amount.
func (s *goalService) recompute(goal *models.PaymentGoal) {
	goal.ProgressPercent = min(money.Percent(goal.Amount, goal.TargetAmount), models.MaxProgressPercent)
	switch {
	case goal.ProgressPercent >= 100:
		goal.Status = models.GoalStatusCompleted
	case goal.TargetDate != nil && goal.TargetDate.Before(startOfDay(s.opts.Now())):
		goal.Status = models.GoalStatusOverdue
	default:
		goal.Status = models.GoalStatusOngoing
	}
}

func lockGoal(tx *gorm.DB, id string) (*models.PaymentGoal, error) {
	var goal models.PaymentGoal
	if err := tx.Clauses(forUpdate).Where("id = ?", id).First(&goal).Error; err != nil {
		return nil, dbError(err, apperrors.ErrGoalNotFound)
	}
	return &goal, nil
}

func diffGoals(before, after *models.PaymentGoal) (map[string]any, map[string]any) {
	changed := make(map[string]any)
	previous := make(map[string]any)
	set := func(key string, oldValue, newValue any) {
		if fmt.Sprint(oldValue) != fmt.Sprint(newValue) {
			changed[key] = newValue
			previous[key] = oldValue
		}
	}
	set("name", before.Name, after.Name)
	set("description", before.Description, after.Description)
	set("target_amount", before.TargetAmount, after.TargetAmount)
	set("target_date", formatDate(before.TargetDate), formatDate(after.TargetDate))
	set("progress_percent", before.ProgressPercent, after.ProgressPercent)
	set("status", before.Status, after.Status)
	return changed, previous
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
