package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"finpanel/internal/config"
	apperrors "finpanel/internal/errors"
	"finpanel/internal/logger"
	"finpanel/internal/models"
)

// schedulerService executes scheduled transactions that fall due today.
type schedulerService struct {
	db       *gorm.DB
	accounts AccountServicer
	opts     Options
}

// NewSchedulerService creates a new SchedulerServicer.
func NewSchedulerService(db *gorm.DB, accounts AccountServicer, opts Options) SchedulerServicer {
	return &schedulerService{
		db:       db,
		accounts: accounts,
		opts:     opts.withDefaults(),
	}
}

// RunDue executes every non-draft scheduled transaction dated on now's day,
// each in its own database transaction. A candidate that fails is left
// scheduled and reported; it never blocks the others. A day later than the
// service clock's day is refused.
func (s *schedulerService) RunDue(ctx context.Context, now time.Time) (*ScheduleReport, error) {
	start := time.Now()
	if err := s.requirePastOrToday(now); err != nil {
		return nil, observe(s.opts.Metrics, "schedule.run", start, err, "date", now.Format(time.DateOnly))
	}
	from := startOfDay(now)
	to := from.AddDate(0, 0, 1)

	var candidates []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("is_scheduled = ? AND is_draft = ?", true, false).
		Where("date >= ? AND date < ?", from, to).
		Order("type DESC").
		Order("date ASC").
		Order("id ASC").
		Find(&candidates).Error; err != nil {
		return nil, observe(s.opts.Metrics, "schedule.run", start,
			apperrors.Wrap(apperrors.ErrInternalServer, err), "date", from.Format(time.DateOnly))
	}

	report := &ScheduleReport{
		Date:     from.Format(time.DateOnly),
		Total:    len(candidates),
		Failures: []ScheduleFailure{},
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		executed, err := s.execute(ctx, candidate.ID, from, to)
		if err != nil {
			report.Failures = append(report.Failures, scheduleFailure(&candidate, err))
			continue
		}
		if executed {
			report.Executed++
			s.opts.Audit.Record(ctx, AuditEntry{
				Event:          models.AuditUpdated,
				ModelName:      transactionModel,
				SubjectID:      candidate.ID,
				ChangedFields:  map[string]any{"is_scheduled": false},
				PreviousValues: map[string]any{"is_scheduled": true},
			})
		}
	}

	overdue, err := s.MarkOverdueGoals(ctx, now)
	if err != nil {
		logger.Get().Errorw("failed to mark overdue goals", "date", report.Date, "error", err)
	}
	report.OverdueGoals = overdue
	report.ShouldNotify = report.Total > 0 && s.opts.Config.Bool(config.KeyNotifyOnScheduledRun)

	s.opts.Metrics.RecordScheduledRun(report.Executed, len(report.Failures), time.Since(start))
	logger.Get().Infow("scheduled run finished",
		"date", report.Date,
		"total", report.Total,
		"executed", report.Executed,
		"failed", len(report.Failures),
		"overdue_goals", report.OverdueGoals,
	)
	return report, nil
}

// execute applies one candidate against live balances. It reports false
// without error when the candidate was already handled by another run.
func (s *schedulerService) execute(ctx context.Context, id string, from, to time.Time) (bool, error) {
	executed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransaction(tx, id, false)
		if err != nil {
			return err
		}
		if !t.IsScheduled || t.IsDraft || t.Date.Before(from) || !t.Date.Before(to) {
			return nil
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

		t.IsScheduled = false
		if err := saveTransaction(tx, t); err != nil {
			return err
		}
		executed = true
		return nil
	})
	return executed, err
}

// requirePastOrToday rejects a run day later than the service clock's day.
func (s *schedulerService) requirePastOrToday(now time.Time) error {
	if startOfDay(now).After(startOfDay(s.opts.Now())) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot run scheduled payments for a future date")
	}
	return nil
}

func scheduleFailure(t *models.Transaction, err error) ScheduleFailure {
	failure := ScheduleFailure{
		TransactionID: t.ID,
		Code:          t.Code,
		Reason:        apperrors.ErrUnexpected.Code,
		Message:       t.Code + ": " + err.Error(),
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		failure.Reason = appErr.Code
	}

	if apperrors.IsDomain(err) {
		logger.Get().Infow("scheduled transaction skipped",
			"transaction_id", t.ID,
			"code", t.Code,
			"reason", failure.Reason,
			"message", err.Error(),
		)
		return failure
	}

	fields := []any{"transaction_id", t.ID, "code", t.Code, "error", err}
	if appErr != nil && appErr.Internal != nil {
		fields = append(fields, "cause", appErr.Internal.Error())
	}
	logger.Get().Errorw("scheduled transaction failed", fields...)
	return failure
}

// MarkOverdueGoals flips ongoing goals whose target date is before now's day
// to overdue and returns how many changed.
func (s *schedulerService) MarkOverdueGoals(ctx context.Context, now time.Time) (int64, error) {
	if err := s.requirePastOrToday(now); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).
		Model(&models.PaymentGoal{}).
		Where("status = ? AND target_date IS NOT NULL AND target_date < ?", models.GoalStatusOngoing, startOfDay(now)).
		Update("status", models.GoalStatusOverdue)
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}
