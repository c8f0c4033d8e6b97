package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finpanel/internal/attachments"
	"finpanel/internal/config"
	apperrors "finpanel/internal/errors"
	"finpanel/internal/logger"
	"finpanel/internal/metrics"
)

// Options carries the collaborators shared by the ledger services.
// Zero-valued fields fall back to inert defaults.
type Options struct {
	Audit       AuditSink
	Config      ConfigStore
	Metrics     metrics.Collector
	Attachments attachments.Store
	// Now returns the current time. Tests pin it to make "today" deterministic.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Audit == nil {
		o.Audit = nopAudit{}
	}
	if o.Config == nil {
		o.Config = config.New(nil)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoOpCollector{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type nopAudit struct{}

func (nopAudit) Record(_ context.Context, _ AuditEntry) {}

// forUpdate is the row lock taken on ledger rows before they are mutated.
// SQLite ignores it; its writer lock already serializes transactions.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// observe records the outcome of a service operation and normalizes its error.
// Domain rejections are returned unchanged without error-level logging.
// Anything else is logged with context and surfaced as UNEXPECTED_ERROR,
// except INVALID_TRANSACTION_TYPE, which keeps its code.
func observe(m metrics.Collector, operation string, start time.Time, err error, keysAndValues ...any) error {
	if err == nil {
		m.RecordOperation(operation, metrics.OutcomeSuccess, time.Since(start))
		return nil
	}
	if apperrors.IsDomain(err) {
		m.RecordOperation(operation, metrics.OutcomeRejected, time.Since(start))
		return err
	}
	m.RecordOperation(operation, metrics.OutcomeError, time.Since(start))

	fields := append([]any{"operation", operation, "error", err}, keysAndValues...)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Internal != nil {
		fields = append(fields, "cause", appErr.Internal.Error())
	}
	logger.Get().Errorw("ledger operation failed", fields...)

	if errors.Is(err, apperrors.ErrInvalidTransactionType) {
		return err
	}
	cause := err
	if appErr != nil && appErr.Internal != nil {
		cause = appErr.Internal
	}
	return apperrors.Wrap(apperrors.ErrUnexpected, cause)
}

// dbError maps a storage error to an AppError, translating record-not-found
// to notFound.
func dbError(err error, notFound *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
