package services

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/logger"
	"finpanel/internal/metrics"
	"finpanel/internal/testutil"
)

type outcomeRecorder struct {
	metrics.NoOpCollector
	outcomes []string
}

func (r *outcomeRecorder) RecordOperation(_, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestObserve(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		rec := &outcomeRecorder{}
		testutil.AssertNoError(t, observe(rec, "op", time.Now(), nil))
		if len(rec.outcomes) != 1 || rec.outcomes[0] != metrics.OutcomeSuccess {
			t.Errorf("unexpected outcomes %v", rec.outcomes)
		}
	})

	t.Run("domain_error_passes_through_quietly", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		rec := &outcomeRecorder{}
		err := observe(rec, "op", time.Now(), apperrors.WithMessage(apperrors.ErrInsufficientFunds, "not enough"))
		testutil.AssertAppError(t, err, "INSUFFICIENT_FUNDS")

		if rec.outcomes[0] != metrics.OutcomeRejected {
			t.Errorf("expected rejected outcome, got %v", rec.outcomes)
		}
		if logs.Len() != 0 {
			t.Errorf("expected no logs for a domain rejection, got %d", logs.Len())
		}
	})

	t.Run("storage_error_becomes_unexpected", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		rec := &outcomeRecorder{}
		err := observe(rec, "op", time.Now(), apperrors.Wrap(apperrors.ErrInternalServer, errors.New("connection reset")), "transaction_id", "t1")
		testutil.AssertAppError(t, err, "UNEXPECTED_ERROR")

		if rec.outcomes[0] != metrics.OutcomeError {
			t.Errorf("expected error outcome, got %v", rec.outcomes)
		}
		entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
		if len(entries) != 1 {
			t.Fatalf("expected one error log, got %d", len(entries))
		}
		fields := entries[0].ContextMap()
		if fields["transaction_id"] != "t1" || fields["cause"] != "connection reset" {
			t.Errorf("expected context fields, got %v", fields)
		}
	})

	t.Run("invalid_type_keeps_its_code", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		err := observe(metrics.NoOpCollector{}, "op", time.Now(), apperrors.ErrInvalidTransactionType)
		testutil.AssertAppError(t, err, "INVALID_TRANSACTION_TYPE")
		if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
			t.Error("expected an invalid type to be logged loudly")
		}
	})
}
