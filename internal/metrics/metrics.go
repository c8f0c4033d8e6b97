// Package metrics defines the instrumentation points of the ledger and their
// Prometheus and no-op implementations.
package metrics

import "time"

// Operation outcomes recorded by RecordOperation.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Collector receives ledger, scheduler, notifier and HTTP measurements.
type Collector interface {
	// RecordOperation records one service operation such as "transaction.create".
	RecordOperation(operation, outcome string, duration time.Duration)

	// RecordScheduledRun records one pass of the scheduled payment runner.
	RecordScheduledRun(executed, failed int, duration time.Duration)

	// RecordNotification records one notifier delivery attempt.
	RecordNotification(kind string, success bool)

	// RecordCircuitState records a circuit breaker transition.
	RecordCircuitState(name string, state CircuitState)

	// RecordRequest records one HTTP request.
	RecordRequest(method, route string, status int, duration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector discards every measurement.
type NoOpCollector struct{}

func (NoOpCollector) RecordOperation(string, string, time.Duration) {}
func (NoOpCollector) RecordScheduledRun(int, int, time.Duration) {}
func (NoOpCollector) RecordNotification(string, bool) {}
func (NoOpCollector) RecordCircuitState(string, CircuitState) {}
func (NoOpCollector) RecordRequest(string, string, int, time.Duration) {}

var _ Collector = NoOpCollector{}
