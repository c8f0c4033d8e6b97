// Package notify delivers user-facing outcome notifications for approvals,
// goal allocations and scheduled runs.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"finpanel/internal/logger"
)

// Kind identifies the ledger outcome a message reports.
type Kind string

const (
	KindApproval     Kind = "transaction.approved"
	KindAllocation   Kind = "goal.allocated"
	KindScheduledRun Kind = "schedule.completed"
)

// Message is the structured payload handed to a Notifier.
type Message struct {
	Kind      Kind      `json:"kind"`
	Success   bool      `json:"success"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SubjectID string    `json:"subject_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Notifier delivers a message to the user through some channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Dispatch sends msg and logs delivery failures. Notification problems never
// fail the ledger operation that produced them.
func Dispatch(ctx context.Context, n Notifier, msg Message) {
	if n == nil {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := n.Notify(ctx, msg); err != nil {
		logger.Named("notify").Warnw("failed to deliver notification",
			"kind", msg.Kind,
			"subject_id", msg.SubjectID,
			"error", err,
		)
	}
}

// NoopNotifier drops every message.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Message) error { return nil }

// LogNotifier writes messages to the application log. It is used when no
// broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg Message) error {
	logger.Named("notify").Infow("notification",
		"kind", msg.Kind,
		"success", msg.Success,
		"title", msg.Title,
		"body", msg.Body,
		"subject_id", msg.SubjectID,
		"actor_id", msg.ActorID,
	)
	return nil
}

var (
	_ Notifier = NoopNotifier{}
	_ Notifier = LogNotifier{}
)
