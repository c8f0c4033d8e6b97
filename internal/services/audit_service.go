package services

import (
	"context"
	"encoding/json"

	"finpanel/internal/logger"
	"finpanel/internal/models"

	"gorm.io/gorm"
)

// auditService writes audit events to the audit_logs table.
type auditService struct {
	db     *gorm.DB
	actors CurrentActorProvider
}

// NewAuditService creates a new AuditSink backed by db.
func NewAuditService(db *gorm.DB, actors CurrentActorProvider) AuditSink {
	return &auditService{db: db, actors: actors}
}

// Record stores an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Record(ctx context.Context, entry AuditEntry) {
	var actorID string
	if s.actors != nil {
		actorID = s.actors.CurrentActor(ctx)
	}

	row := &models.AuditLog{
		Event:          entry.Event,
		ModelName:      entry.ModelName,
		SubjectID:      entry.SubjectID,
		ActorID:        actorID,
		ChangedFields:  marshalAuditFields(entry.ChangedFields, entry),
		PreviousValues: marshalAuditFields(entry.PreviousValues, entry),
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"event", entry.Event,
			"model", entry.ModelName,
			"subject_id", entry.SubjectID,
			"actor_id", actorID,
		)
	}
}

func marshalAuditFields(fields map[string]any, entry AuditEntry) string {
	if len(fields) == 0 {
		return "{}"
	}
	data, err := json.Marshal(fields)
	if err != nil {
		logger.Get().Errorw("failed to marshal audit log fields", "error", err, "event", entry.Event, "model", entry.ModelName)
		return "{}"
	}
	return string(data)
}
