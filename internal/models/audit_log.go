package models

// AuditEvent names a lifecycle event recorded in the audit log
type AuditEvent string

const (
	AuditCreated      AuditEvent = "Created"
	AuditUpdated      AuditEvent = "Updated"
	AuditDeleted      AuditEvent = "Deleted"
	AuditRestored     AuditEvent = "Restored"
	AuditForceDeleted AuditEvent = "ForceDeleted"
)

// AuditLog records a create/update/delete of a ledger entity.
type AuditLog struct {
	Base
	Event          AuditEvent `gorm:"not null" json:"event"`
	ModelName      string     `gorm:"not null;index:idx_audit_logs_subject" json:"model_name"`
	SubjectID      string     `gorm:"type:uuid;not null;index:idx_audit_logs_subject" json:"subject_id"`
	ActorID        string     `json:"actor_id"`
	ChangedFields  string     `gorm:"type:text" json:"changed_fields"`
	PreviousValues string     `gorm:"type:text" json:"previous_values"`
}
