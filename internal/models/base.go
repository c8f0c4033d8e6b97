package models

import (
	"time"

	"finpanel/internal/uuid"

	"gorm.io/gorm"
)

// Base holds the UUIDv7 key, timestamps and soft-delete tombstone shared by
// accounts, transactions, items and goals.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty" swaggertype:"string"`
}

// BeforeCreate assigns a time-ordered id unless the caller chose one.
func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// IsDeleted reports whether the row carries a soft-delete tombstone.
func (b Base) IsDeleted() bool {
	return b.DeletedAt.Valid
}
