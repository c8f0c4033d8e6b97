package models

import (
	"time"

	"finpanel/internal/uuid"

	"gorm.io/gorm"
)

// ItemType distinguishes physical products from services
type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeService ItemType = "service"
)

// Item is a catalog entry that can be attached to transactions as a line item.
type Item struct {
	Base
	Code  string   `gorm:"not null;uniqueIndex" json:"code"`
	Name  string   `gorm:"not null" json:"name"`
	Type  ItemType `gorm:"not null" json:"type"`
	Price int64    `gorm:"type:bigint;not null;default:0" json:"price"`
}

// TransactionItem is the pivot row linking an item to a transaction at a
// fixed price and quantity. Rows are hard-deleted on detach.
type TransactionItem struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID string    `gorm:"type:uuid;not null;uniqueIndex:idx_transaction_item" json:"transaction_id"`
	ItemID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_transaction_item" json:"item_id"`
	Price         int64     `gorm:"type:bigint;not null" json:"price"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	Total         int64     `gorm:"type:bigint;not null" json:"total"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Item *Item `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new pivot rows
func (ti *TransactionItem) BeforeCreate(tx *gorm.DB) error {
	if ti.ID == "" {
		ti.ID = uuid.New()
	}
	return nil
}
