package models

import (
	"time"

	"finpanel/internal/ledger"
)

// TransactionType represents the type of transaction
type TransactionType = ledger.Kind

const (
	TransactionTypeExpense    = ledger.KindExpense
	TransactionTypeIncome     = ledger.KindIncome
	TransactionTypeTransfer   = ledger.KindTransfer
	TransactionTypeWithdrawal = ledger.KindWithdrawal
)

// Transaction is a single payment record against one or two accounts.
type Transaction struct {
	Base
	Code               string          `gorm:"not null;uniqueIndex" json:"code"`
	Name               string          `json:"name"`
	Type               TransactionType `gorm:"not null" json:"type"`
	Amount             int64           `gorm:"type:bigint;not null;default:0" json:"amount"`
	Date               time.Time       `gorm:"not null" json:"date"`
	PaymentAccountID   string          `gorm:"type:uuid;not null;index" json:"payment_account_id"`
	PaymentAccountToID *string         `gorm:"type:uuid" json:"payment_account_to_id,omitempty"`
	HasItems           bool            `gorm:"not null;default:false" json:"has_items"`
	IsScheduled        bool            `gorm:"not null;default:false" json:"is_scheduled"`
	IsDraft            bool            `gorm:"not null;default:false" json:"is_draft"`

	// BalanceEffectApplied is set while AppliedAmount is reflected in account balances.
	BalanceEffectApplied bool  `gorm:"not null;default:false" json:"balance_effect_applied"`
	AppliedAmount        int64 `gorm:"type:bigint;not null;default:0" json:"applied_amount"`

	Attachments []string `gorm:"serializer:json;type:text" json:"attachments"`

	// Relationships
	PaymentAccount   *Account          `gorm:"foreignKey:PaymentAccountID" json:"payment_account,omitempty"`
	PaymentAccountTo *Account          `gorm:"foreignKey:PaymentAccountToID" json:"payment_account_to,omitempty"`
	Items            []TransactionItem `gorm:"foreignKey:TransactionID" json:"items,omitempty"`
}

// Destination returns the destination account id, or "" when there is none.
func (t *Transaction) Destination() string {
	if t.PaymentAccountToID == nil {
		return ""
	}
	return *t.PaymentAccountToID
}
