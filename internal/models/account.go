package models

// AccountType represents the kind of store holding an account's funds
type AccountType string

const (
	AccountTypeBank    AccountType = "bank"
	AccountTypeEWallet AccountType = "ewallet"
	AccountTypeCash    AccountType = "cash"
)

// Account holds one running balance in the smallest currency unit.
// Deposit is written only by the ledger and by explicit deposit corrections.
type Account struct {
	Base
	Name        string      `gorm:"not null" json:"name"`
	Type        AccountType `gorm:"not null" json:"type"`
	Description string      `json:"description"`
	Deposit     int64       `gorm:"type:bigint;not null;default:0" json:"deposit"`
	Currency    string      `gorm:"not null;default:'IDR'" json:"currency"`
}
