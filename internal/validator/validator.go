// Package validator registers the ledger's enum and currency tags with gin's
// binding engine. Call Register once before serving requests.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"finpanel/internal/ledger"
	"finpanel/internal/models"
	"finpanel/internal/money"
)

// Register installs the custom tags. Registration errors are impossible for
// these static names and are ignored.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("iso4217", validateISO4217)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("account_type", validateAccountType)
		_ = v.RegisterValidation("item_type", validateItemType)
		_ = v.RegisterValidation("goal_status", validateGoalStatus)
	}
}

func validateISO4217(fl validator.FieldLevel) bool {
	return money.IsCurrency(fl.Field().String())
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return ledger.Kind(fl.Field().String()).Valid()
}

func validateAccountType(fl validator.FieldLevel) bool {
	switch models.AccountType(fl.Field().String()) {
	case models.AccountTypeBank, models.AccountTypeEWallet, models.AccountTypeCash:
		return true
	}
	return false
}

func validateItemType(fl validator.FieldLevel) bool {
	switch models.ItemType(fl.Field().String()) {
	case models.ItemTypeProduct, models.ItemTypeService:
		return true
	}
	return false
}

func validateGoalStatus(fl validator.FieldLevel) bool {
	switch models.GoalStatus(fl.Field().String()) {
	case models.GoalStatusOngoing, models.GoalStatusOverdue, models.GoalStatusCompleted:
		return true
	}
	return false
}
