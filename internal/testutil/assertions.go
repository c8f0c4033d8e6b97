package testutil

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
)

// AssertAppError fails unless err is an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError %s, got %T: %v", code, err, err)
	}
	if appErr.Code != code {
		t.Errorf("expected error %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Deposit reloads an account, deleted or not, and returns its balance.
func Deposit(t *testing.T, db *gorm.DB, accountID string) int64 {
	t.Helper()

	var account models.Account
	if err := db.Unscoped().Where("id = ?", accountID).First(&account).Error; err != nil {
		t.Fatalf("failed to load account %s: %v", accountID, err)
	}
	return account.Deposit
}

// AssertDeposits checks the stored balance of every account in want.
func AssertDeposits(t *testing.T, db *gorm.DB, want map[string]int64) {
	t.Helper()

	for id, deposit := range want {
		if got := Deposit(t, db, id); got != deposit {
			t.Errorf("account %s: expected deposit %d, got %d", id, deposit, got)
		}
	}
}
