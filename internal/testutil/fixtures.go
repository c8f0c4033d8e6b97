package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finpanel/internal/models"
	"finpanel/internal/uuid"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAccount creates a cash account with zero deposit.
func CreateTestAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	return CreateTestAccountWithDeposit(t, db, 0)
}

// CreateTestAccountWithDeposit creates a cash account holding deposit.
func CreateTestAccountWithDeposit(t *testing.T, db *gorm.DB, deposit int64) *models.Account {
	t.Helper()

	account := &models.Account{
		Name:     fmt.Sprintf("Test Account %d", nextID()),
		Type:     models.AccountTypeCash,
		Deposit:  deposit,
		Currency: "IDR",
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestTransaction stores a committed transaction row directly, with its
// effect marked as applied. Account balances are not touched.
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Code:                 uuid.NewCode("TRX"),
		Name:                 fmt.Sprintf("Test Transaction %d", nextID()),
		Type:                 txType,
		Amount:               amount,
		Date:                 time.Now(),
		PaymentAccountID:     accountID,
		BalanceEffectApplied: true,
		AppliedAmount:        amount,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestScheduledTransaction stores a pending scheduled transaction dated date.
func CreateTestScheduledTransaction(t *testing.T, db *gorm.DB, accountID string, txType models.TransactionType, amount int64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Code:             uuid.NewCode("TRX"),
		Name:             fmt.Sprintf("Scheduled Transaction %d", nextID()),
		Type:             txType,
		Amount:           amount,
		Date:             date,
		PaymentAccountID: accountID,
		IsScheduled:      true,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test scheduled transaction: %v", err)
	}
	return tx
}

// CreateTestItemTransaction stores an empty item-based expense with no effect applied.
func CreateTestItemTransaction(t *testing.T, db *gorm.DB, accountID string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Code:             uuid.NewCode("TRX"),
		Type:             models.TransactionTypeExpense,
		Date:             time.Now(),
		PaymentAccountID: accountID,
		HasItems:         true,
		IsDraft:          true,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test item transaction: %v", err)
	}
	return tx
}

// CreateTestItem creates a product in the catalog.
func CreateTestItem(t *testing.T, db *gorm.DB, name string, price int64) *models.Item {
	t.Helper()

	item := &models.Item{
		Code:  uuid.NewCode("ITM"),
		Name:  name,
		Type:  models.ItemTypeProduct,
		Price: price,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test item: %v", err)
	}
	return item
}

// CreateTestGoal creates an ongoing goal with the given target and amount
// already contributed.
func CreateTestGoal(t *testing.T, db *gorm.DB, target, contributed int64) *models.PaymentGoal {
	t.Helper()

	progress := 0.0
	if target > 0 {
		progress = float64(contributed*10000/target) / 100
	}
	status := models.GoalStatusOngoing
	if progress >= 100 {
		status = models.GoalStatusCompleted
	}

	goal := &models.PaymentGoal{
		Code:            uuid.NewCode("GOAL"),
		Name:            fmt.Sprintf("Test Goal %d", nextID()),
		TargetAmount:    target,
		Amount:          contributed,
		ProgressPercent: progress,
		Status:          status,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}
