// Package testutil provides in-memory ledger databases, fixtures and
// assertions for service and pagination tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"finpanel/internal/models"
)

// ledgerModels are migrated into every test database, parents first.
var ledgerModels = []any{
	&models.Account{},
	&models.Transaction{},
	&models.Item{},
	&models.TransactionItem{},
	&models.PaymentGoal{},
	&models.AuditLog{},
}

var dbCounter atomic.Int64

// SetupTestDB opens a private in-memory SQLite database holding the ledger
// schema. The pool is pinned to one connection, so statements inside and
// outside a gorm transaction see the same data and writes serialize the way
// row locks make them serialize on PostgreSQL. The database is closed when
// the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(ledgerModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// TeardownTestDB closes the database early. Closing twice is harmless.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("failed to get underlying DB for teardown: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}
