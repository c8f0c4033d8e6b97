package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"finpanel/internal/models"
	"finpanel/internal/pagination"
)

// CurrentActorProvider resolves who is performing an operation.
type CurrentActorProvider interface {
	CurrentActor(ctx context.Context) string
}

// ConfigStore exposes named runtime settings.
type ConfigStore interface {
	Setting(key string) string
	Bool(key string) bool
}

// AuditEntry describes one lifecycle event of a ledger entity.
type AuditEntry struct {
	Event          models.AuditEvent
	ModelName      string
	SubjectID      string
	ChangedFields  map[string]any
	PreviousValues map[string]any
}

// AuditSink records audit events. Implementations must not fail the caller.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AccountUpdateFields holds the user-editable account fields. Deposit changes
// go through the ledger or AccountServicer.CorrectDeposit.
type AccountUpdateFields struct {
	Name        *string
	Description *string
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(ctx context.Context, name string, accountType models.AccountType, description, currency string, initialDeposit int64) (*models.Account, error)
	GetAccounts(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	UpdateAccount(ctx context.Context, id string, fields AccountUpdateFields) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	RestoreAccount(ctx context.Context, id string) (*models.Account, error)
	CorrectDeposit(ctx context.Context, id string, deposit int64, reason string) (*models.Account, error)

	// LockAccounts loads the given accounts FOR UPDATE in ascending id order,
	// including soft-deleted rows. Duplicate and empty ids are ignored.
	LockAccounts(tx *gorm.DB, ids ...string) (map[string]*models.Account, error)
	// SaveBalances persists the deposit of each account.
	SaveBalances(tx *gorm.DB, accounts map[string]*models.Account) error
}

// TransactionInput holds the fields of a new transaction.
type TransactionInput struct {
	Name               string
	Type               models.TransactionType
	Amount             int64
	Date               time.Time
	PaymentAccountID   string
	PaymentAccountToID *string
	HasItems           bool
	IsScheduled        bool
	IsDraft            bool
	Attachments        []string
}

// TransactionUpdateFields holds optional replacements for an existing transaction.
// A nil field is left unchanged.
type TransactionUpdateFields struct {
	Name               *string
	Type               *models.TransactionType
	Amount             *int64
	Date               *time.Time
	PaymentAccountID   *string
	PaymentAccountToID *string
	Attachments        *[]string
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate    *time.Time
	ToDate      *time.Time
	Type        *models.TransactionType
	AccountID   *string
	IsDraft     *bool
	IsScheduled *bool
}

// ApprovalResult is returned by ApproveTransaction.
type ApprovalResult struct {
	Transaction  *models.Transaction `json:"transaction"`
	Executed     bool                `json:"executed"`
	ShouldNotify bool                `json:"should_notify"`
}

// TransactionServicer defines the contract for the payment record lifecycle.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error)
	// CreateTransactionWithDB creates a transaction inside the caller's database transaction.
	CreateTransactionWithDB(ctx context.Context, tx *gorm.DB, in TransactionInput) (*models.Transaction, error)
	GetTransactions(ctx context.Context, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	RestoreTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ForceDeleteTransaction(ctx context.Context, id string) error
	ApproveTransaction(ctx context.Context, id string) (*ApprovalResult, error)
}

// ScheduleFailure describes one scheduled transaction the runner skipped.
type ScheduleFailure struct {
	TransactionID string `json:"transaction_id"`
	Code          string `json:"code"`
	Reason        string `json:"reason"`
	Message       string `json:"message"`
}

// ScheduleReport summarizes one run of the scheduled payment runner.
type ScheduleReport struct {
	Date         string            `json:"date"`
	Total        int               `json:"total"`
	Executed     int               `json:"executed"`
	Failures     []ScheduleFailure `json:"failures"`
	OverdueGoals int64             `json:"overdue_goals"`
	ShouldNotify bool              `json:"should_notify"`
}

// Succeeded reports whether every candidate was executed.
func (r *ScheduleReport) Succeeded() bool {
	return len(r.Failures) == 0
}

// SchedulerServicer defines the contract for the scheduled payment runner.
type SchedulerServicer interface {
	RunDue(ctx context.Context, now time.Time) (*ScheduleReport, error)
	MarkOverdueGoals(ctx context.Context, now time.Time) (int64, error)
}

// ItemServicer defines the contract for the item catalog and the item attachment ledger.
type ItemServicer interface {
	CreateItem(ctx context.Context, name string, itemType models.ItemType, price int64) (*models.Item, error)
	GetItems(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Item], error)
	GetItemByID(ctx context.Context, id string) (*models.Item, error)

	AttachItem(ctx context.Context, transactionID, itemID string, price int64, quantity int) (*models.TransactionItem, error)
	AttachNewItem(ctx context.Context, transactionID, name string, itemType models.ItemType, price int64, quantity int) (*models.TransactionItem, error)
	UpdateAttachedItem(ctx context.Context, transactionID, itemID string, price int64, quantity int) (*models.TransactionItem, error)
	DetachItem(ctx context.Context, transactionID, itemID string) error
	GetAttachedItems(ctx context.Context, transactionID string) ([]models.TransactionItem, error)
}

// GoalUpdateFields holds optional replacements for a goal's descriptive fields.
type GoalUpdateFields struct {
	Name         *string
	Description  *string
	TargetAmount *int64
	TargetDate   *time.Time
}

// AllocationResult is returned by a successful Allocate.
type AllocationResult struct {
	Goal         *models.PaymentGoal `json:"goal"`
	Transaction  *models.Transaction `json:"transaction"`
	ShouldNotify bool                `json:"should_notify"`
}

// GoalServicer defines the contract for payment goals and the fund allocator.
type GoalServicer interface {
	CreateGoal(ctx context.Context, name, description string, targetAmount int64, targetDate *time.Time) (*models.PaymentGoal, error)
	GetGoals(ctx context.Context, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.PaymentGoal], error)
	GetGoalByID(ctx context.Context, id string) (*models.PaymentGoal, error)
	UpdateGoal(ctx context.Context, id string, fields GoalUpdateFields) (*models.PaymentGoal, error)
	DeleteGoal(ctx context.Context, id string) error
	RestoreGoal(ctx context.Context, id string) (*models.PaymentGoal, error)
	Allocate(ctx context.Context, goalID, accountID string, amount int64) (*AllocationResult, error)
}
