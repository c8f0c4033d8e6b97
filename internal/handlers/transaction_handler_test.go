package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/notify"
	"finpanel/internal/pagination"
	"finpanel/internal/services"
)

// --- mock transaction service ---

type mockTransactionService struct {
	createTransactionFn  func(in services.TransactionInput) (*models.Transaction, error)
	getTransactionsFn    func(page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn func(id string) (*models.Transaction, error)
	updateTransactionFn  func(id string, fields services.TransactionUpdateFields) (*models.Transaction, error)
	deleteTransactionFn  func(id string) error
	restoreFn            func(id string) (*models.Transaction, error)
	forceDeleteFn        func(id string) error
	approveFn            func(id string) (*services.ApprovalResult, error)
}

func (m *mockTransactionService) CreateTransaction(_ context.Context, in services.TransactionInput) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(in)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) CreateTransactionWithDB(_ context.Context, _ *gorm.DB, in services.TransactionInput) (*models.Transaction, error) {
	return m.CreateTransaction(context.Background(), in)
}

func (m *mockTransactionService) GetTransactions(_ context.Context, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getTransactionsFn != nil {
		return m.getTransactionsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(_ context.Context, id string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(id)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) UpdateTransaction(_ context.Context, id string, fields services.TransactionUpdateFields) (*models.Transaction, error) {
	if m.updateTransactionFn != nil {
		return m.updateTransactionFn(id, fields)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) DeleteTransaction(_ context.Context, id string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(id)
	}
	return nil
}

func (m *mockTransactionService) RestoreTransaction(_ context.Context, id string) (*models.Transaction, error) {
	if m.restoreFn != nil {
		return m.restoreFn(id)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) ForceDeleteTransaction(_ context.Context, id string) error {
	if m.forceDeleteFn != nil {
		return m.forceDeleteFn(id)
	}
	return nil
}

func (m *mockTransactionService) ApproveTransaction(_ context.Context, id string) (*services.ApprovalResult, error) {
	if m.approveFn != nil {
		return m.approveFn(id)
	}
	return &services.ApprovalResult{Transaction: &models.Transaction{}}, nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

func setupTransactionRouter(handler *TransactionHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectActor("actor-1"))
	auth.POST("/transactions", handler.CreateTransaction)
	auth.GET("/transactions", handler.GetTransactions)
	auth.GET("/accounts/:id/transactions", handler.GetAccountTransactions)
	auth.GET("/transactions/:id", handler.GetTransactionByID)
	auth.PUT("/transactions/:id", handler.UpdateTransaction)
	auth.DELETE("/transactions/:id", handler.DeleteTransaction)
	auth.POST("/transactions/:id/restore", handler.RestoreTransaction)
	auth.DELETE("/transactions/:id/force", handler.ForceDeleteTransaction)
	auth.POST("/transactions/:id/approve", handler.ApproveTransaction)
	return r
}

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.TransactionInput
		svc := &mockTransactionService{
			createTransactionFn: func(in services.TransactionInput) (*models.Transaction, error) {
				got = in
				return &models.Transaction{
					Base:               models.Base{ID: "trx-1"},
					Code:               "TRX-ABCDEF12",
					Type:               in.Type,
					Amount:             in.Amount,
					PaymentAccountID:   in.PaymentAccountID,
					PaymentAccountToID: in.PaymentAccountToID,
				}, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "POST", "/transactions",
			`{"type":"transfer","amount":20000,"payment_account_id":"a","payment_account_to_id":"b","date":"2026-10-14"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.PaymentAccountToID == nil || *got.PaymentAccountToID != "b" {
			t.Errorf("expected destination b, got %v", got.PaymentAccountToID)
		}
		if !got.Date.Equal(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected date %v", got.Date)
		}
		tx := parseJSON(t, rec)["transaction"].(map[string]interface{})
		if tx["amount"].(float64) != 20000 {
			t.Errorf("expected amount 20000, got %v", tx["amount"])
		}
	})

	t.Run("omitted date is left to the service", func(t *testing.T) {
		var got services.TransactionInput
		svc := &mockTransactionService{
			createTransactionFn: func(in services.TransactionInput) (*models.Transaction, error) {
				got = in
				return &models.Transaction{}, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "POST", "/transactions", `{"type":"income","amount":1,"payment_account_id":"a","is_draft":true}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if !got.Date.IsZero() || !got.IsDraft {
			t.Errorf("unexpected input %+v", got)
		}
	})

	t.Run("returns 400 on invalid type", func(t *testing.T) {
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, nil))

		rec := doRequest(r, "POST", "/transactions", `{"type":"refund","amount":1000,"payment_account_id":"a"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on missing account", func(t *testing.T) {
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, nil))

		rec := doRequest(r, "POST", "/transactions", `{"type":"expense","amount":1000}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on bad date", func(t *testing.T) {
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, nil))

		rec := doRequest(r, "POST", "/transactions", `{"type":"expense","amount":1,"payment_account_id":"a","date":"14/10/2026"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("surfaces insufficient funds verbatim", func(t *testing.T) {
		svc := &mockTransactionService{
			createTransactionFn: func(services.TransactionInput) (*models.Transaction, error) {
				return nil, apperrors.WithMessage(apperrors.ErrInsufficientFunds, "Wallet has Rp80.000, needs Rp90.000")
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "POST", "/transactions", `{"type":"expense","amount":90000,"payment_account_id":"a"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		assertErrorCode(t, result, "INSUFFICIENT_FUNDS")
		if msg := result["error"].(map[string]interface{})["message"]; msg != "Wallet has Rp80.000, needs Rp90.000" {
			t.Errorf("unexpected message %v", msg)
		}
	})
}

func TestTransactionHandler_GetTransactions(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		var got services.TransactionFilter
		svc := &mockTransactionService{
			getTransactionsFn: func(page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "GET", "/transactions?type=withdrawal&is_draft=false&is_scheduled=true&from_date=2026-10-01", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Type == nil || *got.Type != models.TransactionTypeWithdrawal {
			t.Errorf("expected withdrawal filter, got %v", got.Type)
		}
		if got.IsDraft == nil || *got.IsDraft {
			t.Errorf("expected is_draft=false, got %v", got.IsDraft)
		}
		if got.IsScheduled == nil || !*got.IsScheduled {
			t.Errorf("expected is_scheduled=true, got %v", got.IsScheduled)
		}
		if got.FromDate == nil {
			t.Error("expected from_date")
		}
	})

	t.Run("returns 400 on invalid bool", func(t *testing.T) {
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, nil))

		rec := doRequest(r, "GET", "/transactions?is_draft=maybe", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("account route sets account filter", func(t *testing.T) {
		var got services.TransactionFilter
		svc := &mockTransactionService{
			getTransactionsFn: func(_ pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "GET", "/accounts/acc-9/transactions", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.AccountID == nil || *got.AccountID != "acc-9" {
			t.Errorf("expected account filter acc-9, got %v", got.AccountID)
		}
	})
}

func TestTransactionHandler_UpdateTransaction(t *testing.T) {
	t.Run("passes only provided fields", func(t *testing.T) {
		var got services.TransactionUpdateFields
		svc := &mockTransactionService{
			updateTransactionFn: func(id string, fields services.TransactionUpdateFields) (*models.Transaction, error) {
				got = fields
				return &models.Transaction{Base: models.Base{ID: id}}, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "PUT", "/transactions/trx-1", `{"amount":25000}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Amount == nil || *got.Amount != 25000 {
			t.Errorf("expected amount 25000, got %v", got.Amount)
		}
		if got.Type != nil || got.Name != nil || got.Date != nil {
			t.Errorf("expected other fields nil, got %+v", got)
		}
	})

	t.Run("derived amount rejection", func(t *testing.T) {
		svc := &mockTransactionService{
			updateTransactionFn: func(string, services.TransactionUpdateFields) (*models.Transaction, error) {
				return nil, apperrors.ErrAmountDerived
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "PUT", "/transactions/trx-1", `{"amount":1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "AMOUNT_DERIVED_FROM_ITEMS")
	})
}

func TestTransactionHandler_DeleteRestoreForce(t *testing.T) {
	t.Run("delete returns 404 when missing", func(t *testing.T) {
		svc := &mockTransactionService{
			deleteTransactionFn: func(string) error { return apperrors.ErrTransactionNotFound },
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "DELETE", "/transactions/trx-1", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("force delete hits the force route", func(t *testing.T) {
		var forced string
		svc := &mockTransactionService{
			deleteTransactionFn: func(string) error {
				t.Error("soft delete should not be called")
				return nil
			},
			forceDeleteFn: func(id string) error { forced = id; return nil },
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "DELETE", "/transactions/trx-7/force", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if forced != "trx-7" {
			t.Errorf("expected trx-7, got %q", forced)
		}
	})

	t.Run("restore not deleted returns 409", func(t *testing.T) {
		svc := &mockTransactionService{
			restoreFn: func(string) (*models.Transaction, error) { return nil, apperrors.ErrTransactionNotDeleted },
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, nil))

		rec := doRequest(r, "POST", "/transactions/trx-1/restore", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestTransactionHandler_ApproveTransaction(t *testing.T) {
	t.Run("notifies when requested", func(t *testing.T) {
		n := &recordingNotifier{}
		svc := &mockTransactionService{
			approveFn: func(id string) (*services.ApprovalResult, error) {
				return &services.ApprovalResult{
					Transaction:  &models.Transaction{Base: models.Base{ID: id}, Code: "TRX-1", Type: models.TransactionTypeExpense, Amount: 5000},
					Executed:     true,
					ShouldNotify: true,
				}, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, n))

		rec := doRequest(r, "POST", "/transactions/trx-1/approve", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		sent := n.sent()
		if len(sent) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(sent))
		}
		if sent[0].Kind != notify.KindApproval || sent[0].SubjectID != "trx-1" || sent[0].ActorID != "actor-1" {
			t.Errorf("unexpected message %+v", sent[0])
		}
	})

	t.Run("silent when not requested", func(t *testing.T) {
		n := &recordingNotifier{}
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, n))

		rec := doRequest(r, "POST", "/transactions/trx-1/approve", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(n.sent()) != 0 {
			t.Errorf("expected no notifications, got %d", len(n.sent()))
		}
	})

	t.Run("already approved returns 409", func(t *testing.T) {
		n := &recordingNotifier{}
		svc := &mockTransactionService{
			approveFn: func(string) (*services.ApprovalResult, error) { return nil, apperrors.ErrAlreadyApproved },
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, n))

		rec := doRequest(r, "POST", "/transactions/trx-1/approve", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "TRANSACTION_ALREADY_APPROVED")
		if len(n.sent()) != 0 {
			t.Error("rejections must not notify")
		}
	})
}
