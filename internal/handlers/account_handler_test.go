package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/pagination"
	"finpanel/internal/services"
)

// --- mock account service ---

type mockAccountService struct {
	createAccountFn  func(name string, accountType models.AccountType, description, currency string, initialDeposit int64) (*models.Account, error)
	getAccountsFn    func(page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	getAccountByIDFn func(id string) (*models.Account, error)
	updateAccountFn  func(id string, fields services.AccountUpdateFields) (*models.Account, error)
	deleteAccountFn  func(id string) error
	restoreAccountFn func(id string) (*models.Account, error)
	correctDepositFn func(id string, deposit int64, reason string) (*models.Account, error)
}

func (m *mockAccountService) CreateAccount(_ context.Context, name string, accountType models.AccountType, description, currency string, initialDeposit int64) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(name, accountType, description, currency, initialDeposit)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) GetAccounts(_ context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	if m.getAccountsFn != nil {
		return m.getAccountsFn(page)
	}
	resp := pagination.NewPageResponse([]models.Account{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAccountService) GetAccountByID(_ context.Context, id string) (*models.Account, error) {
	if m.getAccountByIDFn != nil {
		return m.getAccountByIDFn(id)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) UpdateAccount(_ context.Context, id string, fields services.AccountUpdateFields) (*models.Account, error) {
	if m.updateAccountFn != nil {
		return m.updateAccountFn(id, fields)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) DeleteAccount(_ context.Context, id string) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(id)
	}
	return nil
}

func (m *mockAccountService) RestoreAccount(_ context.Context, id string) (*models.Account, error) {
	if m.restoreAccountFn != nil {
		return m.restoreAccountFn(id)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) CorrectDeposit(_ context.Context, id string, deposit int64, reason string) (*models.Account, error) {
	if m.correctDepositFn != nil {
		return m.correctDepositFn(id, deposit, reason)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) LockAccounts(*gorm.DB, ...string) (map[string]*models.Account, error) {
	return map[string]*models.Account{}, nil
}

func (m *mockAccountService) SaveBalances(*gorm.DB, map[string]*models.Account) error {
	return nil
}

// verify interface compliance
var _ services.AccountServicer = (*mockAccountService)(nil)

func setupAccountRouter(handler *AccountHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectActor("actor-1"))
	auth.POST("/accounts", handler.CreateAccount)
	auth.GET("/accounts", handler.GetAccounts)
	auth.GET("/accounts/:id", handler.GetAccountByID)
	auth.PUT("/accounts/:id", handler.UpdateAccount)
	auth.DELETE("/accounts/:id", handler.DeleteAccount)
	auth.POST("/accounts/:id/restore", handler.RestoreAccount)
	auth.POST("/accounts/:id/correct-deposit", handler.CorrectDeposit)
	return r
}

func TestAccountHandler_CreateAccount(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockAccountService{
			createAccountFn: func(name string, accountType models.AccountType, desc, currency string, deposit int64) (*models.Account, error) {
				return &models.Account{
					Base:     models.Base{ID: "acc-1"},
					Name:     name,
					Type:     accountType,
					Deposit:  deposit,
					Currency: currency,
				}, nil
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc))

		rec := doRequest(r, "POST", "/accounts",
			`{"name":"Wallet","type":"ewallet","currency":"IDR","initial_deposit":100000}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		acct := parseJSON(t, rec)["account"].(map[string]interface{})
		if acct["deposit"].(float64) != 100000 {
			t.Errorf("expected deposit 100000, got %v", acct["deposit"])
		}
		if acct["type"] != "ewallet" {
			t.Errorf("expected ewallet, got %v", acct["type"])
		}
	})

	t.Run("returns 400 on missing name", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}))

		rec := doRequest(r, "POST", "/accounts", `{"type":"bank"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on unknown account type", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}))

		rec := doRequest(r, "POST", "/accounts", `{"name":"Card","type":"credit_card"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on invalid currency", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}))

		rec := doRequest(r, "POST", "/accounts", `{"name":"Cash","type":"cash","currency":"XXX"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on negative initial deposit", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}))

		rec := doRequest(r, "POST", "/accounts", `{"name":"Cash","type":"cash","initial_deposit":-1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 401 without actor", func(t *testing.T) {
		r := gin.New()
		r.POST("/accounts", NewAccountHandler(&mockAccountService{}).CreateAccount)

		rec := doRequest(r, "POST", "/accounts", `{"name":"Cash","type":"cash"}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNAUTHORIZED")
	})
}

func TestAccountHandler_GetAccounts(t *testing.T) {
	t.Run("passes pagination through", func(t *testing.T) {
		var got pagination.PageRequest
		svc := &mockAccountService{
			getAccountsFn: func(page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
				got = page
				resp := pagination.NewPageResponse([]models.Account{{Name: "A"}}, page.Page, page.PageSize, 1)
				return &resp, nil
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc))

		rec := doRequest(r, "GET", "/accounts?page=2&page_size=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.Page != 2 || got.PageSize != 5 {
			t.Errorf("expected page 2 size 5, got %+v", got)
		}
	})

	t.Run("returns 400 on oversized page", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}))

		rec := doRequest(r, "GET", "/accounts?page_size=1000", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAccountHandler_GetAccountByID(t *testing.T) {
	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockAccountService{
			getAccountByIDFn: func(string) (*models.Account, error) {
				return nil, apperrors.ErrAccountNotFound
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc))

		rec := doRequest(r, "GET", "/accounts/missing", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ACCOUNT_NOT_FOUND")
	})
}

func TestAccountHandler_UpdateAccount(t *testing.T) {
	t.Run("ignores deposit in payload", func(t *testing.T) {
		var got services.AccountUpdateFields
		svc := &mockAccountService{
			updateAccountFn: func(id string, fields services.AccountUpdateFields) (*models.Account, error) {
				got = fields
				return &models.Account{Base: models.Base{ID: id}, Name: *fields.Name, Deposit: 500}, nil
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc))

		rec := doRequest(r, "PUT", "/accounts/acc-1", `{"name":"Renamed","deposit":999999}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Name == nil || *got.Name != "Renamed" {
			t.Errorf("expected name Renamed, got %v", got.Name)
		}
		if got.Description != nil {
			t.Errorf("expected description untouched, got %v", *got.Description)
		}
		acct := parseJSON(t, rec)["account"].(map[string]interface{})
		if acct["deposit"].(float64) != 500 {
			t.Errorf("expected deposit 500, got %v", acct["deposit"])
		}
	})
}

func TestAccountHandler_CorrectDeposit(t *testing.T) {
	t.Run("requires a reason", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}))

		rec := doRequest(r, "POST", "/accounts/acc-1/correct-deposit", `{"deposit":100}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("passes deposit and reason", func(t *testing.T) {
		var gotDeposit int64
		var gotReason string
		svc := &mockAccountService{
			correctDepositFn: func(id string, deposit int64, reason string) (*models.Account, error) {
				gotDeposit, gotReason = deposit, reason
				return &models.Account{Base: models.Base{ID: id}, Deposit: deposit}, nil
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc))

		rec := doRequest(r, "POST", "/accounts/acc-1/correct-deposit", `{"deposit":4200,"reason":"bank statement"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotDeposit != 4200 || gotReason != "bank statement" {
			t.Errorf("got deposit %d reason %q", gotDeposit, gotReason)
		}
	})
}

func TestAccountHandler_DeleteAndRestore(t *testing.T) {
	t.Run("delete returns message", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}))

		rec := doRequest(r, "DELETE", "/accounts/acc-1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("restore of live account returns 409", func(t *testing.T) {
		svc := &mockAccountService{
			restoreAccountFn: func(string) (*models.Account, error) {
				return nil, apperrors.ErrAccountNotDeleted
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc))

		rec := doRequest(r, "POST", "/accounts/acc-1/restore", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ACCOUNT_NOT_DELETED")
	})
}
