package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/money"
	"finpanel/internal/notify"
	"finpanel/internal/pagination"
	"finpanel/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	notifier           notify.Notifier
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, notifier notify.Notifier) *TransactionHandler {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &TransactionHandler{transactionService: transactionService, notifier: notifier}
}

// CreateTransactionRequest represents the request payload for creating a transaction
type CreateTransactionRequest struct {
	Name               string                 `json:"name" binding:"max=500"`
	Type               models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount             int64                  `json:"amount" binding:"gte=0"`
	Date               *string                `json:"date"`
	PaymentAccountID   string                 `json:"payment_account_id" binding:"required"`
	PaymentAccountToID *string                `json:"payment_account_to_id"`
	HasItems           bool                   `json:"has_items"`
	IsScheduled        bool                   `json:"is_scheduled"`
	IsDraft            bool                   `json:"is_draft"`
	Attachments        []string               `json:"attachments" binding:"omitempty,dive,required,max=255"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
// Omitted fields are left unchanged.
type UpdateTransactionRequest struct {
	Name               *string                 `json:"name" binding:"omitempty,max=500"`
	Type               *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
	Amount             *int64                  `json:"amount" binding:"omitempty,gt=0"`
	Date               *string                 `json:"date"`
	PaymentAccountID   *string                 `json:"payment_account_id" binding:"omitempty,min=1"`
	PaymentAccountToID *string                 `json:"payment_account_to_id"`
	Attachments        *[]string               `json:"attachments" binding:"omitempty,dive,required,max=255"`
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Create an expense, income, transfer or withdrawal. Drafts and scheduled transactions do not touch balances.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input, destination or insufficient funds"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date, err := parseOptionalTime(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}
	in := services.TransactionInput{
		Name:               req.Name,
		Type:               req.Type,
		Amount:             req.Amount,
		PaymentAccountID:   req.PaymentAccountID,
		PaymentAccountToID: req.PaymentAccountToID,
		HasItems:           req.HasItems,
		IsScheduled:        req.IsScheduled,
		IsDraft:            req.IsDraft,
		Attachments:        req.Attachments,
	}
	if date != nil {
		in.Date = *date
	}

	transaction, err := h.transactionService.CreateTransaction(ctx, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetTransactions handles listing transactions
// @Summary     List transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page         query int    false "Page number (default 1)"
// @Param       page_size    query int    false "Items per page (default 20, max 100)"
// @Param       from_date    query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date      query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       type         query string false "expense, income, transfer or withdrawal"
// @Param       account_id   query string false "Source or destination account"
// @Param       is_draft     query bool   false "Only drafts (true) or committed (false)"
// @Param       is_scheduled query bool   false "Only scheduled (true) or unscheduled (false)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetTransactions(ctx, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAccountTransactions handles listing the transactions touching one account
// @Summary     List account transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Account ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /accounts/{id}/transactions [get]
func (h *TransactionHandler) GetAccountTransactions(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	filter.AccountID = &accountID

	result, err := h.transactionService.GetTransactions(ctx, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.ToDate = &t
	}

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		if !txType.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be expense, income, transfer, or withdrawal")
		}
		filter.Type = &txType
	}

	if v := c.Query("account_id"); v != "" {
		filter.AccountID = &v
	}

	for param, dst := range map[string]**bool{"is_draft": &filter.IsDraft, "is_scheduled": &filter.IsScheduled} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid "+param+", must be true or false")
		}
		*dst = &b
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles editing a transaction
// @Summary     Update transaction
// @Description Committed transactions are re-applied against balances; drafts and pending scheduled transactions are edited freely.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient funds"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date, err := parseOptionalTime(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(ctx, id, services.TransactionUpdateFields{
		Name:               req.Name,
		Type:               req.Type,
		Amount:             req.Amount,
		Date:               date,
		PaymentAccountID:   req.PaymentAccountID,
		PaymentAccountToID: req.PaymentAccountToID,
		Attachments:        req.Attachments,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles soft-deleting a transaction
// @Summary     Delete transaction
// @Description Soft-delete a transaction, reversing its balance effect
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(ctx, id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction deleted successfully"})
}

// RestoreTransaction handles restoring a soft-deleted transaction
// @Summary     Restore transaction
// @Description Restore a soft-deleted transaction, re-applying its balance effect
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Restored transaction"
// @Failure     400 {object} ErrorResponse "Insufficient funds"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction is not deleted"
// @Router      /transactions/{id}/restore [post]
func (h *TransactionHandler) RestoreTransaction(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.RestoreTransaction(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// ForceDeleteTransaction handles permanently deleting a transaction
// @Summary     Force-delete transaction
// @Description Permanently delete a transaction and purge its attachments
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction permanently deleted"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/force [delete]
func (h *TransactionHandler) ForceDeleteTransaction(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.ForceDeleteTransaction(ctx, id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction permanently deleted"})
}

// ApproveTransaction handles approving a draft
// @Summary     Approve draft
// @Description Commit a draft transaction using its current values
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} services.ApprovalResult "Approved transaction"
// @Failure     400 {object} ErrorResponse "Insufficient funds"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction already approved"
// @Router      /transactions/{id}/approve [post]
func (h *TransactionHandler) ApproveTransaction(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ApproveTransaction(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.ShouldNotify {
		t := result.Transaction
		body := fmt.Sprintf("%s %s of %s was approved", t.Code, string(t.Type), money.Format(t.Amount))
		if !result.Executed {
			body += fmt.Sprintf(" and will run on %s", t.Date.Format(time.DateOnly))
		}
		dispatch(ctx, h.notifier, notify.Message{
			Kind:      notify.KindApproval,
			Success:   true,
			Title:     "Transaction approved",
			Body:      body,
			SubjectID: t.ID,
			Data:      result,
		})
	}

	c.JSON(http.StatusOK, result)
}
