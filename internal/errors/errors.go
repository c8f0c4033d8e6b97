// Package errors provides custom error types for the finpanel API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so callers can
// compare against sentinels after WithMessage or Wrap.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// IsDomain reports whether err is an expected, user-correctable rejection.
// Domain errors are returned to the caller without error-level logging.
func IsDomain(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.StatusCode < http.StatusInternalServerError && appErr.Code != ErrInvalidTransactionType.Code
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrUnexpected     = &AppError{Code: "UNEXPECTED_ERROR", Message: "The operation failed and was rolled back", StatusCode: http.StatusInternalServerError}
)

// Account errors.
var (
	ErrAccountNotFound   = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrAccountNotDeleted = &AppError{Code: "ACCOUNT_NOT_DELETED", Message: "Account is not deleted", StatusCode: http.StatusConflict}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
	ErrInsufficientFunds      = &AppError{Code: "INSUFFICIENT_FUNDS", Message: "Insufficient account balance", StatusCode: http.StatusBadRequest}
	ErrInvalidDestination     = &AppError{Code: "INVALID_DESTINATION", Message: "A valid destination account is required", StatusCode: http.StatusBadRequest}
	ErrSameAccountTransfer    = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusBadRequest}
	ErrAlreadyApproved        = &AppError{Code: "TRANSACTION_ALREADY_APPROVED", Message: "Transaction has already been approved", StatusCode: http.StatusConflict}
	ErrAmountDerived          = &AppError{Code: "AMOUNT_DERIVED_FROM_ITEMS", Message: "Amount is derived from attached items and cannot be edited", StatusCode: http.StatusBadRequest}
	ErrTransactionNotDeleted  = &AppError{Code: "TRANSACTION_NOT_DELETED", Message: "Transaction is not deleted", StatusCode: http.StatusConflict}
)

// Item errors.
var (
	ErrItemNotFound    = &AppError{Code: "ITEM_NOT_FOUND", Message: "Item not found", StatusCode: http.StatusNotFound}
	ErrItemNotAttached = &AppError{Code: "ITEM_NOT_ATTACHED", Message: "Item is not attached to this transaction", StatusCode: http.StatusNotFound}
	ErrDuplicateItem   = &AppError{Code: "DUPLICATE_ITEM", Message: "Item is already attached to this transaction", StatusCode: http.StatusConflict}
	ErrItemsNotEnabled = &AppError{Code: "ITEMS_NOT_ENABLED", Message: "Transaction does not accept line items", StatusCode: http.StatusBadRequest}
)

// Goal errors.
var (
	ErrGoalNotFound        = &AppError{Code: "GOAL_NOT_FOUND", Message: "Payment goal not found", StatusCode: http.StatusNotFound}
	ErrGoalAlreadyComplete = &AppError{Code: "GOAL_ALREADY_COMPLETE", Message: "Payment goal is already complete", StatusCode: http.StatusConflict}
	ErrExceedsRemaining    = &AppError{Code: "EXCEEDS_REMAINING", Message: "Amount exceeds the remaining goal amount", StatusCode: http.StatusBadRequest}
	ErrGoalNotDeleted      = &AppError{Code: "GOAL_NOT_DELETED", Message: "Payment goal is not deleted", StatusCode: http.StatusConflict}
)
