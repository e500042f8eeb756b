package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campuspay/backend/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps the engine's sentinel errors onto the
// AppError table. Anything unmapped is a store failure and surfaces
// as a 500.
func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrInsufficientFunds
	case errors.Is(err, domain.ErrWalletNotFound):
		appErr = ErrWalletNotFound
	case errors.Is(err, domain.ErrCounterpartyNotFound):
		appErr = ErrCounterpartyNotFound
	case errors.Is(err, domain.ErrLoanNotFound):
		appErr = ErrLoanNotFound
	case errors.Is(err, domain.ErrSelfTransfer):
		appErr = ErrSelfTransfer
	case errors.Is(err, domain.ErrSelfLoan):
		appErr = ErrSelfLoan
	case errors.Is(err, domain.ErrLoanAlreadyRepaid):
		appErr = ErrLoanAlreadyRepaid
	case errors.Is(err, domain.ErrUnauthorized):
		appErr = ErrForbidden
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
