package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount        = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a positive decimal"}
	ErrInsufficientFunds    = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrWalletNotFound       = &AppError{http.StatusNotFound, "WALLET_NOT_FOUND", "Wallet not found"}
	ErrCounterpartyNotFound = &AppError{http.StatusNotFound, "COUNTERPARTY_NOT_FOUND", "Counterparty not found"}
	ErrLoanNotFound         = &AppError{http.StatusNotFound, "LOAN_NOT_FOUND", "Loan not found"}
	ErrSelfTransfer         = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to your own wallet"}
	ErrSelfLoan             = &AppError{http.StatusUnprocessableEntity, "SELF_LOAN_NOT_ALLOWED", "Cannot lend to yourself"}
	ErrLoanAlreadyRepaid    = &AppError{http.StatusUnprocessableEntity, "LOAN_ALREADY_REPAID", "Loan is already fully repaid"}
	ErrForbidden            = &AppError{http.StatusForbidden, "FORBIDDEN", "You are not allowed to act on this resource"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
