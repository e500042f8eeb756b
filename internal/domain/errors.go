package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrCounterpartyNotFound = errors.New("counterparty not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidAmount        = errors.New("amount must be a positive decimal")
	ErrUnauthorized         = errors.New("caller is not allowed to act on this resource")
	ErrSelfTransfer         = errors.New("cannot transfer to own wallet")
	ErrSelfLoan             = errors.New("cannot lend to yourself")
	ErrLoanAlreadyRepaid    = errors.New("loan already fully repaid")
)
