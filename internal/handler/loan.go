package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/campuspay/backend/internal/auth"
	"github.com/campuspay/backend/internal/domain"
	"github.com/campuspay/backend/internal/service/ledger"
)

type loanService interface {
	Disburse(ctx context.Context, req ledger.DisburseRequest) (*ledger.DisburseResult, error)
	Repay(ctx context.Context, req ledger.RepayRequest) (*ledger.RepayResult, error)
	ListLoans(ctx context.Context, userID uuid.UUID) (*ledger.LoanList, error)
}

type LoanHandler struct {
	loans loanService
}

func NewLoanHandler(loans loanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

type loanDTO struct {
	ID            uuid.UUID    `json:"id"`
	LenderID      uuid.UUID    `json:"lender_id"`
	BorrowerID    uuid.UUID    `json:"borrower_id"`
	Amount        domain.Money `json:"amount"`
	AmountRepaid  domain.Money `json:"amount_repaid"`
	InterestRate  domain.Money `json:"interest_rate"`
	Description   string       `json:"description,omitempty"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	Status        string       `json:"status"`
	IsFullyRepaid bool         `json:"is_fully_repaid"`
	RepaidAt      *time.Time   `json:"repaid_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type repaymentDTO struct {
	ID        uuid.UUID    `json:"id"`
	LoanID    uuid.UUID    `json:"loan_id"`
	Amount    domain.Money `json:"amount"`
	CreatedAt time.Time    `json:"created_at"`
}

func toLoanDTO(l *domain.Loan) loanDTO {
	return loanDTO{
		ID:            l.ID,
		LenderID:      l.LenderID,
		BorrowerID:    l.BorrowerID,
		Amount:        l.Amount,
		AmountRepaid:  l.AmountRepaid,
		InterestRate:  l.InterestRate,
		Description:   l.Description,
		DueDate:       l.DueDate,
		Status:        string(l.Status),
		IsFullyRepaid: l.IsFullyRepaid,
		RepaidAt:      l.RepaidAt,
		CreatedAt:     l.CreatedAt,
	}
}

func toLoanDTOs(loans []domain.Loan) []loanDTO {
	out := make([]loanDTO, 0, len(loans))
	for i := range loans {
		out = append(out, toLoanDTO(&loans[i]))
	}
	return out
}

type createLoanRequest struct {
	BorrowerUsername string `json:"borrower_username"`
	Amount           string `json:"amount"`
	InterestRate     string `json:"interest_rate"`
	Description      string `json:"description"`
	DueDate          string `json:"due_date"`
}

func (r createLoanRequest) Validate() []FieldError {
	var errs []FieldError
	if r.BorrowerUsername == "" {
		errs = append(errs, FieldError{Field: "borrower_username", Message: "required"})
	}
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	}
	if r.DueDate != "" {
		if _, err := time.Parse(time.RFC3339, r.DueDate); err != nil {
			errs = append(errs, FieldError{Field: "due_date", Message: "must be RFC 3339"})
		}
	}
	return errs
}

func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		RespondValidationError(w, errs)
		return
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		d, _ := time.Parse(time.RFC3339, req.DueDate)
		dueDate = &d
	}

	result, err := h.loans.Disburse(r.Context(), ledger.DisburseRequest{
		LenderID:         userID,
		BorrowerUsername: req.BorrowerUsername,
		Amount:           req.Amount,
		InterestRate:     req.InterestRate,
		Description:      req.Description,
		DueDate:          dueDate,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, map[string]any{
		"loan":        toLoanDTO(result.Loan),
		"wallet":      toWalletDTO(result.LenderWallet),
		"transaction": toTransactionDTO(result.OutgoingTransaction),
	})
}

type repayLoanRequest struct {
	Amount string `json:"amount"`
}

func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	loanID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrLoanNotFound, nil)
		return
	}

	var req repayLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Amount == "" {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "required"}})
		return
	}

	result, err := h.loans.Repay(r.Context(), ledger.RepayRequest{
		BorrowerID: userID,
		LoanID:     loanID,
		Amount:     req.Amount,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"loan":      toLoanDTO(result.Loan),
		"repayment": repaymentDTO{
			ID:        result.Repayment.ID,
			LoanID:    result.Repayment.LoanID,
			Amount:    result.Repayment.Amount,
			CreatedAt: result.Repayment.CreatedAt,
		},
		"wallet":      toWalletDTO(result.BorrowerWallet),
		"transaction": toTransactionDTO(result.OutgoingTransaction),
	})
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	loans, err := h.loans.ListLoans(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"loans_given": toLoanDTOs(loans.Given),
		"loans_taken": toLoanDTOs(loans.Taken),
	})
}
