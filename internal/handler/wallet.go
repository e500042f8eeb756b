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

type walletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	TopUp(ctx context.Context, req ledger.TopUpRequest) (*ledger.TopUpResult, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.TransferResult, error)
}

type WalletHandler struct {
	wallets walletService
}

func NewWalletHandler(wallets walletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type walletDTO struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Balance   domain.Money `json:"balance"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type transactionDTO struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	Amount      domain.Money   `json:"amount"`
	Status      string         `json:"status"`
	SenderID    *uuid.UUID     `json:"sender_id,omitempty"`
	ReceiverID  *uuid.UUID     `json:"receiver_id,omitempty"`
	ReferenceID uuid.UUID      `json:"reference_id"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

func toWalletDTO(w *domain.Wallet) walletDTO {
	return walletDTO{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		UpdatedAt: w.UpdatedAt,
	}
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount,
		Status:      string(t.Status),
		SenderID:    t.SenderID,
		ReceiverID:  t.ReceiverID,
		ReferenceID: t.ReferenceID,
		Description: t.Description,
		Metadata:    t.Metadata,
		CompletedAt: t.CompletedAt,
	}
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	wallet, err := h.wallets.GetWallet(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{"wallet": toWalletDTO(wallet)})
}

type topUpRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req topUpRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Amount == "" {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "required"}})
		return
	}

	result, err := h.wallets.TopUp(r.Context(), ledger.TopUpRequest{
		UserID: userID,
		Amount: req.Amount,
		Method: req.Method,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"wallet":      toWalletDTO(result.Wallet),
		"transaction": toTransactionDTO(result.Transaction),
	})
}

type transferRequest struct {
	ReceiverUsername string `json:"receiver_username"`
	Amount           string `json:"amount"`
	Description      string `json:"description"`
}

func (r transferRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ReceiverUsername == "" {
		errs = append(errs, FieldError{Field: "receiver_username", Message: "required"})
	}
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	}
	return errs
}

func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		RespondValidationError(w, errs)
		return
	}

	result, err := h.wallets.Transfer(r.Context(), ledger.TransferRequest{
		SenderID:         userID,
		ReceiverUsername: req.ReceiverUsername,
		Amount:           req.Amount,
		Description:      req.Description,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"wallet":      toWalletDTO(result.SenderWallet),
		"transaction": toTransactionDTO(result.OutgoingTransaction),
	})
}
