package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/campuspay/backend/internal/auth"
	"github.com/campuspay/backend/internal/domain"
)

type transactionLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
}

type TransactionHandler struct {
	transactions transactionLister
}

func NewTransactionHandler(transactions transactionLister) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit := defaultPageSize
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageSize {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}

	txns, total, err := h.transactions.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, 0, len(txns))
	for i := range txns {
		dtos = append(dtos, toTransactionDTO(&txns[i]))
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"transactions": dtos,
		"total":        total,
	})
}
