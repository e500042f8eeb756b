package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/campuspay/backend/internal/domain"
)

const transactionColumns = `id, user_id, type, amount, status, sender_id, receiver_id,
	reference_id, description, metadata, created_at, completed_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends one ledger row inside the caller's transaction. The
// table is append-only: there is no update or delete path.
func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	meta, err := marshalMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, user_id, type, amount, status, sender_id, receiver_id,
			reference_id, description, metadata, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, t.Type, t.Amount, t.Status, t.SenderID, t.ReceiverID,
		t.ReferenceID, t.Description, meta, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByUser: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return txns, total, nil
}

func (r *TransactionRepository) GetByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE reference_id = $1 ORDER BY created_at`, referenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByReferenceID: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByReferenceID: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByReferenceID: rows: %w", err)
	}
	return txns, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalMetadata: %w", err)
	}
	return b, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		t    domain.Transaction
		meta []byte
	)
	err := s.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status,
		&t.SenderID, &t.ReceiverID, &t.ReferenceID,
		&t.Description, &meta, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, fmt.Errorf("scanTransaction: metadata: %w", err)
		}
	}
	return &t, nil
}
