package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campuspay/backend/internal/domain"
)

const walletColumns = `id, user_id, balance, created_at, updated_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return w, nil
}

// GetForUpdate reads a wallet under FOR UPDATE. The row lock is held
// until the enclosing transaction commits or rolls back, which is what
// serializes concurrent operations on the same wallet.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

// UpdateBalance persists a new balance inside the operation's
// transaction. Callers must hold the row lock via GetForUpdate; the
// write is not visible to other operations until commit.
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance domain.Money) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`,
		newBalance, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrWalletNotFound)
	}
	return nil
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		wallet.ID, wallet.UserID, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
