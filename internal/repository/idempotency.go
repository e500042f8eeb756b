package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// replayWindow is how long a completed mutating response stays
// replayable for its (key, caller) pair.
const replayWindow = 24 * time.Hour

// ReplayRecord is one cached mutating response, keyed by the caller's
// Idempotency-Key. RequestHash ties the key to the exact request it
// was first used with, so key reuse with a different payload is
// detectable.
type ReplayRecord struct {
	Key          string
	UserID       uuid.UUID
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Find returns the live record for (key, caller). Expired records are
// treated as absent; nil without error means the key is unused.
func (r *IdempotencyRepository) Find(ctx context.Context, key string, userID uuid.UUID) (*ReplayRecord, error) {
	var rec ReplayRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, user_id, request_hash, status_code, response_body, created_at, expires_at
		FROM idempotency_cache
		WHERE idempotency_key = $1 AND user_id = $2 AND expires_at > now()`,
		key, userID,
	).Scan(&rec.Key, &rec.UserID, &rec.RequestHash, &rec.StatusCode, &rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Find: %w", err)
	}
	return &rec, nil
}

// Save stores a completed response for replay. The record's lifetime
// is fixed here, not by callers. Concurrent duplicates race to insert;
// the first write wins and later ones are dropped.
func (r *IdempotencyRepository) Save(ctx context.Context, rec *ReplayRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(replayWindow)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, user_id, request_hash, status_code, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key, user_id) DO NOTHING`,
		rec.Key, rec.UserID, rec.RequestHash, rec.StatusCode, rec.ResponseBody, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// PurgeExpired deletes records past their expiry and reports how many
// were removed.
func (r *IdempotencyRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: rows affected: %w", err)
	}
	return n, nil
}
