package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuspay/backend/internal/domain"
)

// SeedUser inserts a user together with their wallet; wallets exist
// from account creation onward.
func SeedUser(t *testing.T, db *sql.DB, username string, balance string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	u := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@test.local",
		FullName:     "Test " + username,
		PasswordHash: string(hash),
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, username, email, full_name, password_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}

	_, err = db.Exec(
		`INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, $3)`,
		uuid.New(), u.ID, balance,
	)
	if err != nil {
		t.Fatalf("seed wallet for %s: %v", username, err)
	}

	return u
}

// SeedUserWithoutWallet covers the wallet-not-found paths.
func SeedUserWithoutWallet(t *testing.T, db *sql.DB, username string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	u := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@test.local",
		PasswordHash: string(hash),
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, username, email, full_name, password_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}

	return u
}

func GetWalletBalance(t *testing.T, db *sql.DB, userID uuid.UUID) string {
	t.Helper()

	var balance string
	err := db.QueryRow(
		`SELECT balance::text FROM wallets WHERE user_id = $1`, userID,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance: %v", err)
	}
	return balance
}

func CountTransactions(t *testing.T, db *sql.DB, referenceID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE reference_id = $1`, referenceID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}

func CountUserTransactions(t *testing.T, db *sql.DB, userID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count user transactions: %v", err)
	}
	return count
}

// SumRepayments returns sum(loan_repayments.amount) for the loan as a
// decimal string, 0.00 when there are no rows.
func SumRepayments(t *testing.T, db *sql.DB, loanID uuid.UUID) string {
	t.Helper()

	var sum string
	err := db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0)::numeric(12,2)::text FROM loan_repayments WHERE loan_id = $1`,
		loanID,
	).Scan(&sum)
	if err != nil {
		t.Fatalf("sum repayments: %v", err)
	}
	return sum
}
