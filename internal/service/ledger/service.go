// Package ledger implements the money-movement engine: direct
// transfers, wallet top-ups, loan disbursement and loan repayment.
// Every operation runs in a single database transaction, acquires
// wallet (and loan) row locks in a canonical order, performs exactly
// one authoritative funds check after all locks are held, and pairs
// each balance change with append-only transaction rows.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/campuspay/backend/internal/domain"
)

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type walletRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance domain.Money) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
}

type loanRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error)
	Create(ctx context.Context, tx *sql.Tx, l *domain.Loan) error
	UpdateRepaymentState(ctx context.Context, tx *sql.Tx, l *domain.Loan) error
	ListByLender(ctx context.Context, lenderID uuid.UUID) ([]domain.Loan, error)
	ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]domain.Loan, error)
}

type loanRepaymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, rp *domain.LoanRepayment) error
}

type Service struct {
	users        userRepo
	wallets      walletRepo
	transactions transactionRepo
	loans        loanRepo
	repayments   loanRepaymentRepo
	db           *sql.DB
}

func NewService(
	users userRepo,
	wallets walletRepo,
	transactions transactionRepo,
	loans loanRepo,
	repayments loanRepaymentRepo,
	db *sql.DB,
) *Service {
	return &Service{
		users:        users,
		wallets:      wallets,
		transactions: transactions,
		loans:        loans,
		repayments:   repayments,
		db:           db,
	}
}

// inTx runs fn inside one database transaction. Rollback on every exit
// path is guaranteed by the deferred call; commit only happens when fn
// returns nil. All engine operations go through this helper so the
// atomic-scope contract lives in exactly one place.
func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inTx: commit: %w", err)
	}
	return nil
}

// lockWalletsInOrder acquires FOR UPDATE locks on the given users'
// wallets in ascending user-id order, regardless of which party is the
// semantic sender. Two concurrent operations on the same wallet pair
// therefore always request locks in the same order, which rules out
// circular-wait deadlock. Duplicate ids are locked once (top-up case).
func (s *Service) lockWalletsInOrder(ctx context.Context, tx *sql.Tx, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	sorted := make([]uuid.UUID, 0, len(userIDs))
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	locked := make(map[uuid.UUID]*domain.Wallet, len(sorted))
	for _, id := range sorted {
		w, err := s.wallets.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockWalletsInOrder: %w", err)
		}
		locked[id] = w
	}
	return locked, nil
}

// parseAmount turns a raw caller-supplied value into Money, rejecting
// anything non-positive or unparsable before any lock is taken.
func parseAmount(raw string) (domain.Money, error) {
	amount, err := domain.ParseMoney(raw)
	if err != nil {
		return domain.Money{}, err
	}
	if !amount.IsPositive() {
		return domain.Money{}, fmt.Errorf("parseAmount: %q: %w", raw, domain.ErrInvalidAmount)
	}
	return amount, nil
}

// GetWallet returns the caller's wallet snapshot.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetWallet: %w", err)
	}
	return w, nil
}
