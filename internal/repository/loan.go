package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/campuspay/backend/internal/domain"
)

const loanColumns = `id, lender_id, borrower_id, amount, amount_repaid, interest_rate,
	description, due_date, status, is_fully_repaid, repaid_at, created_at`

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id,
	)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return l, nil
}

// GetForUpdate locks the loan row for the duration of the enclosing
// transaction. Repayments lock the loan before any wallet so that two
// concurrent repayments against the same loan serialize on it and never
// read a stale amount_repaid.
func (r *LoanRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id,
	)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) Create(ctx context.Context, tx *sql.Tx, l *domain.Loan) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loans (
			id, lender_id, borrower_id, amount, amount_repaid, interest_rate,
			description, due_date, status, is_fully_repaid, repaid_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.LenderID, l.BorrowerID, l.Amount, l.AmountRepaid, l.InterestRate,
		l.Description, l.DueDate, l.Status, l.IsFullyRepaid, l.RepaidAt, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// UpdateRepaymentState writes the post-repayment loan state. Only the
// repayment path calls this, with the loan row lock held.
func (r *LoanRepository) UpdateRepaymentState(ctx context.Context, tx *sql.Tx, l *domain.Loan) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loans
		SET amount_repaid = $1, status = $2, is_fully_repaid = $3, repaid_at = $4
		WHERE id = $5`,
		l.AmountRepaid, l.Status, l.IsFullyRepaid, l.RepaidAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateRepaymentState: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateRepaymentState: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateRepaymentState: %w", domain.ErrLoanNotFound)
	}
	return nil
}

func (r *LoanRepository) ListByLender(ctx context.Context, lenderID uuid.UUID) ([]domain.Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE lender_id = $1 ORDER BY created_at DESC`, lenderID)
}

func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]domain.Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE borrower_id = $1 ORDER BY created_at DESC`, borrowerID)
}

func (r *LoanRepository) list(ctx context.Context, query string, arg any) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("list: scan: %w", err)
		}
		loans = append(loans, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: rows: %w", err)
	}
	return loans, nil
}

func scanLoan(s scanner) (*domain.Loan, error) {
	var l domain.Loan
	err := s.Scan(
		&l.ID, &l.LenderID, &l.BorrowerID, &l.Amount, &l.AmountRepaid,
		&l.InterestRate, &l.Description, &l.DueDate, &l.Status,
		&l.IsFullyRepaid, &l.RepaidAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

type LoanRepaymentRepository struct {
	db *sql.DB
}

func NewLoanRepaymentRepository(db *sql.DB) *LoanRepaymentRepository {
	return &LoanRepaymentRepository{db: db}
}

// Create appends one repayment row. Append-only, like the ledger.
func (r *LoanRepaymentRepository) Create(ctx context.Context, tx *sql.Tx, rp *domain.LoanRepayment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loan_repayments (id, loan_id, amount, created_at)
		VALUES ($1, $2, $3, $4)`,
		rp.ID, rp.LoanID, rp.Amount, rp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LoanRepaymentRepository) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]domain.LoanRepayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, loan_id, amount, created_at FROM loan_repayments
		WHERE loan_id = $1 ORDER BY created_at`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByLoan: %w", err)
	}
	defer rows.Close()

	var repayments []domain.LoanRepayment
	for rows.Next() {
		var rp domain.LoanRepayment
		if err := rows.Scan(&rp.ID, &rp.LoanID, &rp.Amount, &rp.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListByLoan: scan: %w", err)
		}
		repayments = append(repayments, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByLoan: rows: %w", err)
	}
	return repayments, nil
}
