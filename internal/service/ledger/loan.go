package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campuspay/backend/internal/domain"
	"github.com/campuspay/backend/internal/logging"
)

type DisburseRequest struct {
	LenderID         uuid.UUID
	BorrowerUsername string
	Amount           string
	InterestRate     string
	Description      string
	DueDate          *time.Time
}

type DisburseResult struct {
	Loan                *domain.Loan
	LenderWallet        *domain.Wallet
	OutgoingTransaction *domain.Transaction
	IncomingTransaction *domain.Transaction
}

// Disburse creates a loan and moves the principal from lender to
// borrower. The loan row, both balance changes and both ledger rows
// commit in one transaction: a loan exists if and only if its
// disbursement transfer committed.
func (s *Service) Disburse(ctx context.Context, req DisburseRequest) (*DisburseResult, error) {
	log := logging.FromContext(ctx)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("Disburse: %w", err)
	}

	interestRate := domain.MoneyZero()
	if req.InterestRate != "" {
		interestRate, err = domain.ParseMoney(req.InterestRate)
		if err != nil {
			return nil, fmt.Errorf("Disburse: interest rate: %w", err)
		}
		if interestRate.IsNegative() {
			return nil, fmt.Errorf("Disburse: interest rate: %w", domain.ErrInvalidAmount)
		}
	}

	borrower, err := s.users.GetByUsername(ctx, req.BorrowerUsername)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Disburse: %w", domain.ErrCounterpartyNotFound)
		}
		return nil, fmt.Errorf("Disburse: %w", err)
	}

	if borrower.ID == req.LenderID {
		return nil, fmt.Errorf("Disburse: %w", domain.ErrSelfLoan)
	}

	var result DisburseResult
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.lockWalletsInOrder(ctx, tx, req.LenderID, borrower.ID)
		if err != nil {
			return fmt.Errorf("Disburse: %w", err)
		}
		lenderWallet, borrowerWallet := locked[req.LenderID], locked[borrower.ID]

		if lenderWallet.Balance.LessThan(amount) {
			return fmt.Errorf("Disburse: %w", domain.ErrInsufficientFunds)
		}

		lenderWallet.Balance = lenderWallet.Balance.Sub(amount)
		borrowerWallet.Balance = borrowerWallet.Balance.Add(amount)

		if err := s.wallets.UpdateBalance(ctx, tx, lenderWallet.ID, lenderWallet.Balance); err != nil {
			return fmt.Errorf("Disburse: debit lender: %w", err)
		}
		if err := s.wallets.UpdateBalance(ctx, tx, borrowerWallet.ID, borrowerWallet.Balance); err != nil {
			return fmt.Errorf("Disburse: credit borrower: %w", err)
		}

		now := time.Now().UTC()
		loan := &domain.Loan{
			ID:           uuid.New(),
			LenderID:     req.LenderID,
			BorrowerID:   borrower.ID,
			Amount:       amount,
			AmountRepaid: domain.MoneyZero(),
			InterestRate: interestRate,
			Description:  req.Description,
			DueDate:      req.DueDate,
			Status:       domain.LoanStatusActive,
			CreatedAt:    now,
		}
		if err := s.loans.Create(ctx, tx, loan); err != nil {
			return fmt.Errorf("Disburse: loan row: %w", err)
		}

		outgoing := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      req.LenderID,
			Type:        domain.TransactionTypeLoanDisbursement,
			Amount:      amount,
			Status:      domain.TransactionStatusCompleted,
			SenderID:    &req.LenderID,
			ReceiverID:  &borrower.ID,
			ReferenceID: loan.ID,
			Description: fmt.Sprintf("Loan to %s", borrower.Username),
			Metadata:    map[string]any{"loan_id": loan.ID.String()},
			CreatedAt:   now,
			CompletedAt: now,
		}
		incoming := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      borrower.ID,
			Type:        domain.TransactionTypeLoanReceived,
			Amount:      amount,
			Status:      domain.TransactionStatusCompleted,
			SenderID:    &req.LenderID,
			ReceiverID:  &borrower.ID,
			ReferenceID: loan.ID,
			Description: "Loan received",
			Metadata:    map[string]any{"loan_id": loan.ID.String()},
			CreatedAt:   now,
			CompletedAt: now,
		}
		if err := s.transactions.Create(ctx, tx, outgoing); err != nil {
			return fmt.Errorf("Disburse: outgoing row: %w", err)
		}
		if err := s.transactions.Create(ctx, tx, incoming); err != nil {
			return fmt.Errorf("Disburse: incoming row: %w", err)
		}

		result = DisburseResult{
			Loan:                loan,
			LenderWallet:        lenderWallet,
			OutgoingTransaction: outgoing,
			IncomingTransaction: incoming,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("loan disbursed",
		"loan_id", result.Loan.ID,
		"lender_id", req.LenderID,
		"borrower_id", borrower.ID,
		"amount", result.Loan.Amount,
	)
	return &result, nil
}

type RepayRequest struct {
	BorrowerID uuid.UUID
	LoanID     uuid.UUID
	Amount     string
}

type RepayResult struct {
	Loan                *domain.Loan
	Repayment           *domain.LoanRepayment
	BorrowerWallet      *domain.Wallet
	OutgoingTransaction *domain.Transaction
	IncomingTransaction *domain.Transaction
}

// Repay applies a repayment to a loan. The requested amount is clamped
// to the outstanding balance rather than rejected, so repayment can
// never overshoot the principal. The loan row is locked before the
// wallets: concurrent repayments against one loan serialize on it, and
// the clamp is recomputed from the freshly-read state under that lock.
func (s *Service) Repay(ctx context.Context, req RepayRequest) (*RepayResult, error) {
	log := logging.FromContext(ctx)

	requested, err := parseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("Repay: %w", err)
	}

	var result RepayResult
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		loan, err := s.loans.GetForUpdate(ctx, tx, req.LoanID)
		if err != nil {
			return fmt.Errorf("Repay: %w", err)
		}

		if loan.BorrowerID != req.BorrowerID {
			return fmt.Errorf("Repay: %w", domain.ErrUnauthorized)
		}
		if loan.Status == domain.LoanStatusRepaid {
			return fmt.Errorf("Repay: %w", domain.ErrLoanAlreadyRepaid)
		}

		// Overpayment protection: pay off at most what is still owed.
		effective := requested.Min(loan.Remaining())

		locked, err := s.lockWalletsInOrder(ctx, tx, loan.BorrowerID, loan.LenderID)
		if err != nil {
			return fmt.Errorf("Repay: %w", err)
		}
		borrowerWallet, lenderWallet := locked[loan.BorrowerID], locked[loan.LenderID]

		if borrowerWallet.Balance.LessThan(effective) {
			return fmt.Errorf("Repay: %w", domain.ErrInsufficientFunds)
		}

		borrowerWallet.Balance = borrowerWallet.Balance.Sub(effective)
		lenderWallet.Balance = lenderWallet.Balance.Add(effective)

		if err := s.wallets.UpdateBalance(ctx, tx, borrowerWallet.ID, borrowerWallet.Balance); err != nil {
			return fmt.Errorf("Repay: debit borrower: %w", err)
		}
		if err := s.wallets.UpdateBalance(ctx, tx, lenderWallet.ID, lenderWallet.Balance); err != nil {
			return fmt.Errorf("Repay: credit lender: %w", err)
		}

		now := time.Now().UTC()
		repayment := &domain.LoanRepayment{
			ID:        uuid.New(),
			LoanID:    loan.ID,
			Amount:    effective,
			CreatedAt: now,
		}
		if err := s.repayments.Create(ctx, tx, repayment); err != nil {
			return fmt.Errorf("Repay: repayment row: %w", err)
		}

		loan.AmountRepaid = loan.AmountRepaid.Add(effective)
		if loan.AmountRepaid.GreaterThanOrEqual(loan.Amount) {
			loan.Status = domain.LoanStatusRepaid
			loan.IsFullyRepaid = true
			loan.RepaidAt = &now
		}
		if err := s.loans.UpdateRepaymentState(ctx, tx, loan); err != nil {
			return fmt.Errorf("Repay: loan state: %w", err)
		}

		remaining := loan.Remaining().String()
		outgoing := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      loan.BorrowerID,
			Type:        domain.TransactionTypeLoanRepayment,
			Amount:      effective,
			Status:      domain.TransactionStatusCompleted,
			SenderID:    &loan.BorrowerID,
			ReceiverID:  &loan.LenderID,
			ReferenceID: loan.ID,
			Description: "Loan repayment",
			Metadata:    map[string]any{"loan_id": loan.ID.String(), "remaining": remaining},
			CreatedAt:   now,
			CompletedAt: now,
		}
		incoming := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      loan.LenderID,
			Type:        domain.TransactionTypeLoanRepaymentReceived,
			Amount:      effective,
			Status:      domain.TransactionStatusCompleted,
			SenderID:    &loan.BorrowerID,
			ReceiverID:  &loan.LenderID,
			ReferenceID: loan.ID,
			Description: "Loan repayment received",
			Metadata:    map[string]any{"loan_id": loan.ID.String(), "remaining": remaining},
			CreatedAt:   now,
			CompletedAt: now,
		}
		if err := s.transactions.Create(ctx, tx, outgoing); err != nil {
			return fmt.Errorf("Repay: outgoing row: %w", err)
		}
		if err := s.transactions.Create(ctx, tx, incoming); err != nil {
			return fmt.Errorf("Repay: incoming row: %w", err)
		}

		result = RepayResult{
			Loan:                loan,
			Repayment:           repayment,
			BorrowerWallet:      borrowerWallet,
			OutgoingTransaction: outgoing,
			IncomingTransaction: incoming,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("loan repayment applied",
		"loan_id", result.Loan.ID,
		"borrower_id", req.BorrowerID,
		"amount", result.Repayment.Amount,
		"status", result.Loan.Status,
	)
	return &result, nil
}

type LoanList struct {
	Given []domain.Loan
	Taken []domain.Loan
}

// ListLoans returns the loans the user has given and taken.
func (s *Service) ListLoans(ctx context.Context, userID uuid.UUID) (*LoanList, error) {
	given, err := s.loans.ListByLender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListLoans: %w", err)
	}
	taken, err := s.loans.ListByBorrower(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListLoans: %w", err)
	}
	return &LoanList{Given: given, Taken: taken}, nil
}
