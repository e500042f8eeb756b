package domain

import (
	"time"

	"github.com/google/uuid"
)

type LoanStatus string

const (
	LoanStatusActive LoanStatus = "active"
	LoanStatusRepaid LoanStatus = "repaid"
)

// Loan tracks principal and cumulative repayment between two users.
// AmountRepaid only ever grows and never exceeds Amount; the
// active -> repaid transition happens exactly once, the moment
// AmountRepaid reaches Amount.
type Loan struct {
	ID           uuid.UUID
	LenderID     uuid.UUID
	BorrowerID   uuid.UUID
	Amount       Money
	AmountRepaid Money
	// InterestRate is recorded as given; the engine never compounds it.
	InterestRate  Money
	Description   string
	DueDate       *time.Time
	Status        LoanStatus
	IsFullyRepaid bool
	RepaidAt      *time.Time
	CreatedAt     time.Time
}

// Remaining is the amount still owed. Repayment requests are clamped
// to this before any funds check.
func (l *Loan) Remaining() Money {
	return l.Amount.Sub(l.AmountRepaid)
}

// LoanRepayment is one repayment applied to a loan. Append-only: the
// sum of a loan's repayment rows always equals its AmountRepaid.
type LoanRepayment struct {
	ID        uuid.UUID
	LoanID    uuid.UUID
	Amount    Money
	CreatedAt time.Time
}
