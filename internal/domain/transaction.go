package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeTopUp                 TransactionType = "topup"
	TransactionTypeTransfer              TransactionType = "transfer"
	TransactionTypeLoanDisbursement      TransactionType = "loan_disbursement"
	TransactionTypeLoanReceived          TransactionType = "loan_received"
	TransactionTypeLoanRepayment         TransactionType = "loan_repayment"
	TransactionTypeLoanRepaymentReceived TransactionType = "loan_repayment_received"
)

type TransactionStatus string

// Every path through the engine commits or rolls back in full, so the
// only status ever written is completed.
const TransactionStatusCompleted TransactionStatus = "completed"

// Transaction is one account's side of a balance-affecting event.
// Rows are append-only; the two sides of a paired event share a
// ReferenceID (transfer id or loan id) and carry equal amounts.
type Transaction struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Type        TransactionType
	Amount      Money
	Status      TransactionStatus
	SenderID    *uuid.UUID
	ReceiverID  *uuid.UUID
	ReferenceID uuid.UUID
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
	CompletedAt time.Time
}
