package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's balance. One wallet per user, created alongside
// the account. Balances are only ever changed inside a locked ledger
// operation; nothing assigns to Balance from outside the engine.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   Money
	CreatedAt time.Time
	UpdatedAt time.Time
}
