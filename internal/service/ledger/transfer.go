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

type TransferRequest struct {
	SenderID         uuid.UUID
	ReceiverUsername string
	// Amount arrives as the raw request value; the engine parses it.
	Amount      string
	Description string
}

type TransferResult struct {
	SenderWallet        *domain.Wallet
	OutgoingTransaction *domain.Transaction
	IncomingTransaction *domain.Transaction
}

// Transfer moves money from the caller's wallet to the receiver's.
// Both wallets are locked in canonical order, the funds check happens
// under lock, and the two ledger rows commit together with the balance
// changes or not at all.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	log := logging.FromContext(ctx)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	receiver, err := s.users.GetByUsername(ctx, req.ReceiverUsername)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Transfer: %w", domain.ErrCounterpartyNotFound)
		}
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	if receiver.ID == req.SenderID {
		return nil, fmt.Errorf("Transfer: %w", domain.ErrSelfTransfer)
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer to %s", receiver.Username)
	}

	var result TransferResult
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.lockWalletsInOrder(ctx, tx, req.SenderID, receiver.ID)
		if err != nil {
			return fmt.Errorf("Transfer: %w", err)
		}
		senderWallet, receiverWallet := locked[req.SenderID], locked[receiver.ID]

		if senderWallet.Balance.LessThan(amount) {
			return fmt.Errorf("Transfer: %w", domain.ErrInsufficientFunds)
		}

		senderWallet.Balance = senderWallet.Balance.Sub(amount)
		receiverWallet.Balance = receiverWallet.Balance.Add(amount)

		if err := s.wallets.UpdateBalance(ctx, tx, senderWallet.ID, senderWallet.Balance); err != nil {
			return fmt.Errorf("Transfer: debit sender: %w", err)
		}
		if err := s.wallets.UpdateBalance(ctx, tx, receiverWallet.ID, receiverWallet.Balance); err != nil {
			return fmt.Errorf("Transfer: credit receiver: %w", err)
		}

		transferID := uuid.New()
		now := time.Now().UTC()

		outgoing := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      req.SenderID,
			Type:        domain.TransactionTypeTransfer,
			Amount:      amount,
			Status:      domain.TransactionStatusCompleted,
			SenderID:    &req.SenderID,
			ReceiverID:  &receiver.ID,
			ReferenceID: transferID,
			Description: description,
			Metadata:    map[string]any{"receiver_username": receiver.Username},
			CreatedAt:   now,
			CompletedAt: now,
		}
		incoming := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      receiver.ID,
			Type:        domain.TransactionTypeTransfer,
			Amount:      amount,
			Status:      domain.TransactionStatusCompleted,
			SenderID:    &req.SenderID,
			ReceiverID:  &receiver.ID,
			ReferenceID: transferID,
			Description: description,
			Metadata:    map[string]any{"sender_id": req.SenderID.String()},
			CreatedAt:   now,
			CompletedAt: now,
		}

		if err := s.transactions.Create(ctx, tx, outgoing); err != nil {
			return fmt.Errorf("Transfer: outgoing row: %w", err)
		}
		if err := s.transactions.Create(ctx, tx, incoming); err != nil {
			return fmt.Errorf("Transfer: incoming row: %w", err)
		}

		result = TransferResult{
			SenderWallet:        senderWallet,
			OutgoingTransaction: outgoing,
			IncomingTransaction: incoming,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("transfer completed",
		"sender_id", req.SenderID,
		"receiver_id", receiver.ID,
		"amount", result.OutgoingTransaction.Amount,
		"reference_id", result.OutgoingTransaction.ReferenceID,
	)
	return &result, nil
}

type TopUpRequest struct {
	UserID uuid.UUID
	Amount string
	Method string
}

type TopUpResult struct {
	Wallet      *domain.Wallet
	Transaction *domain.Transaction
}

// TopUp is the one-sided degenerate transfer: a single wallet is
// locked once and credited unconditionally, paired with one topup row.
func (s *Service) TopUp(ctx context.Context, req TopUpRequest) (*TopUpResult, error) {
	log := logging.FromContext(ctx)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("TopUp: %w", err)
	}

	method := req.Method
	if method == "" {
		method = "bank_transfer"
	}

	var result TopUpResult
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		wallet, err := s.wallets.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return fmt.Errorf("TopUp: %w", err)
		}

		wallet.Balance = wallet.Balance.Add(amount)
		if err := s.wallets.UpdateBalance(ctx, tx, wallet.ID, wallet.Balance); err != nil {
			return fmt.Errorf("TopUp: credit: %w", err)
		}

		now := time.Now().UTC()
		txn := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      req.UserID,
			Type:        domain.TransactionTypeTopUp,
			Amount:      amount,
			Status:      domain.TransactionStatusCompleted,
			ReceiverID:  &req.UserID,
			ReferenceID: uuid.New(),
			Description: fmt.Sprintf("Top-up via %s", method),
			Metadata:    map[string]any{"method": method},
			CreatedAt:   now,
			CompletedAt: now,
		}
		if err := s.transactions.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("TopUp: ledger row: %w", err)
		}

		result = TopUpResult{Wallet: wallet, Transaction: txn}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("wallet topped up",
		"user_id", req.UserID,
		"amount", result.Transaction.Amount,
		"method", method,
	)
	return &result, nil
}
