package ledger_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspay/backend/internal/domain"
	"github.com/campuspay/backend/internal/repository"
	"github.com/campuspay/backend/internal/service/ledger"
	"github.com/campuspay/backend/internal/testutil"
)

func setupEngine(t *testing.T, db *sql.DB) *ledger.Service {
	t.Helper()
	return ledger.NewService(
		repository.NewUserRepository(db),
		repository.NewWalletRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewLoanRepository(db),
		repository.NewLoanRepaymentRepository(db),
		db,
	)
}

func TestTransfer_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_hp", "100.00")
	receiver := testutil.SeedUser(t, db, "receiver_hp", "25.00")

	result, err := svc.Transfer(ctx, ledger.TransferRequest{
		SenderID:         sender.ID,
		ReceiverUsername: "receiver_hp",
		Amount:           "40.50",
		Description:      "lunch money",
	})
	require.NoError(t, err)

	// Conservation: the pair's total is unchanged.
	assert.Equal(t, "59.50", testutil.GetWalletBalance(t, db, sender.ID))
	assert.Equal(t, "65.50", testutil.GetWalletBalance(t, db, receiver.ID))

	assert.Equal(t, "59.50", result.SenderWallet.Balance.String())

	// Ledger pairing: exactly two rows, equal amounts, shared reference.
	out, in := result.OutgoingTransaction, result.IncomingTransaction
	assert.Equal(t, 2, testutil.CountTransactions(t, db, out.ReferenceID))
	assert.Equal(t, out.ReferenceID, in.ReferenceID)
	assert.True(t, out.Amount.Equal(in.Amount))
	assert.Equal(t, domain.TransactionTypeTransfer, out.Type)
	assert.Equal(t, sender.ID, out.UserID)
	assert.Equal(t, receiver.ID, in.UserID)
	assert.Equal(t, "lunch money", out.Description)
	assert.Equal(t, domain.TransactionStatusCompleted, out.Status)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_if", "100.00")
	receiver := testutil.SeedUser(t, db, "receiver_if", "0.00")

	_, err := svc.Transfer(ctx, ledger.TransferRequest{
		SenderID:         sender.ID,
		ReceiverUsername: "receiver_if",
		Amount:           "150.00",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Nothing moved, nothing was recorded.
	assert.Equal(t, "100.00", testutil.GetWalletBalance(t, db, sender.ID))
	assert.Equal(t, "0.00", testutil.GetWalletBalance(t, db, receiver.ID))
	assert.Equal(t, 0, testutil.CountUserTransactions(t, db, sender.ID))
	assert.Equal(t, 0, testutil.CountUserTransactions(t, db, receiver.ID))
}

func TestTransfer_InvalidAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_ia", "100.00")
	testutil.SeedUser(t, db, "receiver_ia", "0.00")

	for _, amount := range []string{"abc", "", "0", "-10", "10.005"} {
		_, err := svc.Transfer(ctx, ledger.TransferRequest{
			SenderID:         sender.ID,
			ReceiverUsername: "receiver_ia",
			Amount:           amount,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %q", amount)
	}

	assert.Equal(t, "100.00", testutil.GetWalletBalance(t, db, sender.ID))
}

// A sub-cent amount would round differently on the debit and credit
// sides once stored as NUMERIC(12,2); it must be rejected outright so
// the pair total never drifts.
func TestTransfer_SubCentAmountPreservesConservation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_sc", "100.00")
	receiver := testutil.SeedUser(t, db, "receiver_sc", "0.00")

	_, err := svc.Transfer(ctx, ledger.TransferRequest{
		SenderID:         sender.ID,
		ReceiverUsername: "receiver_sc",
		Amount:           "10.005",
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	assert.Equal(t, "100.00", testutil.GetWalletBalance(t, db, sender.ID))
	assert.Equal(t, "0.00", testutil.GetWalletBalance(t, db, receiver.ID))
	assert.Equal(t, 0, testutil.CountUserTransactions(t, db, sender.ID))
	assert.Equal(t, 0, testutil.CountUserTransactions(t, db, receiver.ID))
}

func TestTransfer_CounterpartyNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_cnf", "100.00")

	_, err := svc.Transfer(ctx, ledger.TransferRequest{
		SenderID:         sender.ID,
		ReceiverUsername: "ghost",
		Amount:           "10.00",
	})
	assert.ErrorIs(t, err, domain.ErrCounterpartyNotFound)
}

func TestTransfer_SelfTransfer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_self", "100.00")

	_, err := svc.Transfer(ctx, ledger.TransferRequest{
		SenderID:         sender.ID,
		ReceiverUsername: "sender_self",
		Amount:           "10.00",
	})
	assert.ErrorIs(t, err, domain.ErrSelfTransfer)
	assert.Equal(t, "100.00", testutil.GetWalletBalance(t, db, sender.ID))
}

func TestTransfer_ReceiverWalletMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_rwm", "100.00")
	testutil.SeedUserWithoutWallet(t, db, "receiver_rwm")

	_, err := svc.Transfer(ctx, ledger.TransferRequest{
		SenderID:         sender.ID,
		ReceiverUsername: "receiver_rwm",
		Amount:           "10.00",
	})
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	assert.Equal(t, "100.00", testutil.GetWalletBalance(t, db, sender.ID))
}

// Opposite-direction transfers on the same wallet pair must both
// commit: canonical lock order rules out circular wait.
func TestTransfer_ConcurrentOppositeDirections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice_cod", "100.00")
	bob := testutil.SeedUser(t, db, "bob_cod", "100.00")

	var wg sync.WaitGroup
	results := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Transfer(ctx, ledger.TransferRequest{
			SenderID:         alice.ID,
			ReceiverUsername: "bob_cod",
			Amount:           "30.00",
		})
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Transfer(ctx, ledger.TransferRequest{
			SenderID:         bob.ID,
			ReceiverUsername: "alice_cod",
			Amount:           "10.00",
		})
		results <- err
	}()

	wg.Wait()
	close(results)

	for err := range results {
		assert.NoError(t, err)
	}

	assert.Equal(t, "80.00", testutil.GetWalletBalance(t, db, alice.ID))
	assert.Equal(t, "120.00", testutil.GetWalletBalance(t, db, bob.ID))
}

// Two concurrent transfers racing the same funds: exactly one wins,
// the balance never goes negative.
func TestTransfer_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	sender := testutil.SeedUser(t, db, "sender_co", "100.00")
	receiver := testutil.SeedUser(t, db, "receiver_co", "0.00")

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferRequest{
				SenderID:         sender.ID,
				ReceiverUsername: "receiver_co",
				Amount:           "70.00",
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var succeeded, failed int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	assert.Equal(t, "30.00", testutil.GetWalletBalance(t, db, sender.ID))
	assert.Equal(t, "70.00", testutil.GetWalletBalance(t, db, receiver.ID))
}

func TestTopUp_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "topup_hp", "10.00")

	result, err := svc.TopUp(ctx, ledger.TopUpRequest{
		UserID: user.ID,
		Amount: "55.25",
		Method: "card",
	})
	require.NoError(t, err)

	assert.Equal(t, "65.25", testutil.GetWalletBalance(t, db, user.ID))
	assert.Equal(t, "65.25", result.Wallet.Balance.String())

	// One-sided event: exactly one ledger row.
	assert.Equal(t, 1, testutil.CountUserTransactions(t, db, user.ID))
	assert.Equal(t, domain.TransactionTypeTopUp, result.Transaction.Type)
	assert.Equal(t, "card", result.Transaction.Metadata["method"])
}

func TestTopUp_InvalidAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "topup_ia", "10.00")

	_, err := svc.TopUp(ctx, ledger.TopUpRequest{UserID: user.ID, Amount: "-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Equal(t, "10.00", testutil.GetWalletBalance(t, db, user.ID))
}

func TestTopUp_WalletNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupEngine(t, db)
	ctx := context.Background()

	user := testutil.SeedUserWithoutWallet(t, db, "topup_nw")

	_, err := svc.TopUp(ctx, ledger.TopUpRequest{UserID: user.ID, Amount: "10.00"})
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}
