package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/lock"
	"github.com/ZeelJavia/txnzero/internal/usecase"
	"github.com/ZeelJavia/txnzero/internal/usecase/mocks"
)

type transferFixture struct {
	accounts *mocks.MockAccountStore
	journal  *mocks.MockLedgerJournal
	txns     *mocks.MockTransactionRepository
	outbox   *mocks.MockOutboxRepository
	locker   *mocks.MockLocker
	uc       *usecase.TransferUseCase
}

func newTransferFixture(cfg usecase.TransferConfig) *transferFixture {
	f := &transferFixture{
		accounts: mocks.NewMockAccountStore(),
		journal:  mocks.NewMockLedgerJournal(),
		txns:     mocks.NewMockTransactionRepository(),
		outbox:   mocks.NewMockOutboxRepository(),
		locker:   mocks.NewMockLocker(),
	}
	f.uc = usecase.NewTransferUseCase(
		mocks.NewMockTransactionManager(),
		f.accounts,
		f.journal,
		f.txns,
		f.outbox,
		f.locker,
		mocks.NewMockIDGenerator("txn"),
		nil,
		cfg,
	)

	f.accounts.Seed(&domain.Account{ID: "alice@upi", Balance: decimal.NewFromInt(100), OpeningBalance: decimal.NewFromInt(100)})
	f.accounts.Seed(&domain.Account{ID: "bob@upi", Balance: decimal.NewFromInt(50), OpeningBalance: decimal.NewFromInt(50)})
	return f
}

func (f *transferFixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.Get(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func (f *transferFixture) eventTypes() []string {
	var types []string
	for _, event := range f.outbox.Events() {
		types = append(types, event.Type)
	}
	return types
}

func TestTransferUseCase_Execute_Success(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, result.Status)
	assert.Equal(t, usecase.MsgSuccess, result.Message)
	assert.False(t, result.Replayed)

	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(70)))
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(80)))

	entries := f.journal.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.DirectionDebit, entries[0].Direction)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(-30)))
	assert.True(t, entries[0].BalanceAfter.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, domain.DirectionCredit, entries[1].Direction)
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(30)))

	assert.ElementsMatch(t, []string{domain.EventPaymentSent, domain.EventPaymentReceived}, f.eventTypes())
}

func TestTransferUseCase_Execute_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     usecase.TransferInput
		errorType error
	}{
		{
			name: "same account",
			input: usecase.TransferInput{
				PayerID: "alice@upi",
				PayeeID: "alice@upi",
				Amount:  decimal.NewFromInt(10),
			},
			errorType: domain.ErrSameAccount,
		},
		{
			name: "zero amount",
			input: usecase.TransferInput{
				PayerID: "alice@upi",
				PayeeID: "bob@upi",
				Amount:  decimal.Zero,
			},
			errorType: domain.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			input: usecase.TransferInput{
				PayerID: "alice@upi",
				PayeeID: "bob@upi",
				Amount:  decimal.NewFromInt(-5),
			},
			errorType: domain.ErrInvalidAmount,
		},
		{
			name: "empty payer",
			input: usecase.TransferInput{
				PayeeID: "bob@upi",
				Amount:  decimal.NewFromInt(10),
			},
			errorType: domain.ErrInvalidAccountID,
		},
		{
			name: "bad verdict",
			input: usecase.TransferInput{
				PayerID: "alice@upi",
				PayeeID: "bob@upi",
				Amount:  decimal.NewFromInt(10),
				Verdict: "maybe",
			},
			errorType: domain.ErrInvalidVerdict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransferFixture(usecase.TransferConfig{})
			_, err := f.uc.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.errorType)
			assert.Empty(t, f.journal.Entries())
		})
	}
}

func TestTransferUseCase_Execute_InsufficientBalance(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, usecase.MsgInsufficient, result.Message)
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(100)))
	assert.Empty(t, f.journal.Entries())
	assert.Equal(t, []string{domain.EventPaymentFailed}, f.eventTypes())
}

func TestTransferUseCase_Execute_FrozenPayer(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})
	require.NoError(t, f.accounts.SetFrozen(context.Background(), "alice@upi", true))

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, usecase.MsgPayerFrozen, result.Message)
	assert.Empty(t, f.journal.Entries())
}

func TestTransferUseCase_Execute_PayerNotFound(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "ghost@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, usecase.MsgPayerNotFound, result.Message)
}

func TestTransferUseCase_Execute_BlockedByFraudVerdict(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})

	locked := false
	f.locker.WithLocksFunc = func(ctx context.Context, ids []string, fn func(ctx context.Context) error) error {
		locked = true
		return fn(ctx)
	}

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:     "txn-1",
		PayerID:   "alice@upi",
		PayeeID:   "bob@upi",
		Amount:    decimal.NewFromInt(10),
		Verdict:   domain.VerdictBlock,
		RiskScore: decimal.NewFromFloat(0.97),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusBlockedFraud, result.Status)
	assert.False(t, locked, "blocked transfers must not take account locks")
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(100)))
	assert.Empty(t, f.journal.Entries())
	assert.Equal(t, []string{domain.EventPaymentFailed}, f.eventTypes())
}

func TestTransferUseCase_Execute_IdempotentReplay(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})
	input := usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	}

	first, err := f.uc.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuccess, first.Status)

	second, err := f.uc.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, second.Status)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Message, second.Message)

	// Money moved exactly once.
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(70)))
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(80)))
	assert.Len(t, f.journal.Entries(), 2)
}

func TestTransferUseCase_Execute_ReplayOfFailedOutcome(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})
	input := usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(500),
	}

	first, err := f.uc.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, first.Status)

	second, err := f.uc.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, second.Status)
	assert.True(t, second.Replayed)
	assert.Equal(t, usecase.MsgInsufficient, second.Message)
}

func TestTransferUseCase_Execute_ResumeAfterCrashedCredit(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})
	ctx := context.Background()

	// A prior attempt committed the debit and crashed before the credit:
	// funds out of the payer, a debit entry on the books, record DEBITED.
	at := time.Now().UTC()
	require.NoError(t, f.txns.Create(ctx, &domain.Transaction{
		ID:        "txn-1",
		PayerID:   "alice@upi",
		PayeeID:   "bob@upi",
		Amount:    decimal.NewFromInt(30),
		Status:    domain.StatusDebited,
		Verdict:   domain.VerdictAllow,
		CreatedAt: at,
		UpdatedAt: at,
	}))
	_, _, err := f.accounts.ApplyDelta(ctx, nil, "alice@upi", decimal.NewFromInt(-30), 1)
	require.NoError(t, err)
	require.NoError(t, f.journal.Append(ctx, nil, &domain.LedgerEntry{
		GlobalTxnID:  "txn-1",
		AccountID:    "alice@upi",
		Amount:       decimal.NewFromInt(-30),
		Direction:    domain.DirectionDebit,
		Counterparty: "bob@upi",
		BalanceAfter: decimal.NewFromInt(70),
		CreatedAt:    at,
	}))

	result, err := f.uc.Execute(ctx, usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, result.Status)

	// The debit did not run twice.
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(70)))
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(80)))
	assert.Len(t, f.journal.Entries(), 2)

	// The sent event reports the payer's real balance, not a stale zero.
	var sent *domain.NotificationEvent
	for _, event := range f.outbox.Events() {
		if event.Type == domain.EventPaymentSent {
			sent = event
		}
	}
	require.NotNil(t, sent)
	assert.True(t, sent.BalanceAfter.Equal(decimal.NewFromInt(70)),
		"sent event balance_after = %s", sent.BalanceAfter)
}

func TestTransferUseCase_Execute_PayeeNotFoundReverses(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "nobody@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReversed, result.Status)
	assert.Contains(t, result.Message, usecase.MsgReversed)

	// Debit went out, compensating credit came back.
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(100)))

	entries := f.journal.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "txn-1", entries[0].GlobalTxnID)
	assert.Equal(t, domain.DirectionDebit, entries[0].Direction)
	assert.Equal(t, domain.ReversalTxnID("txn-1"), entries[1].GlobalTxnID)
	assert.Equal(t, domain.DirectionCredit, entries[1].Direction)
	assert.Equal(t, "alice@upi", entries[1].AccountID)

	assert.ElementsMatch(t, []string{domain.EventPaymentFailed, domain.EventPaymentReversed}, f.eventTypes())
}

func TestTransferUseCase_Execute_FrozenPayeeReverses(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})
	require.NoError(t, f.accounts.SetFrozen(context.Background(), "bob@upi", true))

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReversed, result.Status)
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(100)))
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(50)))
}

func TestTransferUseCase_Execute_FrozenPayeeCreditedWhenAllowed(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{AllowFrozenCredit: true})
	require.NoError(t, f.accounts.SetFrozen(context.Background(), "bob@upi", true))

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, result.Status)
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(80)))
}

func TestTransferUseCase_Execute_UnreachablePayeeDeemedApproved(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{DownstreamTimeout: 100 * time.Millisecond})

	f.accounts.GetFreshFunc = getFreshOverride(f)

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDeemedApproved, result.Status)
	assert.Equal(t, usecase.MsgDeemedApproved, result.Message)

	// Debit stands, credit pending.
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(70)))
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(50)))
	require.Len(t, f.journal.Entries(), 1)
	assert.Equal(t, domain.DirectionDebit, f.journal.Entries()[0].Direction)

	// Resubmitting must not race the pending credit.
	replay, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeemedApproved, replay.Status)
	assert.True(t, replay.Replayed)
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(70)))
}

// getFreshOverride fails payee reads while serving payer reads from the
// store's default map.
func getFreshOverride(f *transferFixture) func(ctx context.Context, id string) (*domain.Account, error) {
	return func(ctx context.Context, id string) (*domain.Account, error) {
		if id == "bob@upi" {
			return nil, fmt.Errorf("payee shard: %w", context.DeadlineExceeded)
		}
		return f.accounts.Get(ctx, id)
	}
}

func TestTransferUseCase_Execute_VersionConflictRetries(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})

	conflicts := 0
	f.accounts.ApplyDeltaFunc = func(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, expectedVersion int64) (decimal.Decimal, int64, error) {
		if conflicts < 2 {
			conflicts++
			return decimal.Zero, 0, domain.ErrVersionConflict
		}
		f.accounts.ApplyDeltaFunc = nil
		return f.accounts.ApplyDelta(ctx, tx, id, delta, expectedVersion)
	}

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, result.Status)
	assert.Equal(t, 2, conflicts)
}

func TestTransferUseCase_Execute_VersionConflictExhaustionFails(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{VersionRetries: 2})

	f.accounts.ApplyDeltaFunc = func(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, expectedVersion int64) (decimal.Decimal, int64, error) {
		return decimal.Zero, 0, domain.ErrVersionConflict
	}

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, usecase.MsgVersionExhausted, result.Message)
}

func TestTransferUseCase_Execute_LockTimeoutSurfaced(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{LockRetries: 1, LockBackoff: time.Millisecond})

	attempts := 0
	f.locker.WithLocksFunc = func(ctx context.Context, ids []string, fn func(ctx context.Context) error) error {
		attempts++
		return domain.ErrLockTimeout
	}

	_, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Equal(t, 2, attempts)

	// No funds moved; the record stays INITIATED for reconciliation.
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(100)))
	txn, err := f.txns.Get(context.Background(), "txn-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitiated, txn.Status)
}

func TestTransferUseCase_Execute_GeneratesTxnID(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})

	result, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.TxnID)
	assert.Equal(t, domain.StatusSuccess, result.Status)
}

// TestTransferUseCase_Execute_Concurrent drives many transfers across a
// small set of accounts with the real lock manager and checks the books
// afterwards: total funds conserved, no balance below zero, and every
// account consistent with its journal.
func TestTransferUseCase_Execute_Concurrent(t *testing.T) {
	f := newTransferFixture(usecase.TransferConfig{})
	f.accounts.Seed(&domain.Account{ID: "carol@upi", Balance: decimal.NewFromInt(80), OpeningBalance: decimal.NewFromInt(80)})

	manager := lock.NewManager(5 * time.Second)
	uc := usecase.NewTransferUseCase(
		mocks.NewMockTransactionManager(),
		f.accounts,
		f.journal,
		f.txns,
		f.outbox,
		manager,
		mocks.NewMockIDGenerator("evt"),
		nil,
		usecase.TransferConfig{VersionRetries: 10},
	)

	participants := []string{"alice@upi", "bob@upi", "carol@upi"}
	total := decimal.NewFromInt(230)

	var wg sync.WaitGroup
	const workers = 8
	const transfersPerWorker = 20
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < transfersPerWorker; i++ {
				payer := participants[(w+i)%3]
				payee := participants[(w+i+1)%3]
				_, err := uc.Execute(context.Background(), usecase.TransferInput{
					TxnID:   fmt.Sprintf("txn-%d-%d", w, i),
					PayerID: payer,
					PayeeID: payee,
					Amount:  decimal.NewFromInt(int64(1 + i%7)),
				})
				if err != nil && !errors.Is(err, domain.ErrLockTimeout) {
					t.Errorf("transfer %d-%d: %v", w, i, err)
				}
			}
		}(w)
	}
	wg.Wait()

	sum := decimal.Zero
	for _, id := range participants {
		balance := f.balance(t, id)
		assert.False(t, balance.IsNegative(), "account %s went negative: %s", id, balance)
		sum = sum.Add(balance)

		journalSum, err := f.journal.SumFor(context.Background(), id)
		require.NoError(t, err)
		account, err := f.accounts.Get(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, account.Balance.Equal(account.OpeningBalance.Add(journalSum)),
			"account %s disagrees with its journal", id)
	}
	assert.True(t, sum.Equal(total), "total funds changed: %s", sum)
}
