package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// seedDeemedApproved plants the exact state a crashed credit leg leaves
// behind: funds out of the payer, a debit entry on the books, and a
// DEEMED_APPROVED record of the given age.
func seedDeemedApproved(t *testing.T, f *transferFixture, txnID string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	at := time.Now().UTC().Add(-age)

	require.NoError(t, f.txns.Create(ctx, &domain.Transaction{
		ID:        txnID,
		PayerID:   "alice@upi",
		PayeeID:   "bob@upi",
		Amount:    decimal.NewFromInt(30),
		Status:    domain.StatusDeemedApproved,
		Verdict:   domain.VerdictAllow,
		CreatedAt: at,
		UpdatedAt: at,
	}))

	_, _, err := f.accounts.ApplyDelta(ctx, nil, "alice@upi", decimal.NewFromInt(-30), 1)
	require.NoError(t, err)
	require.NoError(t, f.journal.Append(ctx, nil, &domain.LedgerEntry{
		GlobalTxnID:  txnID,
		AccountID:    "alice@upi",
		Amount:       decimal.NewFromInt(-30),
		Direction:    domain.DirectionDebit,
		Counterparty: "bob@upi",
		BalanceAfter: decimal.NewFromInt(70),
		CreatedAt:    at,
	}))
}

func newReconcileFixture(t *testing.T, cfg usecase.ReconcileConfig) (*transferFixture, *usecase.ReconcileUseCase) {
	t.Helper()
	f := newTransferFixture(usecase.TransferConfig{DownstreamTimeout: 100 * time.Millisecond})
	return f, usecase.NewReconcileUseCase(f.uc, cfg)
}

func TestReconcileUseCase_Run_CompletesRecoveredCredit(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{MinAge: time.Second})
	seedDeemedApproved(t, f, "txn-stuck", time.Minute)

	report, err := rec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Completed)

	txn, err := f.txns.Get(context.Background(), "txn-stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, txn.Status)

	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(70)))
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(80)))
	assert.Len(t, f.journal.Entries(), 2)
}

func TestReconcileUseCase_Run_DefersWhileUnreachable(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{MinAge: time.Second, GiveUpAge: 24 * time.Hour})
	seedDeemedApproved(t, f, "txn-stuck", time.Minute)
	f.accounts.GetFreshFunc = getFreshOverride(f)

	report, err := rec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deferred)

	txn, err := f.txns.Get(context.Background(), "txn-stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeemedApproved, txn.Status)
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(70)))
}

func TestReconcileUseCase_Run_ReversesPastGiveUpAge(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{MinAge: time.Second, GiveUpAge: time.Hour})
	seedDeemedApproved(t, f, "txn-stuck", 2*time.Hour)
	f.accounts.GetFreshFunc = getFreshOverride(f)

	report, err := rec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Reversed)

	txn, err := f.txns.Get(context.Background(), "txn-stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReversed, txn.Status)

	// Payer made whole again.
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(100)))

	entries := f.journal.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ReversalTxnID("txn-stuck"), entries[1].GlobalTxnID)
}

func TestReconcileUseCase_Run_AlreadyCreditedCompletesWithoutDoubleCredit(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{MinAge: time.Second})
	seedDeemedApproved(t, f, "txn-stuck", time.Minute)

	// The credit actually landed before the crash; only the status write
	// was lost.
	ctx := context.Background()
	_, _, err := f.accounts.ApplyDelta(ctx, nil, "bob@upi", decimal.NewFromInt(30), 1)
	require.NoError(t, err)
	require.NoError(t, f.journal.Append(ctx, nil, &domain.LedgerEntry{
		GlobalTxnID:  "txn-stuck",
		AccountID:    "bob@upi",
		Amount:       decimal.NewFromInt(30),
		Direction:    domain.DirectionCredit,
		Counterparty: "alice@upi",
		BalanceAfter: decimal.NewFromInt(80),
		CreatedAt:    time.Now().UTC(),
	}))

	report, err := rec.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	// Credited exactly once.
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(80)))
	assert.Len(t, f.journal.Entries(), 2)
}

func TestReconcileUseCase_Run_ExpiresStaleInitiated(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{StaleAge: time.Minute})

	at := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.txns.Create(context.Background(), &domain.Transaction{
		ID:        "txn-stale",
		PayerID:   "alice@upi",
		PayeeID:   "bob@upi",
		Amount:    decimal.NewFromInt(30),
		Status:    domain.StatusInitiated,
		Verdict:   domain.VerdictAllow,
		CreatedAt: at,
		UpdatedAt: at,
	}))

	report, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	txn, err := f.txns.Get(context.Background(), "txn-stale")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, txn.Status)
	assert.Equal(t, usecase.MsgExpired, txn.Message)
	assert.True(t, f.balance(t, "alice@upi").Equal(decimal.NewFromInt(100)))
}

func TestReconcileUseCase_Run_PromotesStaleInitiatedWithDebit(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{StaleAge: time.Minute})
	seedDeemedApproved(t, f, "txn-stale", time.Hour)

	// Rewind the status to INITIATED: the crash happened between the
	// debit commit and the status write.
	require.NoError(t, f.txns.UpdateStatus(context.Background(), nil, "txn-stale", domain.StatusInitiated, "", time.Now().UTC().Add(-time.Hour)))

	report, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	txn, err := f.txns.Get(context.Background(), "txn-stale")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, txn.Status)
	assert.True(t, f.balance(t, "bob@upi").Equal(decimal.NewFromInt(80)))
}

func TestReconcileUseCase_Run_SkipsYoungRecords(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{MinAge: time.Hour, StaleAge: time.Hour})
	seedDeemedApproved(t, f, "txn-young", time.Minute)

	report, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Examined)

	txn, err := f.txns.Get(context.Background(), "txn-young")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeemedApproved, txn.Status)
}

func TestReconcileUseCase_VerifyBalances(t *testing.T) {
	f, rec := newReconcileFixture(t, usecase.ReconcileConfig{})

	// Clean books first.
	_, err := f.uc.Execute(context.Background(), usecase.TransferInput{
		TxnID:   "txn-1",
		PayerID: "alice@upi",
		PayeeID: "bob@upi",
		Amount:  decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	drifts, err := rec.VerifyBalances(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// Corrupt one balance behind the journal's back.
	f.accounts.Seed(&domain.Account{
		ID:             "bob@upi",
		Balance:        decimal.NewFromInt(999),
		OpeningBalance: decimal.NewFromInt(50),
	})

	drifts, err = rec.VerifyBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "bob@upi", drifts[0].AccountID)
	assert.True(t, drifts[0].Expected.Equal(decimal.NewFromInt(80)))
}
