package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// beginTx opens a mock transaction for exercising the tx-scoped store
// methods.
func beginTx(t *testing.T, pool pgxmock.PgxPoolIface) *Tx {
	t.Helper()
	pool.ExpectBegin()
	pgxTx, err := pool.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return &Tx{tx: pgxTx}
}

func TestAccountStoreApplyDeltaNotFound(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectQuery("UPDATE accounts").
		WithArgs("ghost@upi", pgxmock.AnyArg(), int64(1)).
		WillReturnError(pgx.ErrNoRows)
	pool.ExpectQuery("SELECT version FROM accounts").
		WithArgs("ghost@upi").
		WillReturnError(pgx.ErrNoRows)

	store := NewAccountStore(nil)
	_, _, err := store.ApplyDelta(context.Background(), tx, "ghost@upi", decimal.NewFromInt(-10), 1)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestAccountStoreApplyDeltaVersionConflict(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectQuery("UPDATE accounts").
		WithArgs("alice@upi", pgxmock.AnyArg(), int64(5)).
		WillReturnError(pgx.ErrNoRows)
	pool.ExpectQuery("SELECT version FROM accounts").
		WithArgs("alice@upi").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(7)))

	store := NewAccountStore(nil)
	_, _, err := store.ApplyDelta(context.Background(), tx, "alice@upi", decimal.NewFromInt(-10), 5)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestAccountStoreApplyDeltaInsufficientBalance(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	// Version matches, so the guarded update can only have been rejected
	// by the balance floor.
	pool.ExpectQuery("UPDATE accounts").
		WithArgs("alice@upi", pgxmock.AnyArg(), int64(5)).
		WillReturnError(pgx.ErrNoRows)
	pool.ExpectQuery("SELECT version FROM accounts").
		WithArgs("alice@upi").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(5)))

	store := NewAccountStore(nil)
	_, _, err := store.ApplyDelta(context.Background(), tx, "alice@upi", decimal.NewFromInt(-10), 5)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	assertExpectations(t, pool)
}
