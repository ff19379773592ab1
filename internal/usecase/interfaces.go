package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// AccountStore defines data access for accounts. ApplyDelta is the only
// mutator of balances: it applies a signed amount under an optimistic
// version check and fails closed, never partially.
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	// Get is a routed read; it may observe bounded replica staleness.
	Get(ctx context.Context, id string) (*domain.Account, error)
	// GetFresh reads from the primary. Used inside a held account lock,
	// where staleness would defeat the version check.
	GetFresh(ctx context.Context, id string) (*domain.Account, error)
	// ApplyDelta returns the new balance and version, or
	// ErrInsufficientBalance, ErrVersionConflict, ErrAccountNotFound.
	// Frozen state is the caller's check, against a fresh read guarded
	// by the same version.
	ApplyDelta(ctx context.Context, tx Transaction, id string, delta decimal.Decimal, expectedVersion int64) (decimal.Decimal, int64, error)
	SetFrozen(ctx context.Context, id string, frozen bool) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// LedgerJournal defines the append-only journal of ledger entries.
// Append rejects duplicates on (global txn id, account, direction) with
// ErrDuplicateEntry; that rejection is what makes the engine safe to
// retry end-to-end.
type LedgerJournal interface {
	Append(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	// Exists reads from the primary: idempotency decisions must never be
	// made against a lagging replica.
	Exists(ctx context.Context, txnID, accountID string, direction domain.Direction) (bool, error)
	// HistoryFor is a routed read returning entries newest-first with a
	// restartable page token.
	HistoryFor(ctx context.Context, accountID string, query domain.StatementQuery) ([]*domain.LedgerEntry, string, error)
	// SumFor sums signed entry amounts for an account, from the primary.
	SumFor(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// TransactionRepository defines data access for the orchestrator's
// working records.
type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.Status, message string, updatedAt time.Time) error
	ListByStatusBefore(ctx context.Context, status domain.Status, cutoff time.Time, limit int) ([]*domain.Transaction, error)
}

// OutboxRepository defines data access for pending notification events.
// Events are written in the same transaction as the ledger mutation they
// describe and relayed to the bus asynchronously.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.NotificationEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.NotificationEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Locker serializes access to sets of accounts. Implementations must
// acquire in a canonical total order and release on every exit path.
type Locker interface {
	WithLocks(ctx context.Context, ids []string, fn func(ctx context.Context) error) error
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles storage transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore caches responses keyed by idempotency key, so the
// HTTP layer can replay results without re-entering the engine.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
