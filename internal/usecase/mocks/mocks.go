package mocks

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// MockAccountStore is a mock implementation of AccountStore backed by a
// map. Defaults behave like the real store, including version checks and
// the overdraft floor; set the Func fields to override per test.
type MockAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc     func(ctx context.Context, account *domain.Account) error
	GetFunc        func(ctx context.Context, id string) (*domain.Account, error)
	GetFreshFunc   func(ctx context.Context, id string) (*domain.Account, error)
	ApplyDeltaFunc func(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, expectedVersion int64) (decimal.Decimal, int64, error)
	SetFrozenFunc  func(ctx context.Context, id string, frozen bool) error
	ListFunc       func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountStore() *MockAccountStore {
	return &MockAccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Seed inserts an account directly, bypassing any override.
func (m *MockAccountStore) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.Version == 0 {
		account.Version = 1
	}
	copied := *account
	m.accounts[account.ID] = &copied
}

func (m *MockAccountStore) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; ok {
		return domain.ErrAccountExists
	}
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *MockAccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return m.get(id)
}

func (m *MockAccountStore) GetFresh(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetFreshFunc != nil {
		return m.GetFreshFunc(ctx, id)
	}
	return m.get(id)
}

func (m *MockAccountStore) get(id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *MockAccountStore) ApplyDelta(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, expectedVersion int64) (decimal.Decimal, int64, error) {
	if m.ApplyDeltaFunc != nil {
		return m.ApplyDeltaFunc(ctx, tx, id, delta, expectedVersion)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, 0, domain.ErrAccountNotFound
	}
	if account.Version != expectedVersion {
		return decimal.Zero, 0, domain.ErrVersionConflict
	}
	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() && !account.AllowOverdraft {
		return decimal.Zero, 0, domain.ErrInsufficientBalance
	}

	prevBalance, prevVersion := account.Balance, account.Version
	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = time.Now().UTC()

	// Tie the mutation to the storage transaction so a rollback undoes it,
	// matching the real store.
	if mtx, ok := tx.(*MockTransaction); ok && mtx != nil {
		mtx.onRollback(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if current, ok := m.accounts[id]; ok {
				current.Balance = prevBalance
				current.Version = prevVersion
			}
		})
	}

	return newBalance, account.Version, nil
}

func (m *MockAccountStore) SetFrozen(ctx context.Context, id string, frozen bool) error {
	if m.SetFrozenFunc != nil {
		return m.SetFrozenFunc(ctx, id, frozen)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Frozen = frozen
	account.Version++
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockAccountStore) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*domain.Account
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		copied := *m.accounts[ids[i]]
		out = append(out, &copied)
	}
	return out, nil
}

// MockLedgerJournal is a mock implementation of LedgerJournal. The
// default enforces the (txn id, account, direction) uniqueness the real
// journal gets from its constraint.
type MockLedgerJournal struct {
	mu      sync.RWMutex
	entries []*domain.LedgerEntry
	index   map[string]struct{}
	nextID  int64

	AppendFunc     func(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error
	ExistsFunc     func(ctx context.Context, txnID, accountID string, direction domain.Direction) (bool, error)
	HistoryForFunc func(ctx context.Context, accountID string, query domain.StatementQuery) ([]*domain.LedgerEntry, string, error)
	SumForFunc     func(ctx context.Context, accountID string) (decimal.Decimal, error)
}

func NewMockLedgerJournal() *MockLedgerJournal {
	return &MockLedgerJournal{
		index:  make(map[string]struct{}),
		nextID: 1,
	}
}

func entryKey(txnID, accountID string, direction domain.Direction) string {
	return txnID + "|" + accountID + "|" + string(direction)
}

func (m *MockLedgerJournal) Append(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey(entry.GlobalTxnID, entry.AccountID, entry.Direction)
	if _, ok := m.index[key]; ok {
		return domain.ErrDuplicateEntry
	}
	entry.ID = m.nextID
	m.nextID++
	m.index[key] = struct{}{}
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *MockLedgerJournal) Exists(ctx context.Context, txnID, accountID string, direction domain.Direction) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, txnID, accountID, direction)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[entryKey(txnID, accountID, direction)]
	return ok, nil
}

func (m *MockLedgerJournal) HistoryFor(ctx context.Context, accountID string, query domain.StatementQuery) ([]*domain.LedgerEntry, string, error) {
	if m.HistoryForFunc != nil {
		return m.HistoryForFunc(ctx, accountID, query)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	before := int64(0)
	if query.PageToken != "" {
		parsed, err := strconv.ParseInt(query.PageToken, 10, 64)
		if err != nil {
			return nil, "", domain.ErrInvalidToken
		}
		before = parsed
	}

	var page []*domain.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		if entry.AccountID != accountID {
			continue
		}
		if before > 0 && entry.ID >= before {
			continue
		}
		if query.From != nil && entry.CreatedAt.Before(*query.From) {
			continue
		}
		if query.To != nil && entry.CreatedAt.After(*query.To) {
			continue
		}
		if len(page) == query.Limit {
			return page, strconv.FormatInt(page[len(page)-1].ID, 10), nil
		}
		copied := *entry
		page = append(page, &copied)
	}
	return page, "", nil
}

func (m *MockLedgerJournal) SumFor(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if m.SumForFunc != nil {
		return m.SumForFunc(ctx, accountID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, entry := range m.entries {
		if entry.AccountID == accountID {
			sum = sum.Add(entry.Amount)
		}
	}
	return sum, nil
}

// Entries returns a snapshot of all appended entries.
func (m *MockLedgerJournal) Entries() []*domain.LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.LedgerEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		copied := *entry
		out = append(out, &copied)
	}
	return out
}

// MockTransactionRepository is a mock implementation of
// TransactionRepository.
type MockTransactionRepository struct {
	mu   sync.RWMutex
	txns map[string]*domain.Transaction

	CreateFunc             func(ctx context.Context, txn *domain.Transaction) error
	GetFunc                func(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateStatusFunc       func(ctx context.Context, tx usecase.Transaction, id string, status domain.Status, message string, updatedAt time.Time) error
	ListByStatusBeforeFunc func(ctx context.Context, status domain.Status, cutoff time.Time, limit int) ([]*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		txns: make(map[string]*domain.Transaction),
	}
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[txn.ID]; ok {
		return domain.ErrDuplicateEntry
	}
	copied := *txn
	m.txns[txn.ID] = &copied
	return nil
}

func (m *MockTransactionRepository) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.txns[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.Status, message string, updatedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status, message, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	txn.Status = status
	if message != "" {
		txn.Message = message
	}
	txn.UpdatedAt = updatedAt
	return nil
}

func (m *MockTransactionRepository) ListByStatusBefore(ctx context.Context, status domain.Status, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	if m.ListByStatusBeforeFunc != nil {
		return m.ListByStatusBeforeFunc(ctx, status, cutoff, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Transaction
	for _, txn := range m.txns {
		if txn.Status == status && txn.UpdatedAt.Before(cutoff) {
			copied := *txn
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu        sync.RWMutex
	events    []*domain.NotificationEvent
	published map[string]time.Time

	CreateFunc         func(ctx context.Context, tx usecase.Transaction, event *domain.NotificationEvent) error
	GetUnpublishedFunc func(ctx context.Context, limit int) ([]*domain.NotificationEvent, error)
	MarkPublishedFunc  func(ctx context.Context, id string, publishedAt time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{
		published: make(map[string]time.Time),
	}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.NotificationEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.NotificationEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.NotificationEvent
	for _, event := range m.events {
		if _, ok := m.published[event.ID]; ok {
			continue
		}
		if len(out) == limit {
			break
		}
		copied := *event
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[id] = publishedAt
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, event := range m.events {
		at, ok := m.published[event.ID]
		if ok && at.Before(before) {
			delete(m.published, event.ID)
			continue
		}
		kept = append(kept, event)
	}
	m.events = kept
	return nil
}

// Events returns a snapshot of all staged events.
func (m *MockOutboxRepository) Events() []*domain.NotificationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.NotificationEvent, 0, len(m.events))
	for _, event := range m.events {
		copied := *event
		out = append(out, &copied)
	}
	return out
}

// MockTransaction is a mock implementation of Transaction. Stores
// register undo hooks on it so Rollback reverts their writes.
type MockTransaction struct {
	mu       sync.Mutex
	done     bool
	undo     []func()
	onCommit []func()

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (t *MockTransaction) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		return t.CommitFunc(ctx)
	}
	t.mu.Lock()
	hooks := t.onCommit
	t.done = true
	t.undo = nil
	t.onCommit = nil
	t.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (t *MockTransaction) Rollback(ctx context.Context) error {
	if t.RollbackFunc != nil {
		return t.RollbackFunc(ctx)
	}
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	undo := t.undo
	t.done = true
	t.undo = nil
	t.onCommit = nil
	t.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockLocker is a mock implementation of Locker. The default serializes
// callers globally, which preserves the exclusion the orchestrator
// relies on without per-account bookkeeping.
type MockLocker struct {
	mu sync.Mutex

	WithLocksFunc func(ctx context.Context, ids []string, fn func(ctx context.Context) error) error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{}
}

func (m *MockLocker) WithLocks(ctx context.Context, ids []string, fn func(ctx context.Context) error) error {
	if m.WithLocksFunc != nil {
		return m.WithLocksFunc(ctx, ids, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// MockIDGenerator is a mock implementation of IDGenerator producing a
// deterministic sequence.
type MockIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func NewMockIDGenerator(prefix string) *MockIDGenerator {
	return &MockIDGenerator{prefix: prefix}
}

func (m *MockIDGenerator) Generate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	return fmt.Sprintf("%s-%06d", m.prefix, m.next)
}
