// Package lock provides per-account exclusive locking with a canonical
// acquisition order, so that transfers touching overlapping account sets
// serialize without any possibility of a wait cycle.
package lock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// Manager hands out per-account exclusive locks. Locks are always
// acquired in lexicographic account-id order and released in reverse.
type Manager struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	sem  chan struct{} // capacity 1
	refs int
}

// NewManager creates a Manager with the given per-account acquisition
// timeout.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		timeout: timeout,
		locks:   make(map[string]*accountLock),
	}
}

// WithLocks acquires exclusive locks on every id in canonical order,
// invokes fn, and releases the locks in reverse order on every exit path.
// Exceeding the acquisition timeout on any lock releases everything
// already held and returns domain.ErrLockTimeout.
func (m *Manager) WithLocks(ctx context.Context, ids []string, fn func(ctx context.Context) error) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]string, 0, len(sorted))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			m.release(held[i])
		}
	}

	for _, id := range sorted {
		if err := m.acquire(ctx, id); err != nil {
			release()
			return err
		}

		held = append(held, id)
	}

	defer release()

	return fn(ctx)
}

func (m *Manager) acquire(ctx context.Context, id string) error {
	l := m.ref(id)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-timer.C:
		m.unref(id)
		return domain.ErrLockTimeout
	case <-ctx.Done():
		m.unref(id)
		return ctx.Err()
	}
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.locks[id]
	<-l.sem

	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
}

func (m *Manager) ref(id string) *accountLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &accountLock{sem: make(chan struct{}, 1)}
		m.locks[id] = l
	}
	l.refs++

	return l
}

func (m *Manager) unref(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		return
	}

	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
}
