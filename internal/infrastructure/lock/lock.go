// Package lock provides the leadership mutex that keeps background jobs from
// running on several replicas at once. Ledger correctness never depends on
// it; it only avoids duplicate work.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned when another holder owns the lock
var ErrNotAcquired = errors.New("lock held by another instance")

// Locker hands out named, expiring locks
type Locker interface {
	// TryLock acquires name without waiting. The returned release func is
	// safe to call once the work is done.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// LocalLocker serializes jobs inside one process. Used when Redis is not
// configured, which means a single replica.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

// TryLock takes name unless it is held and not yet expired
func (l *LocalLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return nil, ErrNotAcquired
	}
	until := now.Add(ttl)
	l.held[name] = until

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// A lock that expired and was taken by someone else stays theirs.
		if l.held[name].Equal(until) {
			delete(l.held, name)
		}
		return nil
	}, nil
}

var _ Locker = (*LocalLocker)(nil)
