// Package lock serializes per-order critical sections such as attempt
// numbering. Implementations exist for PostgreSQL advisory locks, Redis and
// a single process.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotObtained is returned when the lock could not be taken before the
	// context expired.
	ErrNotObtained = errors.New("lock not obtained")
	// ErrNoTransaction is returned by the advisory locker outside a transaction.
	ErrNoTransaction = errors.New("advisory lock requires a transaction in context")
)

// Locker takes an exclusive per-order lock. The returned release func must be
// called once the protected work is done; it is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, orderID int64) (release func(), err error)
}

// AttemptKey names the lock that guards attempt numbering for one order.
func AttemptKey(orderID int64) string {
	return fmt.Sprintf("order:%d:validation-attempt", orderID)
}

// Local is an in-process Locker keyed by order id. Suitable for a single
// replica and for tests.
type Local struct {
	mu    sync.Mutex
	locks map[int64]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[int64]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, orderID int64) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[orderID]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[orderID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(orderID, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, AttemptKey(orderID), ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(orderID, e)
		})
	}, nil
}

func (l *Local) unref(orderID int64, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, orderID)
	}
}
