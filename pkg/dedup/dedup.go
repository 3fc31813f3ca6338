// Package dedup collapses concurrent calls sharing an identity key into
// a single in-flight operation.
package dedup

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dedupHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "market_dedup_hits_total",
	Help: "Total number of calls that joined an already in-flight operation",
})

// DefaultMaxAge is how long a pending entry may sit in the group before
// the sweep drops it. It guards against a leaked entry if removal on
// settle ever fails to fire; it is not a request timeout.
const DefaultMaxAge = 5 * time.Second

// call is one in-flight operation. done is closed when the operation
// settles; val and err are immutable afterwards.
type call[T any] struct {
	done    chan struct{}
	val     T
	err     error
	started time.Time
}

// Group ensures at most one in-flight execution per key at any moment.
// Concurrent callers requesting the same key share one upstream call and
// receive the same result, success or failure. The group knows nothing
// about cache TTLs: it only protects against request storms while a
// single fetch is in flight.
type Group[T any] struct {
	mu     sync.Mutex
	calls  map[string]*call[T]
	maxAge time.Duration
	now    func() time.Time
}

// NewGroup creates a group with DefaultMaxAge for the stale-pending sweep.
func NewGroup[T any]() *Group[T] {
	return &Group[T]{
		calls:  make(map[string]*call[T]),
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
}

// Do executes fn, ensuring only one execution is in flight for key. A
// caller arriving while the key is pending waits for the original call
// and receives its result; fn is not invoked again. The pending entry is
// removed when fn settles, so a failure never poisons the key for later
// attempts.
func (g *Group[T]) Do(key string, fn func() (T, error)) (T, error) {
	g.mu.Lock()
	g.sweepLocked()

	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		dedupHitsTotal.Inc()
		<-c.done
		return c.val, c.err
	}

	c := &call[T]{done: make(chan struct{}), started: g.now()}
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	// Only drop our own registration: the sweep may have replaced it.
	if cur, ok := g.calls[key]; ok && cur == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	close(c.done)

	return c.val, c.err
}

// Forget drops the pending entry for key so the next Do executes fresh.
// Callers already waiting on the old call still receive its result.
func (g *Group[T]) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.calls, key)
}

// InFlight returns the number of currently pending operations.
func (g *Group[T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// sweepLocked drops pending entries older than maxAge. Waiters on a
// swept call still get its result when it eventually settles; the sweep
// only stops new callers from piling onto a call that may never settle.
// Caller must hold g.mu.
func (g *Group[T]) sweepLocked() {
	cutoff := g.now().Add(-g.maxAge)
	for key, c := range g.calls {
		if c.started.Before(cutoff) {
			delete(g.calls, key)
		}
	}
}
