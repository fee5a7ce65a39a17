package crawler

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConnections bounds simultaneous article fetches.
const DefaultMaxConnections = 24

// ConnLimiter is the admission gate for article fetches. One slot covers a
// whole logical fetch, redirect hops and body read included.
type ConnLimiter struct {
	sem      *semaphore.Weighted
	capacity int
}

func NewConnLimiter(capacity int) *ConnLimiter {
	if capacity < 1 {
		capacity = DefaultMaxConnections
	}
	return &ConnLimiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *ConnLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release returns a slot taken by a successful Acquire.
func (l *ConnLimiter) Release() {
	l.sem.Release(1)
}

func (l *ConnLimiter) Capacity() int {
	return l.capacity
}
