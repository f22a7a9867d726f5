// Package lock serializes appointment bookings per calendar so the
// list-then-create sequence cannot interleave with another booking.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock stayed held past the wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker grants exclusive access to a key. release must be called exactly
// once and is safe to call after the context is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
