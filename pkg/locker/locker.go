// Package locker provides cross-instance leases for periodic jobs.
package locker

import (
	"context"
	"time"
)

// Lease is a lock held by this instance until it expires or is released.
type Lease interface {
	// Key returns the locked key.
	Key() string

	// Release gives the lock up early. Releasing an expired lease is a no-op.
	Release(ctx context.Context) error
}

// Locker hands out leases. Implementations must be safe for concurrent use.
//
//	lease, err := l.TryAcquire(ctx, "warm", time.Minute)
//	if err != nil || lease == nil {
//	    return // failed, or another instance holds it
//	}
//	defer lease.Release(ctx)
type Locker interface {
	// TryAcquire returns a lease, or nil without error when another
	// instance already holds key. It never waits for the lock.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
