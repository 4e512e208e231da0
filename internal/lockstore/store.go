// Package lockstore provides the advisory seat lock store. Locks are
// soft reservations with a TTL and an owner; the booking ledger remains
// the authority on who actually gets a seat.
package lockstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is an atomic set-if-absent key store with per-key ownership.
// All operations that read-then-write (renew, release) must be atomic in
// the implementation; callers never compose Owner + a write themselves.
type Store interface {
	// Acquire takes the seat lock for holderID. It succeeds when the seat
	// is free or already owned by holderID, refreshing the TTL in both
	// cases. A false return means another holder owns the seat.
	Acquire(ctx context.Context, tripID int64, seat, holderID string, ttl time.Duration) (bool, error)

	// Release removes the lock only when holderID still owns it.
	Release(ctx context.Context, tripID int64, seat, holderID string) (bool, error)

	// Owner returns the current holder, or "" when the seat is unlocked.
	Owner(ctx context.Context, tripID int64, seat string) (string, error)

	// ActiveLocks lists the seat numbers currently locked on the trip.
	ActiveLocks(ctx context.Context, tripID int64) ([]string, error)

	// Close releases backend resources.
	Close() error
}

const keyPrefix = "seatlock"

func lockKey(tripID int64, seat string) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, tripID, seat)
}

func tripPattern(tripID int64) string {
	return fmt.Sprintf("%s:%d:*", keyPrefix, tripID)
}

func seatFromKey(tripID int64, key string) string {
	prefix := fmt.Sprintf("%s:%d:", keyPrefix, tripID)
	return strings.TrimPrefix(key, prefix)
}
