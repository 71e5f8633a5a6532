package adapter

import (
	"context"
	"time"
)

// Locker is a distributed mutual-exclusion primitive. TryLock returns a token
// that must be presented to Unlock, so a holder cannot release a lock a later
// holder re-acquired.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
