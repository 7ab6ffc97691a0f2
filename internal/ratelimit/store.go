// Package ratelimit implements tiered fixed-window admission control.
//
// Counters live in a shared Store (Redis) keyed by tier, identity and window
// id. When the shared store fails the limiter counts in a per-process memory
// store instead; during such an outage each instance enforces the limit on
// its own, so the aggregate limit across N instances is limit*N.
package ratelimit

import (
	"context"
	"time"
)

// Store atomically increments a window counter.
type Store interface {
	// Incr adds one to key and returns the new count. The key expires ttl
	// after its first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Name identifies the store in logs and health output.
	Name() string
}
