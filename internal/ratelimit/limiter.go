package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"clinicd/pkg/types"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Permitted bool
	// RetryAfter is the time left in the window when denied.
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	// Degraded is set when the local fallback store made the decision.
	Degraded bool
}

// Limiter applies fixed-window limits per (tier, identity).
type Limiter struct {
	cfg      Config
	primary  Store
	fallback Store
	now      func() time.Time
	degraded atomic.Bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

// WithFallback replaces the default memory fallback store.
func WithFallback(s Store) Option { return func(l *Limiter) { l.fallback = s } }

// New returns a limiter over primary. A nil primary counts in memory only.
func New(primary Store, cfg Config, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	l := &Limiter{cfg: cfg, primary: primary, fallback: NewMemoryStore(), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Key returns the counter key for identity in the window containing now.
func (l *Limiter) Key(tier types.Tier, identity string, windowID int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.cfg.KeyPrefix, tier, identity, windowID)
}

// Allow counts one request for identity and decides whether it may proceed.
func (l *Limiter) Allow(ctx context.Context, identity string, tier types.Tier) Decision {
	if _, ok := types.ParseTier(string(tier)); !ok {
		tier = types.TierAnonymous
	}
	limit := l.cfg.LimitFor(tier)
	now := l.now()
	win := l.cfg.Window.Milliseconds()
	nowMs := now.UnixMilli()
	windowID := nowMs / win
	remainingWindow := time.Duration((windowID+1)*win-nowMs) * time.Millisecond
	key := l.Key(tier, identity, windowID)

	count, degraded := l.incr(ctx, key, remainingWindow)
	d := Decision{Limit: limit, Degraded: degraded}
	if count > int64(limit) {
		d.RetryAfter = remainingWindow
		return d
	}
	d.Permitted = true
	d.Remaining = limit - int(count)
	return d
}

func (l *Limiter) incr(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	if l.primary != nil {
		n, err := l.primary.Incr(ctx, key, ttl)
		if err == nil {
			if l.degraded.CompareAndSwap(true, false) {
				zerolog.Ctx(ctx).Info().Str("store", l.primary.Name()).Msg("rate limit store recovered")
			}
			return n, false
		}
		if !l.degraded.Swap(true) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("store", l.primary.Name()).Msg("rate limit store unavailable; counting locally")
		}
	}
	n, _ := l.fallback.Incr(ctx, key, ttl)
	return n, l.primary != nil
}

// Degraded reports whether the last primary store call failed.
func (l *Limiter) Degraded() bool { return l.degraded.Load() }

// Backend names the primary store, or the fallback when there is none.
func (l *Limiter) Backend() string {
	if l.primary == nil {
		return l.fallback.Name()
	}
	return l.primary.Name()
}

// Ping checks the primary store.
func (l *Limiter) Ping(ctx context.Context) error {
	if l.primary == nil {
		return nil
	}
	return l.primary.Ping(ctx)
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config { return l.cfg }
