package ratelimit

import (
	"fmt"
	"time"

	"clinicd/pkg/types"
)

// Defaults per tier per window.
const (
	DefaultWindow             = time.Minute
	DefaultAnonymousLimit     = 10
	DefaultAuthenticatedLimit = 100
	DefaultPremiumLimit       = 1000
	DefaultKeyPrefix          = "ratelimit"
)

// Config holds the window length and per-tier limits.
type Config struct {
	Window    time.Duration
	Limits    map[types.Tier]int
	KeyPrefix string
}

// DefaultConfig returns the built-in tiers.
func DefaultConfig() Config {
	return Config{
		Window: DefaultWindow,
		Limits: map[types.Tier]int{
			types.TierAnonymous:     DefaultAnonymousLimit,
			types.TierAuthenticated: DefaultAuthenticatedLimit,
			types.TierPremium:       DefaultPremiumLimit,
		},
		KeyPrefix: DefaultKeyPrefix,
	}
}

// Validate requires a window of at least one millisecond and a positive
// limit for every tier.
func (c Config) Validate() error {
	if c.Window < time.Millisecond {
		return fmt.Errorf("rate limit window must be >= 1ms")
	}
	for _, t := range []types.Tier{types.TierAnonymous, types.TierAuthenticated, types.TierPremium} {
		if c.Limits[t] <= 0 {
			return fmt.Errorf("rate limit for tier %s must be > 0", t)
		}
	}
	return nil
}

// LimitFor returns the limit for tier. Unknown tiers get the anonymous limit.
func (c Config) LimitFor(tier types.Tier) int {
	if _, known := types.ParseTier(string(tier)); !known {
		tier = types.TierAnonymous
	}
	return c.Limits[tier]
}
