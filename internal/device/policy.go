package device

import (
	"fmt"

	"clinicd/pkg/types"
)

// Rule is the placement policy for one category.
type Rule struct {
	// Pin forces a device when it is available. Empty follows the global preference.
	Pin Kind
	// OptimizeOnPrimary enables the optimized execution path when the
	// category resolves to the primary accelerator (CUDA).
	OptimizeOnPrimary bool
}

// Policy maps categories to rules. Categories without an entry follow the
// global preference with no optimization.
type Policy map[types.Category]Rule

// DefaultPolicy pins summarization to the CPU, the stage that is unstable on
// accelerators, and enables the optimized path for generation.
func DefaultPolicy() Policy {
	return Policy{
		types.CategoryClassify:  {},
		types.CategorySummarize: {Pin: CPU},
		types.CategoryGenerate:  {OptimizeOnPrimary: true},
	}
}

// WithPins returns a copy of p with the given pins applied.
func (p Policy) WithPins(pins map[types.Category]Kind) (Policy, error) {
	out := make(Policy, len(p))
	for c, r := range p {
		out[c] = r
	}
	for c, k := range pins {
		if !c.Valid() {
			return nil, fmt.Errorf("device pin: unknown category %q", c)
		}
		r := out[c]
		r.Pin = k
		out[c] = r
	}
	return out, nil
}

// Placement is the resolved device for a category.
type Placement struct {
	Kind      Kind
	Optimized bool
}

func (p Placement) String() string {
	if p.Optimized {
		return string(p.Kind) + "+optimized"
	}
	return string(p.Kind)
}

// Selector resolves placements from a probe and a policy. It is immutable
// and safe for concurrent use.
type Selector struct {
	probe  Probe
	policy Policy
	force  Kind
}

// Option configures a Selector.
type Option func(*Selector)

// WithForce overrides the probe: the forced kind becomes the only accelerator
// considered available.
func WithForce(k Kind) Option { return func(s *Selector) { s.force = k } }

// NewSelector builds a selector. A nil probe means HostProbe and a nil policy
// means DefaultPolicy.
func NewSelector(probe Probe, policy Policy, opts ...Option) *Selector {
	if probe == nil {
		probe = HostProbe{}
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	s := &Selector{probe: probe, policy: policy}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Selector) available(k Kind) bool {
	switch k {
	case CPU:
		return true
	case CUDA, MPS:
		if s.force != "" {
			return s.force == k
		}
		if k == CUDA {
			return s.probe.CUDA()
		}
		return s.probe.MPS()
	}
	return false
}

// Global returns the preferred device: cuda, then mps, then cpu.
func (s *Selector) Global() Kind {
	for _, k := range []Kind{CUDA, MPS} {
		if s.available(k) {
			return k
		}
	}
	return CPU
}

// Resolve returns the placement for a category. A pin to an unavailable
// accelerator falls back to the global preference.
func (s *Selector) Resolve(c types.Category) Placement {
	r := s.policy[c]
	k := s.Global()
	if r.Pin != "" && s.available(r.Pin) {
		k = r.Pin
	}
	return Placement{Kind: k, Optimized: r.OptimizeOnPrimary && k == CUDA}
}
