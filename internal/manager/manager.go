package manager

import (
	"context"
	"sync/atomic"
	"time"

	"clinicd/internal/device"
	"clinicd/pkg/types"
)

// Manager is the explicit owner of all model slots. It is created once by the
// serving process and passed by reference to the pipeline.
type Manager struct {
	selector *device.Selector
	// slots is written only in New.
	slots    map[types.Category]*slot
	required []types.Category

	// Queue config
	maxWait     time.Duration
	loadTimeout time.Duration

	baseCtx   context.Context
	publisher EventPublisher
	startTime time.Time
	closed    atomic.Bool
}

// Ready reports whether every required category is loaded.
func (m *Manager) Ready() bool {
	for _, c := range m.required {
		s := m.slots[c]
		if s == nil {
			return false
		}
		if st, _, _ := s.snapshot(); st != StateLoaded {
			return false
		}
	}
	return true
}

// Loaded reports the readiness of each category.
func (m *Manager) Loaded() map[types.Category]bool {
	out := make(map[types.Category]bool, len(m.slots))
	for c, s := range m.slots {
		st, _, _ := s.snapshot()
		out[c] = st == StateLoaded
	}
	return out
}

// States reports the lifecycle state of each category.
func (m *Manager) States() map[types.Category]State {
	out := make(map[types.Category]State, len(m.slots))
	for c, s := range m.slots {
		out[c], _, _ = s.snapshot()
	}
	return out
}

// Device returns the globally preferred device.
func (m *Manager) Device() string { return string(m.selector.Global()) }

// Placement returns the resolved placement for a category.
func (m *Manager) Placement(c types.Category) device.Placement {
	if s := m.slots[c]; s != nil {
		return s.placement
	}
	return m.selector.Resolve(c)
}
