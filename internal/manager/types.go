package manager

import (
	"sync"
	"time"

	"clinicd/internal/device"
	"clinicd/pkg/types"
)

// State is the lifecycle state of a model slot.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateFailed   State = "failed"
)

// slot is the record for one category. The slot map itself is fixed at
// construction; mu guards the mutable fields.
type slot struct {
	category  types.Category
	loader    Loader
	placement device.Placement

	mu       sync.Mutex
	state    State
	handle   Handle
	err      *LoadError
	attempts int
	loadDur  time.Duration
	loadedAt time.Time
	// done is closed when the single load attempt finishes.
	done chan struct{}

	// Queueing primitives
	genCh   chan struct{} // in-flight workers
	queueCh chan struct{} // queue slots
}

func (s *slot) snapshot() (State, Handle, *LoadError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.handle, s.err
}
