package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinicd/pkg/types"
)

// Acquire returns the loaded handle for a category, loading it on first use.
//
// Concurrent callers for an unloaded slot trigger exactly one load; every
// caller waits on the same attempt and observes the same outcome. A failed
// slot returns its cached *LoadError without retrying. A caller whose ctx
// ends stops waiting, but the load it may have started runs to completion
// under the manager's base context so the slot is never left half-loaded.
func (m *Manager) Acquire(ctx context.Context, c types.Category) (Handle, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	s, ok := m.slots[c]
	if !ok {
		return nil, unknownCategoryError{category: c}
	}

	s.mu.Lock()
	switch s.state {
	case StateLoaded:
		h := s.handle
		s.mu.Unlock()
		return h, nil
	case StateFailed:
		err := s.err
		s.mu.Unlock()
		return nil, err
	case StateUnloaded:
		s.state = StateLoading
		s.attempts++
		go m.load(s)
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	st, h, lerr := s.snapshot()
	if st == StateLoaded {
		return h, nil
	}
	return nil, lerr
}

// load runs the single load attempt for s and publishes the outcome.
func (m *Manager) load(s *slot) {
	start := time.Now()
	m.publisher.Publish(Event{Name: EventLoadStart, Category: s.category, Fields: map[string]any{
		"device":    string(s.placement.Kind),
		"optimized": s.placement.Optimized,
	}})

	ctx, cancel := context.WithTimeout(m.baseCtx, m.loadTimeout)
	h, err := runLoader(ctx, s)
	cancel()
	dur := time.Since(start)

	s.mu.Lock()
	s.loadDur = dur
	if err == nil && m.closed.Load() {
		_ = h.Close()
		h, err = nil, ErrClosed
	}
	if err != nil {
		if h != nil {
			_ = h.Close()
		}
		s.state = StateFailed
		s.err = &LoadError{Category: s.category, Device: s.placement.Kind, Err: err}
	} else {
		s.state = StateLoaded
		s.handle = h
		s.loadedAt = time.Now()
	}
	close(s.done)
	s.mu.Unlock()

	fields := map[string]any{
		"device": string(s.placement.Kind),
		"dur_ms": int(dur / time.Millisecond),
	}
	if err != nil {
		fields["error"] = err.Error()
		m.publisher.Publish(Event{Name: EventLoadFailed, Category: s.category, Fields: fields})
		return
	}
	m.publisher.Publish(Event{Name: EventLoadReady, Category: s.category, Fields: fields})
}

func runLoader(ctx context.Context, s *slot) (h Handle, err error) {
	if s.loader == nil {
		return nil, errNoLoader
	}
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	h, err = s.loader.Load(ctx, s.placement)
	if err == nil && h == nil {
		err = errors.New("loader returned no model")
	}
	return h, err
}
