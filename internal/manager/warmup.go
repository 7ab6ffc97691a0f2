package manager

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"clinicd/pkg/types"
)

// Warmup loads every category that has a loader, concurrently, and waits for
// all of them. Failures are cached in their slots as usual; the returned
// error joins them.
func (m *Manager) Warmup(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, len(types.Categories))
	for i, c := range types.Categories {
		if m.slots[c].loader == nil {
			continue
		}
		g.Go(func() error {
			_, errs[i] = m.Acquire(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close releases every loaded handle. Loads still in flight release their
// handle when they finish. The Manager must not be used afterwards.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	var errs []error
	for _, c := range types.Categories {
		s := m.slots[c]
		s.mu.Lock()
		if s.state == StateLoaded && s.handle != nil {
			if err := s.handle.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}
