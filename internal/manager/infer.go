package manager

import (
	"context"
	"fmt"

	"clinicd/pkg/types"
)

// Infer acquires the category's handle, waits for a worker slot and runs fn
// on a worker goroutine. It returns when fn finishes or ctx ends. When ctx
// ends first Infer returns ctx.Err() immediately; fn keeps its worker slot
// until it returns, so abandoned compute still counts against capacity.
// A panic in fn is returned as an error.
func (m *Manager) Infer(ctx context.Context, c types.Category, fn func(ctx context.Context, h Handle) error) error {
	h, err := m.Acquire(ctx, c)
	if err != nil {
		return err
	}
	s := m.slots[c]
	release, err := m.beginInference(ctx, s)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("%s worker panic: %v", c, r)
			}
		}()
		errc <- fn(ctx, h)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
