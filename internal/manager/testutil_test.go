package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"clinicd/internal/device"
)

// fakeHandle is a lightweight in-memory model used for tests.
type fakeHandle struct {
	name   string
	closed atomic.Bool
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// fakeLoader counts Load calls. When gate is non-nil Load blocks until it is
// closed; started is closed on the first call.
type fakeLoader struct {
	mu        sync.Mutex
	calls     int
	err       error
	gate      chan struct{}
	started   chan struct{}
	startOnce sync.Once
	placement device.Placement
	handle    *fakeHandle
	checkErr  error
}

func newFakeLoader(name string) *fakeLoader {
	return &fakeLoader{handle: &fakeHandle{name: name}, started: make(chan struct{})}
}

func (l *fakeLoader) Load(ctx context.Context, p device.Placement) (Handle, error) {
	l.mu.Lock()
	l.calls++
	l.placement = p
	l.mu.Unlock()
	l.startOnce.Do(func() { close(l.started) })
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.handle, nil
}

func (l *fakeLoader) Describe() string { return "fake" }

func (l *fakeLoader) Check() error { return l.checkErr }

func (l *fakeLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

var errBoom = errors.New("boom")
