package manager

import (
	"context"
	"time"
)

// beginInference reserves a queue slot and then an in-flight worker slot for
// the category. Returns a release func to be deferred. Both waits share one
// maxWait budget; exceeding it yields tooBusyError.
func (m *Manager) beginInference(ctx context.Context, s *slot) (func(), error) {
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()

	// Try to reserve a queue slot with timeout
	select {
	case s.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		m.publisher.Publish(Event{Name: EventTooBusy, Category: s.category, Fields: map[string]any{"phase": "queue"}})
		return func() {}, tooBusyError{category: s.category}
	}

	// Wait to acquire a worker slot
	select {
	case s.genCh <- struct{}{}:
		return func() { <-s.genCh; <-s.queueCh }, nil
	case <-ctx.Done():
		<-s.queueCh
		return func() {}, ctx.Err()
	case <-timer.C:
		<-s.queueCh
		m.publisher.Publish(Event{Name: EventTooBusy, Category: s.category, Fields: map[string]any{"phase": "worker"}})
		return func() {}, tooBusyError{category: s.category}
	}
}
