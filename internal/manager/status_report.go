package manager

import (
	"time"

	"clinicd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	resp := types.StatusResponse{
		Device:         m.Device(),
		Ready:          m.Ready(),
		UptimeSeconds:  int64(time.Since(m.startTime) / time.Second),
		ServerTimeUnix: time.Now().Unix(),
		Slots:          make([]types.SlotStatus, 0, len(types.Categories)),
	}
	for _, c := range types.Categories {
		s := m.slots[c]
		s.mu.Lock()
		st := types.SlotStatus{
			Category:      string(c),
			State:         string(s.state),
			Device:        string(s.placement.Kind),
			Optimized:     s.placement.Optimized,
			Backend:       describe(s.loader),
			Attempts:      s.attempts,
			LoadSeconds:   s.loadDur.Seconds(),
			QueueLen:      len(s.queueCh),
			Inflight:      len(s.genCh),
			MaxQueueDepth: cap(s.queueCh),
		}
		if !s.loadedAt.IsZero() {
			st.LoadedAtUnix = s.loadedAt.Unix()
		}
		if s.err != nil {
			st.Error = s.err.Error()
		}
		s.mu.Unlock()
		resp.Slots = append(resp.Slots, st)
	}
	return resp
}

func describe(l Loader) string {
	if l == nil {
		return ""
	}
	if d, ok := l.(Describer); ok {
		return d.Describe()
	}
	return "custom"
}
