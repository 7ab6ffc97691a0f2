package manager

import "github.com/rs/zerolog"

// LogPublisher writes events to a zerolog logger. Failures log at error
// level, everything else at info.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Logger.Info()
	if e.Name == EventLoadFailed {
		ev = p.Logger.Error()
	}
	ev.Str("event", e.Name).Str("category", string(e.Category)).Fields(e.Fields).Msg("manager event")
}
