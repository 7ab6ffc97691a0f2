package manager

import (
	"context"

	"clinicd/internal/device"
)

// Handle is a loaded model. Handles are shared by concurrent requests;
// implementations that are not safe for concurrent use serialize internally.
type Handle interface {
	// Close releases any resources associated with the model.
	Close() error
}

// Classifier scores text against the closed label set.
type Classifier interface {
	Handle
	// Classify returns a probability per label.
	Classify(ctx context.Context, text string) (map[string]float64, error)
}

// Summarizer condenses text.
type Summarizer interface {
	Handle
	Summarize(ctx context.Context, text string, params SummarizeParams) (string, error)
}

// Generator produces a completion for a chat conversation.
type Generator interface {
	Handle
	Generate(ctx context.Context, msgs []Message, params GenerateParams) (string, error)
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// SummarizeParams bounds the summary length in tokens.
type SummarizeParams struct {
	MinTokens     int
	MaxTokens     int
	Deterministic bool
}

// GenerateParams captures decoding parameters passed to the generator.
// Deterministic overrides the sampling fields with greedy decoding.
type GenerateParams struct {
	MaxNewTokens  int
	Deterministic bool
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	Seed          int
	Stop          []string
}

// Loader produces the handle for one category. Load is called at most once
// per slot.
type Loader interface {
	Load(ctx context.Context, placement device.Placement) (Handle, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, placement device.Placement) (Handle, error)

func (f LoaderFunc) Load(ctx context.Context, p device.Placement) (Handle, error) { return f(ctx, p) }

// Describer is implemented by loaders that can name their backend.
type Describer interface {
	Describe() string
}

// Checker is implemented by loaders that can verify their artifacts without
// loading them.
type Checker interface {
	Check() error
}
