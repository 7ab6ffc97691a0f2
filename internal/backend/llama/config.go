// Package llama runs GGUF summarizer and generator models in-process with
// go-llama.cpp. The real runtime is compiled with -tags=llama; without the
// tag loaders report a dependency-unavailable error.
package llama

import (
	"errors"
	"fmt"
	"os"

	"clinicd/internal/device"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultContextSize = 4096
	defaultThreads     = 4
	defaultGPULayers   = 32
	// allLayers offloads every layer on the optimized path.
	allLayers = 9999
)

// Config describes one GGUF model.
type Config struct {
	ModelPath string
	// LoraAdapter is merged into the base weights at load time.
	LoraAdapter string
	// LoraBase optionally names higher-precision base weights for the merge.
	LoraBase    string
	ContextSize int
	Threads     int
	// GPULayers is used on accelerators off the optimized path.
	GPULayers int
}

type role int

const (
	roleSummarize role = iota
	roleGenerate
)

// Loader loads a llama model as a summarizer or generator.
type Loader struct {
	cfg  Config
	role role
}

func withDefaults(cfg Config) Config {
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = defaultContextSize
	}
	if cfg.Threads <= 0 {
		cfg.Threads = defaultThreads
	}
	if cfg.GPULayers <= 0 {
		cfg.GPULayers = defaultGPULayers
	}
	return cfg
}

// NewSummarizerLoader returns a loader producing a manager.Summarizer.
func NewSummarizerLoader(cfg Config) *Loader {
	return &Loader{cfg: withDefaults(cfg), role: roleSummarize}
}

// NewGeneratorLoader returns a loader producing a manager.Generator.
func NewGeneratorLoader(cfg Config) *Loader {
	return &Loader{cfg: withDefaults(cfg), role: roleGenerate}
}

func (l *Loader) Describe() string { return "llama" }

// Check verifies that the model and adapter files exist.
func (l *Loader) Check() error {
	if l.cfg.ModelPath == "" {
		return errors.New("model path is empty")
	}
	for _, p := range []string{l.cfg.ModelPath, l.cfg.LoraAdapter, l.cfg.LoraBase} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("llama artifact: %w", err)
		}
	}
	return nil
}

// gpuLayers maps a placement to the number of offloaded layers.
func gpuLayers(p device.Placement, configured int) int {
	switch {
	case p.Kind == device.CPU:
		return 0
	case p.Optimized:
		return allLayers
	default:
		return configured
	}
}
