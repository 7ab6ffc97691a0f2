// Package backend builds manager loaders from per-category backend settings.
package backend

import (
	"fmt"
	"time"

	"clinicd/internal/backend/llama"
	"clinicd/internal/backend/onnx"
	"clinicd/internal/backend/openaicompat"
	"clinicd/internal/manager"
	"clinicd/pkg/types"
)

// Backend names.
const (
	ONNX   = "onnx"
	Llama  = "llama"
	OpenAI = "openai"
)

// Spec configures the backend for one category. Fields not used by the
// chosen backend are ignored.
type Spec struct {
	Backend string
	// Path is the classifier bundle dir (onnx) or GGUF file (llama).
	Path    string
	Adapter string
	// LoraBase optionally names the base weights for adapter merging.
	LoraBase string

	// onnx
	SeqLen            int
	SharedLibraryPath string

	// llama
	ContextSize int
	GPULayers   int

	Threads int

	// openai
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultBackend names the in-process backend for a category.
func DefaultBackend(c types.Category) string {
	if c == types.CategoryClassify {
		return ONNX
	}
	return Llama
}

// NewLoader returns the loader for category c described by s. An empty
// Backend selects DefaultBackend(c).
func NewLoader(c types.Category, s Spec) (manager.Loader, error) {
	name := s.Backend
	if name == "" {
		name = DefaultBackend(c)
	}
	switch {
	case c == types.CategoryClassify && name == ONNX:
		return onnx.NewLoader(onnx.Config{
			Dir:               s.Path,
			SeqLen:            s.SeqLen,
			SharedLibraryPath: s.SharedLibraryPath,
			Threads:           s.Threads,
		}), nil
	case c == types.CategorySummarize && name == Llama:
		return llama.NewSummarizerLoader(llamaConfig(s)), nil
	case c == types.CategoryGenerate && name == Llama:
		return llama.NewGeneratorLoader(llamaConfig(s)), nil
	case c == types.CategorySummarize && name == OpenAI:
		return openaicompat.NewSummarizerLoader(openaiConfig(s)), nil
	case c == types.CategoryGenerate && name == OpenAI:
		return openaicompat.NewGeneratorLoader(openaiConfig(s)), nil
	}
	if !c.Valid() {
		return nil, fmt.Errorf("unknown category %q", c)
	}
	return nil, fmt.Errorf("backend %q cannot serve category %q", name, c)
}

// NewLoaders builds loaders for every category present in specs.
func NewLoaders(specs map[types.Category]Spec) (map[types.Category]manager.Loader, error) {
	out := make(map[types.Category]manager.Loader, len(specs))
	for c, s := range specs {
		l, err := NewLoader(c, s)
		if err != nil {
			return nil, err
		}
		out[c] = l
	}
	return out, nil
}

func llamaConfig(s Spec) llama.Config {
	return llama.Config{
		ModelPath:   s.Path,
		LoraAdapter: s.Adapter,
		LoraBase:    s.LoraBase,
		ContextSize: s.ContextSize,
		Threads:     s.Threads,
		GPULayers:   s.GPULayers,
	}
}

func openaiConfig(s Spec) openaicompat.Config {
	return openaicompat.Config{BaseURL: s.BaseURL, APIKey: s.APIKey, Model: s.Model, Timeout: s.Timeout}
}
