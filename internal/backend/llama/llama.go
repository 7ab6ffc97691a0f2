//go:build llama

package llama

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"clinicd/internal/device"
	"clinicd/internal/manager"
)

// Load loads the GGUF weights, merging the LoRA adapter when configured.
func (l *Loader) Load(ctx context.Context, p device.Placement) (manager.Handle, error) {
	if err := l.Check(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := []llama.ModelOption{
		llama.SetContext(l.cfg.ContextSize),
		llama.SetGPULayers(gpuLayers(p, l.cfg.GPULayers)),
	}
	if p.Optimized {
		opts = append(opts, llama.EnableF16Memory)
	}
	if l.cfg.LoraAdapter != "" {
		opts = append(opts, llama.SetLoraAdapter(l.cfg.LoraAdapter))
		if l.cfg.LoraBase != "" {
			opts = append(opts, llama.SetLoraBase(l.cfg.LoraBase))
		}
	}
	llm, err := llama.New(l.cfg.ModelPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("llama load %s: %w", l.cfg.ModelPath, err)
	}
	m := &model{llm: llm, threads: l.cfg.Threads}
	if l.role == roleSummarize {
		return &Summarizer{m}, nil
	}
	return &Generator{m}, nil
}

// model serializes access to one llama context.
type model struct {
	mu      sync.Mutex
	llm     *llama.LLama
	threads int
	closed  bool
}

func (m *model) predict(ctx context.Context, prompt string, opts ...llama.PredictOption) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", errors.New("llama model closed")
	}
	m.llm.SetTokenCallback(func(string) bool { return ctx.Err() == nil })
	defer m.llm.SetTokenCallback(nil)
	out, err := m.llm.Predict(prompt, append([]llama.PredictOption{llama.SetThreads(m.threads)}, opts...)...)
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.llm.Free()
	return nil
}

// Summarizer implements manager.Summarizer.
type Summarizer struct{ *model }

// Summarize decodes at most params.MaxTokens tokens. llama.cpp has no
// minimum-length control, so MinTokens is not enforced here.
func (s *Summarizer) Summarize(ctx context.Context, text string, params manager.SummarizeParams) (string, error) {
	opts := []llama.PredictOption{llama.SetTokens(params.MaxTokens), llama.SetStopWords(eotID)}
	if params.Deterministic {
		opts = append(opts, llama.SetTemperature(0), llama.SetTopK(1))
	}
	out, err := s.predict(ctx, summarizePrompt(text), opts...)
	return strings.TrimSpace(out), err
}

// Generator implements manager.Generator.
type Generator struct{ *model }

func (g *Generator) Generate(ctx context.Context, msgs []manager.Message, params manager.GenerateParams) (string, error) {
	stop := append([]string{eotID}, params.Stop...)
	opts := []llama.PredictOption{
		llama.SetTokens(params.MaxNewTokens),
		llama.SetStopWords(stop...),
	}
	if params.RepeatPenalty > 0 {
		opts = append(opts, llama.SetPenalty(params.RepeatPenalty))
	}
	if params.Seed != 0 {
		opts = append(opts, llama.SetSeed(params.Seed))
	}
	if params.Deterministic {
		opts = append(opts, llama.SetTemperature(0), llama.SetTopK(1))
	} else {
		if params.Temperature > 0 {
			opts = append(opts, llama.SetTemperature(params.Temperature))
		}
		if params.TopP > 0 {
			opts = append(opts, llama.SetTopP(params.TopP))
		}
		if params.TopK > 0 {
			opts = append(opts, llama.SetTopK(params.TopK))
		}
	}
	out, err := g.predict(ctx, RenderLlama3(msgs), opts...)
	return strings.TrimSpace(out), err
}
