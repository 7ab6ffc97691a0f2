// Package openaicompat serves the summarize and generate categories from an
// OpenAI-compatible HTTP endpoint (vLLM, llama.cpp server, OpenAI).
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clinicd/internal/device"
	"clinicd/internal/manager"
)

const defaultTimeout = 120 * time.Second

// Config points at one model on a remote endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type role int

const (
	roleSummarize role = iota
	roleGenerate
)

// Loader connects to the endpoint and verifies the model is served.
type Loader struct {
	cfg  Config
	role role
}

func NewSummarizerLoader(cfg Config) *Loader { return &Loader{cfg: cfg, role: roleSummarize} }

func NewGeneratorLoader(cfg Config) *Loader { return &Loader{cfg: cfg, role: roleGenerate} }

func (l *Loader) Describe() string { return "openai" }

func (l *Loader) Check() error {
	if l.cfg.Model == "" {
		return errors.New("openai model name is empty")
	}
	if l.cfg.BaseURL == "" {
		return errors.New("openai base url is empty")
	}
	return nil
}

// Load lists the endpoint's models. Device placement does not apply to
// remote models and is ignored.
func (l *Loader) Load(ctx context.Context, _ device.Placement) (manager.Handle, error) {
	if err := l.Check(); err != nil {
		return nil, err
	}
	oc := openai.DefaultConfig(l.cfg.APIKey)
	oc.BaseURL = strings.TrimRight(l.cfg.BaseURL, "/")
	timeout := l.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	client := openai.NewClientWithConfig(oc)

	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	found := false
	for _, m := range list.Models {
		if m.ID == l.cfg.Model {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("model %q not served by %s", l.cfg.Model, oc.BaseURL)
	}
	c := &conn{client: client, model: l.cfg.Model}
	if l.role == roleSummarize {
		return &Summarizer{c}, nil
	}
	return &Generator{c}, nil
}

type conn struct {
	client *openai.Client
	model  string
}

func (c *conn) Close() error { return nil }

// greedy is the smallest temperature the client will send; a zero value is
// dropped from the request body by omitempty.
const greedy = math.SmallestNonzeroFloat32

// Summarizer implements manager.Summarizer over the completions endpoint.
type Summarizer struct{ *conn }

func (s *Summarizer) Summarize(ctx context.Context, text string, params manager.SummarizeParams) (string, error) {
	req := openai.CompletionRequest{
		Model:     s.model,
		Prompt:    "summarize: " + text,
		MaxTokens: params.MaxTokens,
	}
	if params.Deterministic {
		req.Temperature = greedy
	}
	resp, err := s.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

// Generator implements manager.Generator over the chat completions endpoint.
type Generator struct{ *conn }

func (g *Generator) Generate(ctx context.Context, msgs []manager.Message, params manager.GenerateParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(msgs)),
		MaxTokens: params.MaxNewTokens,
		Stop:      params.Stop,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if params.Seed != 0 {
		seed := params.Seed
		req.Seed = &seed
	}
	if params.Deterministic {
		req.Temperature = greedy
	} else {
		req.Temperature = params.Temperature
		req.TopP = params.TopP
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
