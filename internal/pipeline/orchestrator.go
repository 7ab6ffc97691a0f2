// Package pipeline runs one analysis request through the validate, classify,
// summarize, generate and aggregate stages. Stages run strictly in order;
// any failure aborts the request with a *PipelineError and no partial result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinicd/internal/manager"
	"clinicd/internal/textclean"
	"clinicd/pkg/types"
)

// Models runs inference against loaded model handles. *manager.Manager
// implements it.
type Models interface {
	Infer(ctx context.Context, c types.Category, fn func(ctx context.Context, h manager.Handle) error) error
}

// StageObserver receives the outcome of every inference stage.
type StageObserver interface {
	ObserveStage(stage Stage, d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveStage(Stage, time.Duration, error) {}

// StageTiming is the wall time of one executed stage.
type StageTiming struct {
	Stage    Stage
	Duration time.Duration
}

// Result is the aggregated output of a successful request.
type Result struct {
	RequestID string
	Mode      Mode
	Label     string
	// Confidence and Distribution are nil in manual mode.
	Confidence     *float64
	Distribution   map[string]float64
	LowConfidence  bool
	TopPredictions []types.Prediction
	Summary        string
	SummaryTarget  int
	Recommendation string
	InputLength    int
	Timings        []StageTiming
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver reports stage durations to obs.
func WithObserver(obs StageObserver) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithIDGenerator overrides request id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// Orchestrator drives requests through the stage state machine.
type Orchestrator struct {
	models   Models
	cfg      Config
	observer StageObserver
	newID    func() string
}

// New returns an orchestrator or an error when cfg is invalid.
func New(models Models, cfg Config, opts ...Option) (*Orchestrator, error) {
	if models == nil {
		return nil, errors.New("pipeline: nil models")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	o := &Orchestrator{models: models, cfg: cfg, observer: noopObserver{}, newID: uuid.NewString}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the orchestrator configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// run is the per-request state carried between stages.
type run struct {
	req     Request
	cleaned string
	result  Result
	msgs    []manager.Message
}

type stepFunc func(o *Orchestrator, ctx context.Context, r *run) error

var steps = map[Stage]stepFunc{
	StageValidate:  (*Orchestrator).validate,
	StageClassify:  (*Orchestrator).classify,
	StageSummarize: (*Orchestrator).summarize,
	StageGenerate:  (*Orchestrator).generate,
	StageAggregate: func(*Orchestrator, context.Context, *run) error { return nil },
}

// Process runs req to completion within the configured timeout.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	if req.RequestID == "" {
		req.RequestID = o.newID()
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	log := zerolog.Ctx(ctx).With().Str("request_id", req.RequestID).Str("mode", string(req.Mode)).Logger()

	r := &run{req: req}
	start := time.Now()
	for st := StageValidate; st != StageDone; {
		stageStart := time.Now()
		err := steps[st](o, ctx, r)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		d := time.Since(stageStart)
		if st.inference() {
			o.observer.ObserveStage(st, d, err)
			if err == nil {
				r.result.Timings = append(r.result.Timings, StageTiming{Stage: st, Duration: d})
			}
		}
		if err != nil {
			pe := wrap(ctx, st, err)
			log.Warn().Str("stage", string(st)).Str("kind", string(pe.Kind)).Err(err).Msg("pipeline failed")
			return nil, pe
		}
		log.Debug().Str("stage", string(st)).Dur("dur", d).Msg("stage complete")
		t, err := Next(st, req.Mode)
		if err != nil {
			return nil, &PipelineError{Stage: st, Kind: KindStageExecution, Err: err}
		}
		st = t.To
	}
	log.Info().Dur("dur", time.Since(start)).Int("stages", len(r.result.Timings)).Msg("pipeline complete")
	res := r.result
	return &res, nil
}

func (o *Orchestrator) validate(_ context.Context, r *run) error {
	if err := r.req.Validate(o.cfg.MinChars); err != nil {
		return err
	}
	r.cleaned = textclean.Clean(r.req.Text)
	if r.cleaned == "" {
		return &ValidationError{Field: "text", Reason: "text has no content after cleaning"}
	}
	r.result.RequestID = r.req.RequestID
	r.result.Mode = r.req.Mode
	r.result.InputLength = utf8.RuneCountInString(r.req.Text)
	if r.req.Mode == ModeManual {
		r.result.Label = r.req.Label
	}
	return nil
}

func (o *Orchestrator) classify(ctx context.Context, r *run) error {
	var probs map[string]float64
	err := o.models.Infer(ctx, types.CategoryClassify, func(ctx context.Context, h manager.Handle) error {
		c, ok := h.(manager.Classifier)
		if !ok {
			return fmt.Errorf("handle %T does not classify", h)
		}
		var err error
		probs, err = c.Classify(ctx, r.cleaned)
		return err
	})
	if err != nil {
		return err
	}
	label, conf, err := argmax(probs)
	if err != nil {
		return err
	}
	r.result.Label = label
	r.result.Confidence = &conf
	r.result.Distribution = probs
	if conf < o.cfg.Classify.ConfidenceThreshold {
		r.result.LowConfidence = true
		r.result.TopPredictions = topN(probs, o.cfg.Classify.TopPredictions)
	}
	return nil
}

// argmax picks the most probable label. Ties go to the label listed first
// in types.Pathologies.
func argmax(probs map[string]float64) (string, float64, error) {
	if len(probs) == 0 {
		return "", 0, errors.New("classifier returned no probabilities")
	}
	for label, p := range probs {
		if !types.IsPathology(label) {
			return "", 0, fmt.Errorf("classifier returned unknown label %q", label)
		}
		if p < 0 || p > 1 {
			return "", 0, fmt.Errorf("probability %v for %q not in [0,1]", p, label)
		}
	}
	best, bestP := "", -1.0
	for _, label := range types.Pathologies {
		if p, ok := probs[label]; ok && p > bestP {
			best, bestP = label, p
		}
	}
	return best, bestP, nil
}

func topN(probs map[string]float64, n int) []types.Prediction {
	out := make([]types.Prediction, 0, len(probs))
	for _, label := range types.Pathologies {
		if p, ok := probs[label]; ok {
			out = append(out, types.Prediction{Pathology: label, Probability: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (o *Orchestrator) summarize(ctx context.Context, r *run) error {
	cfg := o.cfg.Summarize
	target := SummaryTarget(r.cleaned, cfg)
	params := manager.SummarizeParams{MinTokens: cfg.MinLen, MaxTokens: target, Deterministic: cfg.Deterministic}
	var summary string
	err := o.models.Infer(ctx, types.CategorySummarize, func(ctx context.Context, h manager.Handle) error {
		s, ok := h.(manager.Summarizer)
		if !ok {
			return fmt.Errorf("handle %T does not summarize", h)
		}
		var err error
		summary, err = s.Summarize(ctx, r.cleaned, params)
		return err
	})
	if err != nil {
		return err
	}
	if summary == "" {
		return errors.New("summarizer returned empty output")
	}
	r.result.Summary = summary
	r.result.SummaryTarget = target
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run) error {
	cfg := o.cfg.Generate
	r.msgs = BuildMessages(r.req.Mode, r.result.Label, r.result.Summary)
	params := manager.GenerateParams{
		MaxNewTokens:  cfg.MaxNewTokens,
		Deterministic: cfg.Deterministic,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		TopK:          cfg.TopK,
		RepeatPenalty: cfg.RepeatPenalty,
		Seed:          cfg.Seed,
	}
	var raw string
	err := o.models.Infer(ctx, types.CategoryGenerate, func(ctx context.Context, h manager.Handle) error {
		g, ok := h.(manager.Generator)
		if !ok {
			return fmt.Errorf("handle %T does not generate", h)
		}
		var err error
		raw, err = g.Generate(ctx, r.msgs, params)
		return err
	})
	if err != nil {
		return err
	}
	rec := CleanOutput(raw, r.msgs)
	if rec == "" {
		return errors.New("generator returned empty output")
	}
	r.result.Recommendation = rec
	return nil
}

// Response converts the result to its wire form.
func (r *Result) Response() types.AnalyzeResponse {
	timings := make(map[string]float64, len(r.Timings))
	for _, t := range r.Timings {
		timings[string(t.Stage)] = float64(t.Duration.Microseconds()) / 1000
	}
	return types.AnalyzeResponse{
		Classification: &types.Classification{
			Pathology:        r.Label,
			Confidence:       r.Confidence,
			AllProbabilities: r.Distribution,
		},
		Summary:        r.Summary,
		Recommendation: r.Recommendation,
		Metadata: types.Metadata{
			RequestID:            r.RequestID,
			Mode:                 string(r.Mode),
			InputLength:          r.InputLength,
			SummaryLength:        utf8.RuneCountInString(r.Summary),
			RecommendationLength: utf8.RuneCountInString(r.Recommendation),
			SummaryTargetTokens:  r.SummaryTarget,
			LowConfidence:        r.LowConfidence,
			TopPredictions:       r.TopPredictions,
			StageTimings:         timings,
		},
	}
}
