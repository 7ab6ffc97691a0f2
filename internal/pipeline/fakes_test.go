package pipeline

import (
	"context"
	"sync"

	"clinicd/internal/manager"
	"clinicd/pkg/types"
)

type fakeClassifier struct{ probs map[string]float64 }

func (f *fakeClassifier) Close() error { return nil }
func (f *fakeClassifier) Classify(context.Context, string) (map[string]float64, error) {
	out := make(map[string]float64, len(f.probs))
	for k, v := range f.probs {
		out[k] = v
	}
	return out, nil
}

type fakeSummarizer struct {
	out        string
	lastParams manager.SummarizeParams
}

func (f *fakeSummarizer) Close() error { return nil }
func (f *fakeSummarizer) Summarize(_ context.Context, _ string, p manager.SummarizeParams) (string, error) {
	f.lastParams = p
	return f.out, nil
}

type fakeGenerator struct {
	out      string
	block    bool
	lastMsgs []manager.Message
}

func (f *fakeGenerator) Close() error { return nil }
func (f *fakeGenerator) Generate(ctx context.Context, msgs []manager.Message, _ manager.GenerateParams) (string, error) {
	f.lastMsgs = msgs
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, nil
}

// fakeModels implements Models over in-memory handles and counts calls.
type fakeModels struct {
	mu      sync.Mutex
	handles map[types.Category]manager.Handle
	errs    map[types.Category]error
	calls   map[types.Category]int
}

func newFakeModels() *fakeModels {
	return &fakeModels{
		handles: map[types.Category]manager.Handle{
			types.CategoryClassify: &fakeClassifier{probs: map[string]float64{
				types.PathologyBPD:           0.05,
				types.PathologyBipolar:       0.03,
				types.PathologyDepression:    0.85,
				types.PathologyAnxiety:       0.05,
				types.PathologySchizophrenia: 0.02,
			}},
			types.CategorySummarize: &fakeSummarizer{out: "Six weeks of low mood and early waking."},
			types.CategoryGenerate:  &fakeGenerator{out: "Recommendation: 1. Psychotherapy\n2. Sleep hygiene"},
		},
		errs:  map[types.Category]error{},
		calls: map[types.Category]int{},
	}
}

func (f *fakeModels) Infer(ctx context.Context, c types.Category, fn func(context.Context, manager.Handle) error) error {
	f.mu.Lock()
	f.calls[c]++
	err := f.errs[c]
	h := f.handles[c]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx, h)
}

func (f *fakeModels) count(c types.Category) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[c]
}

func (f *fakeModels) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.calls {
		n += v
	}
	return n
}
