package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"clinicd/internal/auth"
	"clinicd/internal/device"
	"clinicd/internal/httpapi"
	"clinicd/internal/manager"
	"clinicd/internal/metrics"
	"clinicd/internal/pipeline"
	"clinicd/internal/ratelimit"
	"clinicd/pkg/types"
)

const (
	clinicalText = "Patient reports persistent low mood for six weeks, loss of interest in hobbies, early waking and poor appetite."
	jwtSecret    = "e2e-secret"
)

type classifier struct{}

func (classifier) Close() error { return nil }
func (classifier) Classify(context.Context, string) (map[string]float64, error) {
	return map[string]float64{
		types.PathologyBPD:           0.04,
		types.PathologyBipolar:       0.03,
		types.PathologyDepression:    0.82,
		types.PathologyAnxiety:       0.08,
		types.PathologySchizophrenia: 0.03,
	}, nil
}

type summarizer struct{}

func (summarizer) Close() error { return nil }
func (summarizer) Summarize(context.Context, string, manager.SummarizeParams) (string, error) {
	return "Six weeks of low mood, anhedonia and early waking.", nil
}

// generator blocks on gate when set, signalling started first.
type generator struct {
	started chan struct{}
	gate    chan struct{}
}

func (g *generator) Close() error { return nil }
func (g *generator) Generate(ctx context.Context, msgs []manager.Message, _ manager.GenerateParams) (string, error) {
	if g.gate != nil {
		select {
		case g.started <- struct{}{}:
		default:
		}
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "Recommendation: 1. Cognitive behavioural therapy\n2. Sleep hygiene", nil
}

// stack is one fully wired service over fake model handles.
type stack struct {
	srv     *httptest.Server
	mgr     *manager.Manager
	redis   *miniredis.Miniredis
	limiter *ratelimit.Limiter
	gen     *generator
	loads   map[types.Category]*atomic.Int32
	events  *manager.MemoryPublisher
}

type options struct {
	limits      map[types.Tier]int
	pipeline    func(*pipeline.Config)
	manager     func(*manager.Config)
	failLoad    types.Category
	blockingGen bool
}

func newStack(t *testing.T, o options) *stack {
	t.Helper()
	s := &stack{
		gen:    &generator{},
		loads:  map[types.Category]*atomic.Int32{},
		events: manager.NewMemoryPublisher(),
	}
	if o.blockingGen {
		s.gen.started = make(chan struct{}, 1)
		s.gen.gate = make(chan struct{})
	}
	handles := map[types.Category]manager.Handle{
		types.CategoryClassify:  classifier{},
		types.CategorySummarize: summarizer{},
		types.CategoryGenerate:  s.gen,
	}
	loaders := map[types.Category]manager.Loader{}
	for _, c := range types.Categories {
		n := &atomic.Int32{}
		s.loads[c] = n
		loaders[c] = manager.LoaderFunc(func(ctx context.Context, _ device.Placement) (manager.Handle, error) {
			n.Add(1)
			if c == o.failLoad {
				return nil, errLoad
			}
			return handles[c], nil
		})
	}

	mcfg := manager.Config{
		Loaders:   loaders,
		Selector:  device.NewSelector(device.StaticProbe{}, device.DefaultPolicy()),
		MaxWait:   2 * time.Second,
		Publisher: manager.Publishers{s.events, metrics.ModelEvents{}},
	}
	if o.manager != nil {
		o.manager(&mcfg)
	}
	s.mgr = manager.New(mcfg)
	t.Cleanup(func() { _ = s.mgr.Close() })

	pcfg := pipeline.DefaultConfig()
	pcfg.Timeout = 5 * time.Second
	if o.pipeline != nil {
		o.pipeline(&pcfg)
	}
	orch, err := pipeline.New(s.mgr, pcfg, pipeline.WithObserver(metrics.Stages{}))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	s.redis = miniredis.RunT(t)
	store, client, err := ratelimit.NewRedisStoreURL("redis://"+s.redis.Addr(), time.Second)
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	rl := ratelimit.DefaultConfig()
	for tier, n := range o.limits {
		rl.Limits[tier] = n
	}
	s.limiter, err = ratelimit.New(store, rl)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}

	mux := httpapi.NewMux(s.mgr, orch,
		httpapi.WithIdentifier(auth.NewResolver(jwtSecret, 0)),
		httpapi.WithAdmitter(s.limiter),
	)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

type loadErr struct{}

func (loadErr) Error() string { return "weights file is corrupt" }

var errLoad = loadErr{}

func (s *stack) analyze(t *testing.T, body map[string]any, token string) (*http.Response, []byte) {
	t.Helper()
	b, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/v1/analyze", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, b)
	}
	return v
}

// parallel runs fn n times concurrently and waits for all of them.
func parallel(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(i)
		}()
	}
	wg.Wait()
}
