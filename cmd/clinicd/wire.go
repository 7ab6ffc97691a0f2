package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clinicd/internal/auth"
	"clinicd/internal/backend"
	"clinicd/internal/config"
	"clinicd/internal/device"
	"clinicd/internal/health"
	"clinicd/internal/httpapi"
	"clinicd/internal/logging"
	"clinicd/internal/manager"
	"clinicd/internal/metrics"
	"clinicd/internal/pipeline"
	"clinicd/internal/ratelimit"
	"clinicd/internal/registry"
	"clinicd/pkg/types"
)

// app holds the wired components of one server process.
type app struct {
	log      zerolog.Logger
	models   *manager.Manager
	analyzer *pipeline.Orchestrator
	limiter  *ratelimit.Limiter
	redis    *redis.Client
	handler  http.Handler
}

func (a *app) Close() {
	if err := a.models.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing models")
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// build wires every component from cfg. ctx parents model loads and is
// canceled on shutdown.
func build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	mgr, err := buildManager(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{log: log, models: mgr}

	a.analyzer, err = pipeline.New(mgr, pipelineConfig(cfg.Pipeline), pipeline.WithObserver(metrics.Stages{}))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	opts := []httpapi.Option{httpapi.WithIdentifier(auth.NewResolver(cfg.Auth.JWTSecret, cfg.Auth.Leeway.Std()))}
	healthOpts := []health.Option{health.WithDiskPath(cfg.Models.Dir)}
	if cfg.RateLimit.Enabled {
		a.limiter, a.redis, err = buildLimiter(cfg.RateLimit)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, httpapi.WithAdmitter(a.limiter))
		healthOpts = append(healthOpts, health.WithLimiter(a.limiter))
		log.Info().Str("store", a.limiter.Backend()).Dur("window", cfg.RateLimit.Window.Std()).Msg("rate limiting enabled")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("no jwt secret configured, every caller is anonymous")
	}
	opts = append(opts, httpapi.WithHealth(health.New(mgr, healthOpts...)))

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.Server.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.Server.CORS.Enabled, cfg.Server.CORS.Origins, cfg.Server.CORS.Methods, cfg.Server.CORS.Headers)
	a.handler = httpapi.NewMux(mgr, a.analyzer, opts...)
	return a, nil
}

func buildManager(ctx context.Context, cfg config.Config, log zerolog.Logger) (*manager.Manager, error) {
	found, err := registry.LoadDir(cfg.Models.Dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("scan models: %w", err)
		}
		log.Warn().Err(err).Msg("models directory missing, relying on explicit paths")
	}
	loaders, err := backend.NewLoaders(backendSpecs(cfg.Models, found))
	if err != nil {
		return nil, err
	}
	sel, err := buildSelector(cfg.Models)
	if err != nil {
		return nil, err
	}
	required := make([]types.Category, 0, len(cfg.Models.Required))
	for _, c := range cfg.Models.Required {
		required = append(required, types.Category(c))
	}
	for _, c := range types.Categories {
		log.Info().Str("category", string(c)).Stringer("placement", sel.Resolve(c)).Msg("device placement")
	}
	return manager.New(manager.Config{
		Loaders:       loaders,
		Selector:      sel,
		Required:      required,
		MaxQueueDepth: cfg.Models.MaxQueueDepth,
		MaxInflight:   cfg.Models.MaxInflight,
		MaxWait:       cfg.Models.MaxWait.Std(),
		LoadTimeout:   cfg.Models.LoadTimeout.Std(),
		BaseContext:   ctx,
		Publisher:     manager.Publishers{manager.LogPublisher{Logger: log}, metrics.ModelEvents{}},
	}), nil
}

// backendSpecs merges explicit backend settings with artifacts discovered
// under the models root. Explicit paths win.
func backendSpecs(mc config.ModelsConfig, found map[types.Category]types.Model) map[types.Category]backend.Spec {
	byCat := map[types.Category]config.BackendConfig{
		types.CategoryClassify:  mc.Classifier,
		types.CategorySummarize: mc.Summarizer,
		types.CategoryGenerate:  mc.Generator,
	}
	specs := make(map[types.Category]backend.Spec, len(byCat))
	for c, b := range byCat {
		s := backend.Spec{
			Backend:           b.Backend,
			Path:              b.Path,
			Adapter:           b.Adapter,
			LoraBase:          b.LoraBase,
			SeqLen:            b.SeqLen,
			SharedLibraryPath: b.SharedLibraryPath,
			ContextSize:       b.ContextSize,
			GPULayers:         b.GPULayers,
			Threads:           b.Threads,
			BaseURL:           b.BaseURL,
			APIKey:            b.APIKey,
			Model:             b.Model,
			Timeout:           b.Timeout.Std(),
		}
		if m, ok := found[c]; ok && s.Backend != backend.OpenAI {
			if s.Path == "" {
				s.Path = m.Path
			}
			if s.Adapter == "" {
				s.Adapter = m.Adapter
			}
		}
		specs[c] = s
	}
	return specs
}

func buildSelector(mc config.ModelsConfig) (*device.Selector, error) {
	pins := make(map[types.Category]device.Kind, len(mc.Pins))
	for c, d := range mc.Pins {
		k, err := device.ParseKind(d)
		if err != nil {
			return nil, err
		}
		pins[types.Category(c)] = k
	}
	policy, err := device.DefaultPolicy().WithPins(pins)
	if err != nil {
		return nil, err
	}
	var opts []device.Option
	if mc.Device != "" {
		k, err := device.ParseKind(mc.Device)
		if err != nil {
			return nil, err
		}
		opts = append(opts, device.WithForce(k))
	}
	return device.NewSelector(device.HostProbe{}, policy, opts...), nil
}

func buildLimiter(rc config.RateLimitConfig) (*ratelimit.Limiter, *redis.Client, error) {
	lc := ratelimit.Config{
		Window: rc.Window.Std(),
		Limits: map[types.Tier]int{
			types.TierAnonymous:     rc.Anonymous,
			types.TierAuthenticated: rc.Authenticated,
			types.TierPremium:       rc.Premium,
		},
	}
	var (
		store  ratelimit.Store
		client *redis.Client
	)
	if rc.RedisURL != "" {
		rs, c, err := ratelimit.NewRedisStoreURL(rc.RedisURL, rc.DialTimeout.Std())
		if err != nil {
			return nil, nil, fmt.Errorf("rate limit store: %w", err)
		}
		store, client = rs, c
	}
	l, err := ratelimit.New(store, lc)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, err
	}
	return l, client, nil
}

func pipelineConfig(pc config.PipelineConfig) pipeline.Config {
	return pipeline.Config{
		MinChars: pc.MinChars,
		Timeout:  pc.Timeout.Std(),
		Classify: pipeline.ClassifyConfig{
			ConfidenceThreshold: pc.ConfidenceThreshold,
			TopPredictions:      pc.TopPredictions,
		},
		Summarize: pipeline.SummarizeConfig{
			MinLen:        pc.SummaryMinLen,
			MaxLen:        pc.SummaryMaxLen,
			Ratio:         pc.SummaryRatio,
			TokensPerWord: pc.TokensPerWord,
			Deterministic: pc.Deterministic,
		},
		Generate: pipeline.GenerateConfig{
			MaxNewTokens:  pc.MaxNewTokens,
			Deterministic: pc.Deterministic,
			Temperature:   pc.Temperature,
			TopP:          pc.TopP,
			TopK:          pc.TopK,
			RepeatPenalty: pc.RepeatPenalty,
			Seed:          pc.Seed,
		},
	}
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	return logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "clinicd"})
}

// serveHTTP runs the server until ctx is canceled, then drains in-flight
// requests for up to the shutdown timeout.
func serveHTTP(ctx context.Context, cfg config.Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	a, err := build(baseCtx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Models.Warmup {
		go func() {
			start := time.Now()
			if err := a.models.Warmup(baseCtx); err != nil {
				log.Error().Err(err).Msg("warmup failed")
				return
			}
			log.Info().Dur("dur", time.Since(start)).Msg("warmup complete")
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Std(),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("models_dir", cfg.Models.Dir).Str("device", a.models.Device()).Msg("clinicd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	cancelBase()
	if err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// sanityCheck wires the model manager and reports placement and artifact
// problems without loading anything.
func sanityCheck(ctx context.Context, cfg config.Config) (manager.SanityReport, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return manager.SanityReport{}, err
	}
	mgr, err := buildManager(ctx, cfg, log)
	if err != nil {
		return manager.SanityReport{}, err
	}
	defer mgr.Close()
	return mgr.SanityCheck(), nil
}
