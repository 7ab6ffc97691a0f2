package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"clinicd/internal/auth"
	"clinicd/internal/metrics"
	"clinicd/internal/pipeline"
	"clinicd/internal/ratelimit"
	"clinicd/pkg/types"
)

// Models is the read side of the model manager used by status endpoints.
type Models interface {
	Status() types.StatusResponse
	Ready() bool
	Device() string
}

// Analyzer runs one analysis request end to end.
type Analyzer interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Identifier resolves the caller of a request.
type Identifier interface {
	Resolve(r *http.Request) (auth.Identity, error)
}

// Admitter decides whether a caller may start another analysis.
type Admitter interface {
	Allow(ctx context.Context, identity string, tier types.Tier) ratelimit.Decision
}

// HealthReporter produces the detailed health document.
type HealthReporter interface {
	Detailed(ctx context.Context) types.DetailedHealthResponse
}

// Option configures NewMux.
type Option func(*server)

// WithIdentifier installs the caller resolver. Without one every caller is
// anonymous and keyed by client address.
func WithIdentifier(i Identifier) Option { return func(s *server) { s.ident = i } }

// WithAdmitter installs the rate limiter. Without one every request is admitted.
func WithAdmitter(a Admitter) Option { return func(s *server) { s.admit = a } }

// WithHealth installs the detailed health reporter.
func WithHealth(h HealthReporter) Option { return func(s *server) { s.health = h } }

type server struct {
	models   Models
	analyzer Analyzer
	ident    Identifier
	admit    Admitter
	health   HealthReporter
}

type anonymous struct{}

func (anonymous) Resolve(r *http.Request) (auth.Identity, error) {
	return auth.Identity{Subject: auth.ClientIP(r), Tier: types.TierAnonymous, Anonymous: true}, nil
}

// NewMux builds the HTTP handler for the service.
func NewMux(models Models, analyzer Analyzer, opts ...Option) http.Handler {
	s := &server{models: models, analyzer: analyzer, ident: anonymous{}}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handleRoot)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/get_status", s.handleDeviceStatus)
		r.Get("/health", s.handleHealth)
		r.Get("/health/detailed", s.handleHealthDetailed)
		r.Get("/health/ready", s.handleReady)
		r.Get("/health/live", s.handleLive)
	})

	r.Get("/status", s.handleStatus)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.models.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleRoot godoc
// @Summary      Service banner
// @Tags         meta
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       / [get]
func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": serviceName,
		"status":  "running",
		"docs":    "/swagger/index.html",
	})
}

// handleAnalyze godoc
// @Summary      Analyze clinical text
// @Description  Classifies (or accepts a caller label), summarizes and generates a recommendation.
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        request  body      types.AnalyzeRequest  true  "Analysis request"
// @Success      200      {object}  types.AnalyzeResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      401      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/analyze [post]
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, CategoryUnsupported, "Content-Type must be application/json")
		return
	}

	id, err := s.ident.Resolve(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := auth.WithIdentity(r.Context(), id)
	l := zerolog.Ctx(ctx).With().Str("tier", string(id.Tier)).Bool("anonymous", id.Anonymous).Logger()
	ctx = l.WithContext(ctx)
	r = r.WithContext(ctx)

	if s.admit != nil {
		d := s.admit.Allow(ctx, id.Subject, id.Tier)
		metrics.ObserveAdmission(id.Tier, d.Permitted, d.Degraded)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Permitted {
			writeRateLimited(w, r, d)
			return
		}
	}

	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body types.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, CategoryValidation, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, CategoryValidation, "invalid JSON body")
		return
	}

	req, err := pipeline.FromAPI(body, middleware.GetReqID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Join server base context with request context so shutdown cancels work too.
	joined, cancel := joinContexts(serverBaseCtx, ctx)
	defer cancel()
	res, err := s.analyzer.Process(joined, req)
	if err != nil {
		if serverBaseCtx.Err() != nil && r.Context().Err() == nil {
			writeJSONError(w, http.StatusServiceUnavailable, CategoryInternal, "server shutting down")
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Response())
}

// handleDeviceStatus godoc
// @Summary      Preferred execution device
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.DeviceStatusResponse
// @Router       /api/v1/get_status [get]
func (s *server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.DeviceStatusResponse{Status: "ok", Device: s.models.Device()})
}

// handleStatus godoc
// @Summary      Model slot status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.models.Status())
}

// handleHealth godoc
// @Summary      Basic health
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /api/v1/health [get]
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := s.models.Ready()
	status := "healthy"
	if !ready {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:       status,
		Service:      serviceName,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ModelsLoaded: &ready,
	})
}

// handleHealthDetailed godoc
// @Summary      Detailed health
// @Description  Per-category model state plus a host snapshot. Returns 503 when unhealthy.
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.DetailedHealthResponse
// @Failure      503  {object}  types.DetailedHealthResponse
// @Router       /api/v1/health/detailed [get]
func (s *server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSONError(w, http.StatusNotImplemented, CategoryInternal, "detailed health not configured")
		return
	}
	resp := s.health.Detailed(r.Context())
	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleReady godoc
// @Summary      Readiness
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Failure      503  {object}  types.HealthResponse
// @Router       /api/v1/health/ready [get]
func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := s.models.Ready()
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, types.HealthResponse{Status: "unhealthy", ModelsLoaded: &ready})
		return
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "healthy", ModelsLoaded: &ready})
}

// handleLive godoc
// @Summary      Liveness
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /api/v1/health/live [get]
func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "healthy"})
}
