// Package metrics holds the Prometheus collectors for model loading,
// pipeline stages, admission decisions and typed errors. Collectors are
// registered on the default registry and exposed by /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"clinicd/internal/manager"
	"clinicd/internal/pipeline"
	"clinicd/pkg/types"
)

const namespace = "clinicd"

var (
	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Model load duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"category", "device", "outcome"},
	)

	modelLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "loaded",
			Help:      "1 when the category's model is loaded",
		},
		[]string{"category"},
	)

	workerRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "worker_rejections_total",
			Help:      "Inference requests rejected because the worker queue was full or the wait expired",
		},
		[]string{"category", "phase"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Inference stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "outcome"},
	)

	rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Admission decisions by tier and outcome",
		},
		[]string{"tier", "outcome", "store"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors returned to clients by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(modelLoadDuration, modelLoaded, workerRejections, stageDuration, rateLimitDecisions, errorsTotal)
}

// ModelEvents turns manager events into metrics.
type ModelEvents struct{}

func (ModelEvents) Publish(e manager.Event) {
	cat := string(e.Category)
	switch e.Name {
	case manager.EventLoadReady, manager.EventLoadFailed:
		outcome := "ok"
		if e.Name == manager.EventLoadFailed {
			outcome = "error"
		}
		dev, _ := e.Fields["device"].(string)
		ms, _ := e.Fields["dur_ms"].(int)
		modelLoadDuration.WithLabelValues(cat, dev, outcome).Observe(float64(ms) / 1000)
		if outcome == "ok" {
			modelLoaded.WithLabelValues(cat).Set(1)
		} else {
			modelLoaded.WithLabelValues(cat).Set(0)
		}
	case manager.EventTooBusy:
		phase, _ := e.Fields["phase"].(string)
		workerRejections.WithLabelValues(cat, phase).Inc()
	}
}

// Stages records pipeline stage durations.
type Stages struct{}

func (Stages) ObserveStage(stage pipeline.Stage, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	stageDuration.WithLabelValues(string(stage), outcome).Observe(d.Seconds())
}

// ObserveAdmission counts one rate limit decision.
func ObserveAdmission(tier types.Tier, permitted, degraded bool) {
	outcome := "permitted"
	if !permitted {
		outcome = "denied"
	}
	store := "shared"
	if degraded {
		store = "local"
	}
	rateLimitDecisions.WithLabelValues(string(tier), outcome, store).Inc()
}

// ObserveError counts one error response by category.
func ObserveError(category string) {
	if category == "" {
		category = "unknown"
	}
	errorsTotal.WithLabelValues(category).Inc()
}
