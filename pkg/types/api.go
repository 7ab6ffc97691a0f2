package types

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	// Free-text clinical observations (at least 50 characters after trimming).
	// example: Patient reports persistent low mood for six weeks, loss of interest in hobbies and early waking.
	Text string `json:"text" example:"Patient reports persistent low mood for six weeks, loss of interest in hobbies and early waking."`
	// Run the classifier. Defaults to true when omitted.
	// example: true
	AutoClassify *bool `json:"auto_classify,omitempty" example:"true"`
	// Label supplied by the caller. Required when auto_classify is false.
	// example: Depression
	Pathology *string `json:"pathology,omitempty" example:"Depression"`
}

// Classification carries the classifier outcome, or the caller's label in manual mode.
type Classification struct {
	// example: Depression
	Pathology string `json:"pathology" example:"Depression"`
	// Top-class probability; null in manual mode.
	// example: 0.87
	Confidence *float64 `json:"confidence" example:"0.87"`
	// Probability per label; omitted in manual mode.
	AllProbabilities map[string]float64 `json:"all_probabilities,omitempty"`
}

// Prediction is one label/probability pair.
type Prediction struct {
	// example: Anxiety
	Pathology string `json:"pathology" example:"Anxiety"`
	// example: 0.31
	Probability float64 `json:"probability" example:"0.31"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	// example: 3f2c1a8e-6f0b-4d8e-9a57-0c6f0f7f3b1d
	RequestID string `json:"request_id" example:"3f2c1a8e-6f0b-4d8e-9a57-0c6f0f7f3b1d"`
	// auto or manual.
	// example: auto
	Mode string `json:"mode" example:"auto"`
	// Input length in characters.
	// example: 412
	InputLength int `json:"input_length" example:"412"`
	// example: 188
	SummaryLength int `json:"summary_length" example:"188"`
	// example: 1460
	RecommendationLength int `json:"recommendation_length" example:"1460"`
	// Token budget the summarizer was given.
	// example: 128
	SummaryTargetTokens int `json:"summary_target_tokens" example:"128"`
	// True when the top probability is under the confidence threshold.
	// example: false
	LowConfidence bool `json:"low_confidence" example:"false"`
	// Top predictions, present only when confidence is low.
	TopPredictions []Prediction `json:"top_predictions,omitempty"`
	// Wall time per executed stage in milliseconds.
	StageTimings map[string]float64 `json:"stage_timings"`
}

// AnalyzeResponse is returned by POST /api/v1/analyze.
type AnalyzeResponse struct {
	Classification *Classification `json:"classification"`
	// example: Six weeks of low mood with anhedonia and early waking.
	Summary string `json:"summary" example:"Six weeks of low mood with anhedonia and early waking."`
	// example: 1. Recommended psychotherapy approaches: ...
	Recommendation string   `json:"recommendation" example:"1. Recommended psychotherapy approaches: ..."`
	Metadata       Metadata `json:"metadata"`
}

// ErrorResponse is the single error body used by every endpoint.
type ErrorResponse struct {
	// Error message.
	// example: text must be at least 50 characters
	Error string `json:"error" example:"text must be at least 50 characters"`
	// Error category: validation_error, unauthorized, rate_limited, overloaded,
	// model_load_error, stage_execution_error, timeout, internal_error.
	// example: validation_error
	Category string `json:"category" example:"validation_error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Pipeline stage that failed, when applicable.
	// example: summarize
	Stage string `json:"stage,omitempty" example:"summarize"`
	// Seconds until the caller may retry (rate limiting only).
	// example: 42
	RetryAfter int `json:"retry_after_seconds,omitempty" example:"42"`
}

// DeviceStatusResponse is returned by GET /api/v1/get_status.
type DeviceStatusResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
	// Globally preferred execution device.
	// example: cuda
	Device string `json:"device" example:"cuda"`
}

// SlotStatus summarizes one model slot for /status.
type SlotStatus struct {
	// example: generate
	Category string `json:"category" example:"generate"`
	// unloaded, loading, loaded or failed.
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Device the slot is placed on.
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// True when the optimized execution path is used.
	// example: true
	Optimized bool `json:"optimized" example:"true"`
	// Backend implementation name.
	// example: llama
	Backend string `json:"backend,omitempty" example:"llama"`
	// Number of load attempts (0 or 1).
	// example: 1
	Attempts int `json:"attempts" example:"1"`
	// Load duration in seconds.
	// example: 12.4
	LoadSeconds float64 `json:"load_seconds" example:"12.4"`
	// example: 1700000000
	LoadedAtUnix int64 `json:"loaded_at_unix,omitempty" example:"1700000000"`
	// Cached load failure, if any.
	Error string `json:"error,omitempty"`
	// Requests waiting for an inference worker.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Requests currently running inference.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// True when every required slot is loaded.
	// example: true
	Ready bool         `json:"ready" example:"true"`
	Slots []SlotStatus `json:"slots"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// HealthResponse is the body of the basic health endpoints.
type HealthResponse struct {
	// healthy, degraded or unhealthy.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// example: clinicd
	Service string `json:"service,omitempty" example:"clinicd"`
	// example: 2024-01-01T00:00:00Z
	Timestamp string `json:"timestamp,omitempty" example:"2024-01-01T00:00:00Z"`
	// example: true
	ModelsLoaded *bool `json:"models_loaded,omitempty" example:"true"`
}

// CheckResult is one named component check.
type CheckResult struct {
	// healthy, warning or unhealthy.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Check-specific details.
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DetailedHealthResponse is returned by GET /api/v1/health/detailed.
type DetailedHealthResponse struct {
	// healthy, degraded or unhealthy.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// example: 2024-01-01T00:00:00Z
	Timestamp string                 `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Checks    map[string]CheckResult `json:"checks"`
}
