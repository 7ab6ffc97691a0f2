package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"clinicd/internal/auth"
	"clinicd/internal/manager"
	"clinicd/internal/metrics"
	"clinicd/internal/pipeline"
	"clinicd/internal/ratelimit"
	"clinicd/pkg/types"
)

// Error categories reported in ErrorResponse.Category.
const (
	CategoryValidation     = "validation_error"
	CategoryUnsupported    = "unsupported_media_type"
	CategoryUnauthorized   = "unauthorized"
	CategoryRateLimited    = "rate_limited"
	CategoryOverloaded     = "overloaded"
	CategoryModelLoad      = "model_load_error"
	CategoryStageExecution = "stage_execution_error"
	CategoryTimeout        = "timeout"
	CategoryCanceled       = "canceled"
	CategoryInternal       = "internal_error"
)

// StatusClientClosedRequest is the non-standard code recorded when the
// caller went away before the pipeline finished.
const StatusClientClosedRequest = 499

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// mapError turns any handler error into the status, category and stage
// reported to the client. It is the only place that decides HTTP codes.
func mapError(err error) types.ErrorResponse {
	resp := types.ErrorResponse{Error: err.Error(), Category: CategoryInternal, Code: http.StatusInternalServerError}

	var ve *pipeline.ValidationError
	var he HTTPError
	if pe, ok := pipeline.AsPipelineError(err); ok {
		resp.Stage = string(pe.Stage)
		resp.Error = pe.Err.Error()
		switch pe.Kind {
		case pipeline.KindValidation:
			resp.Category, resp.Code = CategoryValidation, http.StatusBadRequest
		case pipeline.KindModelLoad:
			resp.Category, resp.Code = CategoryModelLoad, http.StatusServiceUnavailable
			resp.Error = string(pe.Stage) + " model unavailable"
		case pipeline.KindOverloaded:
			resp.Category, resp.Code = CategoryOverloaded, http.StatusTooManyRequests
		case pipeline.KindTimeout:
			resp.Category, resp.Code = CategoryTimeout, http.StatusGatewayTimeout
			resp.Error = "analysis exceeded its time budget"
		case pipeline.KindCanceled:
			resp.Category, resp.Code = CategoryCanceled, StatusClientClosedRequest
		default:
			resp.Category, resp.Code = CategoryStageExecution, http.StatusInternalServerError
			resp.Error = string(pe.Stage) + " stage failed"
		}
		return resp
	}
	switch {
	case errors.As(err, &ve):
		resp.Category, resp.Code = CategoryValidation, http.StatusBadRequest
	case auth.IsUnauthorized(err):
		resp.Category, resp.Code = CategoryUnauthorized, http.StatusUnauthorized
	case manager.IsTooBusy(err):
		resp.Category, resp.Code = CategoryOverloaded, http.StatusTooManyRequests
	case manager.IsLoadError(err), errors.Is(err, manager.ErrClosed):
		resp.Category, resp.Code = CategoryModelLoad, http.StatusServiceUnavailable
	case errors.As(err, &he):
		resp.Code = he.StatusCode()
		if resp.Code < 500 {
			resp.Category = CategoryValidation
		}
	}
	return resp
}

// writeError maps err, records it, and writes the JSON body. Nothing is
// written when the client has already gone away.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := mapError(err)
	metrics.ObserveError(resp.Category)
	l := zerolog.Ctx(r.Context())
	ev := l.Warn()
	if resp.Code >= 500 {
		ev = l.Error()
	}
	ev.Err(err).Str("category", resp.Category).Str("stage", resp.Stage).Int("code", resp.Code).Msg("request failed")

	if resp.Category == CategoryCanceled && r.Context().Err() != nil {
		return
	}
	if resp.Code == http.StatusTooManyRequests {
		IncrementBackpressure(resp.Category)
	}
	writeJSON(w, resp.Code, resp)
}

// writeRateLimited rejects a request denied by the admission controller.
func writeRateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	secs := retryAfterSeconds(d.RetryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	metrics.ObserveError(CategoryRateLimited)
	IncrementBackpressure(CategoryRateLimited)
	zerolog.Ctx(r.Context()).Info().Int("limit", d.Limit).Int("retry_after", secs).Bool("degraded", d.Degraded).Msg("rate limited")
	writeJSON(w, http.StatusTooManyRequests, types.ErrorResponse{
		Error:      "rate limit exceeded, retry after " + strconv.Itoa(secs) + "s",
		Category:   CategoryRateLimited,
		Code:       http.StatusTooManyRequests,
		RetryAfter: secs,
	})
}

// retryAfterSeconds rounds up and never reports less than one second.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, category, msg string) {
	metrics.ObserveError(category)
	writeJSON(w, status, types.ErrorResponse{Error: msg, Category: category, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
