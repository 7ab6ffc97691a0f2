package pipeline

import (
	"context"
	"errors"
	"fmt"

	"clinicd/internal/manager"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindModelLoad      Kind = "model_load"
	KindStageExecution Kind = "stage_execution"
	KindTimeout        Kind = "timeout"
	KindOverloaded     Kind = "overloaded"
	KindCanceled       Kind = "canceled"
)

// ValidationError rejects a request before any model is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PipelineError is the single error type returned by Process. It names the
// stage that failed; no partial result accompanies it.
type PipelineError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// AsPipelineError extracts a *PipelineError from err.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	ok := errors.As(err, &pe)
	return pe, ok
}

// KindOf returns the failure kind of err, or "" when err is not a
// pipeline error.
func KindOf(err error) Kind {
	if pe, ok := AsPipelineError(err); ok {
		return pe.Kind
	}
	return ""
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsTimeout reports whether err is a request budget timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// wrap tags err with the failing stage. ctx is the request context and
// decides between timeout and cancellation when it has ended.
func wrap(ctx context.Context, stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: classify(ctx, err), Err: err}
}

func classify(ctx context.Context, err error) Kind {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return KindCanceled
	case manager.IsLoadError(err), errors.Is(err, manager.ErrClosed):
		return KindModelLoad
	case manager.IsTooBusy(err):
		return KindOverloaded
	}
	return KindStageExecution
}
