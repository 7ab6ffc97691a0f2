package manager

import (
	"errors"
	"fmt"

	"clinicd/internal/device"
	"clinicd/pkg/types"
)

// LoadError is the cached failure of a slot. Every caller that acquires a
// failed slot receives the same *LoadError.
type LoadError struct {
	Category types.Category
	Device   device.Kind
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s model on %s: %v", e.Category, e.Device, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is (or wraps) a slot load failure.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ category types.Category }

func (e tooBusyError) Error() string { return "too busy: " + string(e.category) }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// unknownCategoryError is returned for categories outside the fixed set.
type unknownCategoryError struct{ category types.Category }

func (e unknownCategoryError) Error() string { return "unknown model category: " + string(e.category) }

// IsUnknownCategory reports whether err names an unknown category.
func IsUnknownCategory(err error) bool {
	var uc unknownCategoryError
	return errors.As(err, &uc)
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. a
// backend compiled out of this binary).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var du dependencyUnavailableError
	return errors.As(err, &du)
}

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("model manager closed")

// errNoLoader is the cause recorded for categories without a loader.
var errNoLoader = errors.New("no loader configured")
