package manager

import (
	"fmt"
	"time"
)

// invalidInputError signals a caller mistake (bad detail level, undecodable
// image) for 400 mapping.
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return e.msg }

// ErrInvalidInput constructs an invalidInputError.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// invalidLanguageListError signals an empty (or effectively empty) language
// list passed to key canonicalization.
type invalidLanguageListError struct{}

func (invalidLanguageListError) Error() string { return "language list must not be empty" }

// IsInvalidLanguageList reports whether err came from canonicalizing an
// empty language list.
func IsInvalidLanguageList(err error) bool {
	_, ok := err.(invalidLanguageListError)
	return ok
}

// IsInvalidInput reports whether err is a caller mistake (return 400). An
// invalid language list is a caller mistake too.
func IsInvalidInput(err error) bool {
	if _, ok := err.(invalidInputError); ok {
		return true
	}
	return IsInvalidLanguageList(err)
}

// buildFailedError wraps a builder failure for a specific cache key. The key
// is not poisoned: a later request is free to retry the build.
type buildFailedError struct {
	key   Key
	cause error
}

func (e buildFailedError) Error() string {
	return fmt.Sprintf("model build failed for %s: %v", e.key, e.cause)
}

func (e buildFailedError) Unwrap() error { return e.cause }

// IsModelBuildFailed reports whether err indicates a failed model build.
func IsModelBuildFailed(err error) bool {
	_, ok := err.(buildFailedError)
	return ok
}

// buildTimeoutError signals that a caller stopped waiting for a build; the
// build itself keeps running for any remaining waiters.
type buildTimeoutError struct {
	key  Key
	wait time.Duration
}

func (e buildTimeoutError) Error() string {
	return fmt.Sprintf("model build for %s did not finish within %s", e.key, e.wait)
}

// IsModelBuildTimeout reports whether err indicates a bounded build wait expired.
func IsModelBuildTimeout(err error) bool {
	_, ok := err.(buildTimeoutError)
	return ok
}

// recognitionFailedError wraps a failure during model application. The model
// handle remains valid and cached; one bad image must not invalidate it.
type recognitionFailedError struct{ cause error }

func (e recognitionFailedError) Error() string { return "recognition failed: " + e.cause.Error() }

func (e recognitionFailedError) Unwrap() error { return e.cause }

// IsRecognitionFailed reports whether err indicates a recognition failure on
// a valid, already-built model.
func IsRecognitionFailed(err error) bool {
	_, ok := err.(recognitionFailedError)
	return ok
}

// modelClosedError signals use of a handle after Clear or eviction closed it.
type modelClosedError struct{ key Key }

func (e modelClosedError) Error() string { return "model closed: " + string(e.key) }

// IsModelClosed reports whether err indicates use of a closed handle.
func IsModelClosed(err error) bool {
	_, ok := err.(modelClosedError)
	return ok
}
