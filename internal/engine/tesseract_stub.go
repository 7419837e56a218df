//go:build !tesseract

package engine

// This file provides a no-CGO stub for the tesseract engine. It is compiled
// when the 'tesseract' build tag is NOT set, keeping default builds and CI
// CGO-free. The real engine lives in tesseract.go (tagged 'tesseract').

import (
	"context"
	"errors"
)

// tesseractBuilt indicates this binary was compiled with the in-process engine.
var tesseractBuilt = false

// ErrTesseractNotBuilt is returned by the stub builder so callers can report
// the missing runtime instead of mocking recognition.
var ErrTesseractNotBuilt = errors.New("tesseract support not built (missing 'tesseract' build tag)")

// NewTesseractBuilder returns a Builder that fails fast: the tesseract
// runtime is not available in this build.
func NewTesseractBuilder() Builder {
	return func(ctx context.Context, languages []string, gpu bool) (Engine, error) {
		return nil, ErrTesseractNotBuilt
	}
}
