package engine

import (
	"context"
	"image"
)

// Span is one recognized text span.
type Span struct {
	// Box holds four (x, y) corner points in the order produced by the
	// engine. Callers must not reorder them.
	Box [4][2]int
	// Text is the recognized content; not guaranteed to be ASCII.
	Text string
	// Confidence is in [0, 1].
	Confidence float64
}

// Engine applies an already-built recognition model to one image.
// Implementations state their own concurrency contract; unless documented
// otherwise, Recognize may be invoked concurrently on one Engine.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Span, error)
	Close() error
}

// Builder constructs an Engine for a fixed language set and accelerator
// preference. Building is expensive (seconds); callers are expected to cache
// the result and reuse it across requests.
type Builder func(ctx context.Context, languages []string, gpu bool) (Engine, error)

// TesseractBuilt reports whether the in-process tesseract engine was
// compiled in (build tag 'tesseract').
func TesseractBuilt() bool { return tesseractBuilt }
