package manager

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"ocrd/internal/engine"
)

// Handle owns one built recognition model for a fixed canonical language set
// and accelerator preference. Once published into the cache a Handle is
// immutable from the orchestrator's perspective; concurrency of Recognize on
// the underlying engine is the engine's own contract.
type Handle struct {
	key       Key
	languages []string
	gpu       bool
	loadedAt  time.Time
	eng       engine.Engine

	// mu guards the close transition: Recognize holds the read lock, so
	// Close waits for in-flight recognitions to drain before releasing the
	// engine. Use after close fails with a distinguishable error.
	mu       sync.RWMutex
	closed   bool
	lastUsed atomic.Int64 // unix nanos, maintained for LRU eviction
}

func newHandle(key Key, languages []string, gpu bool, eng engine.Engine) *Handle {
	h := &Handle{
		key:       key,
		languages: append([]string(nil), languages...),
		gpu:       gpu,
		loadedAt:  time.Now(),
		eng:       eng,
	}
	h.touch()
	return h
}

// Key returns the cache key this handle was built for.
func (h *Handle) Key() Key { return h.key }

// Languages returns a copy of the canonical language set.
func (h *Handle) Languages() []string { return append([]string(nil), h.languages...) }

// GPU reports the accelerator preference the model was built with.
func (h *Handle) GPU() bool { return h.gpu }

// LoadedAt returns the time the build completed.
func (h *Handle) LoadedAt() time.Time { return h.loadedAt }

func (h *Handle) touch() { h.lastUsed.Store(time.Now().UnixNano()) }

// Recognize applies the model to one image. Callers that obtained the handle
// before a Clear or eviction complete normally; afterwards the handle fails
// with a model-closed error instead of touching a released engine.
func (h *Handle) Recognize(ctx context.Context, img image.Image) ([]engine.Span, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, modelClosedError{key: h.key}
	}
	h.touch()
	spans, err := h.eng.Recognize(ctx, img)
	if err != nil {
		return nil, recognitionFailedError{cause: err}
	}
	return spans, nil
}

// close waits for in-flight recognitions and releases the engine. Idempotent.
func (h *Handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.eng.Close()
}
