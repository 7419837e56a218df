package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ocrd/internal/engine"
)

// modelCache owns the Key -> Handle mapping. Invariants: at most one handle
// per key, at most one build in flight per key. Lookups and installs run
// under a short mutex; the expensive build runs outside it, coordinated per
// key by a singleflight group so N concurrent callers trigger one build and
// share its outcome. A failed build does not poison the key: the flight
// completes and the next request retries.
type modelCache struct {
	mu      sync.RWMutex
	handles map[Key]*Handle
	group   singleflight.Group

	builder      engine.Builder
	maxModels    int
	buildTimeout time.Duration
	log          zerolog.Logger
}

func newModelCache(builder engine.Builder, maxModels int, buildTimeout time.Duration, log zerolog.Logger) *modelCache {
	return &modelCache{
		handles:      make(map[Key]*Handle),
		builder:      builder,
		maxModels:    maxModels,
		buildTimeout: buildTimeout,
		log:          log,
	}
}

// lookup returns the cached handle for key, or nil.
func (c *modelCache) lookup(key Key) *Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handles[key]
}

// getOrBuild returns the handle for key, building it exactly once if absent.
// The returned duration is the time this caller spent acquiring the model:
// zero on a cache hit, the build (or build-wait) time otherwise. All callers
// that join an in-flight build receive the same handle or the same failure.
func (c *modelCache) getOrBuild(ctx context.Context, key Key, languages []string, gpu bool) (*Handle, time.Duration, error) {
	if h := c.lookup(key); h != nil {
		cacheHitsTotal.Inc()
		h.touch()
		return h, 0, nil
	}
	cacheMissesTotal.Inc()
	start := time.Now()

	// The build must not die with the first caller: waiters that arrived
	// later still depend on it, so it runs on a cancel-free context.
	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key), func() (any, error) {
		// A flight that finished between our lookup and DoChan may already
		// have installed the handle.
		if h := c.lookup(key); h != nil {
			return h, nil
		}
		return c.build(buildCtx, key, languages, gpu)
	})

	var timeout <-chan time.Time
	if c.buildTimeout > 0 {
		t := time.NewTimer(c.buildTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, 0, res.Err
		}
		return res.Val.(*Handle), time.Since(start), nil
	case <-ctx.Done():
		// Abandon the wait only; the flight keeps running for other waiters.
		return nil, 0, ctx.Err()
	case <-timeout:
		return nil, 0, buildTimeoutError{key: key, wait: c.buildTimeout}
	}
}

func (c *modelCache) build(ctx context.Context, key Key, languages []string, gpu bool) (*Handle, error) {
	c.log.Info().Str("key", string(key)).Strs("languages", languages).Bool("gpu", gpu).Msg("loading model")
	start := time.Now()
	eng, err := c.builder(ctx, languages, gpu)
	modelBuildSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		modelBuildsTotal.WithLabelValues("error").Inc()
		c.log.Error().Str("key", string(key)).Err(err).Msg("model build failed")
		return nil, buildFailedError{key: key, cause: err}
	}
	modelBuildsTotal.WithLabelValues("ok").Inc()

	h := newHandle(key, languages, gpu, eng)
	c.mu.Lock()
	c.evictForLocked()
	c.handles[key] = h
	c.mu.Unlock()
	c.log.Info().Str("key", string(key)).Dur("dur", time.Since(start)).Msg("model loaded")
	return h, nil
}

// evictForLocked drops least-recently-used handles until the new entry fits
// the configured capacity. Caller holds the write lock. Evicted handles are
// closed off-lock; close waits for their in-flight recognitions to drain, so
// borrowers finish normally.
func (c *modelCache) evictForLocked() {
	if c.maxModels <= 0 {
		return
	}
	for len(c.handles) >= c.maxModels {
		var lru *Handle
		for _, h := range c.handles {
			if lru == nil || h.lastUsed.Load() < lru.lastUsed.Load() {
				lru = h
			}
		}
		if lru == nil {
			return
		}
		delete(c.handles, lru.key)
		evictionsTotal.Inc()
		c.log.Info().Str("key", string(lru.key)).Msg("evicting model")
		go func(h *Handle) { _ = h.close() }(lru)
	}
}

// list returns a snapshot of cached handles. It holds only the read lock, so
// it never blocks getOrBuild for other keys.
func (c *modelCache) list() []*Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Handle, 0, len(c.handles))
	for _, h := range c.handles {
		out = append(out, h)
	}
	return out
}

// clear drops every handle and reports how many were dropped. Handles are
// closed outside the lock; callers holding a reference complete their
// in-flight work, later uses fail with a model-closed error.
func (c *modelCache) clear() int {
	c.mu.Lock()
	dropped := c.handles
	c.handles = make(map[Key]*Handle)
	c.mu.Unlock()
	for _, h := range dropped {
		go func(h *Handle) { _ = h.close() }(h)
	}
	return len(dropped)
}

func (c *modelCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}
