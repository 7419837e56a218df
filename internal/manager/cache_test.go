package manager

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
)

// stubEngine is a controllable engine for cache and orchestrator tests.
type stubEngine struct {
	spans   []engine.Span
	err     error
	block   chan struct{} // when non-nil, Recognize waits for it
	closed  atomic.Bool
	recogns atomic.Int64
}

func (e *stubEngine) Recognize(ctx context.Context, img image.Image) ([]engine.Span, error) {
	e.recogns.Add(1)
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.spans, nil
}

func (e *stubEngine) Close() error {
	e.closed.Store(true)
	return nil
}

// stubBuilder counts builds and can block or fail on demand.
type stubBuilder struct {
	builds  atomic.Int64
	block   chan struct{} // when non-nil, builds wait for it
	delay   time.Duration
	failing atomic.Bool
	engines sync.Map // key string -> *stubEngine
	spans   []engine.Span
}

func (b *stubBuilder) builder() engine.Builder {
	return func(ctx context.Context, languages []string, gpu bool) (engine.Engine, error) {
		b.builds.Add(1)
		if b.block != nil {
			<-b.block
		}
		if b.delay > 0 {
			time.Sleep(b.delay)
		}
		if b.failing.Load() {
			return nil, errors.New("builder exploded")
		}
		e := &stubEngine{spans: b.spans}
		b.engines.Store(KeyFor(languages, gpu).String(), e)
		return e, nil
	}
}

func newTestCache(b *stubBuilder, maxModels int, buildTimeout time.Duration) *modelCache {
	return newModelCache(b.builder(), maxModels, buildTimeout, zerolog.Nop())
}

func testImage() image.Image { return image.NewGray(image.Rect(0, 0, 4, 4)) }

func TestGetOrBuildSingleBuildUnderBurst(t *testing.T) {
	b := &stubBuilder{block: make(chan struct{})}
	c := newTestCache(b, 0, 0)
	key := Key("en|cpu")

	const k = 16
	var wg sync.WaitGroup
	handles := make([]*Handle, k)
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, _, err := c.getOrBuild(context.Background(), key, []string{"en"}, false)
			handles[i], errs[i] = h, err
		}(i)
	}
	// Let all callers pile onto the in-flight build, then release it.
	time.Sleep(50 * time.Millisecond)
	close(b.block)
	wg.Wait()

	if got := b.builds.Load(); got != 1 {
		t.Fatalf("expected exactly 1 build, got %d", got)
	}
	for i := 0; i < k; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d received a different handle", i)
		}
	}
}

func TestGetOrBuildHitHasZeroLoadTime(t *testing.T) {
	b := &stubBuilder{}
	c := newTestCache(b, 0, 0)
	key := Key("en|cpu")

	h1, dur1, err := c.getOrBuild(context.Background(), key, []string{"en"}, false)
	if err != nil {
		t.Fatalf("cold build: %v", err)
	}
	if dur1 <= 0 {
		t.Fatalf("cold build should report load time, got %v", dur1)
	}
	h2, dur2, err := c.getOrBuild(context.Background(), key, []string{"en"}, false)
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if dur2 != 0 {
		t.Fatalf("cache hit should report zero load time, got %v", dur2)
	}
	if h1 != h2 {
		t.Fatalf("hit returned a different handle")
	}
	if b.builds.Load() != 1 {
		t.Fatalf("builds = %d", b.builds.Load())
	}
}

func TestBuildFailurePropagatesAndKeyRetries(t *testing.T) {
	b := &stubBuilder{block: make(chan struct{})}
	b.failing.Store(true)
	c := newTestCache(b, 0, 0)
	key := Key("en|cpu")

	const k = 8
	var wg sync.WaitGroup
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.getOrBuild(context.Background(), key, []string{"en"}, false)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(b.block)
	wg.Wait()

	if b.builds.Load() != 1 {
		t.Fatalf("expected 1 failing build, got %d", b.builds.Load())
	}
	for i, err := range errs {
		if err == nil || !IsModelBuildFailed(err) {
			t.Fatalf("waiter %d: expected build failure, got %v", i, err)
		}
	}
	// The key must not be poisoned: a later request retries and succeeds.
	b.failing.Store(false)
	b.block = nil
	if _, _, err := c.getOrBuild(context.Background(), key, []string{"en"}, false); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if b.builds.Load() != 2 {
		t.Fatalf("expected retry build, builds = %d", b.builds.Load())
	}
}

func TestBuildForOneKeyDoesNotBlockAnother(t *testing.T) {
	slow := &stubBuilder{block: make(chan struct{})}
	defer close(slow.block)
	fast := &stubBuilder{}
	// One cache, one builder: dispatch by language.
	c := newModelCache(func(ctx context.Context, languages []string, gpu bool) (engine.Engine, error) {
		if languages[0] == "slow" {
			return slow.builder()(ctx, languages, gpu)
		}
		return fast.builder()(ctx, languages, gpu)
	}, 0, 0, zerolog.Nop())

	started := make(chan struct{})
	go func() {
		close(started)
		_, _, _ = c.getOrBuild(context.Background(), Key("slow|cpu"), []string{"slow"}, false)
	}()
	<-started
	time.Sleep(20 * time.Millisecond) // slow build is now in flight

	begin := time.Now()
	if _, _, err := c.getOrBuild(context.Background(), Key("en|cpu"), []string{"en"}, false); err != nil {
		t.Fatalf("fast key: %v", err)
	}
	if waited := time.Since(begin); waited > 500*time.Millisecond {
		t.Fatalf("fast key serialized behind slow build: %v", waited)
	}
}

func TestAbandonedWaiterDoesNotCancelBuild(t *testing.T) {
	b := &stubBuilder{block: make(chan struct{})}
	c := newTestCache(b, 0, 0)
	key := Key("en|cpu")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := c.getOrBuild(ctx, key, []string{"en"}, false)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("abandoned waiter: %v", err)
	}

	// The build is still in flight; releasing it must install the handle.
	close(b.block)
	h, _, err := c.getOrBuild(context.Background(), key, []string{"en"}, false)
	if err != nil || h == nil {
		t.Fatalf("build should have survived abandonment: %v", err)
	}
	if b.builds.Load() != 1 {
		t.Fatalf("builds = %d", b.builds.Load())
	}
}

func TestBuildTimeoutLeavesBuildRunning(t *testing.T) {
	b := &stubBuilder{block: make(chan struct{})}
	c := newTestCache(b, 0, 30*time.Millisecond)
	key := Key("en|cpu")

	_, _, err := c.getOrBuild(context.Background(), key, []string{"en"}, false)
	if err == nil || !IsModelBuildTimeout(err) {
		t.Fatalf("expected build timeout, got %v", err)
	}
	close(b.block)
	// Late arrivals adopt the result of the build that kept running.
	deadline := time.Now().Add(time.Second)
	for {
		if h := c.lookup(key); h != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("build result never installed after timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if b.builds.Load() != 1 {
		t.Fatalf("builds = %d", b.builds.Load())
	}
}

func TestClearDoesNotCorruptInFlightUse(t *testing.T) {
	b := &stubBuilder{}
	c := newTestCache(b, 0, 0)
	key := Key("en|cpu")

	h, _, err := c.getOrBuild(context.Background(), key, []string{"en"}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	engAny, _ := b.engines.Load(key.String())
	eng := engAny.(*stubEngine)
	eng.block = make(chan struct{})

	recognized := make(chan error, 1)
	go func() {
		_, err := h.Recognize(context.Background(), testImage())
		recognized <- err
	}()
	time.Sleep(20 * time.Millisecond) // recognition is in flight

	if n := c.clear(); n != 1 {
		t.Fatalf("clear dropped %d", n)
	}
	if eng.closed.Load() {
		t.Fatalf("engine closed while a recognition was in flight")
	}
	close(eng.block)
	if err := <-recognized; err != nil {
		t.Fatalf("in-flight recognition after clear: %v", err)
	}

	// Once the borrower drained, the handle closes; later use fails clearly.
	deadline := time.Now().Add(time.Second)
	for !eng.closed.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("engine never closed after drain")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := h.Recognize(context.Background(), testImage()); !IsModelClosed(err) {
		t.Fatalf("expected model closed, got %v", err)
	}
	if c.size() != 0 {
		t.Fatalf("cache size = %d after clear", c.size())
	}
}

func TestEvictionLRUAtCapacity(t *testing.T) {
	b := &stubBuilder{}
	c := newTestCache(b, 2, 0)

	keys := []struct {
		key  Key
		lang string
	}{
		{Key("de|cpu"), "de"},
		{Key("en|cpu"), "en"},
		{Key("fr|cpu"), "fr"},
	}
	for i, k := range keys {
		if _, _, err := c.getOrBuild(context.Background(), k.key, []string{k.lang}, false); err != nil {
			t.Fatalf("build %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct lastUsed timestamps
	}
	if c.size() != 2 {
		t.Fatalf("size = %d, want 2", c.size())
	}
	if h := c.lookup(Key("de|cpu")); h != nil {
		t.Fatalf("oldest key should have been evicted")
	}
	for _, k := range []Key{"en|cpu", "fr|cpu"} {
		if c.lookup(k) == nil {
			t.Fatalf("%s should still be cached", k)
		}
	}
	// The displaced engine gets closed once idle.
	engAny, _ := b.engines.Load("de|cpu")
	eng := engAny.(*stubEngine)
	deadline := time.Now().Add(time.Second)
	for !eng.closed.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("evicted engine never closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
