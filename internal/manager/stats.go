package manager

import (
	"sync"
	"time"
)

// statsTracker holds process-wide request counters plus a fixed-capacity
// FIFO window of recent latencies. The window is a ring buffer: appending
// past capacity overwrites the oldest sample in O(1).
type statsTracker struct {
	mu      sync.Mutex
	total   uint64
	success uint64
	fail    uint64
	window  []float64
	head    int
	count   int
	start   time.Time
}

// StatsSnapshot is a point-in-time projection of the tracker.
type StatsSnapshot struct {
	Total         uint64
	Success       uint64
	Fail          uint64
	SuccessRate   float64
	AverageMs     float64
	UptimeSeconds float64
}

func newStatsTracker(capacity int) *statsTracker {
	if capacity <= 0 {
		capacity = defaultStatsWindow
	}
	return &statsTracker{
		window: make([]float64, capacity),
		start:  time.Now(),
	}
}

// RecordSuccess counts a successful request and retains its duration.
func (s *statsTracker) RecordSuccess(durationMs float64) { s.record(durationMs, true) }

// RecordFailure counts a failed request and retains its duration.
func (s *statsTracker) RecordFailure(durationMs float64) { s.record(durationMs, false) }

func (s *statsTracker) record(durationMs float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if ok {
		s.success++
	} else {
		s.fail++
	}
	if s.count < len(s.window) {
		s.window[(s.head+s.count)%len(s.window)] = durationMs
		s.count++
		return
	}
	// Full: overwrite the oldest sample.
	s.window[s.head] = durationMs
	s.head = (s.head + 1) % len(s.window)
}

// Snapshot returns consistent counters and a windowed mean. Success rate is
// 0 when no requests were recorded; the mean is 0 for an empty window.
func (s *statsTracker) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Total:         s.total,
		Success:       s.success,
		Fail:          s.fail,
		UptimeSeconds: time.Since(s.start).Seconds(),
	}
	if s.total > 0 {
		snap.SuccessRate = float64(s.success) / float64(s.total) * 100
	}
	if s.count > 0 {
		var sum float64
		for i := 0; i < s.count; i++ {
			sum += s.window[(s.head+i)%len(s.window)]
		}
		snap.AverageMs = sum / float64(s.count)
	}
	return snap
}
