package manager

import (
	"time"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
)

// Manager ties the model cache, the stats tracker and the per-request
// orchestration together. The cache and stats are the only shared mutable
// state and are internally synchronized; Recognize itself is stateless and
// safe for concurrent use.
type Manager struct {
	cfg   ManagerConfig
	log   zerolog.Logger
	cache *modelCache
	stats *statsTracker
	start time.Time
}

// New constructs a Manager with package defaults around the given builder.
func New(builder engine.Builder) *Manager {
	return NewWithConfig(ManagerConfig{Builder: builder})
}

// Ready reports whether the manager can serve requests.
func (m *Manager) Ready() bool {
	return m.cache != nil && m.cache.builder != nil
}

func (m *Manager) uptimeSeconds() float64 {
	return time.Since(m.start).Seconds()
}
