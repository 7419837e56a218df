package manager

import (
	"time"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultStatsWindow = 1000

	defaultName        = "ocrd"
	defaultVersion     = "1.0.0"
	defaultDescription = "OCR API with multi-language model caching"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Builder constructs recognition engines; required.
	Builder engine.Builder
	// MaxModels bounds the number of resident models; 0 means unlimited
	// (distinct language-set combinations then accumulate without bound,
	// a documented limitation of the baseline design).
	MaxModels int
	// BuildTimeout bounds how long one caller waits for a model build;
	// 0 disables the bound. The build itself is never cancelled by an
	// expiring waiter.
	BuildTimeout time.Duration
	// StatsWindow is the latency-window capacity (default 1000).
	StatsWindow int
	// GPUAvailable is reported by /info; engines may still ignore the
	// per-request accelerator preference.
	GPUAvailable bool
	// Logger for model lifecycle events. Defaults to a no-op logger.
	Logger *zerolog.Logger

	// Server identity reported by /info.
	Name    string
	Version string
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = defaultStatsWindow
	}
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	return &Manager{
		cfg:   cfg,
		log:   log,
		cache: newModelCache(cfg.Builder, cfg.MaxModels, cfg.BuildTimeout, log),
		stats: newStatsTracker(cfg.StatsWindow),
		start: time.Now(),
	}
}
