package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocrd/internal/config"
	"ocrd/internal/engine"
	"ocrd/internal/httpapi"
	"ocrd/internal/manager"
)

type serveOptions struct {
	addr                string
	configPath          string
	engineName          string
	bridgeCmd           string
	maxModels           int
	statsWindow         int
	buildTimeoutSeconds int
	maxBodyMB           int
	gpuAvailable        bool
	logLevel            string
	corsEnabled         bool
	corsOrigins         []string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the OCR HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	defaultAddr := ":8000"
	if v := os.Getenv("OCRD_ADDR"); v != "" {
		defaultAddr = v
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", defaultAddr, "HTTP listen address, e.g. :8000")
	f.StringVar(&opts.configPath, "config", "", "Config file (.yaml/.json/.toml); flags override file values")
	f.StringVar(&opts.engineName, "engine", "bridge", "Recognition engine: tesseract|bridge")
	f.StringVar(&opts.bridgeCmd, "bridge-cmd", "ocr-bridge", "Bridge executable for --engine=bridge")
	f.IntVar(&opts.maxModels, "max-models", 0, "Max resident models, evicting least recently used (0=unlimited)")
	f.IntVar(&opts.statsWindow, "stats-window", 0, "Latency samples retained for the stats average (0=default 1000)")
	f.IntVar(&opts.buildTimeoutSeconds, "build-timeout", 0, "Seconds a request waits for a model build (0=unbounded)")
	f.IntVar(&opts.maxBodyMB, "max-body-mb", 0, "Max request body size in MiB (0=default 16)")
	f.BoolVar(&opts.gpuAvailable, "gpu", false, "Advertise GPU availability and honor per-request GPU preference")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	f.BoolVar(&opts.corsEnabled, "cors", false, "Enable CORS for browser clients")
	f.StringSliceVar(&opts.corsOrigins, "cors-origins", []string{"*"}, "Allowed CORS origins")
	return cmd
}

// mergeConfig overlays file values under flags the operator did not set.
func mergeConfig(cmd *cobra.Command, opts *serveOptions, cfg config.Config) {
	set := cmd.Flags().Changed
	if !set("addr") && cfg.Addr != "" && os.Getenv("OCRD_ADDR") == "" {
		opts.addr = cfg.Addr
	}
	if !set("engine") && cfg.Engine != "" {
		opts.engineName = cfg.Engine
	}
	if !set("bridge-cmd") && cfg.BridgeCmd != "" {
		opts.bridgeCmd = cfg.BridgeCmd
	}
	if !set("max-models") && cfg.MaxModels != 0 {
		opts.maxModels = cfg.MaxModels
	}
	if !set("stats-window") && cfg.StatsWindow != 0 {
		opts.statsWindow = cfg.StatsWindow
	}
	if !set("build-timeout") && cfg.BuildTimeoutSeconds != 0 {
		opts.buildTimeoutSeconds = cfg.BuildTimeoutSeconds
	}
	if !set("max-body-mb") && cfg.MaxBodyMB != 0 {
		opts.maxBodyMB = cfg.MaxBodyMB
	}
	if !set("gpu") && cfg.GPUAvailable {
		opts.gpuAvailable = true
	}
	if !set("log-level") && cfg.LogLevel != "" {
		opts.logLevel = cfg.LogLevel
	}
	if !set("cors") && cfg.CORSEnabled {
		opts.corsEnabled = true
	}
	if !set("cors-origins") && len(cfg.CORSOrigins) > 0 {
		opts.corsOrigins = cfg.CORSOrigins
	}
}

func selectBuilder(engineName, bridgeCmd string) (engine.Builder, error) {
	switch engineName {
	case "tesseract":
		if !engine.TesseractBuilt() {
			return nil, fmt.Errorf("engine %q requires a binary built with -tags=tesseract", engineName)
		}
		return engine.NewTesseractBuilder(), nil
	case "bridge":
		return engine.NewBridgeBuilder(bridgeCmd), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want tesseract or bridge)", engineName)
	}
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		mergeConfig(cmd, opts, cfg)
	}

	lvl, err := zerolog.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", opts.logLevel)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()

	builder, err := selectBuilder(opts.engineName, opts.bridgeCmd)
	if err != nil {
		return err
	}

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Builder:      builder,
		MaxModels:    opts.maxModels,
		BuildTimeout: time.Duration(opts.buildTimeoutSeconds) * time.Second,
		StatsWindow:  opts.statsWindow,
		GPUAvailable: opts.gpuAvailable,
		Logger:       &log,
	})

	httpapi.SetLogger(log)
	if opts.maxBodyMB > 0 {
		httpapi.SetMaxBodyBytes(int64(opts.maxBodyMB) << 20)
	}
	if opts.corsEnabled {
		httpapi.SetCORSOptions(true, opts.corsOrigins,
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Content-Type", "X-Log-Level"})
	}

	// Base context canceled on shutdown so in-flight handlers unwind.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: opts.addr, Handler: httpapi.NewMux(mgr)}
	go func() {
		log.Info().Str("addr", opts.addr).Str("engine", opts.engineName).Msg("ocrd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	mgr.ClearModels()
	return nil
}
