package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr                string   `json:"addr" yaml:"addr" toml:"addr"`
	Engine              string   `json:"engine" yaml:"engine" toml:"engine"`
	BridgeCmd           string   `json:"bridge_cmd" yaml:"bridge_cmd" toml:"bridge_cmd"`
	MaxModels           int      `json:"max_models" yaml:"max_models" toml:"max_models"`
	StatsWindow         int      `json:"stats_window" yaml:"stats_window" toml:"stats_window"`
	BuildTimeoutSeconds int      `json:"build_timeout_seconds" yaml:"build_timeout_seconds" toml:"build_timeout_seconds"`
	MaxBodyMB           int      `json:"max_body_mb" yaml:"max_body_mb" toml:"max_body_mb"`
	GPUAvailable        bool     `json:"gpu_available" yaml:"gpu_available" toml:"gpu_available"`
	LogLevel            string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled         bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins         []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods         []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders         []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
