package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default returns the configuration rulesc runs with when no --config file
// is given: defaults are applied, then environment overrides.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads and parses configuration from a YAML file, then applies
// defaults for anything left unset and environment variable overrides on
// top of that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = "rulesc-history.db"
	}
}

// applyEnvOverrides applies RULESC_<SECTION>_<KEY> environment overrides.
func applyEnvOverrides(cfg *Config) {
	envMappings := map[string]func(string){
		"RULESC_LOG_LEVEL":    func(v string) { cfg.Logging.Level = v },
		"RULESC_LOG_FORMAT":   func(v string) { cfg.Logging.Format = v },
		"RULESC_LOG_OUTPUT":   func(v string) { cfg.Logging.Output = v },
		"RULESC_HISTORY_DB":   func(v string) { cfg.History.DBPath = v; cfg.History.Enabled = true },
		"RULESC_METRICS_OUT":  func(v string) { cfg.Metrics.OutPath = v; cfg.Metrics.Enabled = true },
	}
	for env, setter := range envMappings {
		if value := os.Getenv(env); value != "" {
			setter(value)
		}
	}
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be json or text)", cfg.Logging.Format)
	}
	return nil
}
