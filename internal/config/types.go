package config

// Config holds rulesc's ambient settings: how it logs, and where its
// optional side outputs (compile-history database, metrics dump) go. The
// compiler's actual inputs and outputs (source path, -o, --pretty) are
// plain CLI flags parsed in cmd/rulesc and are not part of this struct —
// this is only the cross-cutting configuration a config file or the
// environment can also set.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls rulesc's log output: no file rotation, since a
// one-shot CLI compile never runs long enough to need one.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr
}

// HistoryConfig controls the optional compile-audit trail
// (internal/history), gated by --history-db.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// MetricsConfig controls the optional Prometheus text dump
// (internal/observability), gated by --metrics-out.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	OutPath string `yaml:"out_path"`
}
