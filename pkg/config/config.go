// Package config defines the service configuration, loaded from YAML with
// environment variable overrides. Credentials are only ever read from the
// environment so they never land in a config file.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Limits    LimitsConfig    `yaml:"limits"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
	Debug     DebugConfig     `yaml:"debug"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig selects and configures the cache backend. The usage log is
// always SQLite regardless of the cache backend.
type DatabaseConfig struct {
	// Backend is one of postgres, sqlite, memory.
	Backend string `yaml:"backend"`

	// URL is the PostgreSQL connection string. Overridden by DATABASE_URL.
	URL string `yaml:"url"`

	// SQLitePath is the cache file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// UsagePath is the usage log database file.
	UsagePath string `yaml:"usage_path"`
}

// ProvidersConfig configures the upstream adapters.
type ProvidersConfig struct {
	RxNorm        RxNormConfig     `yaml:"rxnorm"`
	Supplement    SupplementConfig `yaml:"supplement"`
	Labels        LabelConfig      `yaml:"labels"`
	AdverseEvents EventConfig      `yaml:"adverse_events"`
	Exposure      ExposureConfig   `yaml:"exposure"`
	Literature    LiteratureConfig `yaml:"literature"`
}

type RxNormConfig struct {
	BaseURL            string        `yaml:"base_url"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout"`
	InteractionTimeout time.Duration `yaml:"interaction_timeout"`
}

type SupplementConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout"`
}

type LabelConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`

	// ClassBlocklist overrides the built-in list of drug-class terms that
	// disqualify a label match. Empty keeps the default.
	ClassBlocklist []string `yaml:"class_blocklist"`
}

type EventConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ExposureConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Enabled bool          `yaml:"enabled"`
}

type LiteratureConfig struct {
	APIKey  string        `yaml:"-"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// LimitsConfig bounds in-request concurrency.
type LimitsConfig struct {
	// Upstream caps concurrent upstream provider calls.
	Upstream int `yaml:"upstream"`

	// Pair caps concurrent pair computations.
	Pair int `yaml:"pair"`
}

// RetentionConfig schedules the cache sweeper.
type RetentionConfig struct {
	// SweepSchedule is a standard cron expression.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DebugConfig gates the per-request debug trace.
type DebugConfig struct {
	// AllowTrace permits requests to ask for the provider-status trace.
	AllowTrace bool `yaml:"allow_trace"`
}
