package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result. An empty path skips the
// file and builds the configuration from defaults and environment alone.
//
// Environment variables always win over file values. Credentials
// (SUPPLEMENT_API_KEY, OPENAI_API_KEY) and DATABASE_URL are environment-only;
// the remaining overrides use the VITACHECK_ prefix.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Credentials and the database URL never come from the file.
	if val := os.Getenv("DATABASE_URL"); val != "" {
		cfg.Database.URL = val
		cfg.Database.Backend = "postgres"
	}
	cfg.Providers.Supplement.APIKey = os.Getenv("SUPPLEMENT_API_KEY")
	cfg.Providers.Literature.APIKey = os.Getenv("OPENAI_API_KEY")

	if val := os.Getenv("VITACHECK_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("VITACHECK_DATABASE_BACKEND"); val != "" {
		cfg.Database.Backend = val
	}
	if val := os.Getenv("VITACHECK_SQLITE_PATH"); val != "" {
		cfg.Database.SQLitePath = val
	}
	if val := os.Getenv("VITACHECK_USAGE_PATH"); val != "" {
		cfg.Database.UsagePath = val
	}
	if val := os.Getenv("VITACHECK_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("VITACHECK_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("VITACHECK_UPSTREAM_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.Upstream = i
		}
	}
	if val := os.Getenv("VITACHECK_PAIR_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.Pair = i
		}
	}
	if val := os.Getenv("VITACHECK_EXPOSURE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Providers.Exposure.Enabled = b
		}
	}
	if val := os.Getenv("VITACHECK_DEBUG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Debug.AllowTrace = b
		}
	}
	if val := os.Getenv("VITACHECK_LITERATURE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Providers.Literature.Timeout = d
		}
	}
}
