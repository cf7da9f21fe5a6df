package config

import (
	"errors"
	"fmt"
)

// Validate rejects configurations the service cannot start with. Optional
// credentials are deliberately not validated here; an absent credential
// disables its provider instead of failing startup.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddress == "" {
		errs = append(errs, errors.New("server.listen_address is required"))
	}

	switch cfg.Database.Backend {
	case "postgres":
		if cfg.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			errs = append(errs, errors.New("database.sqlite_path is required for the sqlite backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.backend %q is not one of postgres, sqlite, memory", cfg.Database.Backend))
	}

	if cfg.Limits.Upstream < 1 {
		errs = append(errs, fmt.Errorf("limits.upstream must be at least 1, got %d", cfg.Limits.Upstream))
	}
	if cfg.Limits.Pair < 1 {
		errs = append(errs, fmt.Errorf("limits.pair must be at least 1, got %d", cfg.Limits.Pair))
	}
	if cfg.Limits.Pair > cfg.Limits.Upstream {
		errs = append(errs, fmt.Errorf("limits.pair (%d) must not exceed limits.upstream (%d)", cfg.Limits.Pair, cfg.Limits.Upstream))
	}

	for name, url := range map[string]string{
		"providers.rxnorm.base_url":         cfg.Providers.RxNorm.BaseURL,
		"providers.supplement.base_url":     cfg.Providers.Supplement.BaseURL,
		"providers.labels.base_url":         cfg.Providers.Labels.BaseURL,
		"providers.adverse_events.base_url": cfg.Providers.AdverseEvents.BaseURL,
		"providers.exposure.base_url":       cfg.Providers.Exposure.BaseURL,
	} {
		if url == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of text, json", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}
