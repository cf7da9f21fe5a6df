package config

import "time"

// Public endpoint defaults. All four datasets are public; only the
// supplement and literature services need credentials.
const (
	defaultRxNormBaseURL   = "https://rxnav.nlm.nih.gov/REST"
	defaultSupplementURL   = "https://supp.ai/api"
	defaultLabelBaseURL    = "https://api.fda.gov/drug/label.json"
	defaultEventBaseURL    = "https://api.fda.gov/drug/event.json"
	defaultExposureBaseURL = "https://data.cms.gov/data-api/v1/dataset/drug-spending/data"
)

// ApplyDefaults fills every unset field with its default. Timeouts follow
// each upstream's observed latency profile; the literature model is by far
// the slowest.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	if cfg.Database.Backend == "" {
		cfg.Database.Backend = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/cache.db"
	}
	if cfg.Database.UsagePath == "" {
		cfg.Database.UsagePath = "data/usage.db"
	}

	p := &cfg.Providers
	if p.RxNorm.BaseURL == "" {
		p.RxNorm.BaseURL = defaultRxNormBaseURL
	}
	if p.RxNorm.LookupTimeout <= 0 {
		p.RxNorm.LookupTimeout = 6 * time.Second
	}
	if p.RxNorm.InteractionTimeout <= 0 {
		p.RxNorm.InteractionTimeout = 10 * time.Second
	}

	if p.Supplement.BaseURL == "" {
		p.Supplement.BaseURL = defaultSupplementURL
	}
	if p.Supplement.Timeout <= 0 {
		p.Supplement.Timeout = 10 * time.Second
	}

	if p.Labels.BaseURL == "" {
		p.Labels.BaseURL = defaultLabelBaseURL
	}
	if p.Labels.Timeout <= 0 {
		p.Labels.Timeout = 8 * time.Second
	}
	if p.Labels.MaxRetries <= 0 {
		p.Labels.MaxRetries = 2
	}
	if p.Labels.BackoffBase <= 0 {
		p.Labels.BackoffBase = 500 * time.Millisecond
	}

	if p.AdverseEvents.BaseURL == "" {
		p.AdverseEvents.BaseURL = defaultEventBaseURL
	}
	if p.AdverseEvents.Timeout <= 0 {
		p.AdverseEvents.Timeout = 10 * time.Second
	}

	if p.Exposure.BaseURL == "" {
		p.Exposure.BaseURL = defaultExposureBaseURL
	}
	if p.Exposure.Timeout <= 0 {
		p.Exposure.Timeout = 4 * time.Second
	}

	if p.Literature.Model == "" {
		p.Literature.Model = "gpt-4o-mini"
	}
	if p.Literature.Timeout <= 0 {
		p.Literature.Timeout = 30 * time.Second
	}

	if cfg.Limits.Upstream <= 0 {
		cfg.Limits.Upstream = 6
	}
	if cfg.Limits.Pair <= 0 {
		cfg.Limits.Pair = 3
	}

	if cfg.Retention.SweepSchedule == "" {
		cfg.Retention.SweepSchedule = "0 * * * *"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
