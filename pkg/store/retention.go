package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"vitacheck/engine/pkg/telemetry"
)

// SweeperConfig configures the background retention sweeper.
type SweeperConfig struct {
	// Schedule is a standard cron expression. Default: hourly.
	Schedule string

	// CalcVersion is the live calculation version; pair reports from any
	// other version are purged.
	CalcVersion string

	// NegativeTTL overrides the item negative-result TTL. Default:
	// NegativeTTL.
	NegativeTTL time.Duration

	// Metrics, when set, counts purged entries.
	Metrics *telemetry.Metrics
}

// Sweeper periodically purges pair reports left behind by calculation
// version bumps and item entries whose negative results have expired.
type Sweeper struct {
	cache   Cache
	cfg     SweeperConfig
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewSweeper creates a sweeper over the given cache.
func NewSweeper(cache Cache, cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = NegativeTTL
	}
	return &Sweeper{
		cache:  cache,
		cfg:    cfg,
		cron:   cron.New(),
		logger: slog.Default().With("component", "store.sweeper"),
	}
}

// Start schedules sweeps and stops them when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := cron.ParseStandard(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.Schedule, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention sweeper started",
		"schedule", s.cfg.Schedule,
		"calc_version", s.cfg.CalcVersion,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Sweep runs one purge cycle. Errors are logged, not returned: a failed
// sweep retries at the next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	pairs, err := s.cache.PurgeVersionsOtherThan(ctx, s.cfg.CalcVersion)
	if err != nil {
		s.logger.Error("pair version purge failed", "error", err)
	}

	cutoff := time.Now().Add(-s.cfg.NegativeTTL)
	items, err := s.cache.PurgeStaleNegatives(ctx, cutoff)
	if err != nil {
		s.logger.Error("stale negative purge failed", "error", err)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordPurge("pair", pairs)
		s.cfg.Metrics.RecordPurge("item", items)
	}

	if pairs > 0 || items > 0 {
		s.logger.Info("retention sweep completed",
			"stale_pairs", pairs,
			"stale_items", items,
		)
	} else {
		s.logger.Debug("retention sweep completed, nothing to purge")
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retention sweeper stopped")
	}
}
