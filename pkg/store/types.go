package store

import (
	"context"
	"encoding/json"
	"time"

	"vitacheck/engine/pkg/providers"
)

// NegativeTTL bounds how long a negative lookup result (identifier or
// label not found) is trusted before the item is probed again. Positive
// results have no TTL; a calculation version change invalidates pair
// reports instead.
const NegativeTTL = 24 * time.Hour

// ItemEntry caches everything the item phase learns about one normalized
// name. A nil pointer field records that the corresponding lookup ran and
// found nothing; the entry itself existing means the item was probed.
type ItemEntry struct {
	Normalized   string                 `json:"normalized"`
	RxCUI        *string                `json:"rxcui"`
	SupplementID *string                `json:"supplementId"`
	Label        *providers.LabelResult `json:"label"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// HasNegative reports whether any lookup recorded a not-found.
func (e *ItemEntry) HasNegative() bool {
	return e.RxCUI == nil || e.SupplementID == nil || e.Label == nil
}

// StaleNegatives reports whether the entry holds negative results past the
// TTL. A stale entry is a partial miss: only the nil fields are probed
// again, the positive fields keep serving from cache.
func (e *ItemEntry) StaleNegatives(now time.Time) bool {
	return e.HasNegative() && now.Sub(e.UpdatedAt) > NegativeTTL
}

// PairEntry caches a finished per-pair analysis report. Entries are keyed
// by (pair key, calculation version); a version bump leaves old entries
// in place for the retention sweeper to purge.
type PairEntry struct {
	PairKey     string          `json:"pairKey"`
	CalcVersion string          `json:"calcVersion"`
	SourcesHash string          `json:"sourcesHash"`
	Report      json.RawMessage `json:"report"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ExposureEntry caches a prescription exposure count for one item.
type ExposureEntry struct {
	Normalized    string    `json:"normalized"`
	Beneficiaries int64     `json:"beneficiaries"`
	Year          int       `json:"year"`
	Source        string    `json:"source"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UsageEntry is one row of the append-only usage log.
type UsageEntry struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Items       []string  `json:"items"`
	TopSeverity string    `json:"topSeverity"`
	LatencyMS   int64     `json:"latencyMs"`
	CacheHits   int       `json:"cacheHits"`
	CacheMisses int       `json:"cacheMisses"`
}

// ItemStore caches item-phase results.
type ItemStore interface {
	// GetItem returns the entry for a normalized name, or nil on a miss.
	GetItem(ctx context.Context, normalized string) (*ItemEntry, error)
	PutItem(ctx context.Context, entry *ItemEntry) error
	// PurgeStaleNegatives deletes entries with negative results last
	// updated before the cutoff, returning how many were removed.
	PurgeStaleNegatives(ctx context.Context, cutoff time.Time) (int64, error)
}

// PairStore caches finished pair reports, scoped by calculation version.
type PairStore interface {
	GetPair(ctx context.Context, pairKey, calcVersion string) (*PairEntry, error)
	PutPair(ctx context.Context, entry *PairEntry) error
	// PurgeVersionsOtherThan deletes reports from any calculation
	// version except the one given.
	PurgeVersionsOtherThan(ctx context.Context, calcVersion string) (int64, error)
}

// ExposureStore caches exposure counts.
type ExposureStore interface {
	GetExposure(ctx context.Context, normalized string) (*ExposureEntry, error)
	PutExposure(ctx context.Context, entry *ExposureEntry) error
}

// UsageStore is the append-only usage log.
type UsageStore interface {
	Append(ctx context.Context, entry *UsageEntry) error
	Close() error
}

// Cache bundles the three cache stores one backend provides.
type Cache interface {
	ItemStore
	PairStore
	ExposureStore
	Close() error
}
