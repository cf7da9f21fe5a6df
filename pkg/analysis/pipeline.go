package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitacheck/engine/pkg/evidence"
	"vitacheck/engine/pkg/normalize"
	"vitacheck/engine/pkg/providers"
	"vitacheck/engine/pkg/store"
	"vitacheck/engine/pkg/taskpool"
	"vitacheck/engine/pkg/telemetry"
)

// Narrow provider views. The pipeline depends on these rather than the
// concrete adapters so tests can substitute scripted providers.

type RxNormAPI interface {
	Lookup(ctx context.Context, name string) (string, error)
	Interactions(ctx context.Context, rxcuiA, rxcuiB string) (*providers.InteractionFinding, error)
}

type SupplementAPI interface {
	Enabled() bool
	Lookup(ctx context.Context, name string) (string, error)
	Interactions(ctx context.Context, nameA, nameB, idA, idB string) ([]providers.SupplementInteraction, error)
}

type LabelAPI interface {
	Fetch(ctx context.Context, name, identifier string) (*providers.LabelResult, error)
}

type AdverseEventAPI interface {
	PairEvents(ctx context.Context, nameA, nameB string) (*providers.EventSummary, error)
	SingleEvents(ctx context.Context, name string) (*providers.EventSummary, error)
}

type ExposureAPI interface {
	Enabled() bool
	Beneficiaries(ctx context.Context, name string) (*providers.ExposureResult, error)
}

type LiteratureAPI interface {
	Enabled() bool
	Assess(ctx context.Context, nameA, nameB string, bundle []string) (*evidence.Record, error)
}

// Providers bundles the upstream views the pipeline consumes.
type Providers struct {
	RxNorm     RxNormAPI
	Supplement SupplementAPI
	Labels     LabelAPI
	Events     AdverseEventAPI
	Exposure   ExposureAPI
	Literature LiteratureAPI
}

// Config bounds the pipeline's concurrency. The pair limiter is deliberately
// smaller than the upstream one so a many-pair request cannot saturate the
// upstream budget and starve its own child calls.
type Config struct {
	// UpstreamLimit caps concurrent upstream provider calls. Default: 6.
	UpstreamLimit int

	// PairLimit caps concurrent pair computations. Default: 3.
	PairLimit int
}

// Pipeline runs analysis requests end to end.
type Pipeline struct {
	provMu    sync.RWMutex
	providers Providers

	cache    store.Cache
	usage    store.UsageStore
	metrics  *telemetry.Metrics
	upstream *taskpool.Pool
	pairPool *taskpool.Pool
	logger   *slog.Logger
}

// NewPipeline assembles a pipeline over the given providers and stores.
func NewPipeline(p Providers, cache store.Cache, usage store.UsageStore, metrics *telemetry.Metrics, cfg Config) *Pipeline {
	if cfg.UpstreamLimit <= 0 {
		cfg.UpstreamLimit = 6
	}
	if cfg.PairLimit <= 0 {
		cfg.PairLimit = 3
	}
	return &Pipeline{
		providers: p,
		cache:     cache,
		usage:     usage,
		metrics:   metrics,
		upstream:  taskpool.New(cfg.UpstreamLimit),
		pairPool:  taskpool.New(cfg.PairLimit),
		logger:    slog.Default().With("component", "analysis"),
	}
}

// prov snapshots the current provider set. Each upstream call reads the set
// at call time, so a swap takes effect mid-request.
func (p *Pipeline) prov() Providers {
	p.provMu.RLock()
	defer p.provMu.RUnlock()
	return p.providers
}

// SetProviders swaps the upstream adapters, for config hot reload.
func (p *Pipeline) SetProviders(np Providers) {
	p.provMu.Lock()
	defer p.provMu.Unlock()
	p.providers = np
	p.logger.Info("provider set replaced")
}

// runState is the per-request mutable state shared across phase goroutines.
type runState struct {
	opts Options

	mu       sync.Mutex
	stats    CacheStats
	trace    map[string]ProviderStatus
	rxcuis   map[string]string
	items    map[string]*itemData
	outcomes map[string]evidence.PrimaryOutcome
	cacheErr error
}

// itemData is what the item phase learned about one normalized item.
type itemData struct {
	item     normalize.Item
	entry    *store.ItemEntry
	exposure *store.ExposureEntry
}

func newRunState(opts Options) *runState {
	return &runState{
		opts:     opts,
		trace:    make(map[string]ProviderStatus),
		rxcuis:   make(map[string]string),
		items:    make(map[string]*itemData),
		outcomes: make(map[string]evidence.PrimaryOutcome),
	}
}

func (rs *runState) record(key string, st ProviderStatus) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.trace[key] = st
}

func (rs *runState) setItem(d *itemData) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.items[d.item.Normalized] = d
	if d.entry != nil && d.entry.RxCUI != nil {
		rs.rxcuis[d.item.Normalized] = *d.entry.RxCUI
	}
}

func (rs *runState) itemFor(normalized string) *itemData {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.items[normalized]
}

func (rs *runState) setOutcome(pairKey string, outcome evidence.PrimaryOutcome) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.outcomes[pairKey] = outcome
}

func (rs *runState) outcomeFor(pairKey string) evidence.PrimaryOutcome {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.outcomes[pairKey]
}

// noteCacheErr keeps the first item or pair store failure; it surfaces as an
// internal error after the response is assembled.
func (rs *runState) noteCacheErr(err error) {
	if err == nil {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cacheErr == nil {
		rs.cacheErr = err
	}
}

func (rs *runState) bump(counter *int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	*counter++
}

func ms(d time.Duration) int64 { return d.Milliseconds() }

// Analyze runs the full pipeline for one request.
//
// The returned error is either a *normalize.InvalidInputError (no response)
// or a cache persistence failure, in which case the response was still fully
// computed and accompanies the error.
func (p *Pipeline) Analyze(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	items, err := normalize.Items(req.Values())
	if err != nil {
		return nil, err
	}
	items = normalize.Unique(items)
	pairs := normalize.Pairs(items)
	triples := normalize.Triples(items)

	rs := newRunState(req.Options)

	lookupStart := time.Now()
	p.itemPhase(ctx, rs, items)
	lookupMS := ms(time.Since(lookupStart))

	pairStart := time.Now()
	pairReports, pairSources := p.pairPhase(ctx, rs, pairs)
	singles := p.singlePhase(ctx, rs, items)
	pairMS := ms(time.Since(pairStart))

	tripleStart := time.Now()
	tripleReports := p.triplePhase(rs, triples, pairSources)
	tripleMS := ms(time.Since(tripleStart))

	resp := &Response{
		Items: items,
		Results: Results{
			Singles: singles,
			Pairs:   pairReports,
			Triples: tripleReports,
		},
		Meta: Meta{
			CalcVersion: CalcVersion,
			CacheStats:  rs.stats,
			Timing: Timing{
				TotalMS:            ms(time.Since(start)),
				LookupMS:           lookupMS,
				PairProcessingMS:   pairMS,
				TripleProcessingMS: tripleMS,
			},
		},
	}
	if req.Options.Debug {
		resp.Debug = &Debug{
			ProviderStatuses: rs.trace,
			RxCUIResolutions: rs.rxcuis,
		}
	}

	p.appendUsage(ctx, resp, time.Since(start))

	if rs.cacheErr != nil {
		return resp, fmt.Errorf("cache persistence failed: %w", rs.cacheErr)
	}
	return resp, nil
}

// appendUsage writes the usage log row. Failures are swallowed: analytics
// must never fail a request.
func (p *Pipeline) appendUsage(ctx context.Context, resp *Response, elapsed time.Duration) {
	if p.usage == nil {
		return
	}
	names := make([]string, len(resp.Items))
	for i, item := range resp.Items {
		names[i] = item.Normalized
	}
	top := evidence.SeverityUnknown
	for _, pair := range resp.Results.Pairs {
		top = evidence.MaxSeverity(top, pair.Severity)
	}
	stats := resp.Meta.CacheStats
	entry := &store.UsageEntry{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Items:       names,
		TopSeverity: string(top),
		LatencyMS:   elapsed.Milliseconds(),
		CacheHits:   stats.MedLookupHits + stats.PairCacheHits + stats.CMSCacheHits,
		CacheMisses: stats.MedLookupMisses + stats.PairCacheMisses + stats.CMSCacheMisses,
	}
	if err := p.usage.Append(ctx, entry); err != nil {
		p.logger.Warn("usage log append failed", "error", err)
	}
}

// observe reports one upstream call to metrics, mapping the error to an
// outcome label. A normalized not-found is reported by the caller as ok or
// miss depending on the provider family.
func (p *Pipeline) observe(provider string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeError
	}
	p.metrics.ObserveProvider(provider, outcome, time.Since(start))
}

func (p *Pipeline) recordCache(storeName string, hit bool) {
	if p.metrics != nil {
		p.metrics.RecordCache(storeName, hit)
	}
}
