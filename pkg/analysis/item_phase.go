package analysis

import (
	"context"
	"sync"
	"time"

	"vitacheck/engine/pkg/normalize"
	"vitacheck/engine/pkg/providers"
	"vitacheck/engine/pkg/store"
)

// itemPhase resolves identifiers, label warnings, and optional exposure for
// every item. One upstream slot is held per item; the three or four provider
// calls inside fan out as plain goroutines under that slot.
func (p *Pipeline) itemPhase(ctx context.Context, rs *runState, items []normalize.Item) {
	var wg sync.WaitGroup
	for _, item := range items {
		item := item
		if err := p.upstream.Run(ctx, &wg, func() {
			p.resolveItem(ctx, rs, item)
		}); err != nil {
			rs.setItem(&itemData{item: item, entry: negativeEntry(item)})
		}
	}
	wg.Wait()
}

func negativeEntry(item normalize.Item) *store.ItemEntry {
	return &store.ItemEntry{Normalized: item.Normalized, UpdatedAt: time.Now().UTC()}
}

func (p *Pipeline) resolveItem(ctx context.Context, rs *runState, item normalize.Item) {
	name := item.Normalized

	// prior carries an entry whose negative fields aged out. Its positive
	// fields keep serving from cache; only the nil fields are probed again.
	var prior *store.ItemEntry
	if !rs.opts.ForceRefresh {
		entry, err := p.cache.GetItem(ctx, name)
		if err != nil {
			rs.noteCacheErr(err)
		}
		if entry != nil {
			if !entry.StaleNegatives(time.Now()) {
				rs.bump(&rs.stats.MedLookupHits)
				p.recordCache("items", true)
				p.recordCachedItemTrace(rs, name, entry)
				d := &itemData{item: item, entry: entry}
				d.exposure = p.fetchExposure(ctx, rs, name)
				rs.setItem(d)
				return
			}
			prior = entry
		}
	}

	rs.bump(&rs.stats.MedLookupMisses)
	p.recordCache("items", false)

	entry := &store.ItemEntry{Normalized: name}
	var lookups sync.WaitGroup

	if prior != nil && prior.RxCUI != nil {
		entry.RxCUI = prior.RxCUI
		rs.record(providers.NameRxNormLookup+":"+name, ProviderStatus{
			Attempted: true, OK: true, Cached: true,
		})
	} else {
		lookups.Add(1)
		go func() {
			defer lookups.Done()
			start := time.Now()
			rxcui, err := p.prov().RxNorm.Lookup(ctx, name)
			p.observe(providers.NameRxNormLookup, start, err)
			rs.record(providers.NameRxNormLookup+":"+name, ProviderStatus{
				Attempted: true,
				OK:        err == nil && rxcui != "",
				ElapsedMS: ms(time.Since(start)),
				Error:     providers.ErrorKind(err),
			})
			if err == nil && rxcui != "" {
				entry.RxCUI = &rxcui
			}
		}()
	}

	if prior != nil && prior.SupplementID != nil {
		entry.SupplementID = prior.SupplementID
		rs.record(providers.NameSupplementLookup+":"+name, ProviderStatus{
			Attempted: true, OK: true, Cached: true,
		})
	} else if !p.prov().Supplement.Enabled() {
		rs.record(providers.NameSupplementLookup+":"+name, ProviderStatus{
			Error: "missing_credential",
		})
	} else {
		lookups.Add(1)
		go func() {
			defer lookups.Done()
			start := time.Now()
			id, err := p.prov().Supplement.Lookup(ctx, name)
			p.observe(providers.NameSupplementLookup, start, err)
			rs.record(providers.NameSupplementLookup+":"+name, ProviderStatus{
				Attempted: true,
				OK:        err == nil && id != "",
				ElapsedMS: ms(time.Since(start)),
				Error:     providers.ErrorKind(err),
			})
			if err == nil && id != "" {
				entry.SupplementID = &id
			}
		}()
	}

	if prior != nil && prior.Label != nil {
		entry.Label = prior.Label
		rs.record(providers.NameLabels+":"+name, ProviderStatus{
			Attempted: true, OK: true, Cached: true,
		})
	} else {
		lookups.Add(1)
		go func() {
			defer lookups.Done()
			start := time.Now()
			label, err := p.prov().Labels.Fetch(ctx, name, "")
			p.observe(providers.NameLabels, start, err)
			rs.record(providers.NameLabels+":"+name, ProviderStatus{
				Attempted: true,
				OK:        err == nil && label != nil,
				ElapsedMS: ms(time.Since(start)),
				Error:     providers.ErrorKind(err),
			})
			if err == nil {
				entry.Label = label
			}
		}()
	}

	lookups.Wait()

	entry.UpdatedAt = time.Now().UTC()
	if err := p.cache.PutItem(ctx, entry); err != nil {
		rs.noteCacheErr(err)
	}

	d := &itemData{item: item, entry: entry}
	d.exposure = p.fetchExposure(ctx, rs, name)
	rs.setItem(d)
}

// recordCachedItemTrace emits cached statuses for the providers the cache
// hit subsumes. Lookup family: a nil identifier is ok=false even on a hit.
func (p *Pipeline) recordCachedItemTrace(rs *runState, name string, entry *store.ItemEntry) {
	rs.record(providers.NameRxNormLookup+":"+name, ProviderStatus{
		Attempted: true, OK: entry.RxCUI != nil, Cached: true,
	})
	rs.record(providers.NameSupplementLookup+":"+name, ProviderStatus{
		Attempted: true, OK: entry.SupplementID != nil, Cached: true,
	})
	rs.record(providers.NameLabels+":"+name, ProviderStatus{
		Attempted: true, OK: entry.Label != nil, Cached: true,
	})
}

// fetchExposure resolves the exposure denominator for one item when the
// request opts in and the adapter is enabled. Failures degrade to absent.
func (p *Pipeline) fetchExposure(ctx context.Context, rs *runState, name string) *store.ExposureEntry {
	if !rs.opts.IncludeCMS || !p.prov().Exposure.Enabled() {
		return nil
	}

	if !rs.opts.ForceRefresh {
		cached, err := p.cache.GetExposure(ctx, name)
		if err != nil {
			// Exposure is enrichment only; a cache failure here degrades
			// rather than surfacing.
			p.logger.Warn("exposure cache read failed", "error", err)
		}
		if cached != nil {
			rs.bump(&rs.stats.CMSCacheHits)
			p.recordCache("exposure", true)
			rs.record(providers.NameExposure+":"+name, ProviderStatus{
				Attempted: true, OK: true, Cached: true,
			})
			return cached
		}
	}
	rs.bump(&rs.stats.CMSCacheMisses)
	p.recordCache("exposure", false)

	start := time.Now()
	result, err := p.prov().Exposure.Beneficiaries(ctx, name)
	p.observe(providers.NameExposure, start, err)
	rs.record(providers.NameExposure+":"+name, ProviderStatus{
		Attempted: true,
		OK:        err == nil && result != nil,
		ElapsedMS: ms(time.Since(start)),
		Error:     providers.ErrorKind(err),
	})
	if err != nil || result == nil {
		return nil
	}

	entry := &store.ExposureEntry{
		Normalized:    name,
		Beneficiaries: result.Beneficiaries,
		Year:          result.Year,
		Source:        result.Source,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := p.cache.PutExposure(ctx, entry); err != nil {
		p.logger.Warn("exposure cache write failed", "error", err)
	}
	return entry
}
