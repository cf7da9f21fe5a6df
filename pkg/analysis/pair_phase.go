package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"vitacheck/engine/pkg/evidence"
	"vitacheck/engine/pkg/normalize"
	"vitacheck/engine/pkg/providers"
	"vitacheck/engine/pkg/store"
	"vitacheck/engine/pkg/telemetry"
)

// pairPhase analyzes every pair under the pair limiter and returns the
// reports plus each pair's merged sources keyed by pair key, which the
// triple phase consumes without new fetches.
func (p *Pipeline) pairPhase(ctx context.Context, rs *runState, pairs [][2]normalize.Item) ([]PairReport, map[string][]evidence.Record) {
	reports := make([]PairReport, 0, len(pairs))
	sources := make(map[string][]evidence.Record, len(pairs))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		if err := p.pairPool.Run(ctx, &wg, func() {
			report := p.analyzePair(ctx, rs, a, b)
			mu.Lock()
			reports = append(reports, report)
			sources[normalize.PairKey(a.Normalized, b.Normalized)] = report.Sources
			mu.Unlock()
		}); err != nil {
			return reports, sources
		}
	}
	wg.Wait()
	return reports, sources
}

func (p *Pipeline) analyzePair(ctx context.Context, rs *runState, a, b normalize.Item) PairReport {
	key := normalize.PairKey(a.Normalized, b.Normalized)

	if !rs.opts.ForceRefresh {
		if report, ok := p.cachedPair(ctx, rs, key); ok {
			report.AOriginal, report.BOriginal = a.Original, b.Original
			return report
		}
	}
	rs.bump(&rs.stats.PairCacheMisses)
	p.recordCache("pairs", false)

	records, outcome := p.gatherPairEvidence(ctx, rs, key, a, b)

	merged := evidence.Merge(records)
	severity := evidence.Consensus(merged)
	if len(merged) == 0 && severity == evidence.SeverityUnknown && outcome.Succeeded > 0 {
		// At least one primary looked and found nothing: that is a
		// finding, not an absence of evidence.
		severity = evidence.SeverityNone
	}
	confidence := evidence.AggregateConfidence(merged, outcome)

	report := PairReport{
		AOriginal:  a.Original,
		BOriginal:  b.Original,
		Severity:   severity,
		Confidence: confidence,
		Sources:    merged,
		Summary:    reportSummary(merged, outcome, pairSubject(a.Original, b.Original)),
		KeyNotes:   keyNotes(merged),
	}

	rs.setOutcome(key, outcome)
	p.persistPair(ctx, rs, key, &report)
	return report
}

// cachedPair serves a pair report from the version-scoped cache.
func (p *Pipeline) cachedPair(ctx context.Context, rs *runState, key string) (PairReport, bool) {
	entry, err := p.cache.GetPair(ctx, key, CalcVersion)
	if err != nil {
		rs.noteCacheErr(err)
		return PairReport{}, false
	}
	if entry == nil {
		return PairReport{}, false
	}

	var report PairReport
	if err := json.Unmarshal(entry.Report, &report); err != nil {
		p.logger.Warn("cached pair report is unreadable, refetching",
			"pair", key, "error", err)
		return PairReport{}, false
	}

	rs.bump(&rs.stats.PairCacheHits)
	p.recordCache("pairs", true)

	primaries := 0
	for _, src := range report.Sources {
		rs.record(string(src.Origin)+":"+key, ProviderStatus{
			Attempted: true, OK: true, Cached: true,
		})
		if src.Origin.IsPrimary() {
			primaries++
		}
	}
	// A cached "none" or better implies the primaries that produced it
	// completed; reconstruct a minimal outcome for the triple phase.
	outcome := evidence.PrimaryOutcome{Attempted: primaries, Succeeded: primaries}
	if primaries == 0 && report.Severity != evidence.SeverityUnknown {
		outcome = evidence.PrimaryOutcome{Attempted: 1, Succeeded: 1}
	}
	rs.setOutcome(key, outcome)
	return report, true
}

// gatherPairEvidence fans the pair's provider calls out in parallel, each
// holding an upstream slot, and returns the standardized records plus the
// primary-source outcome tally.
func (p *Pipeline) gatherPairEvidence(ctx context.Context, rs *runState, key string, a, b normalize.Item) ([]evidence.Record, evidence.PrimaryOutcome) {
	aData, bData := rs.itemFor(a.Normalized), rs.itemFor(b.Normalized)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		records []evidence.Record
		outcome evidence.PrimaryOutcome
	)
	add := func(recs ...evidence.Record) {
		mu.Lock()
		records = append(records, recs...)
		mu.Unlock()
	}

	// Curated interaction graph. Skipped cleanly when either identifier is
	// absent; the trace shows attempted=false.
	aCUI, bCUI := itemRxCUI(aData), itemRxCUI(bData)
	if aCUI == "" || bCUI == "" {
		rs.record(providers.NameRxNormInteractions+":"+key, ProviderStatus{})
	} else {
		mu.Lock()
		outcome.Attempted++
		mu.Unlock()
		p.upstream.Run(ctx, &wg, func() {
			start := time.Now()
			finding, err := p.prov().RxNorm.Interactions(ctx, aCUI, bCUI)
			p.observeInteraction(providers.NameRxNormInteractions, start, err, finding != nil)
			rs.record(providers.NameRxNormInteractions+":"+key, ProviderStatus{
				Attempted: true,
				OK:        err == nil,
				ElapsedMS: ms(time.Since(start)),
				Error:     providers.ErrorKind(err),
			})
			mu.Lock()
			if err != nil {
				outcome.RxNormFailed = true
			} else {
				outcome.Succeeded++
			}
			mu.Unlock()
			if err == nil && finding != nil {
				add(evidence.StandardizeInteraction(
					evidence.OriginRxNormInteractions,
					finding.Severity, finding.Description, finding.Source, nil))
			}
		})
	}

	// Co-mention adverse event reports.
	mu.Lock()
	outcome.Attempted++
	mu.Unlock()
	p.upstream.Run(ctx, &wg, func() {
		start := time.Now()
		summary, err := p.prov().Events.PairEvents(ctx, a.Normalized, b.Normalized)
		p.observeInteraction(providers.NamePairAdverseEvents, start, err, summary != nil)
		rs.record(providers.NamePairAdverseEvents+":"+key, ProviderStatus{
			Attempted: true,
			OK:        err == nil,
			ElapsedMS: ms(time.Since(start)),
			Error:     providers.ErrorKind(err),
		})
		mu.Lock()
		if err == nil {
			outcome.Succeeded++
		}
		mu.Unlock()
		if err == nil && summary != nil {
			benes, method := pairDenominator(aData, bData)
			add(evidence.StandardizeAdverseEvents(
				evidence.OriginPairAdverseEvents,
				[]string{a.Normalized, b.Normalized},
				summary.TotalEvents, summary.SeriousEvents, summary.Outcomes,
				benes, method))
		}
	})

	// Supplement evidence service.
	if !p.prov().Supplement.Enabled() {
		rs.record(providers.NameSupplementInteractions+":"+key, ProviderStatus{
			Error: "missing_credential",
		})
	} else {
		mu.Lock()
		outcome.Attempted++
		mu.Unlock()
		p.upstream.Run(ctx, &wg, func() {
			start := time.Now()
			matches, err := p.prov().Supplement.Interactions(ctx,
				a.Normalized, b.Normalized,
				itemSupplementID(aData), itemSupplementID(bData))
			p.observeInteraction(providers.NameSupplementInteractions, start, err, len(matches) > 0)
			rs.record(providers.NameSupplementInteractions+":"+key, ProviderStatus{
				Attempted: true,
				OK:        err == nil,
				ElapsedMS: ms(time.Since(start)),
				Error:     providers.ErrorKind(err),
			})
			mu.Lock()
			if err == nil {
				outcome.Succeeded++
			}
			mu.Unlock()
			for _, m := range matches {
				add(evidence.StandardizeInteraction(
					evidence.OriginSupplementInteractions,
					m.Severity, m.Description, "supplement_db", m.Evidence))
			}
		})
	}

	// Label warnings that mention the partner, derived from the item phase
	// without a new fetch.
	if recs := derivedLabelRecords(aData, bData); len(recs) > 0 {
		add(recs...)
		rs.record(providers.NameLabels+":"+key, ProviderStatus{
			Attempted: true, OK: true, Cached: true,
		})
	}

	wg.Wait()

	// Literature runs after the primaries so the model weighs the gathered
	// evidence instead of re-deriving it.
	if rs.opts.IncludeAI {
		if rec := p.assessLiterature(ctx, rs, key, a, b, records); rec != nil {
			records = append(records, *rec)
		}
	}
	return records, outcome
}

func (p *Pipeline) assessLiterature(ctx context.Context, rs *runState, key string, a, b normalize.Item, gathered []evidence.Record) *evidence.Record {
	if !p.prov().Literature.Enabled() {
		rs.record(providers.NameLiterature+":"+key, ProviderStatus{
			Error: "missing_credential",
		})
		return nil
	}

	bundle := make([]string, 0, len(gathered))
	for _, rec := range gathered {
		if rec.Summary != "" {
			bundle = append(bundle, rec.Summary)
		}
	}

	var (
		rec *evidence.Record
		wg  sync.WaitGroup
	)
	p.upstream.Run(ctx, &wg, func() {
		start := time.Now()
		result, err := p.prov().Literature.Assess(ctx, a.Normalized, b.Normalized, bundle)
		p.observe(providers.NameLiterature, start, err)
		rs.record(providers.NameLiterature+":"+key, ProviderStatus{
			Attempted: true,
			OK:        err == nil,
			ElapsedMS: ms(time.Since(start)),
			Error:     providers.ErrorKind(err),
		})
		if err == nil {
			rec = result
		}
	})
	wg.Wait()
	return rec
}

// persistPair writes the finished report to the version-scoped cache.
func (p *Pipeline) persistPair(ctx context.Context, rs *runState, key string, report *PairReport) {
	raw, err := json.Marshal(report)
	if err != nil {
		rs.noteCacheErr(err)
		return
	}
	entry := &store.PairEntry{
		PairKey:     key,
		CalcVersion: CalcVersion,
		SourcesHash: sourcesHash(report.Sources),
		Report:      raw,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := p.cache.PutPair(ctx, entry); err != nil {
		rs.noteCacheErr(err)
	}
}

// sourcesHash fingerprints the merged source list so report changes are
// detectable without comparing full payloads.
func sourcesHash(sources []evidence.Record) string {
	raw, err := json.Marshal(sources)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// observeInteraction reports an interactions-family call: a normalized
// not-found counts as neither success nor error.
func (p *Pipeline) observeInteraction(provider string, start time.Time, err error, found bool) {
	if p.metrics == nil {
		return
	}
	outcome := telemetry.OutcomeOK
	switch {
	case err != nil:
		outcome = telemetry.OutcomeError
	case !found:
		outcome = telemetry.OutcomeMiss
	}
	p.metrics.ObserveProvider(provider, outcome, time.Since(start))
}

func itemRxCUI(d *itemData) string {
	if d == nil || d.entry == nil || d.entry.RxCUI == nil {
		return ""
	}
	return *d.entry.RxCUI
}

func itemSupplementID(d *itemData) string {
	if d == nil || d.entry == nil || d.entry.SupplementID == nil {
		return ""
	}
	return *d.entry.SupplementID
}

// pairDenominator picks the exposure denominator for pair event rates:
// the smaller of the two beneficiary counts when both are known, a single
// drug's count when only one is. Never fabricated.
func pairDenominator(aData, bData *itemData) (int64, string) {
	var aExp, bExp *store.ExposureEntry
	if aData != nil {
		aExp = aData.exposure
	}
	if bData != nil {
		bExp = bData.exposure
	}
	switch {
	case aExp != nil && bExp != nil:
		if aExp.Beneficiaries <= bExp.Beneficiaries {
			return aExp.Beneficiaries, evidence.DenominatorMinOfPair
		}
		return bExp.Beneficiaries, evidence.DenominatorMinOfPair
	case aExp != nil:
		return aExp.Beneficiaries, evidence.DenominatorSingleDrugA
	case bExp != nil:
		return bExp.Beneficiaries, evidence.DenominatorSingleDrugB
	default:
		return 0, ""
	}
}

// derivedLabelRecords extracts, from each item's cached label, the warnings
// that mention the partner item. One record per direction; the merger folds
// them into a single label_warnings source.
func derivedLabelRecords(aData, bData *itemData) []evidence.Record {
	var out []evidence.Record
	if rec, ok := labelMentions(aData, bData); ok {
		out = append(out, rec)
	}
	if rec, ok := labelMentions(bData, aData); ok {
		out = append(out, rec)
	}
	return out
}

func labelMentions(holder, partner *itemData) (evidence.Record, bool) {
	if holder == nil || partner == nil || holder.entry == nil || holder.entry.Label == nil {
		return evidence.Record{}, false
	}
	target := strings.ToLower(partner.item.Normalized)
	var matched []string
	for _, warning := range holder.entry.Label.Warnings {
		if strings.Contains(strings.ToLower(warning), target) {
			matched = append(matched, warning)
		}
	}
	if len(matched) == 0 {
		return evidence.Record{}, false
	}
	return evidence.StandardizeLabel(holder.entry.Label.ProductName, matched), true
}
