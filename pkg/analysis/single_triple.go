package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vitacheck/engine/pkg/evidence"
	"vitacheck/engine/pkg/normalize"
	"vitacheck/engine/pkg/providers"
)

// singlePhase builds one report per item from its cached label warnings and
// a fresh single-drug adverse-event fetch. The fetch is non-blocking: its
// failure degrades the report, never the request.
func (p *Pipeline) singlePhase(ctx context.Context, rs *runState, items []normalize.Item) []SingleReport {
	reports := make([]SingleReport, 0, len(items))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, item := range items {
		item := item
		if err := p.upstream.Run(ctx, &wg, func() {
			report := p.analyzeSingle(ctx, rs, item)
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
		}); err != nil {
			return reports
		}
	}
	wg.Wait()
	return reports
}

func (p *Pipeline) analyzeSingle(ctx context.Context, rs *runState, item normalize.Item) SingleReport {
	name := item.Normalized
	data := rs.itemFor(name)

	var records []evidence.Record
	if data != nil && data.entry != nil && data.entry.Label != nil && len(data.entry.Label.Warnings) > 0 {
		records = append(records, evidence.StandardizeLabel(
			data.entry.Label.ProductName, data.entry.Label.Warnings))
	}

	start := time.Now()
	summary, err := p.prov().Events.SingleEvents(ctx, name)
	p.observeInteraction(providers.NameSingleAdverseEvents, start, err, summary != nil)
	rs.record(providers.NameSingleAdverseEvents+":"+name, ProviderStatus{
		Attempted: true,
		OK:        err == nil,
		ElapsedMS: ms(time.Since(start)),
		Error:     providers.ErrorKind(err),
	})

	outcome := evidence.PrimaryOutcome{Attempted: 1}
	if err == nil {
		outcome.Succeeded = 1
	}
	if err == nil && summary != nil {
		var benes int64
		method := ""
		if data != nil && data.exposure != nil {
			benes = data.exposure.Beneficiaries
			method = evidence.DenominatorSingleDrugA
		}
		records = append(records, evidence.StandardizeAdverseEvents(
			evidence.OriginSingleAdverseEvents,
			[]string{name},
			summary.TotalEvents, summary.SeriousEvents, summary.Outcomes,
			benes, method))
	}

	merged := evidence.Merge(records)
	severity := evidence.Consensus(merged)
	if len(merged) == 0 && severity == evidence.SeverityUnknown && outcome.Succeeded > 0 {
		severity = evidence.SeverityNone
	}

	return SingleReport{
		Item:       name,
		Original:   item.Original,
		Severity:   severity,
		Confidence: evidence.AggregateConfidence(merged, outcome),
		Sources:    merged,
		Summary:    singleSummary(merged, outcome, item.Original),
		KeyNotes:   keyNotes(merged),
	}
}

func singleSummary(merged []evidence.Record, outcome evidence.PrimaryOutcome, subject string) string {
	if lead := leadSource(merged); lead != nil && lead.Summary != "" {
		return lead.Summary
	}
	if outcome.Succeeded > 0 {
		return fmt.Sprintf("No notable safety signals found for %s.", subject)
	}
	return fmt.Sprintf("Limited evidence available for %s.", subject)
}

// triplePhase re-merges the union of each triple's three constituent pair
// source lists and re-runs consensus and confidence. No upstream calls
// happen here; everything derives from the pair phase.
func (p *Pipeline) triplePhase(rs *runState, triples [][3]normalize.Item, pairSources map[string][]evidence.Record) []TripleReport {
	reports := make([]TripleReport, 0, len(triples))
	for _, triple := range triples {
		a, b, c := triple[0], triple[1], triple[2]
		keys := []string{
			normalize.PairKey(a.Normalized, b.Normalized),
			normalize.PairKey(a.Normalized, c.Normalized),
			normalize.PairKey(b.Normalized, c.Normalized),
		}

		var (
			union   []evidence.Record
			outcome evidence.PrimaryOutcome
		)
		for _, key := range keys {
			union = append(union, pairSources[key]...)
			pairOutcome := rs.outcomeFor(key)
			outcome.Attempted += pairOutcome.Attempted
			outcome.Succeeded += pairOutcome.Succeeded
			outcome.RxNormFailed = outcome.RxNormFailed || pairOutcome.RxNormFailed
		}

		merged := evidence.Merge(union)
		severity := evidence.Consensus(merged)
		if len(merged) == 0 && severity == evidence.SeverityUnknown && outcome.Succeeded > 0 {
			severity = evidence.SeverityNone
		}

		subject := fmt.Sprintf("%s, %s and %s", a.Original, b.Original, c.Original)
		reports = append(reports, TripleReport{
			Items:      []string{a.Original, b.Original, c.Original},
			Severity:   severity,
			Confidence: evidence.AggregateConfidence(merged, outcome),
			Sources:    merged,
			Summary:    reportSummary(merged, outcome, subject),
			KeyNotes:   keyNotes(merged),
		})
	}
	return reports
}
