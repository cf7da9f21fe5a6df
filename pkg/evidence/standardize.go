package evidence

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Count thresholds for severity derived from adverse-event reports.
// With no exposure denominator, raw counts are the only signal available.
const (
	seriousCountSevere   = 1000
	seriousCountModerate = 100
)

// Rate thresholds override count-derived severity when an exposure
// denominator is known.
const (
	seriousRateSevere   = 1e-2
	seriousRateModerate = 1e-3
)

// StandardizeInteraction maps an interaction finding (RxNorm or supplement)
// into a uniform record. The provider's own severity label is translated by
// the fixed token map; the description becomes the summary.
func StandardizeInteraction(origin Origin, severityLabel, description, source string, citations []string) Record {
	severity := TranslateSeverity(severityLabel)
	details := map[string]any{}
	if severityLabel != "" {
		details["providerSeverity"] = severityLabel
	}
	if source != "" {
		details["source"] = source
	}
	return Record{
		Origin:     origin,
		Severity:   severity,
		Confidence: recordConfidence(origin, severity, nil),
		Summary:    description,
		Details:    details,
		Citations:  citations,
		ObservedAt: time.Now().UTC(),
	}
}

// StandardizeLabel maps a set of FDA label warnings into a record.
// Label warnings are always tagged moderate: the agency does not publish
// severity grades, and a warning section is at least a moderate signal.
func StandardizeLabel(productName string, warnings []string) Record {
	summary := ""
	if len(warnings) > 0 {
		summary = firstSentence(warnings[0])
	}
	details := map[string]any{
		"warningCount": len(warnings),
	}
	if productName != "" {
		details["productName"] = productName
	}
	if len(warnings) > 0 {
		details["warnings"] = warnings
	}
	return Record{
		Origin:     OriginLabelWarnings,
		Severity:   SeverityModerate,
		Confidence: recordConfidence(OriginLabelWarnings, SeverityModerate, nil),
		Summary:    summary,
		Details:    details,
		ObservedAt: time.Now().UTC(),
	}
}

// StandardizeAdverseEvents maps FAERS-style event counts into a record.
//
// Severity derives from serious-event counts (>1000 severe, >100 moderate,
// >0 mild) and, when beneficiaries is positive, is overridden by the serious
// event rate (>1e-2 severe, >1e-3 moderate). Rates are only computed when a
// denominator is known; denominatorMethod records how it was chosen.
func StandardizeAdverseEvents(origin Origin, itemNames []string, totalEvents, seriousEvents int, outcomes map[string]int, beneficiaries int64, denominatorMethod string) Record {
	stats := &Stats{
		TotalEvents:   totalEvents,
		SeriousEvents: seriousEvents,
	}
	if beneficiaries > 0 {
		stats.Beneficiaries = beneficiaries
		stats.EventRate = float64(totalEvents) / float64(beneficiaries)
		stats.SeriousEventRate = float64(seriousEvents) / float64(beneficiaries)
		stats.DenominatorMethod = denominatorMethod
	}

	severity := SeverityUnknown
	switch {
	case seriousEvents > seriousCountSevere:
		severity = SeveritySevere
	case seriousEvents > seriousCountModerate:
		severity = SeverityModerate
	case seriousEvents > 0:
		severity = SeverityMild
	}
	if stats.SeriousEventRate > seriousRateSevere {
		severity = SeveritySevere
	} else if stats.SeriousEventRate > seriousRateModerate {
		severity = MaxSeverity(severity, SeverityModerate)
	}

	details := map[string]any{
		"items": itemNames,
	}
	if len(outcomes) > 0 {
		details["outcomes"] = outcomes
	}

	return Record{
		Origin:     origin,
		Severity:   severity,
		Confidence: recordConfidence(origin, severity, stats),
		Summary:    adverseEventSummary(itemNames, totalEvents, seriousEvents),
		Details:    details,
		Stats:      stats,
		ObservedAt: time.Now().UTC(),
	}
}

func adverseEventSummary(itemNames []string, total, serious int) string {
	subject := strings.Join(itemNames, " and ")
	if total == 0 {
		return fmt.Sprintf("No adverse event reports found for %s.", subject)
	}
	return fmt.Sprintf("%d adverse event reports involve %s, %d of them serious.", total, subject, serious)
}

// firstSentence truncates a warning to its first sentence, capped at 240
// characters so report summaries stay short.
func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ". "); idx > 0 {
		s = s[:idx+1]
	}
	if len(s) > 240 {
		s = s[:237] + "..."
	}
	return s
}

// TopOutcomes returns the n most frequent outcome terms, for key notes.
func TopOutcomes(outcomes map[string]int, n int) []string {
	type kv struct {
		term  string
		count int
	}
	sorted := make([]kv, 0, len(outcomes))
	for term, count := range outcomes {
		sorted = append(sorted, kv{term, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].term < sorted[j].term
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]string, len(sorted))
	for i, e := range sorted {
		out[i] = e.term
	}
	return out
}
