package analysis

import (
	"fmt"

	"vitacheck/engine/pkg/evidence"
)

const maxKeyNotes = 3

// leadSource picks the record whose summary represents the report: the
// highest severity wins, ties resolved by the merger's presentation order.
func leadSource(merged []evidence.Record) *evidence.Record {
	var lead *evidence.Record
	for i := range merged {
		if lead == nil || merged[i].Severity.Rank() > lead.Severity.Rank() {
			lead = &merged[i]
		}
	}
	return lead
}

// reportSummary renders the report's one-line summary. Three cases: a lead
// source speaks for itself; primaries that looked and found nothing say so;
// anything else is an evidence gap.
func reportSummary(merged []evidence.Record, outcome evidence.PrimaryOutcome, subject string) string {
	if lead := leadSource(merged); lead != nil {
		if lead.Summary != "" {
			return lead.Summary
		}
		return fmt.Sprintf("Potential %s interaction involving %s.", lead.Severity, subject)
	}
	if outcome.Succeeded > 0 {
		return fmt.Sprintf("No significant interactions found between %s.", subject)
	}
	return fmt.Sprintf("Limited evidence available for %s.", subject)
}

func pairSubject(a, b string) string {
	return a + " and " + b
}

// keyNotes selects up to three supporting notes: the most reported adverse
// event reactions first, then the summaries of non-lead sources.
func keyNotes(merged []evidence.Record) []string {
	var notes []string
	lead := leadSource(merged)

	for _, rec := range merged {
		if rec.Stats == nil || rec.Details == nil {
			continue
		}
		if outcomes := outcomeCounts(rec.Details["outcomes"]); len(outcomes) > 0 {
			top := evidence.TopOutcomes(outcomes, maxKeyNotes)
			notes = append(notes, "Most reported reactions: "+joinComma(top))
			break
		}
	}

	for i := range merged {
		if len(notes) >= maxKeyNotes {
			break
		}
		rec := &merged[i]
		if rec == lead || rec.Summary == "" {
			continue
		}
		notes = append(notes, rec.Summary)
	}
	if len(notes) > maxKeyNotes {
		notes = notes[:maxKeyNotes]
	}
	return notes
}

// outcomeCounts reads the reaction tally out of a record's details. Fresh
// records carry map[string]int; records that crossed a JSON round trip via
// the pair cache carry map[string]any with float64 counts.
func outcomeCounts(v any) map[string]int {
	switch m := v.(type) {
	case map[string]int:
		return m
	case map[string]any:
		out := make(map[string]int, len(m))
		for term, raw := range m {
			if count, ok := raw.(float64); ok {
				out[term] = int(count)
			}
		}
		return out
	}
	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, part := range parts {
		if i > 0 {
			out += ", "
		}
		out += part
	}
	return out
}
