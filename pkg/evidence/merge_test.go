package evidence

import (
	"testing"
	"time"
)

func TestMerge_Empty(t *testing.T) {
	if got := Merge(nil); got != nil {
		t.Errorf("Merge(nil) = %v, want nil", got)
	}
}

func TestMerge_OneRecordPerOrigin(t *testing.T) {
	records := []Record{
		rec(OriginRxNormInteractions, SeverityModerate),
		rec(OriginRxNormInteractions, SeveritySevere),
		rec(OriginPairAdverseEvents, SeverityMild),
		rec(OriginPairAdverseEvents, SeverityMild),
		rec(OriginLiteratureAI, SeverityUnknown),
	}

	merged := Merge(records)
	if len(merged) != 3 {
		t.Fatalf("got %d merged records, want 3", len(merged))
	}
	seen := make(map[Origin]bool)
	for _, r := range merged {
		if seen[r.Origin] {
			t.Errorf("duplicate origin %q in merged output", r.Origin)
		}
		seen[r.Origin] = true
	}
}

func TestMerge_SeverityIsGroupMax(t *testing.T) {
	records := []Record{
		rec(OriginSupplementInteractions, SeverityMild),
		rec(OriginSupplementInteractions, SeveritySevere),
		rec(OriginSupplementInteractions, SeverityModerate),
	}
	merged := Merge(records)
	if len(merged) != 1 || merged[0].Severity != SeveritySevere {
		t.Errorf("merged severity = %v, want severe", merged)
	}
}

func TestMerge_ConfidenceIsGroupMean(t *testing.T) {
	records := []Record{
		{Origin: OriginPairAdverseEvents, Severity: SeverityMild, Confidence: 0.6},
		{Origin: OriginPairAdverseEvents, Severity: SeverityMild, Confidence: 0.8},
	}
	merged := Merge(records)
	if got := merged[0].Confidence; got < 0.699 || got > 0.701 {
		t.Errorf("merged confidence = %v, want 0.7", got)
	}
}

func TestMerge_FieldFolding(t *testing.T) {
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	records := []Record{
		{
			Origin:     OriginRxNormInteractions,
			Severity:   SeverityModerate,
			Summary:    "short",
			Details:    map[string]any{"a": 1, "b": "old"},
			Citations:  []string{"c1", "c2"},
			Stats:      &Stats{TotalEvents: 10},
			ObservedAt: later,
		},
		{
			Origin:     OriginRxNormInteractions,
			Severity:   SeverityMild,
			Summary:    "a much longer and more specific summary",
			Details:    map[string]any{"b": "new", "c": true},
			Citations:  []string{"c2", "c3"},
			Stats:      &Stats{SeriousEvents: 3},
			ObservedAt: earlier,
		},
	}

	m := Merge(records)[0]
	if m.Summary != "a much longer and more specific summary" {
		t.Errorf("summary = %q, want the longest", m.Summary)
	}
	if m.Details["b"] != "new" || m.Details["a"] != 1 || m.Details["c"] != true {
		t.Errorf("details union wrong: %v", m.Details)
	}
	if len(m.Citations) != 3 {
		t.Errorf("citations = %v, want set union of 3", m.Citations)
	}
	if m.Stats.TotalEvents != 10 || m.Stats.SeriousEvents != 3 {
		t.Errorf("stats union wrong: %+v", m.Stats)
	}
	if !m.ObservedAt.Equal(later) {
		t.Errorf("observedAt = %v, want most recent %v", m.ObservedAt, later)
	}
}

func TestMerge_StableOriginOrder(t *testing.T) {
	records := []Record{
		rec(OriginLiteratureAI, SeverityMild),
		rec(OriginRxNormInteractions, SeverityMild),
		rec(OriginLabelWarnings, SeverityModerate),
	}
	merged := Merge(records)
	want := []Origin{OriginRxNormInteractions, OriginLabelWarnings, OriginLiteratureAI}
	for i, o := range want {
		if merged[i].Origin != o {
			t.Fatalf("order = %v, want %v first at %d", merged, o, i)
		}
	}
}
