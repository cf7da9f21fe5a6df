package evidence

// Merge folds multiple records sharing an origin into one record per origin.
//
// Per group: severity is the maximum under the total order, confidence is the
// arithmetic mean (a group's confidence reflects that origin's evidence
// quality, not severity escalation), details and stats are key-wise unions
// with later entries overwriting earlier ones, citations are a set union,
// the summary is the longest of the group (longest implies most specific),
// and observedAt is the most recent.
//
// The result is ordered by the fixed origin presentation order so report
// output is stable. Merge(nil) returns nil.
func Merge(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[Origin][]Record, len(records))
	for _, r := range records {
		groups[r.Origin] = append(groups[r.Origin], r)
	}

	merged := make([]Record, 0, len(groups))
	for _, origin := range originOrder {
		group, ok := groups[origin]
		if !ok {
			continue
		}
		merged = append(merged, mergeGroup(origin, group))
		delete(groups, origin)
	}
	// Origins outside the fixed order list (none today) keep their records
	// rather than being dropped.
	for origin, group := range groups {
		merged = append(merged, mergeGroup(origin, group))
	}
	return merged
}

func mergeGroup(origin Origin, group []Record) Record {
	out := Record{Origin: origin, Severity: SeverityUnknown}

	var confidenceSum float64
	citationSet := make(map[string]bool)

	for _, r := range group {
		out.Severity = MaxSeverity(out.Severity, r.Severity)
		confidenceSum += r.Confidence

		if len(r.Summary) > len(out.Summary) {
			out.Summary = r.Summary
		}
		if r.ObservedAt.After(out.ObservedAt) {
			out.ObservedAt = r.ObservedAt
		}
		for k, v := range r.Details {
			if out.Details == nil {
				out.Details = make(map[string]any)
			}
			out.Details[k] = v
		}
		if r.Stats != nil {
			if out.Stats == nil {
				out.Stats = &Stats{}
			}
			mergeStats(out.Stats, r.Stats)
		}
		for _, c := range r.Citations {
			if !citationSet[c] {
				citationSet[c] = true
				out.Citations = append(out.Citations, c)
			}
		}
	}

	out.Confidence = clamp01(confidenceSum / float64(len(group)))
	return out
}

// mergeStats overlays src onto dst field-wise; set fields in src win.
func mergeStats(dst, src *Stats) {
	if src.TotalEvents != 0 {
		dst.TotalEvents = src.TotalEvents
	}
	if src.SeriousEvents != 0 {
		dst.SeriousEvents = src.SeriousEvents
	}
	if src.Beneficiaries != 0 {
		dst.Beneficiaries = src.Beneficiaries
	}
	if src.EventRate != 0 {
		dst.EventRate = src.EventRate
	}
	if src.SeriousEventRate != 0 {
		dst.SeriousEventRate = src.SeriousEventRate
	}
	if src.DenominatorMethod != "" {
		dst.DenominatorMethod = src.DenominatorMethod
	}
}
