package evidence

import "math"

// BaseConfidence returns the per-source base confidence used to seed each
// record and to weight the aggregate. Origins outside the table seed at 0.5.
func BaseConfidence(o Origin) float64 {
	if c, ok := baseConfidence[o]; ok {
		return c
	}
	return 0.5
}

var baseConfidence = map[Origin]float64{
	OriginRxNormInteractions:     0.85,
	OriginLabelWarnings:          0.80,
	OriginSupplementInteractions: 0.70,
	OriginPairAdverseEvents:      0.65,
	OriginLiteratureAI:           0.60,
	OriginSingleAdverseEvents:    0.65,
}

// ConfidenceCap is the hard ceiling on any confidence value; evidence is
// never certain.
const ConfidenceCap = 0.95

// Baseline confidence by count of primary sources that ran successfully,
// applied when the merged evidence set is empty.
const (
	baselineOnePrimary    = 0.30
	baselineTwoPrimaries  = 0.50
	baselineManyPrimaries = 0.70
)

// recordConfidence computes a record's confidence: the origin's base value
// plus bounded additive adjustments from its stats, scaled down when the
// record could not decide a severity, clamped to [0, 1].
func recordConfidence(origin Origin, severity Severity, stats *Stats) float64 {
	c := BaseConfidence(origin)

	if stats != nil {
		if stats.Beneficiaries > 0 {
			c += math.Min(math.Log10(float64(stats.Beneficiaries)+1)/10, 0.15)
		}
		if stats.EventRate > 0 && stats.SeriousEventRate > 0 {
			c += 0.05
		}
		switch {
		case stats.TotalEvents > 1000:
			c += 0.05
		case stats.TotalEvents > 100:
			c += 0.02
		case stats.TotalEvents < 10:
			c -= 0.05
		}
	}

	if severity == SeverityUnknown {
		c *= 0.7
	}
	return clamp01(c)
}

// PrimaryOutcome summarizes how the primary sources fared for a pair; the
// aggregate confidence guardrails key off it.
type PrimaryOutcome struct {
	// Attempted is the number of primary sources that were attempted.
	Attempted int

	// Succeeded is the number of primary sources that completed without
	// error (a normalized "found nothing" still counts as success).
	Succeeded int

	// RxNormFailed reports that rxnorm_interactions was attempted and
	// returned an error. The curated interaction graph is the anchor
	// source; losing it zeroes the aggregate.
	RxNormFailed bool
}

// AggregateConfidence reduces merged records to a single confidence in
// [0, ConfidenceCap]: the mean of per-record confidences weighted by each
// origin's base confidence.
//
// Guardrails, in order:
//   - no primary source succeeded, or rxnorm failed → 0
//   - empty merged set with primaries succeeding → baseline by count
//     (1 → 0.30, 2 → 0.50, 3+ → 0.70)
//   - never above ConfidenceCap
func AggregateConfidence(merged []Record, outcome PrimaryOutcome) float64 {
	if outcome.Succeeded == 0 || outcome.RxNormFailed {
		return 0
	}

	if len(merged) == 0 {
		switch {
		case outcome.Succeeded >= 3:
			return baselineManyPrimaries
		case outcome.Succeeded == 2:
			return baselineTwoPrimaries
		default:
			return baselineOnePrimary
		}
	}

	var weightedSum, weightSum float64
	for _, r := range merged {
		w := BaseConfidence(r.Origin)
		weightedSum += w * r.Confidence
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return math.Min(weightedSum/weightSum, ConfidenceCap)
}
