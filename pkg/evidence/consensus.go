package evidence

// ReliabilityWeight returns the fixed reliability weight of an origin for
// consensus voting. Origins outside the table weigh 0.5.
func ReliabilityWeight(o Origin) float64 {
	if w, ok := reliabilityWeights[o]; ok {
		return w
	}
	return 0.5
}

var reliabilityWeights = map[Origin]float64{
	OriginRxNormInteractions:     1.0,
	OriginLabelWarnings:          0.9,
	OriginPairAdverseEvents:      0.7,
	OriginSupplementInteractions: 0.6,
	OriginLiteratureAI:           0.5,
	OriginSingleAdverseEvents:    0.7,
}

// highReliabilityThreshold classifies records as high-reliability when their
// origin weight is at least this value.
const highReliabilityThreshold = 0.8

// combinedSevereThreshold is the combined weight at "severe" that can carry
// a severe verdict without a high-reliability severe vote, provided no
// high-reliability record opposes it.
const combinedSevereThreshold = 1.5

// moderateVsSevereRatio: when an opposed severe tally is being reconsidered,
// moderate wins if it holds more than this share of the severe weight.
const moderateVsSevereRatio = 0.8

// Consensus selects the consensus severity for a merged record list by
// weighted vote with reliability guardrails.
//
// A severe verdict requires either a high-reliability severe vote, or a
// combined severe weight of at least 1.5 that no high-reliability record
// opposes. A lone low-reliability severe vote (for example literature alone)
// is demoted to moderate. An empty input returns unknown; lifting unknown to
// "none" when primaries looked and found nothing is the orchestrator's job,
// not this function's.
func Consensus(records []Record) Severity {
	if len(records) == 0 {
		return SeverityUnknown
	}

	tally := make(map[Severity]float64, 5)
	var highSevere, highOpposed bool
	for _, r := range records {
		w := ReliabilityWeight(r.Origin)
		tally[r.Severity] += w
		if w >= highReliabilityThreshold {
			switch r.Severity {
			case SeveritySevere:
				highSevere = true
			case SeverityUnknown:
				// Abstains.
			default:
				highOpposed = true
			}
		}
	}

	if tally[SeveritySevere] > 0 {
		switch {
		case highSevere:
			return SeveritySevere
		case tally[SeveritySevere] >= combinedSevereThreshold:
			if !highOpposed {
				return SeveritySevere
			}
			if tally[SeverityModerate] > moderateVsSevereRatio*tally[SeveritySevere] {
				return SeverityModerate
			}
			return SeveritySevere
		case highOpposed:
			return SeverityModerate
		case tally[SeverityModerate] > 0:
			return SeverityModerate
		default:
			// Low-reliability severe weight below the combined threshold
			// cannot carry severe on its own.
			return SeverityModerate
		}
	}

	// No severe weight: greatest weight wins, ties broken in listed order.
	best := SeverityUnknown
	bestWeight := 0.0
	for _, s := range []Severity{SeverityModerate, SeverityMild, SeverityNone, SeverityUnknown} {
		if tally[s] > bestWeight {
			best = s
			bestWeight = tally[s]
		}
	}
	return best
}
