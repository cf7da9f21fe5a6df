package evidence

import "time"

// Severity is the closed severity tag set with total order
// unknown < none < mild < moderate < severe.
//
// "Unknown" means evidence was insufficient to decide; "none" means at least
// one primary source looked and found nothing. The two are distinct and must
// never be conflated.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// severityRank orders severities for comparison. Higher is more severe.
var severityRank = map[Severity]int{
	SeverityUnknown:  0,
	SeverityNone:     1,
	SeverityMild:     2,
	SeverityModerate: 3,
	SeveritySevere:   4,
}

// Rank returns the position of s in the severity total order.
// Unrecognized values rank as unknown.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MaxSeverity returns the greater of a and b under the severity total order.
func MaxSeverity(a, b Severity) Severity {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// TranslateSeverity maps a provider's own severity label onto the closed tag
// set: major|severe → severe, moderate → moderate, minor|mild → mild,
// anything else → unknown.
func TranslateSeverity(label string) Severity {
	switch normalizeToken(label) {
	case "major", "severe":
		return SeveritySevere
	case "moderate":
		return SeverityModerate
	case "minor", "mild":
		return SeverityMild
	default:
		return SeverityUnknown
	}
}

func normalizeToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c >= 'a' && c <= 'z' {
			out = append(out, c)
		}
	}
	return string(out)
}

// Origin identifies the logical source family of an evidence record.
// It is a closed enumeration; the merger produces at most one record per
// origin.
type Origin string

const (
	OriginRxNormInteractions     Origin = "rxnorm_interactions"
	OriginPairAdverseEvents      Origin = "pair_adverse_events"
	OriginSupplementInteractions Origin = "supplement_interactions"
	OriginLabelWarnings          Origin = "label_warnings"
	OriginLiteratureAI           Origin = "literature_ai"
	OriginSingleAdverseEvents    Origin = "single_drug_adverse_events"
)

// originOrder fixes the presentation order of merged source lists so report
// output is stable across runs. Primaries first, by reliability.
var originOrder = []Origin{
	OriginRxNormInteractions,
	OriginLabelWarnings,
	OriginPairAdverseEvents,
	OriginSupplementInteractions,
	OriginLiteratureAI,
	OriginSingleAdverseEvents,
}

// IsPrimary reports whether the origin directly tests for an interaction
// between a pair. Label warnings and literature are secondary.
func (o Origin) IsPrimary() bool {
	switch o {
	case OriginRxNormInteractions, OriginPairAdverseEvents, OriginSupplementInteractions:
		return true
	}
	return false
}

// Denominator methods recorded on adverse-event stats when an exposure
// denominator is known.
const (
	DenominatorMinOfPair   = "min_of_pair"
	DenominatorSingleDrugA = "single_drug_a"
	DenominatorSingleDrugB = "single_drug_b"
)

// Stats carries the numeric facts behind an adverse-event record.
// Rates are present only when the corresponding denominator is known; they
// are never fabricated.
type Stats struct {
	TotalEvents       int     `json:"totalEvents"`
	SeriousEvents     int     `json:"seriousEvents"`
	Beneficiaries     int64   `json:"beneficiaries,omitempty"`
	EventRate         float64 `json:"eventRate,omitempty"`
	SeriousEventRate  float64 `json:"seriousEventRate,omitempty"`
	DenominatorMethod string  `json:"denominatorMethod,omitempty"`
}

// Record is the uniform evidence shape every standardizer produces.
type Record struct {
	Origin     Origin         `json:"origin"`
	Severity   Severity       `json:"severity"`
	Confidence float64        `json:"confidence"`
	Summary    string         `json:"summary"`
	Details    map[string]any `json:"details,omitempty"`
	Citations  []string       `json:"citations,omitempty"`
	Stats      *Stats         `json:"stats,omitempty"`
	ObservedAt time.Time      `json:"observedAt"`
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
