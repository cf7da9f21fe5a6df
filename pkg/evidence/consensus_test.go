package evidence

import "testing"

func rec(origin Origin, severity Severity) Record {
	return Record{
		Origin:     origin,
		Severity:   severity,
		Confidence: BaseConfidence(origin),
	}
}

func TestConsensus_Empty(t *testing.T) {
	if got := Consensus(nil); got != SeverityUnknown {
		t.Errorf("Consensus(nil) = %q, want unknown", got)
	}
}

func TestConsensus_HighReliabilitySevere(t *testing.T) {
	records := []Record{rec(OriginRxNormInteractions, SeveritySevere)}
	if got := Consensus(records); got != SeveritySevere {
		t.Errorf("got %q, want severe", got)
	}
}

func TestConsensus_LiteratureAloneCannotDriveSevere(t *testing.T) {
	// A lone literature record at severity severe (weight 0.5): no
	// high-reliability severe vote, combined weight below 1.5.
	records := []Record{rec(OriginLiteratureAI, SeveritySevere)}
	if got := Consensus(records); got != SeverityModerate {
		t.Errorf("got %q, want moderate", got)
	}
}

func TestConsensus_CombinedWeightCarriesSevere(t *testing.T) {
	// pair AE (0.7) + supplement (0.6) + literature (0.5) = 1.8 >= 1.5,
	// no high-reliability opposition.
	records := []Record{
		rec(OriginPairAdverseEvents, SeveritySevere),
		rec(OriginSupplementInteractions, SeveritySevere),
		rec(OriginLiteratureAI, SeveritySevere),
	}
	if got := Consensus(records); got != SeveritySevere {
		t.Errorf("got %q, want severe", got)
	}
}

func TestConsensus_HighReliabilityDemotion(t *testing.T) {
	// Adverse events vote severe (0.7 < 1.5), labels (high-reliability,
	// 0.9) vote moderate: demote to moderate.
	records := []Record{
		rec(OriginPairAdverseEvents, SeveritySevere),
		rec(OriginLabelWarnings, SeverityModerate),
	}
	if got := Consensus(records); got != SeverityModerate {
		t.Errorf("got %q, want moderate", got)
	}
}

func TestConsensus_OpposedCombinedWeight(t *testing.T) {
	// Severe tally 0.7+0.6+0.5 = 1.8 >= 1.5 but labels (0.9) oppose with
	// moderate; moderate weight 0.9 is not > 0.8*1.8, so severe stands.
	records := []Record{
		rec(OriginPairAdverseEvents, SeveritySevere),
		rec(OriginSupplementInteractions, SeveritySevere),
		rec(OriginLiteratureAI, SeveritySevere),
		rec(OriginLabelWarnings, SeverityModerate),
	}
	if got := Consensus(records); got != SeveritySevere {
		t.Errorf("got %q, want severe", got)
	}
}

func TestConsensus_OpposedCombinedWeightFlipsToModerate(t *testing.T) {
	// Severe tally 0.6+0.5 would be < 1.5, so build 0.7+0.5+0.6 = 1.8 and
	// give moderate 0.9 (labels) + 0.7 (single AE) = 1.6 > 0.8*1.8.
	records := []Record{
		rec(OriginPairAdverseEvents, SeveritySevere),
		rec(OriginSupplementInteractions, SeveritySevere),
		rec(OriginLiteratureAI, SeveritySevere),
		rec(OriginLabelWarnings, SeverityModerate),
		rec(OriginSingleAdverseEvents, SeverityModerate),
	}
	if got := Consensus(records); got != SeverityModerate {
		t.Errorf("got %q, want moderate", got)
	}
}

func TestConsensus_HighReliabilityAbstainDoesNotOppose(t *testing.T) {
	// Labels vote unknown (abstain); combined severe weight 1.8 carries.
	records := []Record{
		rec(OriginPairAdverseEvents, SeveritySevere),
		rec(OriginSupplementInteractions, SeveritySevere),
		rec(OriginLiteratureAI, SeveritySevere),
		rec(OriginLabelWarnings, SeverityUnknown),
	}
	if got := Consensus(records); got != SeveritySevere {
		t.Errorf("got %q, want severe", got)
	}
}

func TestConsensus_NoSevere_GreatestWeightWins(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    Severity
	}{
		{
			"moderate beats mild",
			[]Record{
				rec(OriginRxNormInteractions, SeverityModerate),
				rec(OriginLiteratureAI, SeverityMild),
			},
			SeverityModerate,
		},
		{
			"mild majority",
			[]Record{
				rec(OriginPairAdverseEvents, SeverityMild),
				rec(OriginSupplementInteractions, SeverityMild),
				rec(OriginLiteratureAI, SeverityModerate),
			},
			SeverityMild,
		},
		{
			"all none",
			[]Record{rec(OriginRxNormInteractions, SeverityNone)},
			SeverityNone,
		},
		{
			"all unknown",
			[]Record{rec(OriginLiteratureAI, SeverityUnknown)},
			SeverityUnknown,
		},
		{
			"greater weight beats listed order",
			[]Record{
				// label 0.9 moderate vs rxnorm 1.0 mild: mild wins on
				// weight even though moderate is listed first.
				rec(OriginLabelWarnings, SeverityModerate),
				rec(OriginRxNormInteractions, SeverityMild),
			},
			SeverityMild,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Consensus(tt.records); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// TestConsensus_SevereImpliesGuardrail checks the quantified invariant: a
// severe verdict implies a high-reliability severe vote, or combined severe
// weight >= 1.5 with moderate not overwhelming it.
func TestConsensus_SevereImpliesGuardrail(t *testing.T) {
	origins := []Origin{
		OriginRxNormInteractions,
		OriginLabelWarnings,
		OriginPairAdverseEvents,
		OriginSupplementInteractions,
		OriginLiteratureAI,
	}
	severities := []Severity{SeverityUnknown, SeverityNone, SeverityMild, SeverityModerate, SeveritySevere}

	// Enumerate all single- and two-record combinations.
	var cases [][]Record
	for _, o := range origins {
		for _, s := range severities {
			cases = append(cases, []Record{rec(o, s)})
		}
	}
	for i, oa := range origins {
		for _, ob := range origins[i+1:] {
			for _, sa := range severities {
				for _, sb := range severities {
					cases = append(cases, []Record{rec(oa, sa), rec(ob, sb)})
				}
			}
		}
	}

	for _, records := range cases {
		if Consensus(records) != SeveritySevere {
			continue
		}
		var severeWeight float64
		var highSevere bool
		for _, r := range records {
			if r.Severity == SeveritySevere {
				severeWeight += ReliabilityWeight(r.Origin)
				if ReliabilityWeight(r.Origin) >= 0.8 {
					highSevere = true
				}
			}
		}
		if !highSevere && severeWeight < 1.5 {
			t.Errorf("severe verdict without guardrail for %+v", records)
		}
	}
}
