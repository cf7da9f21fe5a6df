package analysis

import (
	"vitacheck/engine/pkg/evidence"
	"vitacheck/engine/pkg/normalize"
)

// CalcVersion scopes cached pair reports to the current calculation rules.
// Bump it whenever consensus weights, confidence tables, or report assembly
// change; the retention sweeper purges entries from older versions.
const CalcVersion = "2026-07-vc3"

// RequestItem is one substance in an analysis request.
type RequestItem struct {
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Options toggle optional providers and debug output per request.
type Options struct {
	IncludeAI    bool `json:"includeAi,omitempty"`
	IncludeCMS   bool `json:"includeCms,omitempty"`
	Debug        bool `json:"debug,omitempty"`
	ForceRefresh bool `json:"forceRefresh,omitempty"`
}

// Request is the analysis request body.
type Request struct {
	Items   []RequestItem `json:"items"`
	Options Options       `json:"options"`
}

// Values extracts the raw item values for normalization.
func (r *Request) Values() []string {
	out := make([]string, len(r.Items))
	for i, item := range r.Items {
		out[i] = item.Value
	}
	return out
}

// SingleReport describes one substance on its own: its label warnings plus
// single-drug adverse event reports.
type SingleReport struct {
	Item       string            `json:"item"`
	Original   string            `json:"original"`
	Severity   evidence.Severity `json:"severity"`
	Confidence float64           `json:"confidence"`
	Sources    []evidence.Record `json:"sources"`
	Summary    string            `json:"summary"`
	KeyNotes   []string          `json:"keyNotes,omitempty"`
}

// PairReport is the full analysis of one pair. Sources holds at most one
// record per origin; Severity is the consensus output and Confidence the
// aggregate over Sources.
type PairReport struct {
	AOriginal  string            `json:"aOriginal"`
	BOriginal  string            `json:"bOriginal"`
	Severity   evidence.Severity `json:"severity"`
	Confidence float64           `json:"confidence"`
	Sources    []evidence.Record `json:"sources"`
	Summary    string            `json:"summary"`
	KeyNotes   []string          `json:"keyNotes,omitempty"`
}

// TripleReport aggregates three items. Its sources are the re-merged union
// of the three constituent pairs' sources; the triple phase makes no new
// upstream calls.
type TripleReport struct {
	Items      []string          `json:"items"`
	Severity   evidence.Severity `json:"severity"`
	Confidence float64           `json:"confidence"`
	Sources    []evidence.Record `json:"sources"`
	Summary    string            `json:"summary"`
	KeyNotes   []string          `json:"keyNotes,omitempty"`
}

// Results groups the three report lists. Order within each list is
// unspecified; callers must not rely on it.
type Results struct {
	Singles []SingleReport `json:"singles"`
	Pairs   []PairReport   `json:"pairs"`
	Triples []TripleReport `json:"triples"`
}

// CacheStats counts cache activity for one request.
type CacheStats struct {
	MedLookupHits   int `json:"medLookupHits"`
	MedLookupMisses int `json:"medLookupMisses"`
	PairCacheHits   int `json:"pairCacheHits"`
	PairCacheMisses int `json:"pairCacheMisses"`
	CMSCacheHits    int `json:"cmsCacheHits"`
	CMSCacheMisses  int `json:"cmsCacheMisses"`
}

// Timing records wall-clock phase durations in milliseconds.
type Timing struct {
	TotalMS            int64 `json:"totalMs"`
	LookupMS           int64 `json:"lookupMs"`
	PairProcessingMS   int64 `json:"pairProcessingMs"`
	TripleProcessingMS int64 `json:"tripleProcessingMs"`
}

// Meta carries response metadata.
type Meta struct {
	CalcVersion string     `json:"calcVersion"`
	CacheStats  CacheStats `json:"cacheStats"`
	Timing      Timing     `json:"timing"`
}

// ProviderStatus is one debug trace entry. Ok semantics differ by family:
// for interactions providers a normalized not-found is still ok; for lookup
// providers an absent identifier is not.
type ProviderStatus struct {
	Attempted bool   `json:"attempted"`
	OK        bool   `json:"ok"`
	ElapsedMS int64  `json:"elapsedMs"`
	Cached    bool   `json:"cached"`
	Error     string `json:"error,omitempty"`
}

// Debug is the optional trace section of the response.
type Debug struct {
	ProviderStatuses map[string]ProviderStatus `json:"providerStatuses"`
	RxCUIResolutions map[string]string         `json:"rxcuiResolutions,omitempty"`
}

// Response is the analysis response body.
type Response struct {
	Items   []normalize.Item `json:"items"`
	Results Results          `json:"results"`
	Meta    Meta             `json:"meta"`
	Debug   *Debug           `json:"debug,omitempty"`
}
