package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"vitacheck/engine/pkg/evidence"
	"vitacheck/engine/pkg/fetch"
	"vitacheck/engine/pkg/normalize"
	"vitacheck/engine/pkg/providers"
	"vitacheck/engine/pkg/store"
	"vitacheck/engine/pkg/telemetry"
)

// Scripted providers. Each stub answers from fixed tables and counts calls
// so tests can assert what the pipeline actually fetched.

type stubRxNorm struct {
	mu               sync.Mutex
	lookups          map[string]string
	findings         map[string]*providers.InteractionFinding
	interactionErr   error
	interactionCalls int
	lookupCalls      int
}

func (s *stubRxNorm) Lookup(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	s.lookupCalls++
	s.mu.Unlock()
	return s.lookups[name], nil
}

func (s *stubRxNorm) Interactions(_ context.Context, rxcuiA, rxcuiB string) (*providers.InteractionFinding, error) {
	s.mu.Lock()
	s.interactionCalls++
	s.mu.Unlock()
	if s.interactionErr != nil {
		return nil, s.interactionErr
	}
	return s.findings[rxcuiA+"|"+rxcuiB], nil
}

func (s *stubRxNorm) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interactionCalls
}

func (s *stubRxNorm) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupCalls
}

type stubSupplement struct {
	enabled bool
	ids     map[string]string
	matches []providers.SupplementInteraction
	err     error
}

func (s *stubSupplement) Enabled() bool { return s.enabled }

func (s *stubSupplement) Lookup(_ context.Context, name string) (string, error) {
	if !s.enabled {
		return "", &providers.MissingCredentialError{Provider: providers.NameSupplementLookup}
	}
	return s.ids[name], nil
}

func (s *stubSupplement) Interactions(_ context.Context, _, _, _, _ string) ([]providers.SupplementInteraction, error) {
	if !s.enabled {
		return nil, &providers.MissingCredentialError{Provider: providers.NameSupplementInteractions}
	}
	return s.matches, s.err
}

type stubLabels struct {
	mu         sync.Mutex
	byName     map[string]*providers.LabelResult
	fetchCalls int
}

func (s *stubLabels) Fetch(_ context.Context, name, _ string) (*providers.LabelResult, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.mu.Unlock()
	return s.byName[name], nil
}

func (s *stubLabels) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

type stubEvents struct {
	pair      *providers.EventSummary
	pairErr   error
	single    *providers.EventSummary
	singleErr error
}

func (s *stubEvents) PairEvents(_ context.Context, _, _ string) (*providers.EventSummary, error) {
	return s.pair, s.pairErr
}

func (s *stubEvents) SingleEvents(_ context.Context, _ string) (*providers.EventSummary, error) {
	return s.single, s.singleErr
}

type stubExposure struct {
	enabled bool
	result  *providers.ExposureResult
}

func (s *stubExposure) Enabled() bool { return s.enabled }

func (s *stubExposure) Beneficiaries(_ context.Context, _ string) (*providers.ExposureResult, error) {
	return s.result, nil
}

type stubLiterature struct {
	enabled bool
	rec     *evidence.Record
}

func (s *stubLiterature) Enabled() bool { return s.enabled }

func (s *stubLiterature) Assess(_ context.Context, _, _ string, _ []string) (*evidence.Record, error) {
	if !s.enabled {
		return nil, &providers.MissingCredentialError{Provider: providers.NameLiterature}
	}
	return s.rec, nil
}

// quietProviders returns a provider set where every adapter answers
// "looked, found nothing" and the optional ones are disabled.
func quietProviders() Providers {
	return Providers{
		RxNorm:     &stubRxNorm{lookups: map[string]string{}, findings: map[string]*providers.InteractionFinding{}},
		Supplement: &stubSupplement{},
		Labels:     &stubLabels{byName: map[string]*providers.LabelResult{}},
		Events:     &stubEvents{},
		Exposure:   &stubExposure{},
		Literature: &stubLiterature{},
	}
}

func newTestPipeline(p Providers, cache store.Cache) (*Pipeline, *store.MemoryUsageLog) {
	usage := store.NewMemoryUsageLog()
	return NewPipeline(p, cache, usage, telemetry.NewMetrics(), Config{}), usage
}

func request(values ...string) *Request {
	req := &Request{}
	for _, v := range values {
		req.Items = append(req.Items, RequestItem{Value: v})
	}
	return req
}

func TestAnalyze_RxNormOnlySevere(t *testing.T) {
	p := quietProviders()
	rx := p.RxNorm.(*stubRxNorm)
	rx.lookups = map[string]string{"warfarin": "11289", "ibuprofen": "5640"}
	finding := &providers.InteractionFinding{
		Severity:    "major",
		Description: "Increased risk of bleeding.",
		Source:      "DrugBank",
	}
	rx.findings["11289|5640"] = finding
	rx.findings["5640|11289"] = finding

	pipeline, _ := newTestPipeline(p, store.NewMemoryCache())
	resp, err := pipeline.Analyze(context.Background(), request("warfarin", "ibuprofen"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(resp.Results.Pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(resp.Results.Pairs))
	}
	pair := resp.Results.Pairs[0]
	if pair.Severity != evidence.SeveritySevere {
		t.Errorf("severity = %s, want severe", pair.Severity)
	}
	if math.Abs(pair.Confidence-0.85) > 1e-6 {
		t.Errorf("confidence = %f, want 0.85", pair.Confidence)
	}
	if len(pair.Sources) != 1 || pair.Sources[0].Origin != evidence.OriginRxNormInteractions {
		t.Errorf("unexpected sources: %+v", pair.Sources)
	}
	if pair.Summary != "Increased risk of bleeding." {
		t.Errorf("summary = %q", pair.Summary)
	}
	if len(resp.Results.Singles) != 2 || len(resp.Results.Triples) != 0 {
		t.Errorf("singles/triples = %d/%d, want 2/0",
			len(resp.Results.Singles), len(resp.Results.Triples))
	}
}

func TestAnalyze_NormalizedEmptyIsNone(t *testing.T) {
	p := quietProviders()
	p.RxNorm.(*stubRxNorm).lookups = map[string]string{"metformin": "6809", "ibuprofen": "5640"}

	pipeline, _ := newTestPipeline(p, store.NewMemoryCache())
	resp, err := pipeline.Analyze(context.Background(), request("metformin", "ibuprofen"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pair := resp.Results.Pairs[0]
	if pair.Severity != evidence.SeverityNone {
		t.Errorf("severity = %s, want none", pair.Severity)
	}
	if pair.Confidence < 0.30 || pair.Confidence > 0.70 {
		t.Errorf("confidence = %f, want baseline in [0.30, 0.70]", pair.Confidence)
	}
	if !strings.HasPrefix(pair.Summary, "No significant interactions found") {
		t.Errorf("summary = %q", pair.Summary)
	}
	if len(pair.Sources) != 0 {
		t.Errorf("expected no sources, got %+v", pair.Sources)
	}
}

func TestAnalyze_LookupGapIsUnknownWithZeroConfidence(t *testing.T) {
	p := quietProviders()
	// Only one identifier resolves, and the event provider is down.
	p.RxNorm.(*stubRxNorm).lookups = map[string]string{"warfarin": "11289"}
	p.Events.(*stubEvents).pairErr = &fetch.TransportError{
		Provider: providers.NamePairAdverseEvents, StatusCode: 503,
	}

	pipeline, _ := newTestPipeline(p, store.NewMemoryCache())
	req := request("warfarin", "obscureium")
	req.Options.Debug = true
	resp, err := pipeline.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pair := resp.Results.Pairs[0]
	if pair.Severity != evidence.SeverityUnknown {
		t.Errorf("severity = %s, want unknown", pair.Severity)
	}
	if pair.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", pair.Confidence)
	}
	if !strings.HasPrefix(pair.Summary, "Limited evidence available") {
		t.Errorf("summary = %q", pair.Summary)
	}

	key := normalize.PairKey("warfarin", "obscureium")
	status, ok := resp.Debug.ProviderStatuses[providers.NameRxNormInteractions+":"+key]
	if !ok || status.Attempted {
		t.Errorf("rxnorm_interactions must be skipped, status = %+v", status)
	}
	if status := resp.Debug.ProviderStatuses[providers.NamePairAdverseEvents+":"+key]; status.OK {
		t.Errorf("pair_adverse_events must report failure, status = %+v", status)
	}
}

func TestAnalyze_DemotionByHighReliabilityModerate(t *testing.T) {
	p := quietProviders()
	p.RxNorm.(*stubRxNorm).lookups = map[string]string{"warfarin": "11289", "ibuprofen": "5640"}
	// A severe count signal from event reports...
	p.Events.(*stubEvents).pair = &providers.EventSummary{TotalEvents: 5000, SeriousEvents: 2000}
	// ...opposed by a high-reliability label source saying moderate.
	p.Labels.(*stubLabels).byName["warfarin"] = &providers.LabelResult{
		ProductName: "COUMADIN",
		Warnings:    []string{"Concomitant use with ibuprofen increases bleeding risk."},
	}

	pipeline, _ := newTestPipeline(p, store.NewMemoryCache())
	resp, err := pipeline.Analyze(context.Background(), request("warfarin", "ibuprofen"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pair := resp.Results.Pairs[0]
	if pair.Severity != evidence.SeverityModerate {
		t.Errorf("severity = %s, want moderate (high-reliability demotion)", pair.Severity)
	}
	origins := map[evidence.Origin]bool{}
	for _, src := range pair.Sources {
		origins[src.Origin] = true
	}
	if !origins[evidence.OriginLabelWarnings] || !origins[evidence.OriginPairAdverseEvents] {
		t.Errorf("expected label and event sources, got %+v", pair.Sources)
	}
}

func TestAnalyze_LiteratureAloneCannotDriveSevere(t *testing.T) {
	p := quietProviders()
	p.RxNorm.(*stubRxNorm).lookups = map[string]string{"kava": "100", "valerian": "200"}
	rec := evidence.StandardizeInteraction(
		evidence.OriginLiteratureAI, "severe", "Case reports describe additive sedation.", "literature", nil)
	p.Literature = &stubLiterature{enabled: true, rec: &rec}

	pipeline, _ := newTestPipeline(p, store.NewMemoryCache())
	req := request("kava", "valerian")
	req.Options.IncludeAI = true
	resp, err := pipeline.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pair := resp.Results.Pairs[0]
	if pair.Severity != evidence.SeverityModerate {
		t.Errorf("severity = %s, want moderate (lone literature severe)", pair.Severity)
	}
}

func TestAnalyze_PairCacheRoundTrip(t *testing.T) {
	p := quietProviders()
	rx := p.RxNorm.(*stubRxNorm)
	rx.lookups = map[string]string{"warfarin": "11289", "ibuprofen": "5640"}
	finding := &providers.InteractionFinding{Severity: "major", Description: "Bleeding risk.", Source: "DrugBank"}
	rx.findings["11289|5640"] = finding
	rx.findings["5640|11289"] = finding

	cache := store.NewMemoryCache()
	pipeline, _ := newTestPipeline(p, cache)
	ctx := context.Background()

	first, err := pipeline.Analyze(ctx, request("warfarin", "ibuprofen"))
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if first.Meta.CacheStats.PairCacheMisses != 1 {
		t.Errorf("first run pair misses = %d, want 1", first.Meta.CacheStats.PairCacheMisses)
	}

	second, err := pipeline.Analyze(ctx, request("warfarin", "ibuprofen"))
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if second.Meta.CacheStats.PairCacheHits != 1 {
		t.Errorf("second run pair hits = %d, want 1", second.Meta.CacheStats.PairCacheHits)
	}
	if rx.calls() != 1 {
		t.Errorf("interactions fetched %d times, want 1 (second run cached)", rx.calls())
	}

	firstJSON, _ := json.Marshal(first.Results.Pairs)
	secondJSON, _ := json.Marshal(second.Results.Pairs)
	if string(firstJSON) != string(secondJSON) {
		t.Errorf("cached pair results differ:\n%s\n%s", firstJSON, secondJSON)
	}

	// forceRefresh bypasses the cache and fetches again.
	req := request("warfarin", "ibuprofen")
	req.Options.ForceRefresh = true
	if _, err := pipeline.Analyze(ctx, req); err != nil {
		t.Fatalf("refresh Analyze: %v", err)
	}
	if rx.calls() != 2 {
		t.Errorf("interactions fetched %d times after refresh, want 2", rx.calls())
	}
}

func TestAnalyze_TripleAggregation(t *testing.T) {
	p := quietProviders()
	rx := p.RxNorm.(*stubRxNorm)
	rx.lookups = map[string]string{"a-drug": "1", "b-drug": "2", "c-drug": "3"}
	severe := &providers.InteractionFinding{Severity: "major", Description: "Severe AB interaction.", Source: "DrugBank"}
	moderate := &providers.InteractionFinding{Severity: "moderate", Description: "Moderate AC interaction.", Source: "DrugBank"}
	mild := &providers.InteractionFinding{Severity: "minor", Description: "Mild BC interaction.", Source: "DrugBank"}
	for _, pairKey := range []string{"1|2", "2|1"} {
		rx.findings[pairKey] = severe
	}
	for _, pairKey := range []string{"1|3", "3|1"} {
		rx.findings[pairKey] = moderate
	}
	for _, pairKey := range []string{"2|3", "3|2"} {
		rx.findings[pairKey] = mild
	}

	pipeline, _ := newTestPipeline(p, store.NewMemoryCache())
	resp, err := pipeline.Analyze(context.Background(), request("a-drug", "b-drug", "c-drug"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(resp.Results.Pairs) != 3 || len(resp.Results.Triples) != 1 {
		t.Fatalf("pairs/triples = %d/%d, want 3/1",
			len(resp.Results.Pairs), len(resp.Results.Triples))
	}
	triple := resp.Results.Triples[0]
	if triple.Severity != evidence.SeveritySevere {
		t.Errorf("triple severity = %s, want severe", triple.Severity)
	}
	// The triple phase re-merges pair sources; no new upstream calls.
	if rx.calls() != 3 {
		t.Errorf("interactions fetched %d times, want 3", rx.calls())
	}
}

func TestAnalyze_InvalidInput(t *testing.T) {
	pipeline, _ := newTestPipeline(quietProviders(), store.NewMemoryCache())

	var invalid *normalize.InvalidInputError
	if _, err := pipeline.Analyze(context.Background(), request()); !errors.As(err, &invalid) {
		t.Errorf("empty request: got %v, want InvalidInputError", err)
	}

	values := make([]string, 11)
	for i := range values {
		values[i] = fmt.Sprintf("item-%d", i)
	}
	if _, err := pipeline.Analyze(context.Background(), request(values...)); !errors.As(err, &invalid) {
		t.Errorf("11 items: got %v, want InvalidInputError", err)
	}
}

func TestAnalyze_SingleItemHasNoPairs(t *testing.T) {
	pipeline, _ := newTestPipeline(quietProviders(), store.NewMemoryCache())
	resp, err := pipeline.Analyze(context.Background(), request("warfarin"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	r := resp.Results
	if len(r.Singles) != 1 || len(r.Pairs) != 0 || len(r.Triples) != 0 {
		t.Errorf("singles/pairs/triples = %d/%d/%d, want 1/0/0",
			len(r.Singles), len(r.Pairs), len(r.Triples))
	}
}

func TestAnalyze_UsageLogged(t *testing.T) {
	pipeline, usage := newTestPipeline(quietProviders(), store.NewMemoryCache())
	if _, err := pipeline.Analyze(context.Background(), request("warfarin", "ibuprofen")); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	entries := usage.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d usage entries, want 1", len(entries))
	}
	if len(entries[0].Items) != 2 || entries[0].ID == "" {
		t.Errorf("unexpected usage entry: %+v", entries[0])
	}
}

// failingPairCache wraps the memory cache with a pair store that always
// fails to persist.
type failingPairCache struct {
	*store.MemoryCache
}

func (c *failingPairCache) PutPair(context.Context, *store.PairEntry) error {
	return &store.CacheError{Backend: "test", Op: "put_pair", Cause: errors.New("disk full")}
}

func TestAnalyze_CacheFailureSurfacesAfterResponse(t *testing.T) {
	pipeline, _ := newTestPipeline(quietProviders(),
		&failingPairCache{store.NewMemoryCache()})

	resp, err := pipeline.Analyze(context.Background(), request("warfarin", "ibuprofen"))
	if err == nil {
		t.Fatal("expected a cache persistence error")
	}
	var cacheErr *store.CacheError
	if !errors.As(err, &cacheErr) {
		t.Errorf("error = %v, want CacheError", err)
	}
	// The response is still fully computed.
	if resp == nil || len(resp.Results.Pairs) != 1 {
		t.Errorf("response must be computed despite the cache failure: %+v", resp)
	}
}

func TestAnalyze_DebugTraceOnlyWhenRequested(t *testing.T) {
	pipeline, _ := newTestPipeline(quietProviders(), store.NewMemoryCache())
	ctx := context.Background()

	resp, err := pipeline.Analyze(ctx, request("warfarin"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Debug != nil {
		t.Error("debug section present without the debug option")
	}

	req := request("warfarin")
	req.Options.Debug = true
	resp, err = pipeline.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Debug == nil || len(resp.Debug.ProviderStatuses) == 0 {
		t.Error("debug trace missing")
	}
}

func TestAnalyze_ProviderSwapTakesEffect(t *testing.T) {
	pipeline, _ := newTestPipeline(quietProviders(), store.NewMemoryCache())
	ctx := context.Background()

	resp, err := pipeline.Analyze(ctx, request("warfarin", "aspirin"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := resp.Results.Pairs[0].Severity; got == evidence.SeveritySevere {
		t.Fatalf("quiet providers produced severity %v", got)
	}

	swapped := quietProviders()
	swapped.RxNorm = &stubRxNorm{
		lookups: map[string]string{"warfarin": "11289", "aspirin": "1191"},
		findings: map[string]*providers.InteractionFinding{
			"11289|1191": {Severity: "major", Description: "Increased bleeding risk.", Source: "curated"},
			"1191|11289": {Severity: "major", Description: "Increased bleeding risk.", Source: "curated"},
		},
	}
	pipeline.SetProviders(swapped)

	req := request("warfarin", "aspirin")
	req.Options.ForceRefresh = true
	resp, err = pipeline.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("Analyze after swap: %v", err)
	}
	if got := resp.Results.Pairs[0].Severity; got != evidence.SeveritySevere {
		t.Errorf("severity after swap = %v, want severe", got)
	}
}

func TestAnalyze_StaleNegativesRefetchOnlyNilFields(t *testing.T) {
	cache := store.NewMemoryCache()
	ctx := context.Background()

	// A day-old entry with a positive identifier and negative supplement
	// and label results.
	rxcui := "11289"
	cache.PutItem(ctx, &store.ItemEntry{
		Normalized: "warfarin",
		RxCUI:      &rxcui,
		UpdatedAt:  time.Now().Add(-25 * time.Hour),
	})

	p := quietProviders()
	rx := p.RxNorm.(*stubRxNorm)
	labels := p.Labels.(*stubLabels)
	pipeline, _ := newTestPipeline(p, cache)

	req := request("warfarin")
	req.Options.Debug = true
	resp, err := pipeline.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got := rx.lookupCount(); got != 0 {
		t.Errorf("positive rxcui was re-fetched %d time(s)", got)
	}
	if got := labels.fetchCount(); got != 1 {
		t.Errorf("label fetches = %d, want 1", got)
	}
	if resp.Meta.CacheStats.MedLookupMisses != 1 {
		t.Errorf("stale negatives must count as a miss, stats = %+v", resp.Meta.CacheStats)
	}

	st, ok := resp.Debug.ProviderStatuses[providers.NameRxNormLookup+":warfarin"]
	if !ok || !st.Cached || !st.OK {
		t.Errorf("retained identifier must trace as a cached hit, got %+v", st)
	}

	entry, err := cache.GetItem(ctx, "warfarin")
	if err != nil || entry == nil {
		t.Fatalf("GetItem after refresh: entry=%v err=%v", entry, err)
	}
	if entry.RxCUI == nil || *entry.RxCUI != rxcui {
		t.Error("positive identifier was lost on partial refresh")
	}
	if time.Since(entry.UpdatedAt) > time.Minute {
		t.Error("partial refresh must restamp the entry")
	}
}

func TestKeyNotes_SurviveCacheRoundTrip(t *testing.T) {
	rec := evidence.StandardizeAdverseEvents(
		evidence.OriginPairAdverseEvents,
		[]string{"warfarin", "aspirin"},
		500, 120,
		map[string]int{"bleeding": 40, "nausea": 12, "dizziness": 7, "rash": 2},
		0, "")

	fresh := keyNotes([]evidence.Record{rec})
	if len(fresh) == 0 || !strings.HasPrefix(fresh[0], "Most reported reactions: bleeding") {
		t.Fatalf("fresh notes = %v", fresh)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var cached evidence.Record
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatal(err)
	}

	// Cached sources deserialize the tally as map[string]any; the note must
	// not silently disappear.
	roundTripped := keyNotes([]evidence.Record{cached})
	if len(roundTripped) == 0 || roundTripped[0] != fresh[0] {
		t.Errorf("notes after round trip = %v, want %v", roundTripped, fresh)
	}
}
