package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"vitacheck/engine/pkg/fetch"
)

// Adverse-event provider names.
const (
	NamePairAdverseEvents   = "pair_adverse_events"
	NameSingleAdverseEvents = "single_adverse_events"
)

// EventSummary aggregates FAERS-style adverse-event reports for one item or
// one co-reported pair.
type EventSummary struct {
	// TotalEvents is the total number of reports matching the query.
	TotalEvents int

	// SeriousEvents is the number of reports flagged serious.
	SeriousEvents int

	// Outcomes counts reaction terms across matching reports.
	Outcomes map[string]int
}

// AdverseEventConfig configures the adverse-event adapter.
type AdverseEventConfig struct {
	// BaseURL is the event API root, e.g. "https://api.fda.gov/drug/event.json".
	BaseURL string

	// Timeout bounds each of the adapter's component queries.
	Timeout time.Duration
}

// AdverseEventClient queries the public adverse-event reporting dataset for
// totals, serious counts, and top reaction outcomes.
type AdverseEventClient struct {
	cfg    AdverseEventConfig
	fetch  *fetch.Client
	logger *slog.Logger
}

// NewAdverseEventClient creates an adverse-event adapter.
func NewAdverseEventClient(cfg AdverseEventConfig, client *fetch.Client) *AdverseEventClient {
	return &AdverseEventClient{
		cfg:    cfg,
		fetch:  client,
		logger: slog.Default().With("component", "providers.adverse_events"),
	}
}

type eventCountResponse struct {
	Meta struct {
		Results struct {
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []struct {
		Term  string `json:"term"`
		Count int    `json:"count"`
	} `json:"results"`
}

// PairEvents returns the event summary for reports naming both items.
// A nil summary with a nil error means the dataset holds no such reports
// (the upstream answers 404 for an empty result set).
func (c *AdverseEventClient) PairEvents(ctx context.Context, nameA, nameB string) (*EventSummary, error) {
	search := fmt.Sprintf(`patient.drug.medicinalproduct:"%s" AND patient.drug.medicinalproduct:"%s"`, nameA, nameB)
	return c.summarize(ctx, NamePairAdverseEvents, search)
}

// SingleEvents returns the event summary for reports naming the item alone.
func (c *AdverseEventClient) SingleEvents(ctx context.Context, name string) (*EventSummary, error) {
	search := fmt.Sprintf(`patient.drug.medicinalproduct:"%s"`, name)
	return c.summarize(ctx, NameSingleAdverseEvents, search)
}

func (c *AdverseEventClient) summarize(ctx context.Context, provider, search string) (*EventSummary, error) {
	total, found, err := c.count(ctx, provider, search)
	if err != nil {
		return nil, err
	}
	if !found || total == 0 {
		return nil, nil
	}

	serious, _, err := c.count(ctx, provider, search+` AND serious:1`)
	if err != nil {
		return nil, err
	}

	outcomes, err := c.outcomes(ctx, provider, search)
	if err != nil {
		// Outcomes are enrichment; counts alone are a usable summary.
		c.logger.Debug("outcome breakdown unavailable", "provider", provider, "error", err)
		outcomes = nil
	}

	return &EventSummary{
		TotalEvents:   total,
		SeriousEvents: serious,
		Outcomes:      outcomes,
	}, nil
}

// count returns the report total for a search. found=false reports the
// upstream's 404-for-no-matches answer.
func (c *AdverseEventClient) count(ctx context.Context, provider, search string) (total int, found bool, err error) {
	params := url.Values{}
	params.Set("search", search)
	params.Set("limit", "1")

	var resp eventCountResponse
	if err := c.fetch.GetJSON(ctx, provider, c.cfg.BaseURL+"?"+params.Encode(), c.cfg.Timeout, &resp); err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) && transport.StatusCode == 404 {
			return 0, false, nil
		}
		return 0, false, err
	}
	return resp.Meta.Results.Total, true, nil
}

func (c *AdverseEventClient) outcomes(ctx context.Context, provider, search string) (map[string]int, error) {
	params := url.Values{}
	params.Set("search", search)
	params.Set("count", "patient.reaction.reactionmeddrapt.exact")
	params.Set("limit", "10")

	var resp eventCountResponse
	if err := c.fetch.GetJSON(ctx, provider, c.cfg.BaseURL+"?"+params.Encode(), c.cfg.Timeout, &resp); err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) && transport.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}

	outcomes := make(map[string]int, len(resp.Results))
	for _, r := range resp.Results {
		if r.Term != "" {
			outcomes[r.Term] = r.Count
		}
	}
	return outcomes, nil
}
