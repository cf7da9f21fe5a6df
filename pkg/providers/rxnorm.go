package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"vitacheck/engine/pkg/fetch"
)

// Provider names as they appear in configuration and the debug trace.
const (
	NameRxNormLookup       = "rxnorm_lookup"
	NameRxNormInteractions = "rxnorm_interactions"
)

// InteractionFinding is one hit from the RxNorm interaction graph.
type InteractionFinding struct {
	// Severity is the upstream's grade normalized onto the standardizer's
	// token vocabulary; "" when the upstream reports no grade.
	Severity string

	// Description is the upstream's interaction description.
	Description string

	// Source names the dataset the finding came from (e.g. "DrugBank").
	Source string
}

// RxNormConfig configures the RxNorm adapter.
type RxNormConfig struct {
	// BaseURL is the REST root, e.g. "https://rxnav.nlm.nih.gov/REST".
	BaseURL string

	// LookupTimeout bounds a single identifier lookup.
	LookupTimeout time.Duration

	// InteractionTimeout bounds a single interaction-graph probe.
	InteractionTimeout time.Duration
}

// RxNormClient resolves canonical names to RxCUI identifiers and probes the
// interaction graph.
type RxNormClient struct {
	cfg    RxNormConfig
	fetch  *fetch.Client
	logger *slog.Logger
}

// NewRxNormClient creates an RxNorm adapter.
func NewRxNormClient(cfg RxNormConfig, client *fetch.Client) *RxNormClient {
	return &RxNormClient{
		cfg:    cfg,
		fetch:  client,
		logger: slog.Default().With("component", "providers.rxnorm"),
	}
}

type rxcuiLookupResponse struct {
	IDGroup struct {
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

// Lookup resolves a canonical name to an RxCUI. An empty identifier with a
// nil error means the name is not in the RxNorm vocabulary.
func (c *RxNormClient) Lookup(ctx context.Context, name string) (string, error) {
	u := c.cfg.BaseURL + "/rxcui.json?search=2&name=" + url.QueryEscape(name)

	var resp rxcuiLookupResponse
	if err := c.fetch.GetJSON(ctx, NameRxNormLookup, u, c.cfg.LookupTimeout, &resp); err != nil {
		return "", err
	}
	if len(resp.IDGroup.RxNormID) == 0 {
		return "", nil
	}
	return resp.IDGroup.RxNormID[0], nil
}

type interactionConcept struct {
	MinConceptItem struct {
		RxCUI string `json:"rxcui"`
		Name  string `json:"name"`
	} `json:"minConceptItem"`
}

type interactionResponse struct {
	InteractionTypeGroup []struct {
		SourceName      string `json:"sourceName"`
		InteractionType []struct {
			InteractionPair []struct {
				InteractionConcept []interactionConcept `json:"interactionConcept"`
				Severity           string               `json:"severity"`
				Description        string               `json:"description"`
			} `json:"interactionPair"`
		} `json:"interactionType"`
	} `json:"interactionTypeGroup"`
}

// Interactions probes the interaction graph of rxcuiA and post-filters for
// pairs that involve rxcuiB (the single-RxCUI probe strategy). A nil finding
// with a nil error means the graph holds no interaction for the pair; the
// upstream's documented deprecation returning 404 is normalized the same
// way.
func (c *RxNormClient) Interactions(ctx context.Context, rxcuiA, rxcuiB string) (*InteractionFinding, error) {
	u := c.cfg.BaseURL + "/interaction/interaction.json?rxcui=" + url.QueryEscape(rxcuiA)

	var resp interactionResponse
	if err := c.fetch.GetJSON(ctx, NameRxNormInteractions, u, c.cfg.InteractionTimeout, &resp); err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) && transport.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}

	best := (*InteractionFinding)(nil)
	for _, group := range resp.InteractionTypeGroup {
		for _, it := range group.InteractionType {
			for _, pair := range it.InteractionPair {
				if !pairInvolves(pair.InteractionConcept, rxcuiB) {
					continue
				}
				finding := &InteractionFinding{
					Severity:    normalizeSeverityLabel(pair.Severity),
					Description: pair.Description,
					Source:      group.SourceName,
				}
				// Prefer the finding with the longer description when
				// multiple datasets report the same pair.
				if best == nil || len(finding.Description) > len(best.Description) {
					best = finding
				}
			}
		}
	}
	return best, nil
}

// normalizeSeverityLabel maps the interaction upstream's own vocabulary onto
// the tokens the standardizer translates. The graph's only graded label is
// "high"; "N/A" carries no grade. Tokens already in the translation
// vocabulary pass through unchanged.
func normalizeSeverityLabel(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "major"
	case "n/a", "":
		return ""
	default:
		return s
	}
}

func pairInvolves(concepts []interactionConcept, rxcui string) bool {
	for _, c := range concepts {
		if c.MinConceptItem.RxCUI == rxcui {
			return true
		}
	}
	return false
}
