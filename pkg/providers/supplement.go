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

// Supplement provider names.
const (
	NameSupplementLookup       = "supplement_lookup"
	NameSupplementInteractions = "supplement_interactions"
)

// SupplementInteraction is one interaction entry from the supplement
// evidence service.
type SupplementInteraction struct {
	// Severity is the upstream's label, translated downstream.
	Severity string

	// Description is the interaction sentence.
	Description string

	// Evidence lists supporting paper identifiers, when provided.
	Evidence []string
}

// SupplementConfig configures the supplement adapter.
type SupplementConfig struct {
	// BaseURL is the API root.
	BaseURL string

	// APIKey authenticates requests. When empty the adapter is disabled and
	// every call returns *MissingCredentialError.
	APIKey string

	// Timeout bounds each call.
	Timeout time.Duration
}

// SupplementClient resolves supplement identifiers and queries the
// supplement interaction evidence service.
type SupplementClient struct {
	cfg    SupplementConfig
	fetch  *fetch.Client
	logger *slog.Logger
}

// NewSupplementClient creates a supplement adapter.
func NewSupplementClient(cfg SupplementConfig, client *fetch.Client) *SupplementClient {
	return &SupplementClient{
		cfg:    cfg,
		fetch:  client,
		logger: slog.Default().With("component", "providers.supplement"),
	}
}

// Enabled reports whether a credential is configured.
func (c *SupplementClient) Enabled() bool {
	return c.cfg.APIKey != ""
}

type supplementSearchResponse struct {
	Agents []struct {
		ID   string `json:"cui"`
		Name string `json:"preferred_name"`
	} `json:"agents"`
}

// Lookup resolves a canonical name to the service's agent identifier.
// An empty identifier with a nil error means the agent is unknown upstream.
func (c *SupplementClient) Lookup(ctx context.Context, name string) (string, error) {
	if !c.Enabled() {
		return "", &MissingCredentialError{Provider: NameSupplementLookup}
	}

	params := url.Values{}
	params.Set("q", name)
	u := c.cfg.BaseURL + "/agents/search?" + params.Encode()

	var resp supplementSearchResponse
	if err := c.fetch.GetJSON(ctx, NameSupplementLookup, c.authorized(u), c.cfg.Timeout, &resp); err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) && transport.StatusCode == 404 {
			return "", nil
		}
		return "", err
	}
	if len(resp.Agents) == 0 {
		return "", nil
	}
	return resp.Agents[0].ID, nil
}

type supplementInteractionResponse struct {
	Interactions []struct {
		Agent struct {
			ID   string `json:"cui"`
			Name string `json:"preferred_name"`
		} `json:"agent"`
		Severity string `json:"severity"`
		Sentence string `json:"sentence"`
		Evidence []struct {
			PaperID string `json:"paper_id"`
		} `json:"evidence"`
	} `json:"interactions"`
}

// Interactions queries interactions of idA and filters for the partner by
// identifier (preferred) or name. A nil list with a nil error means the
// service holds no interaction for the pair.
func (c *SupplementClient) Interactions(ctx context.Context, nameA, nameB, idA, idB string) ([]SupplementInteraction, error) {
	if !c.Enabled() {
		return nil, &MissingCredentialError{Provider: NameSupplementInteractions}
	}
	if idA == "" {
		var err error
		if idA, err = c.Lookup(ctx, nameA); err != nil {
			return nil, err
		}
		if idA == "" {
			return nil, nil
		}
	}

	u := c.cfg.BaseURL + "/interactions/" + url.PathEscape(idA)

	var resp supplementInteractionResponse
	if err := c.fetch.GetJSON(ctx, NameSupplementInteractions, c.authorized(u), c.cfg.Timeout, &resp); err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) && transport.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}

	lowerB := strings.ToLower(nameB)
	var matches []SupplementInteraction
	for _, in := range resp.Interactions {
		if idB != "" && in.Agent.ID != idB {
			if !strings.Contains(strings.ToLower(in.Agent.Name), lowerB) {
				continue
			}
		}
		if idB == "" && !strings.Contains(strings.ToLower(in.Agent.Name), lowerB) {
			continue
		}
		m := SupplementInteraction{
			Severity:    in.Severity,
			Description: in.Sentence,
		}
		for _, ev := range in.Evidence {
			if ev.PaperID != "" {
				m.Evidence = append(m.Evidence, ev.PaperID)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// authorized appends the API key to a request URL. The key never appears in
// logs or error messages; fetch strips query strings before formatting.
func (c *SupplementClient) authorized(u string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "api_key=" + url.QueryEscape(c.cfg.APIKey)
}
