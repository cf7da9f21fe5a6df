package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"vitacheck/engine/pkg/fetch"
)

// NameLabels is the label provider's name in configuration and the trace.
const NameLabels = "label_warnings"

// DefaultClassBlocklist is the well-known-drug class table consulted when
// rejecting cross-ingredient label matches. It currently covers the common
// NSAIDs. The table is policy, not a classifier: it is used only to reject a
// candidate whose primary ingredient is a different member, never to infer
// an interaction.
var DefaultClassBlocklist = []string{
	"ibuprofen",
	"naproxen",
	"aspirin",
	"celecoxib",
	"diclofenac",
	"meloxicam",
	"indomethacin",
	"ketorolac",
	"piroxicam",
	"ketoprofen",
}

// LabelResult is the filtered outcome of a label fetch.
type LabelResult struct {
	// Warnings holds the warning texts that survived the primary-ingredient
	// filter. Absent when every candidate warning was filtered out.
	Warnings []string `json:"warnings,omitempty"`

	// ProductName is the matched product's name.
	ProductName string `json:"productName,omitempty"`

	// Identifier is the authority identifier of the matched record.
	Identifier string `json:"identifier,omitempty"`
}

// LabelConfig configures the label adapter.
type LabelConfig struct {
	// BaseURL is the label API root, e.g. "https://api.fda.gov/drug/label.json".
	BaseURL string

	// Timeout bounds each fetch attempt.
	Timeout time.Duration

	// Retry is applied to every query tier; the label upstream is the only
	// retryable provider.
	Retry fetch.RetryPolicy

	// ClassBlocklist overrides DefaultClassBlocklist when non-nil.
	ClassBlocklist []string
}

// LabelClient fetches structured product label warnings with a strict
// post-filter so a warning whose primary ingredient differs from the queried
// item is never returned.
type LabelClient struct {
	cfg       LabelConfig
	blocklist []string
	fetch     *fetch.Client
	logger    *slog.Logger
}

// NewLabelClient creates a label adapter.
func NewLabelClient(cfg LabelConfig, client *fetch.Client) *LabelClient {
	blocklist := cfg.ClassBlocklist
	if blocklist == nil {
		blocklist = DefaultClassBlocklist
	}
	return &LabelClient{
		cfg:       cfg,
		blocklist: blocklist,
		fetch:     client,
		logger:    slog.Default().With("component", "providers.labels"),
	}
}

type labelResponse struct {
	Results []labelCandidate `json:"results"`
}

type labelCandidate struct {
	ID                  string   `json:"id"`
	DrugInteractions    []string `json:"drug_interactions"`
	Warnings            []string `json:"warnings"`
	BoxedWarning        []string `json:"boxed_warning"`
	WarningsAndCautions []string `json:"warnings_and_cautions"`
	OpenFDA             struct {
		GenericName   []string `json:"generic_name"`
		BrandName     []string `json:"brand_name"`
		SubstanceName []string `json:"substance_name"`
		RxCUI         []string `json:"rxcui"`
	} `json:"openfda"`
}

// Fetch runs the tiered query strategy for the canonical name:
//
//  1. exact match on the authority identifier, when known;
//  2. exact-phrase match on generic name;
//  3. exact-phrase match on brand name;
//  4. broad phrase fallback.
//
// Every tier's candidates pass through the primary-ingredient check; tier 4
// exists only because label metadata is inconsistent, and its post-filter is
// what keeps it safe. A nil result with a nil error means no acceptable
// label was found.
func (c *LabelClient) Fetch(ctx context.Context, name, identifier string) (*LabelResult, error) {
	queries := make([]string, 0, 4)
	if identifier != "" {
		queries = append(queries, fmt.Sprintf(`openfda.rxcui:"%s"`, identifier))
	}
	queries = append(queries,
		fmt.Sprintf(`openfda.generic_name:"%s"`, name),
		fmt.Sprintf(`openfda.brand_name:"%s"`, name),
		name,
	)

	var lastErr error
	for _, q := range queries {
		candidate, err := c.query(ctx, q)
		if err != nil {
			lastErr = err
			continue
		}
		if candidate == nil {
			continue
		}
		if !c.acceptCandidate(candidate, name) {
			c.logger.Debug("label candidate rejected by primary-ingredient check",
				"query_item", name,
				"candidate", productName(candidate),
			)
			continue
		}
		return c.buildResult(candidate, name), nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// query runs one search tier and returns its first candidate, or nil when
// the upstream found nothing (including its 404-for-no-matches behavior).
func (c *LabelClient) query(ctx context.Context, search string) (*labelCandidate, error) {
	params := url.Values{}
	params.Set("search", search)
	params.Set("limit", "1")
	u := c.cfg.BaseURL + "?" + params.Encode()

	var resp labelResponse
	err := c.fetch.GetJSONRetry(ctx, NameLabels, u, c.cfg.Timeout, c.cfg.Retry, &resp)
	if err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) && transport.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// acceptCandidate applies the primary-ingredient check: the candidate's
// generic, substance, or brand name must contain the queried canonical name,
// and the candidate must not list a different blocklisted drug as its
// primary ingredient.
func (c *LabelClient) acceptCandidate(cand *labelCandidate, name string) bool {
	lower := strings.ToLower(name)

	names := make([]string, 0, 6)
	names = append(names, cand.OpenFDA.GenericName...)
	names = append(names, cand.OpenFDA.SubstanceName...)
	names = append(names, cand.OpenFDA.BrandName...)

	matched := false
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), lower) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	// The class table guards against same-class confusion only: when the
	// queried item is a class member, a candidate whose primary ingredient
	// is a different member is a wrong-drug match.
	if !c.inBlocklist(lower) {
		return true
	}
	for _, blocked := range c.blocklist {
		if strings.Contains(lower, blocked) {
			continue // the queried item itself
		}
		for _, n := range names {
			if strings.HasPrefix(strings.ToLower(n), blocked) {
				return false
			}
		}
	}
	return true
}

func (c *LabelClient) inBlocklist(lower string) bool {
	for _, blocked := range c.blocklist {
		if strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}

// buildResult collects the candidate's warning sections and filters out any
// warning that mentions a different class member, so a broad-match label
// never smuggles in another drug's warnings.
func (c *LabelClient) buildResult(cand *labelCandidate, name string) *LabelResult {
	lower := strings.ToLower(name)

	var warnings []string
	for _, section := range [][]string{cand.BoxedWarning, cand.DrugInteractions, cand.Warnings, cand.WarningsAndCautions} {
		for _, w := range section {
			if w = strings.TrimSpace(w); w == "" {
				continue
			}
			if c.mentionsOtherClassMember(w, lower) {
				continue
			}
			warnings = append(warnings, w)
		}
	}

	return &LabelResult{
		Warnings:    warnings,
		ProductName: productName(cand),
		Identifier:  firstOf(cand.OpenFDA.RxCUI),
	}
}

// mentionsOtherClassMember applies only when the queried item is itself a
// class member; a warfarin label mentioning ibuprofen is legitimate
// interaction content, not contamination.
func (c *LabelClient) mentionsOtherClassMember(text, queried string) bool {
	if !c.inBlocklist(queried) {
		return false
	}
	lower := strings.ToLower(text)
	for _, blocked := range c.blocklist {
		if strings.Contains(queried, blocked) {
			continue
		}
		if strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}

func productName(cand *labelCandidate) string {
	if n := firstOf(cand.OpenFDA.BrandName); n != "" {
		return n
	}
	return firstOf(cand.OpenFDA.GenericName)
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
