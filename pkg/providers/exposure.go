package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"vitacheck/engine/pkg/fetch"
)

// NameExposure is the exposure provider's name in configuration and traces.
const NameExposure = "exposure"

// ExposureResult is an estimated beneficiary count for one item, used only
// to contextualize adverse-event counts. Always approximate.
type ExposureResult struct {
	// Beneficiaries is the estimated number of people exposed.
	Beneficiaries int64 `json:"beneficiaries"`

	// Year is the reporting year of the estimate.
	Year int `json:"year"`

	// Source describes the dataset the estimate came from.
	Source string `json:"source"`
}

// ExposureConfig configures the exposure adapter.
type ExposureConfig struct {
	// BaseURL is the dataset query endpoint.
	BaseURL string

	// Timeout bounds each call. Exposure is enrichment; the budget is tight.
	Timeout time.Duration

	// Enabled gates the adapter; exposure fetching is optional per request
	// and can be disabled globally.
	Enabled bool
}

// ExposureClient fetches prescription beneficiary counts from the public
// Part D spending dataset.
type ExposureClient struct {
	cfg    ExposureConfig
	fetch  *fetch.Client
	logger *slog.Logger
}

// NewExposureClient creates an exposure adapter.
func NewExposureClient(cfg ExposureConfig, client *fetch.Client) *ExposureClient {
	return &ExposureClient{
		cfg:    cfg,
		fetch:  client,
		logger: slog.Default().With("component", "providers.exposure"),
	}
}

// Enabled reports whether the adapter is globally enabled.
func (c *ExposureClient) Enabled() bool {
	return c.cfg.Enabled
}

type exposureRow struct {
	GenericName   string `json:"Gnrc_Name"`
	Beneficiaries string `json:"Tot_Benes"`
	Year          string `json:"Year"`
}

// Beneficiaries returns the exposure estimate for a canonical name, or nil
// with a nil error when the dataset has no row for it.
func (c *ExposureClient) Beneficiaries(ctx context.Context, name string) (*ExposureResult, error) {
	params := url.Values{}
	params.Set("filter[Gnrc_Name]", name)
	params.Set("size", "1")
	u := c.cfg.BaseURL + "?" + params.Encode()

	var rows []exposureRow
	if err := c.fetch.GetJSON(ctx, NameExposure, u, c.cfg.Timeout, &rows); err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) && transport.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	benes, err := strconv.ParseInt(rows[0].Beneficiaries, 10, 64)
	if err != nil || benes <= 0 {
		return nil, nil
	}
	year, _ := strconv.Atoi(rows[0].Year)

	return &ExposureResult{
		Beneficiaries: benes,
		Year:          year,
		Source:        "cms_part_d_spending",
	}, nil
}
