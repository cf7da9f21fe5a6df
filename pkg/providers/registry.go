package providers

import "vitacheck/engine/pkg/fetch"

// RegistryConfig gathers the per-adapter configurations.
type RegistryConfig struct {
	RxNorm        RxNormConfig
	Supplement    SupplementConfig
	Labels        LabelConfig
	AdverseEvents AdverseEventConfig
	Exposure      ExposureConfig
	Literature    LiteratureConfig
}

// Registry holds one instance of every adapter, sharing a single fetch
// client so upstream connections are pooled per host.
type Registry struct {
	RxNorm     *RxNormClient
	Supplement *SupplementClient
	Labels     *LabelClient
	Events     *AdverseEventClient
	Exposure   *ExposureClient
	Literature *LiteratureClient
}

// NewRegistry constructs all adapters. Adapters whose credentials are absent
// come up disabled, not missing: their calls answer with a typed
// missing-credential error and the request proceeds without them.
func NewRegistry(cfg RegistryConfig) *Registry {
	client := fetch.NewClient()
	return &Registry{
		RxNorm:     NewRxNormClient(cfg.RxNorm, client),
		Supplement: NewSupplementClient(cfg.Supplement, client),
		Labels:     NewLabelClient(cfg.Labels, client),
		Events:     NewAdverseEventClient(cfg.AdverseEvents, client),
		Exposure:   NewExposureClient(cfg.Exposure, client),
		Literature: NewLiteratureClient(cfg.Literature),
	}
}
