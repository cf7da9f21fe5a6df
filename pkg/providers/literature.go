package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"vitacheck/engine/pkg/evidence"
	"vitacheck/engine/pkg/fetch"
)

// NameLiterature is the literature provider's name in configuration and
// traces.
const NameLiterature = "literature_ai"

const literatureSystemPrompt = `You are a pharmacology literature assistant. Given two substances and a bundle of gathered evidence summaries, assess their interaction from published literature. Respond with a single JSON object: {"severity": "severe"|"moderate"|"mild"|"none"|"unknown", "summary": "<one or two sentences>", "citations": ["<reference>", ...]}. Cite only literature you are confident exists. If the literature is silent, use severity "unknown" with an empty citations list. Never invent an interaction.`

// LiteratureConfig configures the literature adapter.
type LiteratureConfig struct {
	// APIKey authenticates against the model API. When empty the adapter
	// is disabled.
	APIKey string

	// Model is the chat model identifier.
	Model string

	// Timeout bounds one assessment. Literature is the slowest provider.
	Timeout time.Duration
}

// LiteratureClient asks a language model to assess a pair against published
// literature and returns one standardized evidence record. It is the only
// adapter that emits a finished record directly: the model's output is
// already the standardized shape.
type LiteratureClient struct {
	cfg    LiteratureConfig
	client *openai.Client
	logger *slog.Logger
}

// NewLiteratureClient creates a literature adapter. With no API key the
// adapter is constructed disabled rather than failing.
func NewLiteratureClient(cfg LiteratureConfig) *LiteratureClient {
	c := &LiteratureClient{
		cfg:    cfg,
		logger: slog.Default().With("component", "providers.literature"),
	}
	if cfg.APIKey != "" {
		c.client = openai.NewClient(cfg.APIKey)
	}
	return c
}

// Enabled reports whether a credential is configured.
func (c *LiteratureClient) Enabled() bool {
	return c.client != nil
}

type literatureVerdict struct {
	Severity  string   `json:"severity"`
	Summary   string   `json:"summary"`
	Citations []string `json:"citations"`
}

// Assess evaluates the pair and returns one evidence record. The bundle is
// the summaries of evidence already gathered for the pair, passed as context
// so the model weighs rather than re-derives it.
func (c *LiteratureClient) Assess(ctx context.Context, nameA, nameB string, bundle []string) (*evidence.Record, error) {
	if !c.Enabled() {
		return nil, &MissingCredentialError{Provider: NameLiterature}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Substance A: %s\nSubstance B: %s\n", nameA, nameB)
	if len(bundle) > 0 {
		prompt.WriteString("Gathered evidence:\n")
		for _, line := range bundle {
			fmt.Fprintf(&prompt, "- %s\n", line)
		}
	} else {
		prompt.WriteString("No other evidence was gathered.\n")
	}

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: literatureSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &fetch.TimeoutError{Provider: NameLiterature, Timeout: c.cfg.Timeout}
		}
		return nil, &fetch.TransportError{Provider: NameLiterature, Message: "model request failed"}
	}
	if len(resp.Choices) == 0 {
		return nil, &fetch.ParseError{Provider: NameLiterature, Cause: fmt.Errorf("empty completion")}
	}

	var verdict literatureVerdict
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &verdict); err != nil {
		return nil, &fetch.ParseError{Provider: NameLiterature, Cause: err}
	}

	record := evidence.StandardizeInteraction(
		evidence.OriginLiteratureAI,
		verdict.Severity,
		verdict.Summary,
		"literature",
		verdict.Citations,
	)
	if verdict.Severity == "none" {
		// The severity token map carries no "none" entry; the model saying
		// "looked, found nothing" is a real signal, not an unknown.
		record.Severity = evidence.SeverityNone
		record.Confidence = evidence.BaseConfidence(evidence.OriginLiteratureAI)
	}
	return &record, nil
}
