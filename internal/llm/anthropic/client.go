// Package anthropic adapts the Anthropic Messages API to the llm.Oracle
// interface, grounded on the teacher's use of
// github.com/anthropics/anthropic-sdk-go, scaled down to the single-turn
// call this system's answer synthesis needs.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"manifold/internal/config"
)

// Client wraps the Anthropic SDK client for single-turn generation.
type Client struct {
	sdk         anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	topP        float64
	timeout     time.Duration
}

// New constructs a Client from the configured LLM oracle settings.
func New(cfg config.LLMConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		sdk:         anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		timeout:     timeout,
	}
}

// Generate sends one user message with systemPrompt as the system block and
// returns the concatenated text of the response's content blocks.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}
	if c.topP > 0 {
		params.TopP = anthropic.Float(c.topP)
	}
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}
	var out string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += tb.Text
		}
	}
	return out, nil
}
