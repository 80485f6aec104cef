// Package openai adapts an OpenAI-compatible chat-completions endpoint to
// the llm.Oracle interface via github.com/openai/openai-go/v2, grounded on
// the teacher's choice of SDK. Pointed at Ollama's OpenAI-compatible API
// per config.LLMConfig.BaseURL, it lets the same answer-synthesis code run
// against either a hosted or a local model.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"manifold/internal/config"
)

// Client wraps the OpenAI SDK client for single-turn chat completion.
type Client struct {
	sdk         openai.Client
	model       string
	temperature float64
	topP        float64
	maxTokens   int64
	timeout     time.Duration
}

// New constructs a Client. When cfg.BaseURL is set (e.g. Ollama's
// "http://localhost:11434/v1"), the SDK is pointed there instead of the
// default OpenAI API; cfg.APIKey may be empty in that case.
func New(cfg config.LLMConfig) *Client {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
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
		sdk:         openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}
}

// Generate sends one chat-completion request and returns the first
// choice's message content.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens: openai.Int(c.maxTokens),
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.topP > 0 {
		params.TopP = openai.Float(c.topP)
	}
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai generate: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
