// Package llm defines the answer-synthesis oracle boundary (C9): a single
// Generate call taking a system prompt and a grounded user prompt, backed
// by either the Anthropic API or an OpenAI-compatible endpoint (Ollama).
// This replaces the teacher's tool-calling/streaming/prompt-caching chat
// client — none of which this system's single-turn grounded-answer flow
// uses — while keeping the teacher's choice of SDK per provider.
package llm

import "context"

// Oracle generates one answer from a system prompt and a user prompt.
type Oracle interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
