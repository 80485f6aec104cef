package llm

import (
	"fmt"

	"manifold/internal/config"
	"manifold/internal/llm/anthropic"
	"manifold/internal/llm/openai"
)

// New resolves the configured LLM oracle backend by cfg.Provider.
func New(cfg config.LLMConfig) (Oracle, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return anthropic.New(cfg), nil
	case "openai":
		return openai.New(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
