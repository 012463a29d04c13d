package judge

import (
	"fmt"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// NewBackend returns the backend selected by cfg.Provider.
func NewBackend(cfg types.LLMConfig) (Backend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured")
	}
	switch cfg.Provider {
	case types.ProviderOllama, "":
		return NewOllamaBackend(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case types.ProviderOpenAI:
		return NewOpenAIBackend(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	}
	return nil, fmt.Errorf("unknown provider %q (want %q or %q)", cfg.Provider, types.ProviderOllama, types.ProviderOpenAI)
}
