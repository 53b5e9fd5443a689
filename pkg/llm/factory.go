package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/config"
)

// NewProvider builds the provider selected by configuration.
func NewProvider(cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Kind {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Models(), logger)
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Models(), logger)
	case "ollama":
		timeout := time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second
		return NewOllamaProvider(cfg.Ollama.Endpoint, cfg.Ollama.Model, timeout, logger)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
