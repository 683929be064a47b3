package model

import (
	"fmt"
	"log/slog"

	"github.com/harsh7800/adofly/internal/config"
)

// New builds the backend selected by cfg.Provider, wrapped with retries
// when cfg.MaxRetries is positive.
func New(cfg config.ModelConfig, logger *slog.Logger) (Model, error) {
	var m Model
	switch cfg.Provider {
	case "openai":
		m = NewOpenAI(cfg.APIKey, cfg.Name, cfg.Temperature, WithBaseURL(cfg.BaseURL), WithHTTPTimeout(cfg.Timeout))
	case "a2a":
		m = NewAgent(cfg.AgentEndpoint, WithAgentTimeout(cfg.Timeout))
	case "stub":
		return Stub{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.MaxRetries > 0 {
		m = WithRetry(m, cfg.MaxRetries, WithRetryLogger(logger))
	}
	return m, nil
}
