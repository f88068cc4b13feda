// Package provider builds the configured vision backend.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm/anthropic"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm/vertex"
	"github.com/joseph-ayodele/ratecon-tracker/internal/resilience"
)

// New returns the client for cfg.Provider and a close func that is always non-nil.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.VisionClient, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.AnthropicKey,
			Model:       cfg.AnthropicModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: float64(cfg.Temperature),
		}, logger), noop, nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			MaxTokens:   int(cfg.MaxTokens),
			Timeout:     cfg.Timeout,
		}, logger), noop, nil
	case "vertex":
		c, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:   cfg.VertexProject,
			Region:      cfg.VertexRegion,
			Model:       cfg.VertexModel,
			Temperature: cfg.Temperature,
			MaxTokens:   int32(cfg.MaxTokens),
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}

// RetryConfig is the requester policy for cfg: at most MaxAttempts tries,
// each bounded by Timeout.
func RetryConfig(cfg common.LLMConfig) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	rc.AttemptTimeout = cfg.Timeout
	return rc
}
