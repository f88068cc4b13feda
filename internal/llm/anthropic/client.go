// Package anthropic is the Claude vision backend for rate confirmation extraction.
package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
	"github.com/joseph-ayodele/ratecon-tracker/internal/resilience"
)

const providerName = "anthropic"

// Config for the Anthropic client.
type Config struct {
	APIKey      string // if empty, falls back to env ANTHROPIC_API_KEY
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

type Client struct {
	cfg    Config
	client sdk.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}

	// retries are bounded by the requester, not the SDK
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		cfg:    cfg,
		client: sdk.NewClient(opts...),
		logger: logger.With("provider", providerName),
	}
}

func (c *Client) Name() string { return providerName + ":" + c.cfg.Model }

// Complete sends the page images followed by the instructions as one user turn.
func (c *Client) Complete(ctx context.Context, req llm.VisionRequest) (string, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.Images)+2)
	for _, img := range req.Images {
		blocks = append(blocks, sdk.NewImageBlockBase64(img.MediaType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, sdk.NewTextBlock(req.Prompt))
	if req.Schema != nil {
		blocks = append(blocks, sdk.NewTextBlock(llm.SchemaText(req.Schema)))
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.cfg.Model),
		MaxTokens:   c.cfg.MaxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
		Temperature: sdk.Float(c.cfg.Temperature),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	c.logger.Debug("llm.anthropic.response",
		"stop_reason", msg.StopReason,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)
	if out == "" {
		return "", &common.ExtractionServiceError{
			Provider: providerName,
			Message:  "no text content (stop_reason=" + string(msg.StopReason) + ")",
		}
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &common.ExtractionServiceError{
			Provider:   providerName,
			StatusCode: apiErr.StatusCode,
			Message:    "create message",
			Retryable:  resilience.IsTransientHTTPStatus(apiErr.StatusCode),
			Err:        err,
		}
	}
	return &common.ExtractionServiceError{
		Provider:  providerName,
		Message:   "create message",
		Retryable: resilience.IsTransient(err),
		Err:       err,
	}
}
