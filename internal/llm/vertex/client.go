// Package vertex is the Gemini-on-Vertex backend for rate confirmation extraction.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
	"github.com/joseph-ayodele/ratecon-tracker/internal/resilience"
)

const providerName = "vertex"

type Config struct {
	ProjectID   string
	Region      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex: project and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger.With("provider", providerName)}, nil
}

func (c *Client) Name() string { return providerName + ":" + c.cfg.Model }

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// model is configured per request since the system instruction lives on it.
func (c *Client) model(system string) *genai.GenerativeModel {
	m := c.base.GenerativeModel(c.cfg.Model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = genai.Ptr(c.cfg.MaxTokens)
	}
	return m
}

func (c *Client) Complete(ctx context.Context, req llm.VisionRequest) (string, error) {
	parts := make([]genai.Part, 0, len(req.Images)+2)
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MediaType, Data: img.Data})
	}
	parts = append(parts, genai.Text(req.Prompt))
	if req.Schema != nil {
		parts = append(parts, genai.Text(llm.SchemaText(req.Schema)))
	}

	resp, err := c.model(req.System).GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyError(err)
	}
	out := strings.TrimSpace(responseText(resp))
	if out == "" {
		return "", &common.ExtractionServiceError{Provider: providerName, Message: "no text content in response"}
	}
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func classifyError(err error) error {
	se := &common.ExtractionServiceError{Provider: providerName, Message: "generate content", Err: err}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
			se.Retryable = true
		}
		se.Message = st.Code().String() + ": " + st.Message()
		return se
	}
	se.Retryable = resilience.IsTransient(err)
	return se
}
