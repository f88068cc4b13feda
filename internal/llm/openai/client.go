package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
)

// Complete sends every page as an image_url data URL in one chat/completions
// call with JSON output mode. The schema travels as a system message since
// json_object mode has no schema slot.
func (c *Client) Complete(ctx context.Context, req llm.VisionRequest) (string, error) {
	content := make([]map[string]any, 0, len(req.Images)+1)
	content = append(content, map[string]any{"type": "text", "text": req.Prompt})
	for _, img := range req.Images {
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url":    "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
				"detail": "high",
			},
		})
	}

	messages := []map[string]any{
		{"role": "system", "content": req.System},
	}
	if req.Schema != nil {
		messages = append(messages, map[string]any{"role": "system", "content": llm.SchemaText(req.Schema)})
	}
	messages = append(messages, map[string]any{"role": "user", "content": content})

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.http, providerName, endpoint, body, headers, c.logger)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error", "error", err, "raw_bytes", len(raw))
		return "", &common.ExtractionServiceError{Provider: providerName, Message: "decode response", Err: err}
	}
	if len(cc.Choices) == 0 {
		return "", &common.ExtractionServiceError{Provider: providerName, Message: "no choices in response"}
	}
	out := strings.TrimSpace(cc.Choices[0].Message.Content)
	if out == "" {
		return "", &common.ExtractionServiceError{
			Provider: providerName,
			Message:  fmt.Sprintf("empty content (finish_reason=%s)", cc.Choices[0].FinishReason),
		}
	}
	return out, nil
}
