package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: baseURL, Model: "claude-sonnet-4-5-20250929"}, nil)
}

func visionRequest() llm.VisionRequest {
	return llm.VisionRequest{
		System: "extract rate confirmations",
		Prompt: "Return ONLY JSON",
		Images: []llm.ImagePart{
			{Page: 1, MediaType: "image/png", Data: []byte("page-1")},
			{Page: 2, MediaType: "image/png", Data: []byte("page-2")},
		},
		PageCount: 2,
	}
}

func TestComplete(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"reference":"LD-1"}`},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer ts.Close()

	out, err := newTestClient(ts.URL).Complete(context.Background(), visionRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"reference":"LD-1"}`, out)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	assert.Equal(t, "image", content[0].(map[string]any)["type"])
	assert.Equal(t, "image", content[1].(map[string]any)["type"])
	assert.Equal(t, "text", content[2].(map[string]any)["type"])
}

func TestComplete_ServerErrorIsRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type":  "error",
			"error": map[string]any{"type": "overloaded_error", "message": "Overloaded"},
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Complete(context.Background(), visionRequest())
	var se *common.ExtractionServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, se.Retryable)
}

func TestComplete_BadRequestIsPermanent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "bad image"},
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Complete(context.Background(), visionRequest())
	var se *common.ExtractionServiceError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Retryable)
}

func TestComplete_NoTextContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id": "msg_empty", "type": "message", "role": "assistant",
			"content":     []map[string]any{},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "max_tokens",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 0},
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Complete(context.Background(), visionRequest())
	var se *common.ExtractionServiceError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Message, "max_tokens")
}
