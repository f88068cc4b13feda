package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
)

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"anthropic", "anthropic:claude-test"},
		{"openai", "openai:gpt-test"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c, closeFn, err := New(context.Background(), common.LLMConfig{
				Provider:       tt.provider,
				AnthropicKey:   "k",
				AnthropicModel: "claude-test",
				OpenAIKey:      "k",
				OpenAIModel:    "gpt-test",
				MaxTokens:      1024,
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
			assert.NoError(t, closeFn())
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, closeFn, err := New(context.Background(), common.LLMConfig{Provider: "bard"}, nil)
	assert.ErrorContains(t, err, "bard")
	assert.NotNil(t, closeFn)

	_, _, err = New(context.Background(), common.LLMConfig{Provider: "vertex"}, nil)
	assert.Error(t, err)
}

func TestRetryConfig(t *testing.T) {
	rc := RetryConfig(common.LLMConfig{MaxAttempts: 1, Timeout: 30 * time.Second})
	assert.Equal(t, 1, rc.MaxAttempts)
	assert.Equal(t, 30*time.Second, rc.AttemptTimeout)

	rc = RetryConfig(common.LLMConfig{})
	assert.Equal(t, 2, rc.MaxAttempts)
}
