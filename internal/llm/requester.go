package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/resilience"
)

// Requester issues the single extraction call for one upload.
type Requester struct {
	client VisionClient
	retry  resilience.RetryConfig
	system string
	schema map[string]any
	logger *slog.Logger
}

func NewRequester(client VisionClient, retry resilience.RetryConfig, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(logger, client.Name(), "extract")
	}
	return &Requester{
		client: client,
		retry:  retry,
		system: BuildSystemPrompt(),
		schema: BuildExtractionJSONSchema(),
		logger: logger,
	}
}

// Model names the extraction backend for run history.
func (r *Requester) Model() string { return r.client.Name() }

// Build assembles one request carrying every page in order. The request takes
// over the page buffers; callers release their own references afterwards.
func (r *Requester) Build(pages []entity.RenderedPage, filename string) VisionRequest {
	images := make([]ImagePart, 0, len(pages))
	for _, p := range pages {
		images = append(images, ImagePart{Page: p.Index, MediaType: p.MediaType, Data: p.Data})
	}
	return VisionRequest{
		System:    r.system,
		Prompt:    BuildUserPrompt(len(pages), filename),
		Images:    images,
		Schema:    r.schema,
		PageCount: len(pages),
	}
}

// Send performs the extraction call. Only transient service failures are
// retried, within the configured attempt budget. Any failure is returned as
// *common.ExtractionServiceError.
func (r *Requester) Send(ctx context.Context, req VisionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	r.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", r.client.Name(),
		"pages", req.PageCount,
		"max_attempts", r.retry.MaxAttempts,
	)

	raw, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (string, error) {
		out, err := r.client.Complete(ctx, req)
		if err != nil {
			return "", asServiceError(r.client.Name(), err)
		}
		if strings.TrimSpace(out) == "" {
			return "", &common.ExtractionServiceError{Provider: r.client.Name(), Message: "no usable content in response"}
		}
		return out, nil
	})
	if err != nil {
		r.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	r.logger.Info("llm.extract.ok",
		"req_id", rid,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, nil
}

func asServiceError(provider string, err error) error {
	var se *common.ExtractionServiceError
	if errors.As(err, &se) {
		return err
	}
	return &common.ExtractionServiceError{
		Provider:  provider,
		Message:   err.Error(),
		Retryable: resilience.IsTransient(err),
		Err:       err,
	}
}
