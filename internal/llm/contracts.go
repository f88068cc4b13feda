package llm

import "context"

// ImagePart is one page image attached to an extraction request.
type ImagePart struct {
	Page      int
	MediaType string
	Data      []byte
}

// VisionRequest is the provider-neutral shape of one extraction call.
type VisionRequest struct {
	System    string
	Prompt    string
	Images    []ImagePart
	Schema    map[string]any
	PageCount int
}

// VisionClient is the extraction service. Complete returns the model's raw
// text. Failures should be *common.ExtractionServiceError so the requester can
// tell transient from permanent ones.
type VisionClient interface {
	Name() string
	Complete(ctx context.Context, req VisionRequest) (string, error)
}
