package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractJob is one recorded pipeline run.
type ExtractJob struct {
	ID            uuid.UUID       `json:"id"`
	Filename      string          `json:"filename"`
	MediaType     string          `json:"media_type"`
	SourceSHA     string          `json:"source_sha256,omitempty"`
	Status        string          `json:"status"`
	Pages         int             `json:"pages"`
	ModelName     *string         `json:"model_name,omitempty"`
	ErrorKind     *string         `json:"error_kind,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	ExtractedJSON json.RawMessage `json:"extracted_json,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	ElapsedMS     *int64          `json:"elapsed_ms,omitempty"`
}
