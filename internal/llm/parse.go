package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// StripFences removes markdown code fences and any prose around the JSON
// object the model was asked for.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
		if j := strings.LastIndex(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		if i := strings.IndexByte(s, '{'); i >= 0 {
			s = s[i:]
		}
	}
	if !strings.HasSuffix(s, "}") {
		if j := strings.LastIndexByte(s, '}'); j >= 0 {
			s = s[:j+1]
		}
	}
	return strings.TrimSpace(s)
}

// ParseObject structurally parses raw model output. The text must hold exactly
// one JSON object once decoration is stripped; anything else is a
// *common.ResponseParseError. No schema checks happen here.
func ParseObject(raw string) (map[string]any, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, common.NewResponseParseError(raw, errors.New("empty response"))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, common.NewResponseParseError(raw, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, common.NewResponseParseError(raw, errors.New("trailing content after JSON object"))
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, common.NewResponseParseError(raw, fmt.Errorf("expected a JSON object, got %T", v))
	}
	return m, nil
}

// ParseRecord turns raw model output into an ExtractedRecord: structural parse,
// lenient sanitize, schema validation, then typed decode. The sanitized JSON is
// returned alongside for run history.
func ParseRecord(raw string, logger *slog.Logger) (*entity.ExtractedRecord, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := ParseObject(raw)
	if err != nil {
		return nil, nil, err
	}

	cleaned, dropped := Sanitize(m)
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}

	b, err := json.Marshal(cleaned)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	if err := ValidateExtraction(b); err != nil {
		logger.Error("llm.extract.schema_validation_failed", "error", err, "content", string(b))
		return nil, b, err
	}

	var rec entity.ExtractedRecord
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&rec); err != nil {
		return nil, b, fmt.Errorf("decode record: %w", err)
	}
	return &rec, b, nil
}
