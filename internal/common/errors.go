package common

import (
	"errors"
	"fmt"
)

// UserMessage is the only failure text surfaced to callers of the extraction pipeline.
const UserMessage = "could not parse document; enter fields manually"

// ErrorKind names the pipeline stage a failure belongs to.
type ErrorKind string

const (
	KindRender     ErrorKind = "render"
	KindExtraction ErrorKind = "extraction"
	KindParse      ErrorKind = "parse"
	KindValidation ErrorKind = "validation"
	KindInput      ErrorKind = "input"
	KindInternal   ErrorKind = "internal"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// DocumentRenderError means the upload could not be decoded or rasterised.
// No pages are returned alongside it.
type DocumentRenderError struct {
	Page   int // 0 when the failure is not page specific
	Reason string
	Err    error
}

func (e *DocumentRenderError) Error() string {
	msg := "render document"
	if e.Page > 0 {
		msg = fmt.Sprintf("%s: page %d", msg, e.Page)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DocumentRenderError) Unwrap() error { return e.Err }

// ExtractionServiceError is a non-success answer (or no usable content) from the model service.
type ExtractionServiceError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *ExtractionServiceError) Error() string {
	msg := "extraction service"
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil && (e.Message == "" || e.Message != e.Err.Error()) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionServiceError) Unwrap() error { return e.Err }

// Transient is consulted by the retry loop.
func (e *ExtractionServiceError) Transient() bool { return e.Retryable }

// ResponseParseError means the model output was not a single JSON object.
type ResponseParseError struct {
	Excerpt string
	Err     error
}

func (e *ResponseParseError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("parse extraction response: %v", e.Err)
	}
	return fmt.Sprintf("parse extraction response: %v (near %q)", e.Err, e.Excerpt)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// NewResponseParseError keeps at most the first 200 bytes of raw for diagnostics.
func NewResponseParseError(raw string, err error) *ResponseParseError {
	const max = 200
	if len(raw) > max {
		raw = raw[:max]
	}
	return &ResponseParseError{Excerpt: raw, Err: err}
}

// KindOf classifies err into the stage that produced it.
func KindOf(err error) ErrorKind {
	var (
		renderErr  *DocumentRenderError
		serviceErr *ExtractionServiceError
		parseErr   *ResponseParseError
		valErrs    ValidationErrors
		valErr     ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInput
	case errors.As(err, &renderErr):
		return KindRender
	case errors.As(err, &serviceErr):
		return KindExtraction
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &valErrs), errors.As(err, &valErr):
		return KindValidation
	}
	return KindInternal
}
