// Package types defines core domain types used throughout the application.
package types

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultFormat is the audio container requested when the caller names none.
const DefaultFormat = "m4a"

// ExtractionRequest is a single inbound resolution request.
type ExtractionRequest struct {
	URL    string
	Format string
}

// Metadata is the normalized output of an extractor.
type Metadata struct {
	AudioURL  string
	Title     string
	Duration  int // seconds
	Extension string
	Bitrate   float64 // kbps, 0 when unknown
	Extractor string
}

// ExtractionResult is the JSON envelope returned by /extract.
// Success and failure share the type; omitempty keeps each shape minimal.
type ExtractionResult struct {
	AudioURL         string `json:"audio_url,omitempty"`
	Title            string `json:"title,omitempty"`
	Duration         *int   `json:"duration,omitempty"`
	Error            string `json:"error,omitempty"`
	Success          bool   `json:"success"`
	ExtractionMethod string `json:"extraction_method,omitempty"`
}

// Succeeded builds the success envelope from extractor metadata.
func Succeeded(m *Metadata) *ExtractionResult {
	d := m.Duration
	if d < 0 {
		d = 0
	}
	return &ExtractionResult{
		AudioURL:         m.AudioURL,
		Title:            m.Title,
		Duration:         &d,
		Success:          true,
		ExtractionMethod: m.Extractor,
	}
}

// Failed builds the error envelope.
func Failed(message string) *ExtractionResult {
	return &ExtractionResult{Error: message, Success: false}
}

// ErrorKind classifies a failed extraction.
type ErrorKind string

const (
	ErrorKindInvalidRequest    ErrorKind = "invalid_request"
	ErrorKindUnsupportedSource ErrorKind = "unsupported_source"
	ErrorKindExtractionFailed  ErrorKind = "extraction_failed"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindUnavailable       ErrorKind = "unavailable"
)

// HTTPStatus maps the kind to the response status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrorKindInvalidRequest, ErrorKindUnsupportedSource:
		return http.StatusBadRequest
	case ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case ErrorKindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExtractionError is the error type crossing the service/handler boundary.
type ExtractionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError wraps err with a kind. The message defaults to err's text.
func NewExtractionError(kind ErrorKind, err error) *ExtractionError {
	e := &ExtractionError{Kind: kind, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// Errorf builds an ExtractionError with a formatted message and no cause.
func Errorf(kind ErrorKind, format string, args ...any) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or ErrorKindExtractionFailed for foreign errors.
func KindOf(err error) ErrorKind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ErrorKindExtractionFailed
}

// ErrUnsupportedURL is returned by extractors for URLs the library rejects outright.
var ErrUnsupportedURL = errors.New("unsupported url")
