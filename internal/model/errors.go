package model

import (
	"errors"
	"net/http"
)

// Processing error codes.
const (
	CodeNoSegmentsFound   = "NO_SEGMENTS_FOUND"
	CodeExtractionFailed  = "EXTRACTION_FAILED"
	CodeOCRError          = "OCR_ERROR"
	CodeAIError           = "AI_ERROR"
	CodeCheckNotFound     = "CHECK_NOT_FOUND"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
)

// ProcessingError is a pipeline failure with a machine-readable code and an
// HTTP-style status code for callers that surface it.
type ProcessingError struct {
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError creates a ProcessingError with status 500.
func NewProcessingError(code, message string, err error) *ProcessingError {
	return &ProcessingError{Code: code, StatusCode: http.StatusInternalServerError, Message: message, Err: err}
}

// NewOCRError wraps a text-recognition engine failure.
func NewOCRError(message string, err error) *ProcessingError {
	return NewProcessingError(CodeOCRError, message, err)
}

// NewAIError wraps a vision-model engine failure.
func NewAIError(message string, err error) *ProcessingError {
	return NewProcessingError(CodeAIError, message, err)
}

// NewCheckNotFound reports an unknown check id.
func NewCheckNotFound(checkID string) *ProcessingError {
	return &ProcessingError{Code: CodeCheckNotFound, StatusCode: http.StatusNotFound, Message: "check not found: " + checkID}
}

// ErrorCode returns the code of the first ProcessingError in err's chain, or "".
func ErrorCode(err error) string {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
