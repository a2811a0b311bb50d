package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

/**
 * Custom error types for the DocExtract pipeline
 *
 * Every failure the service reports is a ServiceError carrying one of the
 * codes below, so callers can branch on the kind of failure without string
 * matching. Foreign errors are wrapped at the stage where they surface.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorInvalidImage      ErrorCode = "INVALID_IMAGE"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Pipeline stage errors
	ErrorOCRFailed       ErrorCode = "OCR_FAILED"
	ErrorInferenceFailed ErrorCode = "INFERENCE_FAILED"
	ErrorPipelineFailed  ErrorCode = "PIPELINE_FAILED"
	ErrorExportFailed    ErrorCode = "EXPORT_FAILED"

	// Service errors
	ErrorConfiguration     ErrorCode = "CONFIGURATION_ERROR"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
	ErrorQueueFailed       ErrorCode = "QUEUE_FAILED"
)

// ServiceError represents a structured pipeline error
type ServiceError struct {
	Code      ErrorCode
	Message   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// New creates a ServiceError with an arbitrary code
func New(code ErrorCode, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Factory functions for common errors

func NewInvalidImageError(reason string, cause error) *ServiceError {
	return &ServiceError{
		Code:      ErrorInvalidImage,
		Message:   fmt.Sprintf("Invalid image: %s", reason),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewUnsupportedFormatError(format string, supported []string) *ServiceError {
	return &ServiceError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported image format: %s (supported: %s)", format, strings.Join(supported, ", ")),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"format":    format,
			"supported": supported,
		},
	}
}

func NewOCRFailedError(engine string, cause error) *ServiceError {
	return &ServiceError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed using engine: %s", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewInferenceFailedError(model string, cause error) *ServiceError {
	return &ServiceError{
		Code:      ErrorInferenceFailed,
		Message:   fmt.Sprintf("Model inference failed: %s", model),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"model": model,
		},
		Cause: cause,
	}
}

func NewPipelineError(stage string, cause error) *ServiceError {
	return &ServiceError{
		Code:      ErrorPipelineFailed,
		Message:   fmt.Sprintf("Pipeline failed at stage: %s", stage),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"stage": stage,
		},
		Cause: cause,
	}
}

func NewExportFailedError(format string, supported []string) *ServiceError {
	return &ServiceError{
		Code:      ErrorExportFailed,
		Message:   fmt.Sprintf("Unsupported export format: %s (supported: %s)", format, strings.Join(supported, ", ")),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"format":    format,
			"supported": supported,
		},
	}
}

func NewConfigurationError(reason string) *ServiceError {
	return &ServiceError{
		Code:      ErrorConfiguration,
		Message:   reason,
		Timestamp: time.Now(),
	}
}

func NewProcessingTimeoutError(duration time.Duration, cause error) *ServiceError {
	return &ServiceError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(operation string, cause error) *ServiceError {
	return &ServiceError{
		Code:      ErrorStorageFailed,
		Message:   fmt.Sprintf("Storage operation failed: %s", operation),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewQueueFailedError(reason string, cause error) *ServiceError {
	return &ServiceError{
		Code:      ErrorQueueFailed,
		Message:   fmt.Sprintf("Queue operation failed: %s", reason),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// AsServiceError unwraps err to the nearest ServiceError, or nil if none is
// present in the chain.
func AsServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// IsCode reports whether the nearest ServiceError in err's chain carries the
// given code.
func IsCode(err error, code ErrorCode) bool {
	if svcErr := AsServiceError(err); svcErr != nil {
		return svcErr.Code == code
	}
	return false
}

// CodeOf returns the code of the nearest ServiceError, or an empty code for
// foreign errors.
func CodeOf(err error) ErrorCode {
	if svcErr := AsServiceError(err); svcErr != nil {
		return svcErr.Code
	}
	return ""
}

// ToMap converts error to map for status reporting and database storage
func (e *ServiceError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
