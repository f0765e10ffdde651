// Package llmerrors provides structured error classification for LLM provider calls.
package llmerrors

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of LLM errors for retry logic.
type ErrorType int8

const (
	// Retryable error types.

	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents a successful call that returned no content.
	ErrorTypeEmptyResponse
	// ErrorTypeMalformed represents a reply that could not be parsed into the requested shape.
	ErrorTypeMalformed

	// Non-retryable error types.

	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents rejected requests (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown

	// ErrorTypeServiceUnavailable is returned once every attempt against a provider failed.
	ErrorTypeServiceUnavailable
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeMalformed:
		return "malformed"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	case ErrorTypeServiceUnavailable:
		return "service_unavailable"
	default:
		return "invalid"
	}
}

// Error represents a classified LLM error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	BodyStub   string    // First portion of the reply (guards PII)
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable uses a blocklist: everything is retryable unless explicitly not.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeServiceUnavailable:
		return false
	default:
		return true
	}
}

// IsTransport reports whether the failure came from reaching the provider rather than
// from the content it returned.
func (e *Error) IsTransport() bool {
	switch e.Type {
	case ErrorTypeMalformed, ErrorTypeEmptyResponse:
		return false
	default:
		return true
	}
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
// Context deadline errors are classified as transient.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTransient
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err may succeed on another attempt.
// Unclassified errors are retried; cancellation is not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable()
	}
	return true
}

// IsTransport reports whether err is a transport-level failure (anything but a bad reply).
func IsTransport(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.IsTransport()
	}
	return err != nil
}

// NewError creates a new classified LLM error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a new classified LLM error with HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewErrorWithCause creates a new classified LLM error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// NewMalformedError records a reply that failed to parse, keeping a short stub of it.
func NewMalformedError(cause error, reply string) *Error {
	stub := reply
	if len(stub) > 200 {
		stub = stub[:200]
	}
	return &Error{Type: ErrorTypeMalformed, Err: cause, BodyStub: stub, Message: fmt.Sprintf("malformed reply: %v", cause)}
}

// NewServiceUnavailableError wraps the last failure once retries are exhausted.
func NewServiceUnavailableError(cause error, attempts int) *Error {
	return &Error{
		Type:    ErrorTypeServiceUnavailable,
		Err:     cause,
		Message: fmt.Sprintf("service unavailable after %d attempts", attempts),
	}
}

// SanitizePrompt creates a safe representation of a prompt for logging.
// Large prompts keep their first/last portions plus a hash of the full content.
func SanitizePrompt(prompt string, maxChars int) string {
	if len(prompt) <= maxChars {
		return prompt
	}

	halfMax := maxChars / 2
	if halfMax < 100 {
		halfMax = 100
	}
	if 2*halfMax >= len(prompt) {
		return prompt
	}

	hash := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s...[%d chars, hash:%x]...%s",
		prompt[:halfMax], len(prompt), hash[:8], prompt[len(prompt)-halfMax:])
}

// FromStatus classifies a provider failure by HTTP status code.
func FromStatus(statusCode int, cause error, provider string) *Error {
	var errorType ErrorType
	switch {
	case statusCode == 401 || statusCode == 403:
		errorType = ErrorTypeAuth
	case statusCode == 429:
		errorType = ErrorTypeRateLimit
	case statusCode == 400 || statusCode == 404 || statusCode == 413 || statusCode == 422:
		errorType = ErrorTypeBadPrompt
	case statusCode >= 500:
		errorType = ErrorTypeTransient
	default:
		errorType = ErrorTypeUnknown
	}
	return &Error{
		Type:       errorType,
		StatusCode: statusCode,
		Err:        cause,
		Message:    fmt.Sprintf("%s API error (status %d): %v", provider, statusCode, cause),
	}
}

// Classify converts an unstructured provider failure (no status code available) into an *Error.
func Classify(err error, provider string) error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, fmt.Sprintf("%s request timed out", provider))
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "eof"),
		strings.Contains(errStr, "timeout"):
		return NewErrorWithCause(ErrorTypeTransient, err, fmt.Sprintf("%s not reachable: %v", provider, err))
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "quota"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, fmt.Sprintf("%s rate limited: %v", provider, err))
	case strings.Contains(errStr, "api key"), strings.Contains(errStr, "unauthorized"):
		return NewErrorWithCause(ErrorTypeAuth, err, fmt.Sprintf("%s rejected credentials: %v", provider, err))
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, fmt.Sprintf("%s API error: %v", provider, err))
	}
}
