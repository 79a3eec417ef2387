package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Error represents a provider-neutral LLM error.
type Error struct {
	Type        ErrorType
	Message     string
	Model       string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeUnsupportedMessage ErrorType = "unsupported_message"
	ErrorTypeProviderRequest    ErrorType = "provider_request"
	ErrorTypeProviderResponse   ErrorType = "provider_response"
	ErrorTypeStructuredDecoding ErrorType = "structured_decoding"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Model != "" {
		msg = e.Model + ": " + msg
	}
	if e.ProviderErr != nil {
		return msg + ": " + e.ProviderErr.Error()
	}
	return msg
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

func errorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ""
}

// TypeOf returns the error category, or ErrorTypeUnknown for errors that
// did not originate here.
func TypeOf(err error) ErrorType {
	if t := errorType(err); t != "" {
		return t
	}
	return ErrorTypeUnknown
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return errorType(err) == ErrorTypeConfiguration
}

// IsUnsupportedMessageError checks if an error is an unsupported message error.
func IsUnsupportedMessageError(err error) bool {
	return errorType(err) == ErrorTypeUnsupportedMessage
}

// IsProviderRequestError checks if an error is a transport failure.
func IsProviderRequestError(err error) bool {
	return errorType(err) == ErrorTypeProviderRequest
}

// IsProviderResponseError checks if an error is a rejected provider response.
func IsProviderResponseError(err error) bool {
	return errorType(err) == ErrorTypeProviderResponse
}

func errorStatus(err error) int {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.StatusCode
	}
	return 0
}

// IsRateLimitError checks if a provider rejected the request with 429.
func IsRateLimitError(err error) bool {
	return errorStatus(err) == http.StatusTooManyRequests
}

// IsRequestTooLargeError checks if a provider rejected the request as too large.
func IsRequestTooLargeError(err error) bool {
	return errorStatus(err) == http.StatusRequestEntityTooLarge
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date.
func ParseRetryAfter(header http.Header) *time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if at, err := http.ParseTime(value); err == nil {
		d := max(time.Until(at), 0)
		return &d
	}
	return nil
}

// NewConfigurationError reports input the target provider cannot represent.
func NewConfigurationError(message string) *Error {
	return &Error{
		Type:    ErrorTypeConfiguration,
		Message: message,
	}
}

// NewUnsupportedMessageError reports a message outside the known variants.
func NewUnsupportedMessageError(msg Message) *Error {
	return &Error{
		Type:    ErrorTypeUnsupportedMessage,
		Message: fmt.Sprintf("unsupported message type %T", msg),
	}
}

// NewProviderRequestError wraps a transport failure with the target model.
func NewProviderRequestError(model string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeProviderRequest,
		Message:     "sending request failed",
		Model:       model,
		Retryable:   true,
		ProviderErr: cause,
	}
}

// NewProviderResponseError reports a response rejected by a validator.
func NewProviderResponseError(message string, statusCode int, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProviderResponse,
		Message:     message,
		StatusCode:  statusCode,
		Retryable:   statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError,
		ProviderErr: providerErr,
	}
}

// WithRetryAfter attaches a retry hint to the error.
func (e *Error) WithRetryAfter(d *time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// NewStructuredDecodingError reports structured output that is not valid JSON.
func NewStructuredDecodingError(model string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeStructuredDecoding,
		Message:     "structured output is not a JSON object",
		Model:       model,
		ProviderErr: cause,
	}
}
