package anthropic

import (
	"fmt"
	"net/http"

	"github.com/aschepis/backscratcher/switchboard/llm"
)

// Validator rejects non-2xx responses and error envelopes of the form
// {"type":"error","error":{"type":...,"message":...}}.
type Validator struct{}

// Validate implements llm.ResponseValidator.
func (Validator) Validate(resp *llm.TransportResponse) error {
	if resp.Successful() && resp.Get("type").String() != "error" {
		return nil
	}

	message := resp.Get("error.message").String()
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	errType := resp.Get("error.type").String()
	if errType != "" {
		message = fmt.Sprintf("%s: %s", errType, message)
	}

	if resp.Successful() {
		// A 2xx error envelope takes the status Anthropic documents for its type.
		status, known := envelopeStatuses[errType]
		if !known {
			err := llm.NewProviderResponseError("anthropic: "+message, http.StatusBadGateway, nil)
			err.Retryable = false
			return err
		}
		return llm.NewProviderResponseError("anthropic: "+message, status, nil).
			WithRetryAfter(llm.ParseRetryAfter(resp.Header))
	}
	return llm.NewProviderResponseError("anthropic: "+message, resp.StatusCode, nil).
		WithRetryAfter(llm.ParseRetryAfter(resp.Header))
}

// envelopeStatuses maps Anthropic error types to their HTTP statuses.
var envelopeStatuses = map[string]int{
	"invalid_request_error": http.StatusBadRequest,
	"authentication_error":  http.StatusUnauthorized,
	"billing_error":         http.StatusPaymentRequired,
	"permission_error":      http.StatusForbidden,
	"not_found_error":       http.StatusNotFound,
	"request_too_large":     http.StatusRequestEntityTooLarge,
	"rate_limit_error":      http.StatusTooManyRequests,
	"api_error":             http.StatusInternalServerError,
	"timeout_error":         http.StatusGatewayTimeout,
	"overloaded_error":      529,
}

var _ llm.ResponseValidator = Validator{}
