package gemini

import (
	"net/http"

	"github.com/aschepis/backscratcher/switchboard/llm"
)

// Validator rejects non-2xx responses and {"error":{...}} envelopes.
type Validator struct{}

// Validate implements llm.ResponseValidator.
func (Validator) Validate(resp *llm.TransportResponse) error {
	envelope := resp.Get("error")
	if resp.Successful() && !envelope.Exists() {
		return nil
	}

	message := envelope.Get("message").String()
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if status := envelope.Get("status").String(); status != "" {
		message = status + ": " + message
	}

	code := resp.StatusCode
	if resp.Successful() {
		code = int(envelope.Get("code").Int())
		if code == 0 {
			code = http.StatusBadGateway
		}
	}
	return llm.NewProviderResponseError("gemini: "+message, code, nil).
		WithRetryAfter(llm.ParseRetryAfter(resp.Header))
}

var _ llm.ResponseValidator = Validator{}
