package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/rs/zerolog"
)

// SDKTransport sends raw JSON payloads through the Anthropic SDK, which
// supplies authentication, the API version header and retries.
type SDKTransport struct {
	client *anthropic.Client
	logger zerolog.Logger
}

// NewSDKTransport creates a transport with the given API key. Extra options
// are passed to the SDK client, e.g. option.WithBaseURL or
// option.WithMaxRetries.
func NewSDKTransport(apiKey string, logger zerolog.Logger, opts ...option.RequestOption) (*SDKTransport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &SDKTransport{
		client: &client,
		logger: logger.With().Str("component", "anthropic-transport").Logger(),
	}, nil
}

// Send implements llm.Transport. API errors are returned as responses so
// the validator can classify them; only transport failures are errors.
func (t *SDKTransport) Send(ctx context.Context, endpoint string, body any) (*llm.TransportResponse, error) {
	var (
		raw      []byte
		httpResp *http.Response
	)
	err := t.client.Post(ctx, endpoint, body, &raw, option.WithResponseInto(&httpResp))
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			header := http.Header{}
			if apiErr.Response != nil {
				header = apiErr.Response.Header
			}
			t.logger.Debug().
				Int("status", apiErr.StatusCode).
				Str("endpoint", endpoint).
				Msg("API returned error status")
			return &llm.TransportResponse{
				StatusCode: apiErr.StatusCode,
				Header:     header,
				Body:       []byte(apiErr.RawJSON()),
			}, nil
		}
		return nil, err
	}

	return &llm.TransportResponse{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       raw,
	}, nil
}

var _ llm.Transport = (*SDKTransport)(nil)
