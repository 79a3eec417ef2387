package llm

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
)

// Client provides a provider-neutral interface for making LLM API calls.
// Implementations should handle provider-specific details internally.
type Client interface {
	// Generate sends a request and returns the aggregated response of every
	// round-trip it took.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Transport sends a JSON body to a provider endpoint. Cancellation,
// timeouts and retries are the transport's concern. A non-2xx status is
// not an error at this level; it is returned for a ResponseValidator to
// judge.
type Transport interface {
	Send(ctx context.Context, endpoint string, body any) (*TransportResponse, error)
}

// TransportResponse is a raw provider response.
type TransportResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get extracts a value from the JSON body by gjson path. Missing values
// yield an empty result whose accessors return zero values.
func (r *TransportResponse) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Successful reports a 2xx status.
func (r *TransportResponse) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ResponseValidator rejects non-success statuses and provider error
// envelopes.
type ResponseValidator interface {
	Validate(resp *TransportResponse) error
}

// ValidatorFunc adapts a function to the ResponseValidator interface.
type ValidatorFunc func(resp *TransportResponse) error

// Validate calls f.
func (f ValidatorFunc) Validate(resp *TransportResponse) error {
	return f(resp)
}

// ToolExecutor runs a tool call and returns its textual result.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (string, error)
}

// ToolExecutorFunc adapts a function to the ToolExecutor interface.
type ToolExecutorFunc func(ctx context.Context, call ToolCall) (string, error)

// Execute calls f.
func (f ToolExecutorFunc) Execute(ctx context.Context, call ToolCall) (string, error) {
	return f(ctx, call)
}

// Middleware provides hooks for decorating Client calls.
// This allows adding cross-cutting concerns like logging, metrics or usage
// recording.
type Middleware interface {
	// BeforeRequest is called before making an API request.
	// It can modify the request or return an error to abort the request.
	BeforeRequest(ctx context.Context, req *Request) (*Request, error)

	// AfterResponse is called after receiving a response.
	// It can modify the response or return an error.
	AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error)

	// OnError is called when an error occurs.
	// It can return a modified error or nil to use the original error.
	OnError(ctx context.Context, req *Request, err error) error
}

// MiddlewareFunc is a function type that implements Middleware.
type MiddlewareFunc struct {
	BeforeRequestFunc func(ctx context.Context, req *Request) (*Request, error)
	AfterResponseFunc func(ctx context.Context, req *Request, resp *Response) (*Response, error)
	OnErrorFunc       func(ctx context.Context, req *Request, err error) error
}

// BeforeRequest calls the BeforeRequestFunc if set.
func (f MiddlewareFunc) BeforeRequest(ctx context.Context, req *Request) (*Request, error) {
	if f.BeforeRequestFunc != nil {
		return f.BeforeRequestFunc(ctx, req)
	}
	return req, nil
}

// AfterResponse calls the AfterResponseFunc if set.
func (f MiddlewareFunc) AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if f.AfterResponseFunc != nil {
		return f.AfterResponseFunc(ctx, req, resp)
	}
	return resp, nil
}

// OnError calls the OnErrorFunc if set.
func (f MiddlewareFunc) OnError(ctx context.Context, req *Request, err error) error {
	if f.OnErrorFunc != nil {
		return f.OnErrorFunc(ctx, req, err)
	}
	return err
}

// WrapWithMiddleware wraps a Client with middleware and returns a new Client.
// BeforeRequest hooks run in order, AfterResponse hooks in reverse order.
func WrapWithMiddleware(client Client, middleware ...Middleware) Client {
	if len(middleware) == 0 {
		return client
	}
	return &clientWithMiddleware{
		client:     client,
		middleware: middleware,
	}
}

// clientWithMiddleware wraps a Client with middleware.
type clientWithMiddleware struct {
	client     Client
	middleware []Middleware
}

// Generate implements Client.Generate with middleware support.
func (c *clientWithMiddleware) Generate(ctx context.Context, req *Request) (*Response, error) {
	// Apply BeforeRequest middleware
	for _, mw := range c.middleware {
		var err error
		req, err = mw.BeforeRequest(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.client.Generate(ctx, req)
	if err != nil {
		// Apply OnError middleware
		for _, mw := range c.middleware {
			handled := mw.OnError(ctx, req, err)
			if handled == nil {
				break
			}
			err = handled
		}
		return nil, err
	}

	// Apply AfterResponse middleware
	for i := len(c.middleware) - 1; i >= 0; i-- {
		resp, err = c.middleware[i].AfterResponse(ctx, req, resp)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// Ensure clientWithMiddleware implements Client
var _ Client = (*clientWithMiddleware)(nil)
