// Package transport provides the HTTP JSON transport used by providers that
// speak to their API directly.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout         = 120 * time.Second
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 60 * time.Second
	DefaultMaxElapsedTime  = 5 * time.Minute
)

// Config configures an HTTPTransport. Zero durations and retry counts fall
// back to the defaults.
type Config struct {
	BaseURL         string
	Headers         map[string]string
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
	// DisableRetries sends every request exactly once.
	DisableRetries bool
}

// HTTPTransport POSTs JSON bodies to endpoints relative to a base URL.
// Rate limited (429) and server error (5xx) responses are retried with
// exponential backoff, honouring Retry-After. When retries run out the last
// response is returned so that the provider validator can classify it.
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	config  Config
	logger  zerolog.Logger
}

// New creates an HTTPTransport.
func New(cfg Config, logger zerolog.Logger) (*HTTPTransport, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = DefaultMaxElapsedTime
	}

	return &HTTPTransport{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logger.With().Str("component", "transport").Logger(),
	}, nil
}

// URL resolves endpoint against the base URL.
func (t *HTTPTransport) URL(endpoint string) string {
	return t.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
}

// statusError marks a response whose status is worth retrying.
type statusError struct {
	status string
}

func (e *statusError) Error() string {
	return "retryable response: " + e.status
}

// Send implements llm.Transport.
func (t *HTTPTransport) Send(ctx context.Context, endpoint string, body any) (*llm.TransportResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal request: %w", err)
	}

	target := t.URL(endpoint)
	b := t.newBackOff()

	var last *llm.TransportResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("transport: create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range t.config.Headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("transport: request failed: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck // Body close error can be ignored

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("transport: read response: %w", err)
		}
		last = &llm.TransportResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}

		if !retryable(resp.StatusCode) {
			return nil
		}
		if retryAfter := llm.ParseRetryAfter(resp.Header); retryAfter != nil {
			b.hint = *retryAfter
		}
		return &statusError{status: resp.Status}
	}

	notify := func(err error, delay time.Duration) {
		t.logger.Warn().Err(err).Str("endpoint", endpoint).Dur("next_delay", delay).Msg("Retrying request")
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if !t.config.DisableRetries {
		policy = backoff.WithMaxRetries(b, t.config.MaxRetries)
	}

	err = backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && last != nil {
			t.logger.Error().Int("status", last.StatusCode).Str("endpoint", endpoint).Msg("Retries exhausted")
			return last, nil
		}
		return nil, err
	}
	return last, nil
}

func (t *HTTPTransport) newBackOff() *retryAfterBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.config.InitialInterval
	eb.Multiplier = 2.0
	eb.MaxInterval = DefaultMaxInterval
	eb.MaxElapsedTime = t.config.MaxElapsedTime
	eb.RandomizationFactor = 0.2 // 20% jitter
	eb.Reset()
	return &retryAfterBackOff{BackOff: eb}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// retryAfterBackOff waits at least as long as the last Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

var _ llm.Transport = (*HTTPTransport)(nil)
