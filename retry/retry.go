// Package retry re-issues generation requests that fail with a retryable
// provider error, for providers whose transport does not retry on its own.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the default maximum number of retries
	DefaultMaxRetries = 3
	// DefaultMaxElapsedTime is the default maximum elapsed time for backoff
	DefaultMaxElapsedTime = 5 * time.Minute
	// DefaultMaxInterval is the default maximum interval for backoff
	DefaultMaxInterval = 2 * time.Minute
	// DefaultInitialDelay is the default initial delay for exponential backoff
	DefaultInitialDelay = 1 * time.Second
	// RetryAfterMultiplier is the multiplier for retry-after based backoff
	RetryAfterMultiplier = 1.5
	// RetryAfterRandomizationFactor is the randomization factor for retry-after based backoff
	RetryAfterRandomizationFactor = 0.1
	// StandardMultiplier is the multiplier for standard exponential backoff
	StandardMultiplier = 2.0
	// StandardRandomizationFactor is the randomization factor for standard exponential backoff
	StandardRandomizationFactor = 0.2
)

// Callback is called before each retry.
type Callback func(err error, delay time.Duration, attempt int)

// Config controls the retry policy. Zero values fall back to the defaults,
// except MaxRetries where zero disables retries.
type Config struct {
	MaxRetries     uint64
	InitialDelay   time.Duration
	MaxElapsedTime time.Duration
	OnRetry        Callback
}

// Client retries the wrapped client on retryable errors. A retry repeats
// the whole request, so tools executed before the failing round-trip run
// again.
type Client struct {
	client llm.Client
	config Config
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Wrap returns client with retries. With MaxRetries zero client is returned
// unchanged.
func Wrap(client llm.Client, cfg Config, logger zerolog.Logger) llm.Client {
	if cfg.MaxRetries == 0 {
		return client
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = DefaultMaxElapsedTime
	}
	return &Client{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "retry").Logger(),
		sleep:  wait,
	}
}

// NewBackOff creates the backoff for a retryable error. A Retry-After hint
// becomes the initial delay.
func (c *Client) NewBackOff(retryAfter *time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()

	if retryAfter != nil && *retryAfter > 0 {
		eb.InitialInterval = *retryAfter
		eb.Multiplier = RetryAfterMultiplier
		eb.RandomizationFactor = RetryAfterRandomizationFactor
	} else {
		eb.InitialInterval = c.config.InitialDelay
		eb.Multiplier = StandardMultiplier
		eb.RandomizationFactor = StandardRandomizationFactor
	}

	eb.MaxInterval = max(DefaultMaxInterval, eb.InitialInterval)
	eb.MaxElapsedTime = c.config.MaxElapsedTime
	eb.Reset()

	return backoff.WithMaxRetries(eb, c.config.MaxRetries)
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var b backoff.BackOff
	for attempt := 0; ; attempt++ {
		resp, err := c.client.Generate(ctx, req)
		if err == nil || !llm.IsRetryableError(err) {
			return resp, err
		}

		if b == nil {
			b = c.NewBackOff(llm.ExtractRetryAfter(err))
		}
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			c.logger.Error().Uint64("max_retries", c.config.MaxRetries).Err(err).Msg("Max retries or elapsed time exceeded")
			return nil, err
		}

		c.logger.Warn().
			Str("model", req.Model).
			Int("attempt", attempt+1).
			Uint64("max_retries", c.config.MaxRetries).
			Err(err).
			Dur("next_delay", delay).
			Msg("Retryable error. Retrying after delay")
		if c.config.OnRetry != nil {
			c.config.OnRetry(err, delay, attempt)
		}

		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// wait waits for the specified delay, respecting context cancellation
func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ llm.Client = (*Client)(nil)
