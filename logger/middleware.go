package logger

import (
	"context"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/rs/zerolog"
)

// Middleware logs every request, response and failure of a client.
func Middleware(log zerolog.Logger, provider llm.Provider) llm.Middleware {
	log = log.With().Str("provider", string(provider)).Logger()

	return llm.MiddlewareFunc{
		BeforeRequestFunc: func(ctx context.Context, req *llm.Request) (*llm.Request, error) {
			log.Debug().
				Str("model", req.Model).
				Int("messages", len(req.Messages)).
				Int("tools", len(req.Tools)).
				Bool("structured", req.Schema != nil).
				Int("max_steps", req.MaxSteps).
				Msg("Sending request")
			return req, nil
		},
		AfterResponseFunc: func(ctx context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
			log.Info().
				Str("model", req.Model).
				Str("finish_reason", string(resp.FinishReason)).
				Int("steps", len(resp.Steps)).
				Int("prompt_tokens", resp.Usage.PromptTokens).
				Int("completion_tokens", resp.Usage.CompletionTokens).
				Msg("Received response")
			return resp, nil
		},
		OnErrorFunc: func(ctx context.Context, req *llm.Request, err error) error {
			event := log.Error().Err(err).Str("model", req.Model).Str("error_type", string(llm.TypeOf(err)))
			if llm.IsRetryableError(err) {
				event = event.Bool("retryable", true)
			}
			event.Msg("Request failed")
			return err
		},
	}
}
