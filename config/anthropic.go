package config

import (
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aschepis/backscratcher/switchboard/llm"
	llmanthropic "github.com/aschepis/backscratcher/switchboard/llm/anthropic"
	"github.com/rs/zerolog"
)

// AnthropicTransportOptions returns the SDK options for the configuration.
func AnthropicTransportOptions(cfg *Config, key *llm.ClientKey) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithMaxRetries(int(cfg.Retry.MaxRetries)),
	}
	if cfg.Retry.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Retry.Timeout)*time.Second))
	}
	if baseURL := firstNonEmpty(key.BaseURL, cfg.Anthropic.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return opts
}

// NewAnthropicClient creates a new Anthropic LLM client from the configuration.
func NewAnthropicClient(cfg *Config, key *llm.ClientKey, tools llm.ToolExecutor, logger zerolog.Logger) (*llmanthropic.AnthropicClient, error) {
	transport, err := llmanthropic.NewSDKTransport(key.APIKey, logger, AnthropicTransportOptions(cfg, key)...)
	if err != nil {
		return nil, err
	}
	return llmanthropic.NewAnthropicClient(transport, logger, llmanthropic.WithToolExecutor(tools)), nil
}
