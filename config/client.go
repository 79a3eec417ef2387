package config

import (
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/aschepis/backscratcher/switchboard/retry"
	"github.com/rs/zerolog"
)

// NewClient creates the client for a resolved provider. tools may be nil.
// The OpenAI and Ollama SDKs do not retry, so their clients are wrapped with
// the retry policy; the other providers retry in their transport.
func NewClient(cfg *Config, key *llm.ClientKey, tools llm.ToolExecutor, logger zerolog.Logger) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch key.Provider {
	case llm.ProviderAnthropic:
		client, err = NewAnthropicClient(cfg, key, tools, logger)
	case llm.ProviderGemini:
		client, err = NewGeminiClient(cfg, key, tools, logger)
	case llm.ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, key, tools, logger)
		if err == nil {
			client = retry.Wrap(client, RetryPolicy(cfg), logger)
		}
	case llm.ProviderOllama:
		client, err = NewOllamaClient(cfg, key, tools, logger)
		if err == nil {
			client = retry.Wrap(client, RetryPolicy(cfg), logger)
		}
	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", key.Provider, err)
	}
	return client, nil
}

// RetryPolicy returns the client retry policy for the configuration.
func RetryPolicy(cfg *Config) retry.Config {
	return retry.Config{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: time.Duration(cfg.Retry.InitialInterval) * time.Second,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
