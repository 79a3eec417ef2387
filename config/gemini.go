package config

import (
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	llmgemini "github.com/aschepis/backscratcher/switchboard/llm/gemini"
	"github.com/aschepis/backscratcher/switchboard/transport"
	"github.com/rs/zerolog"
)

// GeminiTransportConfig returns the HTTP transport settings for Gemini.
func GeminiTransportConfig(cfg *Config, key *llm.ClientKey) transport.Config {
	return transport.Config{
		BaseURL:         firstNonEmpty(key.BaseURL, cfg.Gemini.BaseURL, llmgemini.DefaultBaseURL),
		Headers:         map[string]string{"x-goog-api-key": key.APIKey},
		Timeout:         time.Duration(cfg.Retry.Timeout) * time.Second,
		MaxRetries:      cfg.Retry.MaxRetries,
		InitialInterval: time.Duration(cfg.Retry.InitialInterval) * time.Second,
		DisableRetries:  cfg.Retry.MaxRetries == 0,
	}
}

// NewGeminiClient creates a new Gemini LLM client from the configuration.
func NewGeminiClient(cfg *Config, key *llm.ClientKey, tools llm.ToolExecutor, logger zerolog.Logger) (*llmgemini.GeminiClient, error) {
	tr, err := transport.New(GeminiTransportConfig(cfg, key), logger)
	if err != nil {
		return nil, err
	}
	return llmgemini.NewGeminiClient(tr, logger, llmgemini.WithToolExecutor(tools)), nil
}
