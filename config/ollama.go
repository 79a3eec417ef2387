package config

import (
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	llmollama "github.com/aschepis/backscratcher/switchboard/llm/ollama"
	"github.com/rs/zerolog"
)

// NewOllamaClient creates a new Ollama LLM client from the configuration.
func NewOllamaClient(cfg *Config, key *llm.ClientKey, tools llm.ToolExecutor, logger zerolog.Logger) (*llmollama.OllamaClient, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.Ollama.Timeout) * time.Second}
	chatter, err := llmollama.NewChatter(key.Host, httpClient)
	if err != nil {
		return nil, err
	}
	return llmollama.NewOllamaClient(chatter, logger, llmollama.WithToolExecutor(tools)), nil
}
