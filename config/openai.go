package config

import (
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	llmopenai "github.com/aschepis/backscratcher/switchboard/llm/openai"
	"github.com/rs/zerolog"
)

// NewOpenAIClient creates a new OpenAI LLM client from the configuration.
func NewOpenAIClient(cfg *Config, key *llm.ClientKey, tools llm.ToolExecutor, logger zerolog.Logger) (*llmopenai.OpenAIClient, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.Retry.Timeout) * time.Second}
	api, err := llmopenai.NewChatCompleter(key.APIKey, key.BaseURL, key.Organization, httpClient)
	if err != nil {
		return nil, err
	}
	return llmopenai.NewOpenAIClient(api, logger, llmopenai.WithToolExecutor(tools)), nil
}
