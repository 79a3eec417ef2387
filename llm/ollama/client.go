package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// Chatter is the part of the Ollama API client used here.
type Chatter interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// OllamaClient implements the llm.Client interface for Ollama's API.
type OllamaClient struct {
	api    Chatter
	tools  llm.ToolExecutor
	logger zerolog.Logger
}

// Option configures an OllamaClient.
type Option func(*OllamaClient)

// WithToolExecutor enables automatic tool execution between round-trips.
func WithToolExecutor(tools llm.ToolExecutor) Option {
	return func(c *OllamaClient) { c.tools = tools }
}

// NewChatter creates an Ollama API client.
// If host is empty, it will use the default from environment (OLLAMA_HOST or http://localhost:11434).
func NewChatter(host string, httpClient *http.Client) (*api.Client, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	}

	baseURL, err := parseHost(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return api.NewClient(baseURL, httpClient), nil
}

// parseHost parses a host string into a URL.
func parseHost(host string) (*url.URL, error) {
	// If host doesn't have a scheme, add http://
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// NewOllamaClient creates a client backed by chatter.
func NewOllamaClient(chatter Chatter, logger zerolog.Logger, opts ...Option) *OllamaClient {
	c := &OllamaClient{
		api:    chatter,
		logger: logger.With().Str("component", "ollama").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements llm.Client.Generate. A request schema is sent as the
// chat format.
func (c *OllamaClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return llm.NewHandler(req, c.roundTrip, c.tools).Run(ctx)
}

// BuildChatRequest maps a request into a non-streaming chat request.
func BuildChatRequest(req *llm.Request) (*api.ChatRequest, error) {
	msgs, err := ToOllamaMessages(req.SystemPrompts, req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   new(bool), // false for non-streaming
		Options:  ToOllamaOptions(req),
	}

	if len(req.Tools) > 0 {
		tools, err := ToOllamaTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tools: %w", err)
		}
		chatReq.Tools = tools
	}

	if req.Schema != nil {
		format, err := ToOllamaFormat(req.Schema)
		if err != nil {
			return nil, err
		}
		chatReq.Format = format
	}

	return chatReq, nil
}

func (c *OllamaClient) roundTrip(ctx context.Context, req *llm.Request) (llm.Step, *llm.AssistantMessage, error) {
	chatReq, err := BuildChatRequest(req)
	if err != nil {
		return llm.Step{}, nil, err
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(chatReq.Messages)).
		Bool("structured", chatReq.Format != nil).
		Msg("Sending chat request")

	var chatResp api.ChatResponse
	err = c.api.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("model", req.Model).Msg("Chat request failed")
		return llm.Step{}, nil, convertOllamaError(req.Model, err)
	}

	step := extractStep(chatResp)
	return step, llm.NewAssistantMessage(step.Text, step.ToolCalls...), nil
}

// extractStep converts the final chat response. Tool calls get synthesized
// IDs and a stop with calls finishes with FinishReasonToolCalls.
func extractStep(resp api.ChatResponse) llm.Step {
	var toolCalls []llm.ToolCall
	for _, tc := range resp.Message.ToolCalls {
		toolCalls = append(toolCalls, FromOllamaToolCall(uuid.NewString(), tc))
	}

	finish := FromOllamaDoneReason(resp.DoneReason)
	if len(toolCalls) > 0 && finish == llm.FinishReasonStop {
		finish = llm.FinishReasonToolCalls
	}

	return llm.Step{
		Text:         resp.Message.Content,
		FinishReason: finish,
		ToolCalls:    toolCalls,
		Usage:        llm.NewUsage(resp.PromptEvalCount, resp.EvalCount),
		Meta:         llm.ResponseMeta{Model: resp.Model},
	}
}

func convertOllamaError(model string, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.ErrorMessage
		if message == "" {
			message = statusErr.Status
		}
		llmErr := llm.NewProviderResponseError("ollama: "+message, statusErr.StatusCode, err)
		llmErr.Model = model
		return llmErr
	}
	return llm.NewProviderRequestError(model, err)
}

var (
	_ llm.Client = (*OllamaClient)(nil)
	_ Chatter    = (*api.Client)(nil)
)
