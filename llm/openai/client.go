package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI API errors don't directly expose retry-after headers
// We'll use a default retry after duration for rate limits
const defaultRetryAfter = 60 * time.Second

// ChatCompleter is the part of the go-openai client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements the llm.Client interface for OpenAI's API.
type OpenAIClient struct {
	api    ChatCompleter
	tools  llm.ToolExecutor
	logger zerolog.Logger
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithToolExecutor enables automatic tool execution between round-trips.
func WithToolExecutor(tools llm.ToolExecutor) Option {
	return func(c *OpenAIClient) { c.tools = tools }
}

// NewChatCompleter creates a go-openai client.
// If apiKey is empty, it will return an error.
// If baseURL is empty, it will use the default OpenAI API endpoint.
func NewChatCompleter(apiKey, baseURL, organization string, httpClient *http.Client) (*openai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return openai.NewClientWithConfig(config), nil
}

// NewOpenAIClient creates a client backed by api.
func NewOpenAIClient(api ChatCompleter, logger zerolog.Logger, opts ...Option) *OpenAIClient {
	c := &OpenAIClient{
		api:    api,
		logger: logger.With().Str("component", "openai").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements llm.Client.Generate. A request schema is sent as a
// json_schema response format.
func (c *OpenAIClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return llm.NewHandler(req, c.roundTrip, c.tools).Run(ctx)
}

// BuildRequest maps a request into a chat completion request.
func BuildRequest(req *llm.Request) (openai.ChatCompletionRequest, error) {
	messages, err := MapMessages(req.SystemPrompts, req.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("failed to convert messages: %w", err)
	}
	tools, err := MapTools(req.Tools)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("failed to convert tools: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		User:     req.OpenAIOptions().User,
	}
	if len(tools) > 0 {
		chatReq.Tools = tools
	}
	chatReq.ToolChoice = MapToolChoice(req.ToolChoice)

	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	// go-openai omits zero values, so an explicit 0 cannot be sent.
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		chatReq.TopP = float32(*req.TopP)
	}

	if req.Schema != nil {
		format, err := MapResponseFormat(req.Schema, req.OpenAIOptions())
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		chatReq.ResponseFormat = format
	}

	return chatReq, nil
}

func (c *OpenAIClient) roundTrip(ctx context.Context, req *llm.Request) (llm.Step, *llm.AssistantMessage, error) {
	chatReq, err := BuildRequest(req)
	if err != nil {
		return llm.Step{}, nil, err
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(chatReq.Messages)).
		Int("tools", len(chatReq.Tools)).
		Bool("structured", chatReq.ResponseFormat != nil).
		Msg("Sending chat completion request")

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		c.logger.Error().Err(err).Str("model", req.Model).Msg("Chat completion failed")
		return llm.Step{}, nil, convertOpenAIError(req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return llm.Step{}, nil, llm.NewProviderResponseError("openai: no choices in response", http.StatusBadGateway, nil)
	}

	step := extractStep(resp)
	step.Meta.RateLimits = rateLimits(resp.GetRateLimitHeaders())
	return step, llm.NewAssistantMessage(step.Text, step.ToolCalls...), nil
}

func extractStep(resp openai.ChatCompletionResponse) llm.Step {
	choice := resp.Choices[0]

	var toolCalls []llm.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, fromToolCall(tc))
	}

	usage := llm.NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if details := resp.Usage.PromptTokensDetails; details != nil {
		usage.CacheReadInputTokens = details.CachedTokens
	}

	return llm.Step{
		Text:         choice.Message.Content,
		FinishReason: MapFinishReason(choice.FinishReason),
		ToolCalls:    toolCalls,
		Usage:        usage,
		Meta:         llm.ResponseMeta{ID: resp.ID, Model: resp.Model},
	}
}

// rateLimits converts x-ratelimit-* headers. Limits the response did not
// report are skipped.
func rateLimits(h openai.RateLimitHeaders) []llm.RateLimit {
	var limits []llm.RateLimit
	if h.LimitRequests > 0 {
		limits = append(limits, llm.RateLimit{
			Name:      "requests",
			Limit:     h.LimitRequests,
			Remaining: h.RemainingRequests,
			ResetsAt:  h.ResetRequests.Time(),
		})
	}
	if h.LimitTokens > 0 {
		limits = append(limits, llm.RateLimit{
			Name:      "tokens",
			Limit:     h.LimitTokens,
			Remaining: h.RemainingTokens,
			ResetsAt:  h.ResetTokens.Time(),
		})
	}
	return limits
}

// convertOpenAIError converts OpenAI errors to llm.Error types. Errors that
// carry an HTTP status are response errors, anything else failed in
// transport.
func convertOpenAIError(model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		llmErr := llm.NewProviderResponseError("openai: "+apiErr.Message, apiErr.HTTPStatusCode, err)
		llmErr.Model = model
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			retryAfter := defaultRetryAfter
			llmErr = llmErr.WithRetryAfter(&retryAfter)
		}
		return llmErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		llmErr := llm.NewProviderResponseError("openai: "+reqErr.HTTPStatus, reqErr.HTTPStatusCode, err)
		llmErr.Model = model
		return llmErr
	}

	return llm.NewProviderRequestError(model, err)
}

var (
	_ llm.Client    = (*OpenAIClient)(nil)
	_ ChatCompleter = (*openai.Client)(nil)
)
