package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/rs/zerolog"
)

const (
	messagesEndpoint = "v1/messages"
	defaultMaxTokens = 2048
)

// AnthropicClient implements the llm.Client interface for Anthropic's
// Messages API.
type AnthropicClient struct {
	transport llm.Transport
	validator llm.ResponseValidator
	tools     llm.ToolExecutor
	logger    zerolog.Logger
}

// Option configures an AnthropicClient.
type Option func(*AnthropicClient)

// WithValidator replaces the default response validator.
func WithValidator(v llm.ResponseValidator) Option {
	return func(c *AnthropicClient) { c.validator = v }
}

// WithToolExecutor enables automatic tool execution between round-trips.
func WithToolExecutor(tools llm.ToolExecutor) Option {
	return func(c *AnthropicClient) { c.tools = tools }
}

// NewAnthropicClient creates a client that sends payloads through transport.
func NewAnthropicClient(transport llm.Transport, logger zerolog.Logger, opts ...Option) *AnthropicClient {
	c := &AnthropicClient{
		transport: transport,
		validator: Validator{},
		logger:    logger.With().Str("component", "anthropic").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements llm.Client.Generate. When the request carries a
// schema, the model is instructed to answer with matching JSON.
func (c *AnthropicClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	working := req.Clone()
	if req.Schema != nil {
		prompt, err := StructuredPrompt(req.Schema)
		if err != nil {
			return nil, err
		}
		working.Messages = append(working.Messages, prompt)
	}

	return llm.NewHandler(working, c.roundTrip, c.tools).Run(ctx)
}

// StructuredPrompt builds the user turn that asks for JSON output.
func StructuredPrompt(schema llm.Schema) (*llm.UserMessage, error) {
	doc, err := llm.JSONSchema(schema)
	if err != nil {
		return nil, err
	}
	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return llm.NewUserMessage(fmt.Sprintf("Respond with ONLY JSON that matches the following schema:\n%s", pretty)), nil
}

// BuildPayload maps a request into a Messages API body. Request system
// prompts come before system messages found in the conversation.
func BuildPayload(req *llm.Request) (*MessagesRequest, error) {
	messages, err := MapConversation(req.Messages, req.ProviderMeta)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	systemSources := make([]llm.Message, 0, len(req.SystemPrompts)+len(req.Messages))
	for _, sp := range req.SystemPrompts {
		systemSources = append(systemSources, sp)
	}
	systemSources = append(systemSources, req.Messages...)

	tools, err := MapTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("failed to convert tools: %w", err)
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return &MessagesRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      MapSystemPrompts(systemSources, nil),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Tools:       tools,
		ToolChoice:  MapToolChoice(req.ToolChoice),
	}, nil
}

func (c *AnthropicClient) roundTrip(ctx context.Context, req *llm.Request) (llm.Step, *llm.AssistantMessage, error) {
	payload, err := BuildPayload(req)
	if err != nil {
		return llm.Step{}, nil, err
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(payload.Messages)).
		Int("tools", len(payload.Tools)).
		Msg("Sending messages request")

	resp, err := c.transport.Send(ctx, messagesEndpoint, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("model", req.Model).Msg("Messages request failed")
		return llm.Step{}, nil, llm.NewProviderRequestError(req.Model, err)
	}
	if err := c.validator.Validate(resp); err != nil {
		return llm.Step{}, nil, err
	}

	var data messagesResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return llm.Step{}, nil, llm.NewProviderResponseError("anthropic: malformed response body", resp.StatusCode, err)
	}

	step, msg := extractStep(data)
	step.Meta.RateLimits = ParseRateLimits(resp.Header)

	if step.Usage.CacheWriteInputTokens > 0 || step.Usage.CacheReadInputTokens > 0 {
		c.logger.Debug().
			Int("input_tokens", step.Usage.PromptTokens).
			Int("cache_creation_tokens", step.Usage.CacheWriteInputTokens).
			Int("cache_read_tokens", step.Usage.CacheReadInputTokens).
			Msg("Prompt cache stats")
	}

	return step, msg, nil
}

// extractStep converts a decoded response into a step and the assistant
// message to append. Citations turn the message into annotated parts.
func extractStep(data messagesResponse) (llm.Step, *llm.AssistantMessage) {
	var (
		text      strings.Builder
		parts     []llm.ContentPart
		cited     bool
		toolCalls []llm.ToolCall
	)
	for _, block := range data.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
			part := llm.ContentPart{Text: block.Text}
			for _, c := range block.Citations {
				part.Citations = append(part.Citations, fromWireCitation(c))
			}
			cited = cited || len(part.Citations) > 0
			parts = append(parts, part)
		case "tool_use":
			input := block.Input
			if input == nil {
				input = map[string]any{}
			}
			toolCalls = append(toolCalls, llm.ToolCall{ID: block.ID, Name: block.Name, Arguments: input})
		}
	}

	msg := llm.NewAssistantMessage(text.String(), toolCalls...)
	if cited {
		msg = llm.NewAnnotatedAssistantMessage(parts, toolCalls...)
	} else {
		parts = nil
	}

	usage := llm.NewUsage(data.Usage.InputTokens, data.Usage.OutputTokens)
	usage.CacheWriteInputTokens = data.Usage.CacheCreationInputTokens
	usage.CacheReadInputTokens = data.Usage.CacheReadInputTokens

	return llm.Step{
		Text:         text.String(),
		Parts:        parts,
		FinishReason: MapFinishReason(data.StopReason),
		ToolCalls:    toolCalls,
		Usage:        usage,
		Meta:         llm.ResponseMeta{ID: data.ID, Model: data.Model},
	}, msg
}

var _ llm.Client = (*AnthropicClient)(nil)
