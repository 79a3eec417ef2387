package gemini

import (
	"context"
	"fmt"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the models endpoint of the Generative Language API.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

// GeminiClient implements the llm.Client interface for Gemini's
// generateContent endpoint.
type GeminiClient struct {
	transport llm.Transport
	validator llm.ResponseValidator
	tools     llm.ToolExecutor
	logger    zerolog.Logger
}

// Option configures a GeminiClient.
type Option func(*GeminiClient)

// WithValidator replaces the default response validator.
func WithValidator(v llm.ResponseValidator) Option {
	return func(c *GeminiClient) { c.validator = v }
}

// WithToolExecutor enables automatic tool execution between round-trips.
func WithToolExecutor(tools llm.ToolExecutor) Option {
	return func(c *GeminiClient) { c.tools = tools }
}

// NewGeminiClient creates a client. The transport must resolve endpoints
// against DefaultBaseURL (or a compatible proxy) and authenticate.
func NewGeminiClient(transport llm.Transport, logger zerolog.Logger, opts ...Option) *GeminiClient {
	c := &GeminiClient{
		transport: transport,
		validator: Validator{},
		logger:    logger.With().Str("component", "gemini").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements llm.Client.Generate. A request schema switches the
// response to JSON constrained by that schema.
func (c *GeminiClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return llm.NewHandler(req, c.roundTrip, c.tools).Run(ctx)
}

// Endpoint returns the generateContent endpoint for model, relative to the
// base URL.
func Endpoint(model string) string {
	return model + ":generateContent"
}

// BuildPayload maps a request into a generateContent body. Unset generation
// parameters are left out and safety settings are only sent when present.
func BuildPayload(req *llm.Request) (*Payload, error) {
	contents, err := MapMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	tools, err := MapTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("failed to convert tools: %w", err)
	}

	payload := &Payload{
		Contents:          contents,
		SystemInstruction: MapSystemInstruction(req.SystemPrompts, req.Messages),
		SafetySettings:    req.GeminiOptions().SafetySettings,
		Tools:             tools,
		ToolConfig:        MapToolChoice(req.ToolChoice),
	}

	config := &GenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.Schema != nil {
		schema, err := MapSchema(req.Schema)
		if err != nil {
			return nil, err
		}
		config.ResponseMimeType = "application/json"
		config.ResponseSchema = schema
	}
	if config.ResponseSchema != nil || config.Temperature != nil || config.TopP != nil || config.MaxOutputTokens != nil {
		payload.GenerationConfig = config
	}

	return payload, nil
}

func (c *GeminiClient) roundTrip(ctx context.Context, req *llm.Request) (llm.Step, *llm.AssistantMessage, error) {
	payload, err := BuildPayload(req)
	if err != nil {
		return llm.Step{}, nil, err
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("contents", len(payload.Contents)).
		Bool("structured", req.Schema != nil).
		Msg("Sending generateContent request")

	resp, err := c.transport.Send(ctx, Endpoint(req.Model), payload)
	if err != nil {
		c.logger.Error().Err(err).Str("model", req.Model).Msg("generateContent request failed")
		return llm.Step{}, nil, llm.NewProviderRequestError(req.Model, err)
	}
	if err := c.validator.Validate(resp); err != nil {
		return llm.Step{}, nil, err
	}

	step := extractStep(resp)
	return step, llm.NewAssistantMessage(step.Text, step.ToolCalls...), nil
}

// extractStep reads the first candidate. Missing fields default to zero
// values. Gemini reports STOP for function calls, so a candidate with
// calls finishes with FinishReasonToolCalls.
func extractStep(resp *llm.TransportResponse) llm.Step {
	var toolCalls []llm.ToolCall
	resp.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		call := part.Get("functionCall")
		if !call.Exists() {
			return true
		}
		args, _ := call.Get("args").Value().(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:        uuid.NewString(),
			Name:      call.Get("name").String(),
			Arguments: args,
		})
		return true
	})

	finish := MapFinishReason(resp.Get("candidates.0.finishReason").String())
	if len(toolCalls) > 0 && finish == llm.FinishReasonStop {
		finish = llm.FinishReasonToolCalls
	}

	id := resp.Get("id").String()
	if id == "" {
		id = resp.Get("responseId").String()
	}

	return llm.Step{
		Text:         resp.Get("candidates.0.content.parts.0.text").String(),
		FinishReason: finish,
		ToolCalls:    toolCalls,
		Usage: llm.NewUsage(
			int(resp.Get("usageMetadata.promptTokenCount").Int()),
			int(resp.Get("usageMetadata.candidatesTokenCount").Int()),
		),
		Meta: llm.ResponseMeta{
			ID:    id,
			Model: resp.Get("modelVersion").String(),
		},
	}
}

var _ llm.Client = (*GeminiClient)(nil)
