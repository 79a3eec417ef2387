package llm

import "slices"

// ToolChoice controls whether and which tool the model must call. Values
// other than the constants name a specific tool. The zero value leaves the
// choice to the provider default.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceAny  ToolChoice = "any"
	ToolChoiceNone ToolChoice = "none"
)

// Tool is a function the model may call. A nil Parameters schema means the
// tool takes no arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  *ObjectSchema
}

// Request is a provider-neutral generation request. Handlers never modify a
// caller's Request; they work on a Clone.
type Request struct {
	Model         string
	Messages      []Message
	SystemPrompts []*SystemMessage
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
	Schema        Schema
	Tools         []Tool
	ToolChoice    ToolChoice
	// MaxSteps bounds the number of provider round-trips when tool calls
	// are executed automatically. Values below 1 mean a single round-trip.
	MaxSteps int
	ProviderMeta
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// NewRequest creates a request for model.
func NewRequest(model string, opts ...RequestOption) *Request {
	r := &Request{Model: model, MaxSteps: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithMessages appends messages to the conversation.
func WithMessages(messages ...Message) RequestOption {
	return func(r *Request) { r.Messages = append(r.Messages, messages...) }
}

// WithSystemPrompt appends a system prompt.
func WithSystemPrompt(prompt string) RequestOption {
	return func(r *Request) { r.SystemPrompts = append(r.SystemPrompts, NewSystemMessage(prompt)) }
}

// WithSystemPrompts appends system prompts carrying their own metadata.
func WithSystemPrompts(prompts ...*SystemMessage) RequestOption {
	return func(r *Request) { r.SystemPrompts = append(r.SystemPrompts, prompts...) }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) RequestOption {
	return func(r *Request) { r.Temperature = &t }
}

// WithTopP sets nucleus sampling.
func WithTopP(p float64) RequestOption {
	return func(r *Request) { r.TopP = &p }
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) RequestOption {
	return func(r *Request) { r.MaxTokens = &n }
}

// WithSchema requests structured output matching schema.
func WithSchema(schema Schema) RequestOption {
	return func(r *Request) { r.Schema = schema }
}

// WithTools makes tools available to the model.
func WithTools(tools ...Tool) RequestOption {
	return func(r *Request) { r.Tools = append(r.Tools, tools...) }
}

// WithToolChoice sets the tool choice.
func WithToolChoice(choice ToolChoice) RequestOption {
	return func(r *Request) { r.ToolChoice = choice }
}

// WithMaxSteps sets the maximum number of round-trips.
func WithMaxSteps(n int) RequestOption {
	return func(r *Request) { r.MaxSteps = n }
}

// WithProviderMeta sets request level provider options.
func WithProviderMeta(meta ProviderMeta) RequestOption {
	return func(r *Request) { r.ProviderMeta = meta }
}

// Clone returns a copy whose slices can be appended to without affecting r.
// Messages themselves are shared.
func (r *Request) Clone() *Request {
	c := *r
	c.Messages = slices.Clone(r.Messages)
	c.SystemPrompts = slices.Clone(r.SystemPrompts)
	c.Tools = slices.Clone(r.Tools)
	return &c
}

// Steps returns MaxSteps clamped to at least one.
func (r *Request) Steps() int {
	return max(r.MaxSteps, 1)
}

// Validate checks the fields every provider requires.
func (r *Request) Validate() error {
	if r.Model == "" {
		return NewConfigurationError("request model is required")
	}
	for _, tool := range r.Tools {
		if tool.Name == "" {
			return NewConfigurationError("tool name is required")
		}
	}
	return nil
}
