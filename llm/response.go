package llm

import (
	"encoding/json"
	"slices"
	"time"
)

// FinishReason is the provider-neutral reason a generation stopped.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonError         FinishReason = "error"
	FinishReasonOther         FinishReason = "other"
)

// Usage represents token usage for one or more round-trips.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	// Provider-specific usage fields can be added here
	CacheWriteInputTokens int
	CacheReadInputTokens  int
}

// NewUsage creates a Usage, clamping negative counts to zero.
func NewUsage(promptTokens, completionTokens int) Usage {
	return Usage{PromptTokens: max(promptTokens, 0), CompletionTokens: max(completionTokens, 0)}
}

// Add returns the field-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:          u.PromptTokens + o.PromptTokens,
		CompletionTokens:      u.CompletionTokens + o.CompletionTokens,
		CacheWriteInputTokens: u.CacheWriteInputTokens + o.CacheWriteInputTokens,
		CacheReadInputTokens:  u.CacheReadInputTokens + o.CacheReadInputTokens,
	}
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// RateLimit reports the state of one provider rate limit.
type RateLimit struct {
	Name      string
	Limit     int
	Remaining int
	ResetsAt  time.Time
}

// ResponseMeta identifies a provider response. Model is empty when the
// provider did not report a version.
type ResponseMeta struct {
	ID         string
	Model      string
	RateLimits []RateLimit
}

// Step is the result of one provider round-trip. Messages and SystemPrompts
// snapshot the conversation as it stood after the round-trip.
type Step struct {
	Text          string
	Parts         []ContentPart
	FinishReason  FinishReason
	ToolCalls     []ToolCall
	ToolResults   []ToolResult
	Usage         Usage
	Meta          ResponseMeta
	Messages      []Message
	SystemPrompts []*SystemMessage
}

// Response aggregates every step of a request.
type Response struct {
	Text             string
	FinishReason     FinishReason
	Usage            Usage
	Steps            []Step
	ResponseMessages []*AssistantMessage
	Meta             ResponseMeta
}

// ToolCalls returns the tool calls of the last step.
func (r *Response) ToolCalls() []ToolCall {
	if len(r.Steps) == 0 {
		return nil
	}
	return r.Steps[len(r.Steps)-1].ToolCalls
}

// Structured decodes the final text as a JSON object.
func (r *Response) Structured() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(r.Text), &out); err != nil {
		return nil, NewStructuredDecodingError(r.Meta.Model, err)
	}
	return out, nil
}

// ResponseBuilder accumulates steps and produced messages for a single
// request. It is append-only until ToResponse, after which any further call
// panics. A builder is owned by one handler and is not safe for concurrent
// use.
type ResponseBuilder struct {
	steps     []Step
	messages  []*AssistantMessage
	finalized bool
}

// NewResponseBuilder creates an empty builder.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// AddResponseMessage records an assistant message produced by the model.
func (b *ResponseBuilder) AddResponseMessage(msg *AssistantMessage) {
	b.mustBuild("AddResponseMessage")
	b.messages = append(b.messages, msg)
}

// AddStep records a round-trip. The step is not validated.
func (b *ResponseBuilder) AddStep(step Step) {
	b.mustBuild("AddStep")
	b.steps = append(b.steps, step)
}

// ToResponse finalizes the builder. Text, finish reason and meta come from
// the last step; usage is summed over all steps.
func (b *ResponseBuilder) ToResponse() *Response {
	b.mustBuild("ToResponse")
	b.finalized = true

	resp := &Response{
		Steps:            slices.Clone(b.steps),
		ResponseMessages: slices.Clone(b.messages),
	}
	for _, s := range b.steps {
		resp.Usage = resp.Usage.Add(s.Usage)
	}
	if n := len(b.steps); n > 0 {
		last := b.steps[n-1]
		resp.Text = last.Text
		resp.FinishReason = last.FinishReason
		resp.Meta = last.Meta
	}
	return resp
}

func (b *ResponseBuilder) mustBuild(op string) {
	if b.finalized {
		panic("llm: ResponseBuilder." + op + " called after ToResponse")
	}
}
