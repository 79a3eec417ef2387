package llm

import (
	"context"
	"encoding/json"
	"slices"
)

// RoundTrip performs one provider round-trip for the working request. It
// returns the step it produced, without history snapshots, and the assistant
// message the model answered with.
type RoundTrip func(ctx context.Context, req *Request) (Step, *AssistantMessage, error)

// Handler drives a single request to completion. It owns one
// ResponseBuilder and a working copy of the request, so a Handler must be
// created per call and Run only once.
type Handler struct {
	request   *Request
	builder   *ResponseBuilder
	roundTrip RoundTrip
	tools     ToolExecutor
}

// NewHandler creates a handler for req. The caller's request is cloned and
// left untouched. tools may be nil, in which case tool calls end the run.
func NewHandler(req *Request, roundTrip RoundTrip, tools ToolExecutor) *Handler {
	return &Handler{
		request:   req.Clone(),
		builder:   NewResponseBuilder(),
		roundTrip: roundTrip,
		tools:     tools,
	}
}

// Request returns the handler's working copy.
func (h *Handler) Request() *Request {
	return h.request
}

// Run performs round-trips until the model stops requesting tools, no
// executor is configured, or the request's step budget is spent. Tool
// failures are reported back to the model as an error payload.
func (h *Handler) Run(ctx context.Context) (*Response, error) {
	for n := 1; ; n++ {
		step, msg, err := h.roundTrip(ctx, h.request)
		if err != nil {
			return nil, err
		}

		h.builder.AddResponseMessage(msg)
		h.request.Messages = append(h.request.Messages, msg)
		step.Messages = slices.Clone(h.request.Messages)
		step.SystemPrompts = slices.Clone(h.request.SystemPrompts)

		if !h.continues(step, n) {
			h.builder.AddStep(step)
			return h.builder.ToResponse(), nil
		}

		step.ToolResults = h.executeTools(ctx, step.ToolCalls)
		h.builder.AddStep(step)
		h.request.Messages = append(h.request.Messages, NewToolResultMessage(step.ToolResults...))
	}
}

func (h *Handler) continues(step Step, n int) bool {
	return h.tools != nil &&
		step.FinishReason == FinishReasonToolCalls &&
		len(step.ToolCalls) > 0 &&
		n < h.request.Steps()
}

func (h *Handler) executeTools(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		out, err := h.tools.Execute(ctx, call)
		if err != nil {
			payload, _ := json.Marshal(map[string]any{"error": err.Error()})
			out = string(payload)
		}
		results = append(results, ToolResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Args:       call.Arguments,
			Result:     out,
		})
	}
	return results
}
