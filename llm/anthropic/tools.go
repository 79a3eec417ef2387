package anthropic

import (
	"fmt"

	"github.com/aschepis/backscratcher/switchboard/llm"
)

// MapTools converts tool declarations. A tool without parameters gets an
// empty object schema.
func MapTools(tools []llm.Tool) ([]Tool, error) {
	mapped := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		schema := map[string]any{"type": "object", "properties": map[string]any{}}
		if tool.Parameters != nil {
			var err error
			schema, err = llm.JSONSchema(tool.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
			}
		}
		mapped = append(mapped, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return mapped, nil
}

// MapToolChoice converts a tool choice. The zero value is left out.
func MapToolChoice(choice llm.ToolChoice) *ToolChoice {
	switch choice {
	case "":
		return nil
	case llm.ToolChoiceAuto, llm.ToolChoiceAny, llm.ToolChoiceNone:
		return &ToolChoice{Type: string(choice)}
	}
	return &ToolChoice{Type: "tool", Name: string(choice)}
}

// MapFinishReason converts a stop_reason.
func MapFinishReason(stopReason string) llm.FinishReason {
	switch stopReason {
	case "end_turn", "stop_sequence", "pause_turn":
		return llm.FinishReasonStop
	case "max_tokens":
		return llm.FinishReasonLength
	case "tool_use":
		return llm.FinishReasonToolCalls
	case "refusal":
		return llm.FinishReasonContentFilter
	}
	return llm.FinishReasonOther
}
