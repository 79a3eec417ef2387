package ollama

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/ollama/ollama/api"
	"github.com/samber/lo"
)

// ToOllamaMessages converts a conversation to chat messages. System
// prompts and the conversation's system messages lead.
func ToOllamaMessages(prompts []*llm.SystemMessage, msgs []llm.Message) ([]api.Message, error) {
	result := make([]api.Message, 0, len(prompts)+len(msgs))
	for _, sp := range append(append([]*llm.SystemMessage{}, prompts...), llm.SystemMessages(msgs)...) {
		result = append(result, api.Message{Role: "system", Content: sp.Content})
	}

	for _, msg := range llm.ConversationMessages(msgs) {
		switch m := msg.(type) {
		case *llm.UserMessage:
			converted, err := toUserMessage(m)
			if err != nil {
				return nil, err
			}
			result = append(result, converted)
		case *llm.AssistantMessage:
			result = append(result, toAssistantMessage(m))
		case *llm.ToolResultMessage:
			for _, r := range m.Results {
				result = append(result, api.Message{Role: "tool", Content: r.Result, ToolName: r.ToolName})
			}
		default:
			return nil, llm.NewUnsupportedMessageError(msg)
		}
	}
	return result, nil
}

// toUserMessage inlines images as raw bytes. Text documents are appended to
// the message content since Ollama has no document parts.
func toUserMessage(msg *llm.UserMessage) (api.Message, error) {
	out := api.Message{Role: "user"}

	for _, img := range msg.Images {
		if img.IsURL() {
			return api.Message{}, llm.NewConfigurationError("URL image type is not supported by Ollama")
		}
		raw, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return api.Message{}, llm.NewConfigurationError(fmt.Sprintf("image data is not valid base64: %v", err))
		}
		out.Images = append(out.Images, api.ImageData(raw))
	}

	sections := []string{msg.Content}
	for _, doc := range msg.Documents {
		if err := doc.Validate(); err != nil {
			return api.Message{}, err
		}
		switch {
		case doc.IsChunked():
			sections = append(sections, doc.Chunks...)
		case doc.Format == llm.DocumentText:
			sections = append(sections, doc.Data)
		default:
			return api.Message{}, llm.NewConfigurationError("base64 documents are not supported by Ollama")
		}
	}
	out.Content = strings.Join(lo.Compact(sections), "\n\n")

	return out, nil
}

func toAssistantMessage(msg *llm.AssistantMessage) api.Message {
	out := api.Message{Role: "assistant", Content: msg.Text()}
	for i, tc := range msg.ToolCalls {
		args := make(api.ToolCallFunctionArguments)
		for k, v := range tc.Arguments {
			args[k] = v
		}
		out.ToolCalls = append(out.ToolCalls, api.ToolCall{
			Function: api.ToolCallFunction{
				Index:     i,
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}
	return out
}

// ToOllamaTools converts tools to function declarations. Parameters are
// translated to JSON schema and decoded into Ollama's parameter type.
func ToOllamaTools(tools []llm.Tool) ([]api.Tool, error) {
	result := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		params := api.ToolFunctionParameters{Type: "object"}
		if tool.Parameters != nil {
			doc, err := llm.JSONSchema(tool.Parameters)
			if err != nil {
				return nil, fmt.Errorf("failed to convert tool %s: %w", tool.Name, err)
			}
			raw, err := json.Marshal(doc)
			if err != nil {
				return nil, fmt.Errorf("failed to encode tool %s: %w", tool.Name, err)
			}
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("failed to convert tool %s: %w", tool.Name, err)
			}
		}
		result = append(result, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return result, nil
}

// ToOllamaFormat returns the JSON schema that constrains the output.
func ToOllamaFormat(schema llm.Schema) (json.RawMessage, error) {
	doc, err := llm.JSONSchema(schema)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return raw, nil
}

// ToOllamaOptions merges the generation parameters over the request's raw
// Ollama options. The caller's map is not modified.
func ToOllamaOptions(req *llm.Request) map[string]any {
	overrides := map[string]any{}
	if req.Temperature != nil {
		overrides["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		overrides["top_p"] = *req.TopP
	}
	if req.MaxTokens != nil {
		overrides["num_predict"] = *req.MaxTokens
	}
	options := lo.Assign(req.OllamaOptions().Options, overrides)
	if len(options) == 0 {
		return nil
	}
	return options
}

// FromOllamaDoneReason maps done_reason.
func FromOllamaDoneReason(reason string) llm.FinishReason {
	switch reason {
	case "stop":
		return llm.FinishReasonStop
	case "length":
		return llm.FinishReasonLength
	default:
		return llm.FinishReasonOther
	}
}

// FromOllamaToolCall converts a tool call. Ollama doesn't return call IDs,
// so the caller supplies one.
func FromOllamaToolCall(id string, toolCall api.ToolCall) llm.ToolCall {
	input := make(map[string]any, len(toolCall.Function.Arguments))
	for k, v := range toolCall.Function.Arguments {
		input[k] = v
	}
	return llm.ToolCall{ID: id, Name: toolCall.Function.Name, Arguments: input}
}
