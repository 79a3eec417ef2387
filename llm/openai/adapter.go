package openai

import (
	"encoding/json"
	"fmt"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// MapMessages converts a conversation to chat messages. Request system
// prompts lead, followed by the system messages of the conversation, then
// the remaining messages in order.
func MapMessages(prompts []*llm.SystemMessage, messages []llm.Message) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(prompts)+len(messages))
	for _, sp := range prompts {
		result = append(result, systemMessage(sp))
	}
	for _, sm := range llm.SystemMessages(messages) {
		result = append(result, systemMessage(sm))
	}

	for _, msg := range llm.ConversationMessages(messages) {
		switch m := msg.(type) {
		case *llm.UserMessage:
			mapped, err := mapUserMessage(m)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped)
		case *llm.AssistantMessage:
			mapped, err := mapAssistantMessage(m)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped)
		case *llm.ToolResultMessage:
			// One tool message per result.
			for _, r := range m.Results {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    r.Result,
					ToolCallID: r.ToolCallID,
				})
			}
		default:
			return nil, llm.NewUnsupportedMessageError(msg)
		}
	}
	return result, nil
}

func systemMessage(msg *llm.SystemMessage) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content}
}

// mapUserMessage sends plain content when there are no attachments and a
// multi part message otherwise.
func mapUserMessage(msg *llm.UserMessage) (openai.ChatCompletionMessage, error) {
	if len(msg.Images) == 0 && len(msg.Documents) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content}, nil
	}

	var parts []openai.ChatMessagePart
	if msg.Content != "" {
		parts = append(parts, textPart(msg.Content))
	}
	for _, img := range msg.Images {
		url := img.URL
		if !img.IsURL() {
			url = fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data)
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
	}
	for _, doc := range msg.Documents {
		if err := doc.Validate(); err != nil {
			return openai.ChatCompletionMessage{}, err
		}
		switch {
		case doc.IsChunked():
			parts = append(parts, lo.Map(doc.Chunks, func(chunk string, _ int) openai.ChatMessagePart {
				return textPart(chunk)
			})...)
		case doc.Format == llm.DocumentText:
			parts = append(parts, textPart(doc.Data))
		default:
			return openai.ChatCompletionMessage{}, llm.NewConfigurationError("base64 documents are not supported by OpenAI")
		}
	}

	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}, nil
}

func textPart(text string) openai.ChatMessagePart {
	return openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: text}
}

func mapAssistantMessage(msg *llm.AssistantMessage) (openai.ChatCompletionMessage, error) {
	out := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: msg.Text(),
	}
	for _, tc := range msg.ToolCalls {
		args, err := tc.ArgumentsJSON()
		if err != nil {
			return openai.ChatCompletionMessage{}, err
		}
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}
	return out, nil
}

// schemaDocument carries a translated JSON schema in a response format.
type schemaDocument map[string]any

func (d schemaDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// MapResponseFormat builds the json_schema response format for a schema.
// Strict mode follows the request's OpenAI options.
func MapResponseFormat(schema llm.Schema, meta llm.OpenAIMeta) (*openai.ChatCompletionResponseFormat, error) {
	doc, err := llm.JSONSchema(schema)
	if err != nil {
		return nil, err
	}
	name := schema.SchemaName()
	if name == "" {
		name = "response"
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        name,
			Description: schema.SchemaDescription(),
			Schema:      schemaDocument(doc),
			Strict:      meta.Strict != nil && *meta.Strict,
		},
	}, nil
}

// MapTools converts tools to function definitions. A tool without
// parameters gets an empty object schema.
func MapTools(tools []llm.Tool) ([]openai.Tool, error) {
	result := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		params := map[string]any{"type": "object", "properties": map[string]any{}}
		if tool.Parameters != nil {
			doc, err := llm.JSONSchema(tool.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
			}
			params = doc
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return result, nil
}

// MapToolChoice returns nil when no choice is set. "any" maps to
// "required".
func MapToolChoice(choice llm.ToolChoice) any {
	switch choice {
	case "":
		return nil
	case llm.ToolChoiceAuto:
		return "auto"
	case llm.ToolChoiceNone:
		return "none"
	case llm.ToolChoiceAny:
		return "required"
	}
	return openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: string(choice)},
	}
}

// MapFinishReason maps a chat completion finish reason.
func MapFinishReason(reason openai.FinishReason) llm.FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return llm.FinishReasonStop
	case openai.FinishReasonLength:
		return llm.FinishReasonLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return llm.FinishReasonToolCalls
	case openai.FinishReasonContentFilter:
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonOther
	}
}

// fromToolCall decodes a tool call. Unparseable arguments become an empty
// object.
func fromToolCall(tc openai.ToolCall) llm.ToolCall {
	args := map[string]any{}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil || args == nil {
			args = map[string]any{}
		}
	}
	return llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}
}
