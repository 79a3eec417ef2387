package gemini

import (
	"encoding/base64"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/samber/lo"
)

// MapMessages converts every non-system message into a Gemini content turn,
// preserving order. Gemini accepts URL media, so URL images become
// file_data parts.
func MapMessages(messages []llm.Message) ([]Content, error) {
	conversation := llm.ConversationMessages(messages)
	contents := make([]Content, 0, len(conversation))
	for _, msg := range conversation {
		var (
			content Content
			err     error
		)
		switch m := msg.(type) {
		case *llm.UserMessage:
			content, err = mapUserMessage(m)
		case *llm.AssistantMessage:
			content = mapAssistantMessage(m)
		case *llm.ToolResultMessage:
			content = mapToolResultMessage(m)
		default:
			err = llm.NewUnsupportedMessageError(msg)
		}
		if err != nil {
			return nil, err
		}
		contents = append(contents, content)
	}
	return contents, nil
}

// MapSystemInstruction joins the request system prompts and the system
// messages of the conversation, in that order, into one instruction. It
// returns nil when there is nothing to send.
func MapSystemInstruction(prompts []*llm.SystemMessage, messages []llm.Message) *Content {
	all := append(append([]*llm.SystemMessage{}, prompts...), llm.SystemMessages(messages)...)
	if len(all) == 0 {
		return nil
	}
	return &Content{
		Parts: lo.Map(all, func(sm *llm.SystemMessage, _ int) Part {
			return Part{Text: sm.Content}
		}),
	}
}

func mapUserMessage(msg *llm.UserMessage) (Content, error) {
	parts := make([]Part, 0, 1+len(msg.Images)+len(msg.Documents))
	if msg.Content != "" {
		parts = append(parts, Part{Text: msg.Content})
	}

	for _, img := range msg.Images {
		if img.IsURL() {
			parts = append(parts, Part{FileData: &FileData{MimeType: img.MimeType, FileURI: img.URL}})
			continue
		}
		parts = append(parts, Part{InlineData: &Blob{MimeType: img.MimeType, Data: img.Data}})
	}

	for _, doc := range msg.Documents {
		if err := doc.Validate(); err != nil {
			return Content{}, err
		}
		switch doc.Format {
		case llm.DocumentContent:
			for _, chunk := range doc.Chunks {
				parts = append(parts, Part{Text: chunk})
			}
		case llm.DocumentText:
			mimeType := doc.MimeType
			if mimeType == "" {
				mimeType = "text/plain"
			}
			parts = append(parts, Part{InlineData: &Blob{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString([]byte(doc.Data)),
			}})
		default:
			parts = append(parts, Part{InlineData: &Blob{MimeType: doc.MimeType, Data: doc.Data}})
		}
	}

	return Content{Role: "user", Parts: parts}, nil
}

func mapAssistantMessage(msg *llm.AssistantMessage) Content {
	parts := make([]Part, 0, 1+len(msg.ToolCalls))
	if text := msg.Text(); text != "" {
		parts = append(parts, Part{Text: text})
	}
	for _, tc := range msg.ToolCalls {
		args := tc.Arguments
		if args == nil {
			args = map[string]any{}
		}
		parts = append(parts, Part{FunctionCall: &FunctionCall{Name: tc.Name, Args: args}})
	}
	return Content{Role: "model", Parts: parts}
}

func mapToolResultMessage(msg *llm.ToolResultMessage) Content {
	return Content{
		Role: "user",
		Parts: lo.Map(msg.Results, func(r llm.ToolResult, _ int) Part {
			return Part{FunctionResponse: &FunctionResponse{
				Name: r.ToolName,
				Response: FunctionResponseBody{
					Name:    r.ToolName,
					Content: r.Result,
				},
			}}
		}),
	}
}

// MapTools converts tool declarations into a single function tool.
func MapTools(tools []llm.Tool) ([]Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	declarations := make([]FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl := FunctionDeclaration{Name: tool.Name, Description: tool.Description}
		if tool.Parameters != nil && len(tool.Parameters.Properties) > 0 {
			params, err := MapSchema(tool.Parameters)
			if err != nil {
				return nil, err
			}
			decl.Parameters = params
		}
		declarations = append(declarations, decl)
	}
	return []Tool{{FunctionDeclarations: declarations}}, nil
}

// MapToolChoice converts a tool choice into a function calling config.
func MapToolChoice(choice llm.ToolChoice) *ToolConfig {
	switch choice {
	case "":
		return nil
	case llm.ToolChoiceAuto:
		return &ToolConfig{FunctionCallingConfig: FunctionCallingConfig{Mode: "AUTO"}}
	case llm.ToolChoiceAny:
		return &ToolConfig{FunctionCallingConfig: FunctionCallingConfig{Mode: "ANY"}}
	case llm.ToolChoiceNone:
		return &ToolConfig{FunctionCallingConfig: FunctionCallingConfig{Mode: "NONE"}}
	}
	return &ToolConfig{FunctionCallingConfig: FunctionCallingConfig{
		Mode:                 "ANY",
		AllowedFunctionNames: []string{string(choice)},
	}}
}

// MapFinishReason converts a candidate finishReason.
func MapFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "STOP":
		return llm.FinishReasonStop
	case "MAX_TOKENS":
		return llm.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		return llm.FinishReasonContentFilter
	case "MALFORMED_FUNCTION_CALL":
		return llm.FinishReasonError
	}
	return llm.FinishReasonOther
}
