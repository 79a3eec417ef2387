package llm

import (
	"fmt"
)

// MessageSpec is the serialized form of a Message used by request files.
type MessageSpec struct {
	Type      string           `yaml:"type" json:"type"`
	Content   string           `yaml:"content,omitempty" json:"content,omitempty"`
	Cache     CacheType        `yaml:"cache,omitempty" json:"cache,omitempty"`
	Images    []ImageSpec      `yaml:"images,omitempty" json:"images,omitempty"`
	Documents []DocumentSpec   `yaml:"documents,omitempty" json:"documents,omitempty"`
	ToolCalls []ToolCallSpec   `yaml:"tool_calls,omitempty" json:"tool_calls,omitempty"`
	Results   []ToolResultSpec `yaml:"results,omitempty" json:"results,omitempty"`
}

// ImageSpec is the serialized form of an Image.
type ImageSpec struct {
	MimeType string `yaml:"mime_type,omitempty" json:"mime_type,omitempty"`
	Data     string `yaml:"data,omitempty" json:"data,omitempty"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
}

// DocumentSpec is the serialized form of a Document.
type DocumentSpec struct {
	Format    DocumentFormat `yaml:"format" json:"format"`
	MimeType  string         `yaml:"mime_type,omitempty" json:"mime_type,omitempty"`
	Data      string         `yaml:"data,omitempty" json:"data,omitempty"`
	Chunks    []string       `yaml:"chunks,omitempty" json:"chunks,omitempty"`
	Title     string         `yaml:"title,omitempty" json:"title,omitempty"`
	Context   string         `yaml:"context,omitempty" json:"context,omitempty"`
	Cache     CacheType      `yaml:"cache,omitempty" json:"cache,omitempty"`
	Citations *bool          `yaml:"citations,omitempty" json:"citations,omitempty"`
}

// ToolCallSpec is the serialized form of a ToolCall.
type ToolCallSpec struct {
	ID        string         `yaml:"id" json:"id"`
	Name      string         `yaml:"name" json:"name"`
	Arguments map[string]any `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// ToolResultSpec is the serialized form of a ToolResult.
type ToolResultSpec struct {
	ToolCallID string         `yaml:"tool_call_id" json:"tool_call_id"`
	ToolName   string         `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	Args       map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
	Result     string         `yaml:"result" json:"result"`
}

// DecodeMessages converts serialized messages into Messages. An unknown type
// fails with an unsupported message error.
func DecodeMessages(specs []MessageSpec) ([]Message, error) {
	messages := make([]Message, 0, len(specs))
	for i, spec := range specs {
		msg, err := decodeMessage(spec)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeMessage(spec MessageSpec) (Message, error) {
	meta := cacheMeta(spec.Cache, nil)
	switch MessageRole(spec.Type) {
	case RoleSystem:
		return &SystemMessage{Content: spec.Content, ProviderMeta: meta}, nil
	case RoleUser:
		msg := &UserMessage{Content: spec.Content, ProviderMeta: meta}
		for _, img := range spec.Images {
			msg.Images = append(msg.Images, Image(img))
		}
		for _, doc := range spec.Documents {
			d := Document{
				Format:       doc.Format,
				MimeType:     doc.MimeType,
				Data:         doc.Data,
				Chunks:       doc.Chunks,
				Title:        doc.Title,
				Context:      doc.Context,
				ProviderMeta: cacheMeta(doc.Cache, doc.Citations),
			}
			if err := d.Validate(); err != nil {
				return nil, err
			}
			msg.Documents = append(msg.Documents, d)
		}
		return msg, nil
	case RoleAssistant:
		msg := &AssistantMessage{Content: spec.Content, ProviderMeta: meta}
		for _, tc := range spec.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall(tc))
		}
		return msg, nil
	case RoleToolResult:
		msg := &ToolResultMessage{ProviderMeta: meta}
		for _, r := range spec.Results {
			msg.Results = append(msg.Results, ToolResult(r))
		}
		return msg, nil
	}
	return nil, &Error{
		Type:    ErrorTypeUnsupportedMessage,
		Message: fmt.Sprintf("unsupported message type %q", spec.Type),
	}
}

func cacheMeta(cache CacheType, citations *bool) ProviderMeta {
	if cache == "" && citations == nil {
		return ProviderMeta{}
	}
	return ProviderMeta{Anthropic: &AnthropicMeta{CacheType: cache, Citations: citations}}
}
