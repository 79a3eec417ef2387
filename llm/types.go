package llm

import (
	"encoding/json"
	"strings"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser       MessageRole = "user"
	RoleAssistant  MessageRole = "assistant"
	RoleSystem     MessageRole = "system"
	RoleToolResult MessageRole = "tool_result"
)

// Message is a single turn of a provider-neutral conversation.
//
// The set of implementations is closed: *SystemMessage, *UserMessage,
// *AssistantMessage and *ToolResultMessage. Provider mappers switch over
// these four and treat anything else as UnsupportedMessageType.
type Message interface {
	Role() MessageRole
	Metadata() ProviderMeta
	isMessage()
}

// SystemMessage carries instructions routed through a provider's system
// prompt channel. It never appears in a mapped conversation.
type SystemMessage struct {
	Content string
	ProviderMeta
}

// UserMessage is text plus ordered image and document attachments.
type UserMessage struct {
	Content   string
	Images    []Image
	Documents []Document
	ProviderMeta
}

// AssistantMessage is a model turn. Content and Parts are mutually
// exclusive: when Parts is non-empty it takes precedence over Content.
type AssistantMessage struct {
	Content   string
	Parts     []ContentPart
	ToolCalls []ToolCall
	ProviderMeta
}

// ToolResultMessage answers the tool calls of the preceding assistant turn.
type ToolResultMessage struct {
	Results []ToolResult
	ProviderMeta
}

func (*SystemMessage) Role() MessageRole     { return RoleSystem }
func (*UserMessage) Role() MessageRole       { return RoleUser }
func (*AssistantMessage) Role() MessageRole  { return RoleAssistant }
func (*ToolResultMessage) Role() MessageRole { return RoleToolResult }

func (m *SystemMessage) Metadata() ProviderMeta     { return m.ProviderMeta }
func (m *UserMessage) Metadata() ProviderMeta       { return m.ProviderMeta }
func (m *AssistantMessage) Metadata() ProviderMeta  { return m.ProviderMeta }
func (m *ToolResultMessage) Metadata() ProviderMeta { return m.ProviderMeta }

func (*SystemMessage) isMessage()     {}
func (*UserMessage) isMessage()       {}
func (*AssistantMessage) isMessage()  {}
func (*ToolResultMessage) isMessage() {}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ArgumentsJSON encodes the arguments as a JSON object. Nil arguments
// encode as an empty object.
func (tc ToolCall) ArgumentsJSON() (string, error) {
	if tc.Arguments == nil {
		return "{}", nil
	}
	b, err := json.Marshal(tc.Arguments)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToolResult pairs a tool call with its output.
type ToolResult struct {
	ToolCallID string
	ToolName   string
	Args       map[string]any
	Result     string
}

// Citation locates a span of a source document that supports a piece of
// assistant text. Start and End are interpreted according to Type: character
// offsets for "char_location", page numbers for "page_location" and block
// indices for "content_block_location".
type Citation struct {
	Type          string
	CitedText     string
	DocumentIndex int
	DocumentTitle string
	Start         int
	End           int
}

// ContentPart is a piece of assistant text with its supporting citations.
type ContentPart struct {
	Text      string
	Citations []Citation
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *SystemMessage {
	return &SystemMessage{Content: content}
}

// NewUserMessage creates a user message. Attachments keep their relative
// order within their kind.
func NewUserMessage(content string, attachments ...Attachment) *UserMessage {
	msg := &UserMessage{Content: content}
	for _, a := range attachments {
		switch att := a.(type) {
		case Image:
			msg.Images = append(msg.Images, att)
		case Document:
			msg.Documents = append(msg.Documents, att)
		}
	}
	return msg
}

// NewAssistantMessage creates an assistant message with plain text and
// optional tool calls.
func NewAssistantMessage(content string, toolCalls ...ToolCall) *AssistantMessage {
	return &AssistantMessage{Content: content, ToolCalls: toolCalls}
}

// NewAnnotatedAssistantMessage creates an assistant message from annotated
// parts instead of plain text.
func NewAnnotatedAssistantMessage(parts []ContentPart, toolCalls ...ToolCall) *AssistantMessage {
	return &AssistantMessage{Parts: parts, ToolCalls: toolCalls}
}

// NewToolResultMessage creates a tool result message.
func NewToolResultMessage(results ...ToolResult) *ToolResultMessage {
	return &ToolResultMessage{Results: results}
}

// Text returns the assistant text, joining annotated parts when present.
func (m *AssistantMessage) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// WithMeta replaces the provider metadata of the message.
func (m *SystemMessage) WithMeta(meta ProviderMeta) *SystemMessage {
	m.ProviderMeta = meta
	return m
}

// WithMeta replaces the provider metadata of the message.
func (m *UserMessage) WithMeta(meta ProviderMeta) *UserMessage {
	m.ProviderMeta = meta
	return m
}

// WithMeta replaces the provider metadata of the message.
func (m *AssistantMessage) WithMeta(meta ProviderMeta) *AssistantMessage {
	m.ProviderMeta = meta
	return m
}

// SystemMessages returns the system messages of a conversation in order.
func SystemMessages(messages []Message) []*SystemMessage {
	var out []*SystemMessage
	for _, m := range messages {
		if sm, ok := m.(*SystemMessage); ok {
			out = append(out, sm)
		}
	}
	return out
}

// ConversationMessages returns every message that is not a system message.
func ConversationMessages(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if _, ok := m.(*SystemMessage); ok {
			continue
		}
		out = append(out, m)
	}
	return out
}
