package llm

import (
	"testing"
)

func TestDecodeMessages(t *testing.T) {
	enabled := true
	specs := []MessageSpec{
		{Type: "system", Content: "be terse", Cache: CacheEphemeral},
		{Type: "user", Content: "read this", Images: []ImageSpec{{URL: "https://example.com/a.png"}}, Documents: []DocumentSpec{
			{Format: DocumentContent, Chunks: []string{"a", "b"}, Title: "notes", Citations: &enabled},
		}},
		{Type: "assistant", ToolCalls: []ToolCallSpec{{ID: "t1", Name: "lookup", Arguments: map[string]any{"q": "x"}}}},
		{Type: "tool_result", Results: []ToolResultSpec{{ToolCallID: "t1", ToolName: "lookup", Result: "found"}}},
	}

	messages, err := DecodeMessages(specs)
	if err != nil {
		t.Fatalf("DecodeMessages failed: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(messages))
	}

	sys, ok := messages[0].(*SystemMessage)
	if !ok || sys.AnthropicOptions().CacheType != CacheEphemeral {
		t.Errorf("Expected cached system message, got %#v", messages[0])
	}
	user, ok := messages[1].(*UserMessage)
	if !ok {
		t.Fatalf("Expected user message, got %T", messages[1])
	}
	if !user.Images[0].IsURL() {
		t.Error("Expected URL image")
	}
	doc := user.Documents[0]
	if !doc.IsChunked() || doc.AnthropicOptions().Citations == nil || !*doc.AnthropicOptions().Citations {
		t.Errorf("Expected chunked document with citations, got %#v", doc)
	}
	assistant, ok := messages[2].(*AssistantMessage)
	if !ok || assistant.ToolCalls[0].Arguments["q"] != "x" {
		t.Errorf("Expected assistant tool call, got %#v", messages[2])
	}
	result, ok := messages[3].(*ToolResultMessage)
	if !ok || result.Results[0].Result != "found" {
		t.Errorf("Expected tool result, got %#v", messages[3])
	}
}

func TestDecodeMessagesUnknownType(t *testing.T) {
	_, err := DecodeMessages([]MessageSpec{{Type: "user", Content: "ok"}, {Type: "function"}})
	if !IsUnsupportedMessageError(err) {
		t.Errorf("Expected unsupported message error, got %v", err)
	}
}

func TestDecodeMessagesInvalidDocument(t *testing.T) {
	_, err := DecodeMessages([]MessageSpec{{Type: "user", Documents: []DocumentSpec{{Format: DocumentContent}}}})
	if !IsConfigurationError(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}
