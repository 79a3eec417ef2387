package anthropic

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/aschepis/backscratcher/switchboard/llm"
)

// assertJSON compares the JSON encoding of got with want, ignoring key order.
func assertJSON(t *testing.T, got any, want string) {
	t.Helper()
	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var gotValue, wantValue any
	if err := json.Unmarshal(raw, &gotValue); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if err := json.Unmarshal([]byte(want), &wantValue); err != nil {
		t.Fatalf("invalid expectation: %v", err)
	}
	if !reflect.DeepEqual(gotValue, wantValue) {
		t.Errorf("JSON mismatch\n got: %s\nwant: %s", raw, want)
	}
}

func TestMapConversationExcludesSystemMessages(t *testing.T) {
	messages := []llm.Message{
		llm.NewSystemMessage("one"),
		llm.NewUserMessage("hi"),
		llm.NewSystemMessage("two"),
		llm.NewAssistantMessage("hello"),
	}

	mapped, err := MapConversation(messages, llm.ProviderMeta{})
	if err != nil {
		t.Fatalf("MapConversation failed: %v", err)
	}
	assertJSON(t, mapped, `[
		{"role":"user","content":[{"type":"text","text":"hi"}]},
		{"role":"assistant","content":[{"type":"text","text":"hello"}]}
	]`)

	system := MapSystemPrompts(messages, nil)
	assertJSON(t, system, `[{"type":"text","text":"one"},{"type":"text","text":"two"}]`)
}

func TestMapSystemPromptsOverrideFirst(t *testing.T) {
	override := "override"
	messages := []llm.Message{
		llm.NewSystemMessage("cached").WithMeta(llm.AnthropicCache(llm.CacheEphemeral)),
		llm.NewUserMessage("ignored"),
	}
	assertJSON(t, MapSystemPrompts(messages, &override), `[
		{"type":"text","text":"override"},
		{"type":"text","text":"cached","cache_control":{"type":"ephemeral"}}
	]`)
}

func TestMapUserMessageWithAttachments(t *testing.T) {
	msg := llm.NewUserMessage("hi",
		llm.ImageFromBase64("AAAA", "image/png"),
		llm.DocumentFromChunks([]string{"a", "b"}, llm.WithTitle("T")),
		llm.DocumentFromBase64("JVBERi0=", "application/pdf", llm.WithContext("appendix")),
	).WithMeta(llm.AnthropicCache(llm.CacheEphemeral))

	mapped, err := MapConversation([]llm.Message{msg}, llm.ProviderMeta{})
	if err != nil {
		t.Fatalf("MapConversation failed: %v", err)
	}
	assertJSON(t, mapped, `[{"role":"user","content":[
		{"type":"text","text":"hi","cache_control":{"type":"ephemeral"}},
		{"type":"image","source":{"type":"base64","media_type":"image/png","data":"AAAA"},"cache_control":{"type":"ephemeral"}},
		{"type":"document","source":{"type":"content","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]},"title":"T","cache_control":{"type":"ephemeral"}},
		{"type":"document","source":{"type":"base64","media_type":"application/pdf","data":"JVBERi0="},"context":"appendix","cache_control":{"type":"ephemeral"}}
	]}]`)
}

func TestMapUserMessageRejectsURLImage(t *testing.T) {
	msg := llm.NewUserMessage("look", llm.ImageFromURL("https://example.com/cat.png", "image/png"))
	_, err := MapConversation([]llm.Message{msg}, llm.ProviderMeta{})
	if !llm.IsConfigurationError(err) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
	if err.Error() != "URL image type is not supported by Anthropic" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestDocumentCitationPrecedence(t *testing.T) {
	docOn := llm.DocumentFromText("x", llm.WithDocumentMeta(llm.AnthropicCitations(true)))
	docOff := llm.DocumentFromText("x", llm.WithDocumentMeta(llm.AnthropicCitations(false)))
	plain := llm.DocumentFromText("x")

	tests := []struct {
		name    string
		doc     llm.Document
		request llm.ProviderMeta
		want    bool
	}{
		{"document enabled", docOn, llm.ProviderMeta{}, true},
		{"document disabled", docOff, llm.ProviderMeta{}, false},
		{"default disabled", plain, llm.ProviderMeta{}, false},
		{"request overrides document", docOn, llm.AnthropicCitations(false), false},
		{"request enables plain document", plain, llm.AnthropicCitations(true), true},
		{"request without flag defers to document", docOn, llm.AnthropicCache(llm.CacheEphemeral), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := mapDocument(tt.doc, nil, tt.request)
			if err != nil {
				t.Fatalf("mapDocument failed: %v", err)
			}
			if got := block.Citations != nil; got != tt.want {
				t.Errorf("citations enabled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentDataAndContentExclusive(t *testing.T) {
	block, err := mapDocument(llm.DocumentFromText("body"), nil, llm.ProviderMeta{})
	if err != nil {
		t.Fatalf("mapDocument failed: %v", err)
	}
	assertJSON(t, block, `{"type":"document","source":{"type":"text","media_type":"text/plain","data":"body"}}`)

	_, err = mapDocument(llm.Document{Format: llm.DocumentContent}, nil, llm.ProviderMeta{})
	if !llm.IsConfigurationError(err) {
		t.Errorf("Expected configuration error for empty chunked document, got %v", err)
	}

	for _, doc := range []llm.Document{llm.DocumentFromText(""), llm.DocumentFromBase64("", "application/pdf")} {
		if _, err := mapDocument(doc, nil, llm.ProviderMeta{}); !llm.IsConfigurationError(err) {
			t.Errorf("Expected configuration error for empty %s document, got %v", doc.Format, err)
		}
	}
}

func TestMapAssistantMessage(t *testing.T) {
	calls := []llm.ToolCall{
		{ID: "toolu_1", Name: "search", Arguments: map[string]any{"q": "go"}},
		{ID: "toolu_2", Name: "clock"},
	}

	mapped := mapAssistantMessage(llm.NewAssistantMessage("", calls...))
	assertJSON(t, mapped, `{"role":"assistant","content":[
		{"type":"tool_use","id":"toolu_1","name":"search","input":{"q":"go"}},
		{"type":"tool_use","id":"toolu_2","name":"clock","input":{}}
	]}`)

	annotated := llm.NewAnnotatedAssistantMessage([]llm.ContentPart{
		{Text: "Paris", Citations: []llm.Citation{{Type: "char_location", CitedText: "Paris", DocumentIndex: 0, Start: 4, End: 9}}},
		{Text: "."},
	})
	annotated.Content = "ignored"
	assertJSON(t, mapAssistantMessage(annotated), `{"role":"assistant","content":[
		{"type":"text","text":"Paris","citations":[{"type":"char_location","cited_text":"Paris","document_index":0,"start_char_index":4,"end_char_index":9}]},
		{"type":"text","text":"."}
	]}`)
}

func TestMapToolResultMessage(t *testing.T) {
	msg := llm.NewToolResultMessage(
		llm.ToolResult{ToolCallID: "toolu_1", Result: "42"},
		llm.ToolResult{ToolCallID: "toolu_2", Result: ""},
	)
	mapped, err := MapConversation([]llm.Message{msg}, llm.ProviderMeta{})
	if err != nil {
		t.Fatalf("MapConversation failed: %v", err)
	}
	if len(mapped) != 1 || len(mapped[0].Content) != 2 {
		t.Fatalf("Expected one message with two blocks, got %+v", mapped)
	}
	assertJSON(t, mapped[0], `{"role":"user","content":[
		{"type":"tool_result","tool_use_id":"toolu_1","content":"42"},
		{"type":"tool_result","tool_use_id":"toolu_2","content":""}
	]}`)
}

func TestMapConversationRejectsUnknownMessage(t *testing.T) {
	_, err := MapConversation([]llm.Message{nil}, llm.ProviderMeta{})
	if !llm.IsUnsupportedMessageError(err) {
		t.Errorf("Expected unsupported message error, got %v", err)
	}
}

func TestCitationRoundTrip(t *testing.T) {
	start, end := 2, 3
	wire := Citation{Type: "page_location", CitedText: "x", DocumentIndex: 1, StartPageNumber: &start, EndPageNumber: &end}
	c := fromWireCitation(wire)
	if c.Start != 2 || c.End != 3 {
		t.Errorf("Expected page range 2-3, got %d-%d", c.Start, c.End)
	}
	back := toWireCitation(c)
	if back.StartPageNumber == nil || *back.StartPageNumber != 2 || back.StartCharIndex != nil {
		t.Errorf("Expected page numbers only, got %+v", back)
	}
}
