package llm

import (
	"testing"
)

func TestNewUserMessageSortsAttachments(t *testing.T) {
	img1 := ImageFromBase64("aW1n", "image/png")
	doc := DocumentFromText("hello", WithTitle("greeting"))
	img2 := ImageFromURL("https://example.com/cat.jpg", "image/jpeg")

	msg := NewUserMessage("describe", img1, doc, img2)

	if msg.Role() != RoleUser {
		t.Errorf("Expected role %v, got %v", RoleUser, msg.Role())
	}
	if len(msg.Images) != 2 {
		t.Fatalf("Expected 2 images, got %d", len(msg.Images))
	}
	if msg.Images[0].Data != "aW1n" || !msg.Images[1].IsURL() {
		t.Errorf("Expected images in original order, got %+v", msg.Images)
	}
	if len(msg.Documents) != 1 || msg.Documents[0].Title != "greeting" {
		t.Errorf("Expected one titled document, got %+v", msg.Documents)
	}
}

func TestAssistantMessageText(t *testing.T) {
	plain := NewAssistantMessage("hello")
	if plain.Text() != "hello" {
		t.Errorf("Expected plain text, got %q", plain.Text())
	}

	annotated := NewAnnotatedAssistantMessage([]ContentPart{
		{Text: "The sky "},
		{Text: "is blue.", Citations: []Citation{{Type: "char_location", CitedText: "blue"}}},
	})
	if annotated.Text() != "The sky is blue." {
		t.Errorf("Expected joined parts, got %q", annotated.Text())
	}
}

func TestToolCallArgumentsJSON(t *testing.T) {
	empty, err := ToolCall{ID: "1", Name: "noop"}.ArgumentsJSON()
	if err != nil {
		t.Fatalf("ArgumentsJSON failed: %v", err)
	}
	if empty != "{}" {
		t.Errorf("Expected empty object for nil arguments, got %s", empty)
	}

	args, err := ToolCall{Arguments: map[string]any{"city": "Paris"}}.ArgumentsJSON()
	if err != nil {
		t.Fatalf("ArgumentsJSON failed: %v", err)
	}
	if args != `{"city":"Paris"}` {
		t.Errorf("Unexpected arguments JSON %s", args)
	}
}

func TestSystemAndConversationMessages(t *testing.T) {
	sys1 := NewSystemMessage("first")
	sys2 := NewSystemMessage("second")
	user := NewUserMessage("hi")
	assistant := NewAssistantMessage("hello")

	messages := []Message{sys1, user, sys2, assistant}

	systems := SystemMessages(messages)
	if len(systems) != 2 || systems[0] != sys1 || systems[1] != sys2 {
		t.Errorf("Expected both system messages in order, got %v", systems)
	}

	conversation := ConversationMessages(messages)
	if len(conversation) != 2 || conversation[0] != Message(user) || conversation[1] != Message(assistant) {
		t.Errorf("Expected user then assistant, got %v", conversation)
	}
}

func TestProviderMetaDefaults(t *testing.T) {
	var meta ProviderMeta
	if meta.AnthropicOptions().CacheType != "" {
		t.Error("Expected empty cache type when unset")
	}
	if meta.AnthropicOptions().Citations != nil {
		t.Error("Expected nil citations when unset")
	}
	if len(meta.GeminiOptions().SafetySettings) != 0 {
		t.Error("Expected no safety settings when unset")
	}

	msg := NewSystemMessage("cached").WithMeta(AnthropicCache(CacheEphemeral))
	if msg.Metadata().AnthropicOptions().CacheType != CacheEphemeral {
		t.Errorf("Expected ephemeral cache type, got %q", msg.Metadata().AnthropicOptions().CacheType)
	}
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{"base64", DocumentFromBase64("JVBERi0=", "application/pdf"), false},
		{"text", DocumentFromText("plain"), false},
		{"chunks", DocumentFromChunks([]string{"a", "b"}), false},
		{"empty chunks", DocumentFromChunks(nil), true},
		{"empty text", DocumentFromText(""), true},
		{"empty base64", DocumentFromBase64("", "application/pdf"), true},
		{"chunks with data", Document{Format: DocumentContent, Data: "x", Chunks: []string{"a"}}, true},
		{"text with chunks", Document{Format: DocumentText, Data: "x", Chunks: []string{"a"}}, true},
		{"unknown format", Document{Format: "file"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsConfigurationError(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

func TestImageFromBytes(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	img := ImageFromBytes(png, "")
	if img.MimeType != "image/png" {
		t.Errorf("Expected sniffed image/png, got %q", img.MimeType)
	}
	if img.IsURL() {
		t.Error("Expected inline image")
	}
	if img.Data == "" {
		t.Error("Expected base64 data")
	}
}
