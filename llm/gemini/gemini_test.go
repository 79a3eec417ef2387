package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/rs/zerolog"
)

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

type fakeTransport struct {
	response  *llm.TransportResponse
	err       error
	endpoints []string
	bodies    []json.RawMessage
}

func (f *fakeTransport) Send(ctx context.Context, endpoint string, body any) (*llm.TransportResponse, error) {
	raw, _ := json.Marshal(body)
	f.endpoints = append(f.endpoints, endpoint)
	f.bodies = append(f.bodies, raw)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func personSchema() *llm.ObjectSchema {
	return &llm.ObjectSchema{
		Name:        "person",
		Description: "a person",
		Properties: []llm.Schema{
			&llm.StringSchema{Name: "name", Description: "full name"},
			&llm.NumberSchema{Name: "age", Nullable: true},
			&llm.EnumSchema{Name: "kind", Options: []any{"human", 1}, Nullable: true},
			&llm.ArraySchema{Name: "tags", Items: &llm.StringSchema{Name: "tag"}},
		},
		RequiredFields:            []string{"name"},
		AllowAdditionalProperties: true,
	}
}

func TestMapSchema(t *testing.T) {
	got, err := MapSchema(personSchema())
	if err != nil {
		t.Fatalf("MapSchema failed: %v", err)
	}
	assertJSON(t, got, `{
		"type": "object",
		"description": "a person",
		"required": ["name"],
		"properties": {
			"name": {"type": "string", "description": "full name"},
			"age": {"type": "number", "nullable": true},
			"kind": {"type": ["string", "number"], "enum": ["human", 1], "nullable": true},
			"tags": {"type": "array", "items": {"type": "string"}}
		}
	}`)
}

func TestMapSchemaNullableEnum(t *testing.T) {
	got, err := MapSchema(&llm.EnumSchema{Name: "color", Options: []any{"red", "blue"}, Nullable: true})
	if err != nil {
		t.Fatalf("MapSchema failed: %v", err)
	}
	assertJSON(t, got, `{"type": "string", "enum": ["red", "blue"], "nullable": true}`)
}

func TestMapMessages(t *testing.T) {
	messages := []llm.Message{
		llm.NewSystemMessage("ignored here"),
		llm.NewUserMessage("look",
			llm.ImageFromURL("https://example.com/cat.png", "image/png"),
			llm.ImageFromBase64("AAAA", "image/jpeg"),
			llm.DocumentFromChunks([]string{"a", "b"}),
			llm.DocumentFromText("hi"),
		),
		llm.NewAssistantMessage("calling", llm.ToolCall{ID: "1", Name: "lookup", Arguments: map[string]any{"q": "x"}}),
		llm.NewToolResultMessage(llm.ToolResult{ToolCallID: "1", ToolName: "lookup", Result: "found"}),
	}

	contents, err := MapMessages(messages)
	if err != nil {
		t.Fatalf("MapMessages failed: %v", err)
	}
	assertJSON(t, contents, `[
		{"role": "user", "parts": [
			{"text": "look"},
			{"file_data": {"mime_type": "image/png", "file_uri": "https://example.com/cat.png"}},
			{"inline_data": {"mime_type": "image/jpeg", "data": "AAAA"}},
			{"text": "a"},
			{"text": "b"},
			{"inline_data": {"mime_type": "text/plain", "data": "aGk="}}
		]},
		{"role": "model", "parts": [
			{"text": "calling"},
			{"functionCall": {"name": "lookup", "args": {"q": "x"}}}
		]},
		{"role": "user", "parts": [
			{"functionResponse": {"name": "lookup", "response": {"name": "lookup", "content": "found"}}}
		]}
	]`)
}

func TestMapSystemInstruction(t *testing.T) {
	if MapSystemInstruction(nil, []llm.Message{llm.NewUserMessage("x")}) != nil {
		t.Error("Expected nil instruction without system prompts")
	}
	got := MapSystemInstruction(
		[]*llm.SystemMessage{llm.NewSystemMessage("first")},
		[]llm.Message{llm.NewUserMessage("x"), llm.NewSystemMessage("second")},
	)
	assertJSON(t, got, `{"parts": [{"text": "first"}, {"text": "second"}]}`)
}

func TestBuildPayloadStructured(t *testing.T) {
	req := llm.NewRequest("gemini-2.5-flash",
		llm.WithMessages(llm.NewUserMessage("Ada, 36")),
		llm.WithSchema(&llm.StringSchema{Name: "name", Description: "name"}),
		llm.WithTemperature(0),
		llm.WithMaxTokens(256),
		llm.WithProviderMeta(llm.ProviderMeta{Gemini: &llm.GeminiMeta{SafetySettings: []llm.SafetySetting{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
		}}}),
	)

	payload, err := BuildPayload(req)
	if err != nil {
		t.Fatalf("BuildPayload failed: %v", err)
	}
	assertJSON(t, payload, `{
		"contents": [{"role": "user", "parts": [{"text": "Ada, 36"}]}],
		"generationConfig": {
			"response_mime_type": "application/json",
			"response_schema": {"type": "string", "description": "name"},
			"temperature": 0,
			"maxOutputTokens": 256
		},
		"safetySettings": [{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"}]
	}`)
}

func TestBuildPayloadOmitsEmptyConfig(t *testing.T) {
	payload, err := BuildPayload(llm.NewRequest("m", llm.WithMessages(llm.NewUserMessage("hi"))))
	if err != nil {
		t.Fatalf("BuildPayload failed: %v", err)
	}
	assertJSON(t, payload, `{"contents": [{"role": "user", "parts": [{"text": "hi"}]}]}`)
}

func TestGenerateStructured(t *testing.T) {
	transport := &fakeTransport{response: &llm.TransportResponse{
		StatusCode: http.StatusOK,
		Body: []byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"name\":\"Ada\"}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 11, "candidatesTokenCount": 4},
			"modelVersion": "gemini-2.5-flash-001",
			"responseId": "r-1"
		}`),
	}}
	client := NewGeminiClient(transport, zerolog.Nop())

	req := llm.NewRequest("gemini-2.5-flash",
		llm.WithSystemPrompt("extract"),
		llm.WithMessages(llm.NewUserMessage("Ada")),
		llm.WithSchema(personSchema()),
	)
	resp, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if transport.endpoints[0] != "gemini-2.5-flash:generateContent" {
		t.Errorf("Unexpected endpoint %s", transport.endpoints[0])
	}
	if resp.Text != `{"name":"Ada"}` {
		t.Errorf("Unexpected text %q", resp.Text)
	}
	if resp.FinishReason != llm.FinishReasonStop {
		t.Errorf("Expected stop, got %s", resp.FinishReason)
	}
	if resp.Usage != llm.NewUsage(11, 4) {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}
	if resp.Meta.ID != "r-1" || resp.Meta.Model != "gemini-2.5-flash-001" {
		t.Errorf("Unexpected meta %+v", resp.Meta)
	}

	step := resp.Steps[0]
	if len(step.Messages) != 2 || len(step.SystemPrompts) != 1 {
		t.Errorf("Expected snapshot of 2 messages and 1 system prompt, got %d and %d", len(step.Messages), len(step.SystemPrompts))
	}
	if len(resp.ResponseMessages) != 1 || resp.ResponseMessages[0].Content != `{"name":"Ada"}` {
		t.Errorf("Unexpected response messages %+v", resp.ResponseMessages)
	}
}

func TestGenerateMissingFields(t *testing.T) {
	transport := &fakeTransport{response: &llm.TransportResponse{StatusCode: http.StatusOK, Body: []byte(`{}`)}}
	resp, err := NewGeminiClient(transport, zerolog.Nop()).Generate(context.Background(), llm.NewRequest("m"))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "" || resp.Usage != (llm.Usage{}) {
		t.Errorf("Expected empty text and zero usage, got %q %+v", resp.Text, resp.Usage)
	}
	if resp.Meta.ID != "" || resp.Meta.Model != "" {
		t.Errorf("Expected empty meta, got %+v", resp.Meta)
	}
	if resp.FinishReason != llm.FinishReasonOther {
		t.Errorf("Expected other, got %s", resp.FinishReason)
	}
}

func TestGenerateFunctionCalls(t *testing.T) {
	transport := &fakeTransport{response: &llm.TransportResponse{
		StatusCode: http.StatusOK,
		Body: []byte(`{"candidates": [{"content": {"parts": [
			{"functionCall": {"name": "weather", "args": {"city": "Oslo"}}}
		]}, "finishReason": "STOP"}]}`),
	}}
	resp, err := NewGeminiClient(transport, zerolog.Nop()).Generate(context.Background(), llm.NewRequest("m"))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "weather" || calls[0].Arguments["city"] != "Oslo" {
		t.Fatalf("Unexpected tool calls %+v", calls)
	}
	if calls[0].ID == "" {
		t.Error("Expected a synthesized tool call id")
	}
	if resp.FinishReason != llm.FinishReasonToolCalls {
		t.Errorf("Expected tool_calls, got %s", resp.FinishReason)
	}
}

func TestGenerateTransportFailure(t *testing.T) {
	cause := errors.New("timeout")
	_, err := NewGeminiClient(&fakeTransport{err: cause}, zerolog.Nop()).Generate(context.Background(), llm.NewRequest("gemini-pro"))
	if !llm.IsProviderRequestError(err) || !errors.Is(err, cause) {
		t.Fatalf("Expected provider request error wrapping cause, got %v", err)
	}
}

func TestGenerateValidationFailureRecordsNoStep(t *testing.T) {
	transport := &fakeTransport{response: &llm.TransportResponse{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"error": {"code": 400, "message": "Invalid schema", "status": "INVALID_ARGUMENT"}}`),
	}}
	resp, err := NewGeminiClient(transport, zerolog.Nop()).Generate(context.Background(), llm.NewRequest("m"))
	if resp != nil {
		t.Error("Expected no response on validation failure")
	}
	if !llm.IsProviderResponseError(err) {
		t.Fatalf("Expected provider response error, got %v", err)
	}
	if err.Error() != "gemini: INVALID_ARGUMENT: Invalid schema" {
		t.Errorf("Unexpected error text %q", err.Error())
	}
}

func TestMapFinishReason(t *testing.T) {
	tests := map[string]llm.FinishReason{
		"STOP":                      llm.FinishReasonStop,
		"MAX_TOKENS":                llm.FinishReasonLength,
		"SAFETY":                    llm.FinishReasonContentFilter,
		"RECITATION":                llm.FinishReasonContentFilter,
		"MALFORMED_FUNCTION_CALL":   llm.FinishReasonError,
		"FINISH_REASON_UNSPECIFIED": llm.FinishReasonOther,
		"":                          llm.FinishReasonOther,
	}
	for in, want := range tests {
		if got := MapFinishReason(in); got != want {
			t.Errorf("MapFinishReason(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestMapToolChoice(t *testing.T) {
	assertJSON(t, MapToolChoice("lookup"), `{"function_calling_config": {"mode": "ANY", "allowed_function_names": ["lookup"]}}`)
	if MapToolChoice("") != nil {
		t.Error("Expected nil for unset choice")
	}
}
