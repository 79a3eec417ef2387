package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

type fakeChatter struct {
	responses []api.ChatResponse
	err       error
	requests  []*api.ChatRequest
}

func (f *fakeChatter) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return fn(resp)
}

func doneResponse(text string) api.ChatResponse {
	resp := api.ChatResponse{
		Model:      "llama3.2",
		Message:    api.Message{Role: "assistant", Content: text},
		Done:       true,
		DoneReason: "stop",
	}
	resp.PromptEvalCount = 20
	resp.EvalCount = 7
	return resp
}

func TestToOllamaMessages(t *testing.T) {
	msgs, err := ToOllamaMessages(
		[]*llm.SystemMessage{llm.NewSystemMessage("lead")},
		[]llm.Message{
			llm.NewUserMessage("summarize",
				llm.ImageFromBytes([]byte("png-bytes"), "image/png"),
				llm.DocumentFromText("body"),
				llm.DocumentFromChunks([]string{"c1", "c2"}),
			),
			llm.NewSystemMessage("be brief"),
			llm.NewAssistantMessage("", llm.ToolCall{ID: "x", Name: "lookup", Arguments: map[string]any{"q": "y"}}),
			llm.NewToolResultMessage(llm.ToolResult{ToolCallID: "x", ToolName: "lookup", Result: "found"}),
		},
	)
	if err != nil {
		t.Fatalf("ToOllamaMessages failed: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "lead" || msgs[1].Role != "system" || msgs[1].Content != "be brief" {
		t.Errorf("Unexpected system messages %+v %+v", msgs[0], msgs[1])
	}
	msgs = msgs[1:]
	if msgs[1].Content != "summarize\n\nbody\n\nc1\n\nc2" {
		t.Errorf("Unexpected user content %q", msgs[1].Content)
	}
	if len(msgs[1].Images) != 1 || string(msgs[1].Images[0]) != "png-bytes" {
		t.Errorf("Expected decoded image bytes, got %v", msgs[1].Images)
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].Function.Arguments["q"] != "y" {
		t.Errorf("Unexpected tool calls %+v", msgs[2].ToolCalls)
	}
	if msgs[3].Role != "tool" || msgs[3].ToolName != "lookup" || msgs[3].Content != "found" {
		t.Errorf("Unexpected tool message %+v", msgs[3])
	}
}

func TestToOllamaMessagesRejectsUnsupportedAttachments(t *testing.T) {
	tests := []struct {
		name string
		msg  *llm.UserMessage
	}{
		{"url image", llm.NewUserMessage("x", llm.ImageFromURL("https://example.com/a.png", "image/png"))},
		{"base64 document", llm.NewUserMessage("x", llm.DocumentFromBase64("JVBERi0=", "application/pdf"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToOllamaMessages(nil, []llm.Message{tt.msg})
			if !llm.IsConfigurationError(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

func TestToOllamaOptions(t *testing.T) {
	req := llm.NewRequest("llama3.2",
		llm.WithTemperature(0),
		llm.WithMaxTokens(64),
		llm.WithProviderMeta(llm.ProviderMeta{Ollama: &llm.OllamaMeta{Options: map[string]any{"num_ctx": 4096, "temperature": 0.9}}}),
	)
	opts := ToOllamaOptions(req)
	if opts["temperature"] != 0.0 || opts["num_predict"] != 64 || opts["num_ctx"] != 4096 {
		t.Errorf("Unexpected options %v", opts)
	}
	if req.OllamaOptions().Options["temperature"] != 0.9 {
		t.Error("Request options must not be modified")
	}
	if ToOllamaOptions(llm.NewRequest("m")) != nil {
		t.Error("Expected nil options when nothing is set")
	}
}

func TestBuildChatRequestStructured(t *testing.T) {
	schema := &llm.ObjectSchema{Name: "city", Properties: []llm.Schema{&llm.StringSchema{Name: "name"}}}
	chatReq, err := BuildChatRequest(llm.NewRequest("llama3.2", llm.WithSchema(schema)))
	if err != nil {
		t.Fatalf("BuildChatRequest failed: %v", err)
	}
	if chatReq.Stream == nil || *chatReq.Stream {
		t.Error("Expected streaming disabled")
	}
	var format map[string]any
	if err := json.Unmarshal(chatReq.Format, &format); err != nil {
		t.Fatalf("format is not JSON: %v", err)
	}
	if format["type"] != "object" {
		t.Errorf("Unexpected format %s", chatReq.Format)
	}
}

func TestGenerateText(t *testing.T) {
	chatter := &fakeChatter{responses: []api.ChatResponse{doneResponse("hi there")}}
	resp, err := NewOllamaClient(chatter, zerolog.Nop()).Generate(context.Background(),
		llm.NewRequest("llama3.2", llm.WithMessages(llm.NewUserMessage("hi"))))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "hi there" || resp.FinishReason != llm.FinishReasonStop {
		t.Errorf("Unexpected response %q %s", resp.Text, resp.FinishReason)
	}
	if resp.Usage != llm.NewUsage(20, 7) {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}
	if resp.Meta.Model != "llama3.2" {
		t.Errorf("Unexpected model %s", resp.Meta.Model)
	}
}

func TestGenerateToolCalls(t *testing.T) {
	call := doneResponse("")
	call.Message.ToolCalls = []api.ToolCall{{Function: api.ToolCallFunction{
		Name:      "weather",
		Arguments: api.ToolCallFunctionArguments{"city": "Oslo"},
	}}}
	chatter := &fakeChatter{responses: []api.ChatResponse{call, doneResponse("cold")}}

	tools := llm.ToolExecutorFunc(func(ctx context.Context, c llm.ToolCall) (string, error) {
		return "-3C", nil
	})
	resp, err := NewOllamaClient(chatter, zerolog.Nop(), WithToolExecutor(tools)).Generate(context.Background(),
		llm.NewRequest("llama3.2",
			llm.WithMessages(llm.NewUserMessage("weather?")),
			llm.WithTools(llm.Tool{Name: "weather"}),
			llm.WithMaxSteps(2),
		))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(resp.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(resp.Steps))
	}
	first := resp.Steps[0]
	if first.FinishReason != llm.FinishReasonToolCalls || len(first.ToolCalls) != 1 || first.ToolCalls[0].ID == "" {
		t.Errorf("Unexpected first step %+v", first)
	}
	if len(chatter.requests[1].Tools) != 1 {
		t.Error("Expected tools on every request")
	}
}

func TestGenerateStatusError(t *testing.T) {
	chatter := &fakeChatter{err: api.StatusError{StatusCode: http.StatusNotFound, ErrorMessage: "model not found"}}
	_, err := NewOllamaClient(chatter, zerolog.Nop()).Generate(context.Background(), llm.NewRequest("missing"))
	if !llm.IsProviderResponseError(err) {
		t.Fatalf("Expected provider response error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "missing: ollama: model not found") {
		t.Errorf("Unexpected error text %q", err.Error())
	}
}

func TestGenerateTransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	_, err := NewOllamaClient(&fakeChatter{err: cause}, zerolog.Nop()).Generate(context.Background(), llm.NewRequest("llama3.2"))
	if !llm.IsProviderRequestError(err) || !errors.Is(err, cause) {
		t.Fatalf("Expected provider request error, got %v", err)
	}
}

func TestParseHost(t *testing.T) {
	u, err := parseHost("localhost:11434")
	if err != nil {
		t.Fatalf("parseHost failed: %v", err)
	}
	if u.String() != "http://localhost:11434" {
		t.Errorf("Unexpected URL %s", u)
	}
}
