package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	return c, reg
}

func TestInstrumentSuccess(t *testing.T) {
	c, _ := newTestCollector(t)
	client := c.Instrument(llm.ClientFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{Usage: llm.Usage{PromptTokens: 12, CompletionTokens: 5, CacheReadInputTokens: 4}}, nil
	}), llm.ProviderAnthropic)

	for i := 0; i < 2; i++ {
		if _, err := client.Generate(context.Background(), llm.NewRequest("claude-haiku-4-5")); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}

	if got := testutil.ToFloat64(c.requests.WithLabelValues("anthropic", "claude-haiku-4-5", "success")); got != 2 {
		t.Errorf("Expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.tokens.WithLabelValues("anthropic", "claude-haiku-4-5", "prompt")); got != 24 {
		t.Errorf("Expected 24 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(c.tokens.WithLabelValues("anthropic", "claude-haiku-4-5", "cache_read")); got != 8 {
		t.Errorf("Expected 8 cache read tokens, got %v", got)
	}
	if got := testutil.CollectAndCount(c.duration); got != 1 {
		t.Errorf("Expected one duration series, got %d", got)
	}
}

func TestInstrumentError(t *testing.T) {
	c, _ := newTestCollector(t)
	cause := llm.NewProviderResponseError("rate limited", 429, nil)
	client := c.Instrument(llm.ClientFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return nil, cause
	}), llm.ProviderOpenAI)

	if _, err := client.Generate(context.Background(), llm.NewRequest("gpt-4o")); err != cause {
		t.Fatalf("Expected original error, got %v", err)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("openai", "gpt-4o", "error")); got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
	if got := testutil.ToFloat64(c.errors.WithLabelValues("openai", "provider_response")); got != 1 {
		t.Errorf("Expected 1 provider_response error, got %v", got)
	}
}

func TestNewCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	if _, err := NewCollector(reg); err == nil {
		t.Error("Expected error registering metrics twice")
	}
}

func TestWriteTextfile(t *testing.T) {
	c, reg := newTestCollector(t)
	c.requests.WithLabelValues("ollama", "llama3.2", "success").Inc()

	path := filepath.Join(t.TempDir(), "switchboard.prom")
	if err := WriteTextfile(reg, path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read metrics: %v", err)
	}
	if !strings.Contains(string(data), `switchboard_requests_total{model="llama3.2",provider="ollama",status="success"} 1`) {
		t.Errorf("Unexpected metrics output:\n%s", data)
	}
}
