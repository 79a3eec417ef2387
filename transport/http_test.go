package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

func newTestTransport(t *testing.T, url string) *HTTPTransport {
	t.Helper()
	tr, err := New(Config{
		BaseURL:         url + "/v1beta/models/",
		Headers:         map[string]string{"x-goog-api-key": "secret"},
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tr
}

func TestSendPostsJSON(t *testing.T) {
	var gotPath, gotKey, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("X-Request-Id", "abc")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := newTestTransport(t, srv.URL).Send(context.Background(), "gemini-2.5-flash:generateContent", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotKey != "secret" || gotType != "application/json" {
		t.Errorf("Unexpected headers key=%q type=%q", gotKey, gotType)
	}
	if gotBody["a"] != 1.0 {
		t.Errorf("Unexpected body %v", gotBody)
	}
	if resp.StatusCode != http.StatusOK || !resp.Get("ok").Bool() || resp.Header.Get("X-Request-Id") != "abc" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := newTestTransport(t, srv.URL).Send(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK || calls.Load() != 3 {
		t.Errorf("Expected success on third attempt, got %d after %d calls", resp.StatusCode, calls.Load())
	}
}

func TestSendReturnsLastResponseWhenRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	resp, err := newTestTransport(t, srv.URL).Send(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests || resp.Get("error.message").String() != "quota" {
		t.Errorf("Expected last 429 response, got %+v", resp)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	resp, err := newTestTransport(t, srv.URL).Send(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest || calls.Load() != 1 {
		t.Errorf("Expected a single 400, got %d after %d calls", resp.StatusCode, calls.Load())
	}
}

func TestSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr, err := New(Config{BaseURL: url, DisableRetries: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := tr.Send(context.Background(), "x", nil); err == nil {
		t.Fatal("Expected an error for a closed server")
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "not a url"}, zerolog.Nop()); err == nil {
		t.Error("Expected error for invalid base URL")
	}
}

func TestRetryAfterBackOff(t *testing.T) {
	b := &retryAfterBackOff{BackOff: backoff.NewConstantBackOff(time.Millisecond), hint: 2 * time.Second}
	if got := b.NextBackOff(); got != 2*time.Second {
		t.Errorf("Expected hint to win, got %v", got)
	}
	if got := b.NextBackOff(); got != time.Millisecond {
		t.Errorf("Expected hint to be consumed, got %v", got)
	}

	stopped := &retryAfterBackOff{BackOff: &backoff.StopBackOff{}, hint: time.Second}
	if stopped.NextBackOff() != backoff.Stop {
		t.Error("Expected Stop to be preserved")
	}
}
