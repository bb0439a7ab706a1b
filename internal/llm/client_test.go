package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
	}, WithSleeper(func(time.Duration) {}), WithRetryBackoff(0, 0))
}

func TestInvokeSendsPayloadAndReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"assignments\":[]}"}}]}`))
	}))
	defer server.Close()

	content, err := newTestClient(server.URL).Invoke(context.Background(), map[string]any{"media": nil})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if content != `{"assignments":[]}` {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteJSONRetriesOn500(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestCompleteJSONDoesNotRetryOn400(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCompleteJSONFallsBackToDelta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"delta":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	content, err := newTestClient(server.URL).CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatal(err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	type out struct {
		OK bool `json:"ok"`
	}
	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "plain", content: `{"ok":true}`},
		{name: "code fence", content: "```json\n{\"ok\":true}\n```"},
		{name: "prose wrapped", content: `Here is the result: {"ok":true} Hope that helps!`},
		{name: "empty", content: "   ", wantErr: true},
		{name: "no json", content: "cannot comply", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var parsed out
			err := DecodeLLMJSON(tc.content, &parsed)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeLLMJSON: %v", err)
			}
			if !parsed.OK {
				t.Fatal("payload not decoded")
			}
		})
	}
}

func TestSummarizePayloadSnippetTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := summarizePayloadSnippet(long)
	if len([]rune(got)) > 170 {
		t.Fatalf("snippet too long: %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("snippet missing ellipsis: %q", got)
	}
}
