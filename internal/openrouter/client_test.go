package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cophysicist/internal/llm"
	"cophysicist/internal/state"
	"cophysicist/internal/tooling"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("https://example.invalid", " ", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestChatRoundTrip(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization header = %q", r.Header.Get("Authorization"))
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "list_files", "arguments": "{}"}}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api/v1/", "sk-test", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Chat(context.Background(), llm.ChatRequest{
		Model:     "openai/gpt-4o-mini",
		Messages:  []state.Message{{Role: "user", Content: "list"}},
		Tools:     tooling.DefaultRegistry().Definitions(),
		MaxTokens: 2000,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotBody["model"] != "openai/gpt-4o-mini" || gotBody["max_tokens"] != float64(2000) {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
	if tools, _ := gotBody["tools"].([]any); len(tools) != 4 {
		t.Fatalf("expected 4 tools in request, got %v", gotBody["tools"])
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) != 1 || calls[0].Function.Name != "list_files" || calls[0].ID != "call_1" {
		t.Fatalf("unexpected tool calls: %+v", calls)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 13 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
}

func TestChatMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "slow down"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "sk-test", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	pe, ok := llm.IsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Type != llm.ErrorTypeRateLimit || !pe.Retryable || pe.RetryAfter == nil || *pe.RetryAfter != 2*time.Second {
		t.Fatalf("unexpected provider error: %+v", pe)
	}
}
