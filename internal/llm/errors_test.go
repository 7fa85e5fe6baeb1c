package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestErrorFromStatus(t *testing.T) {
	cases := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{401, ErrorTypeAuth, false},
		{402, ErrorTypeInsufficientCredit, false},
		{403, ErrorTypeModeration, false},
		{429, ErrorTypeRateLimit, true},
		{500, ErrorTypeProviderDown, true},
		{503, ErrorTypeProviderDown, true},
		{400, ErrorTypeInvalidRequest, false},
		{302, ErrorTypeUnknown, false},
	}
	for _, tc := range cases {
		pe := ErrorFromStatus("openai", tc.status, "detail", nil)
		if pe.Type != tc.wantType || pe.Retryable != tc.retryable {
			t.Fatalf("status %d => %s retryable=%v", tc.status, pe.Type, pe.Retryable)
		}
		if pe.Code != fmt.Sprint(tc.status) {
			t.Fatalf("code = %s", pe.Code)
		}
	}
}

func TestErrorFromStatusRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	pe := ErrorFromStatus("openrouter", 429, "", header)
	if pe.RetryAfter == nil || *pe.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %v", pe.RetryAfter)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	pe := ErrorFromStatus("anthropic", 502, "", nil)
	pe.Err = cause
	wrapped := fmt.Errorf("chat: %w", pe)

	got, ok := IsProviderError(wrapped)
	if !ok || got != pe {
		t.Fatalf("IsProviderError failed on wrapped error")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("cause not reachable through ProviderError")
	}
	if pe.Error() != "anthropic: server error, please try again later" {
		t.Fatalf("Error() = %q", pe.Error())
	}
}
