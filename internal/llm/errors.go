package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorType classifies provider errors for UI handling
type ErrorType string

const (
	ErrorTypeRateLimit          ErrorType = "rate_limit"          // 429 - too many requests
	ErrorTypeInsufficientCredit ErrorType = "insufficient_credit" // 402 - no balance
	ErrorTypeProviderDown       ErrorType = "provider_down"       // 5xx - upstream issue
	ErrorTypeAuth               ErrorType = "auth"                // 401 - bad API key
	ErrorTypeModeration         ErrorType = "moderation"          // 403 - content flagged
	ErrorTypeInvalidRequest     ErrorType = "invalid_request"     // 400/404/422
	ErrorTypeUnknown            ErrorType = "unknown"             // Fallback
)

// ProviderError is a structured error returned by LLM clients
type ProviderError struct {
	Type       ErrorType      // Classification
	Provider   string         // "openai", "anthropic", "openrouter"
	Code       string         // HTTP status or provider error code
	Message    string         // Human-readable message
	RetryAfter *time.Duration // How long to wait (if known)
	Retryable  bool           // Should we auto-retry?
	Err        error          // Underlying SDK or transport error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap allows errors.Is/As to reach the SDK error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError checks if err is a ProviderError and returns it
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// NewProviderError creates a new ProviderError with the given parameters
func NewProviderError(provider string, errType ErrorType, code, message string) *ProviderError {
	return &ProviderError{
		Type:     errType,
		Provider: provider,
		Code:     code,
		Message:  message,
	}
}

// ErrorFromStatus classifies a non-2xx HTTP response. detail is the
// provider's own message, appended when the status has no fixed wording.
func ErrorFromStatus(provider string, status int, detail string, header http.Header) *ProviderError {
	pe := &ProviderError{
		Provider: provider,
		Code:     strconv.Itoa(status),
	}
	detail = strings.TrimSpace(detail)
	switch {
	case status == http.StatusUnauthorized:
		pe.Type = ErrorTypeAuth
		pe.Message = "invalid API key, check the configured credentials"
	case status == http.StatusPaymentRequired:
		pe.Type = ErrorTypeInsufficientCredit
		pe.Message = "insufficient credit on the provider account"
	case status == http.StatusForbidden:
		pe.Type = ErrorTypeModeration
		pe.Message = withDetail("request refused", detail)
	case status == http.StatusTooManyRequests:
		pe.Type = ErrorTypeRateLimit
		pe.Message = "rate limit exceeded, please try again later"
		pe.Retryable = true
		pe.RetryAfter = parseRetryAfter(header)
	case status >= 500:
		pe.Type = ErrorTypeProviderDown
		pe.Message = "server error, please try again later"
		pe.Retryable = true
	case status >= 400:
		pe.Type = ErrorTypeInvalidRequest
		pe.Message = withDetail("invalid request", detail)
	default:
		pe.Type = ErrorTypeUnknown
		pe.Message = withDetail("unexpected status "+pe.Code, detail)
	}
	return pe
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}

func parseRetryAfter(header http.Header) *time.Duration {
	if header == nil {
		return nil
	}
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if at, err := http.ParseTime(raw); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}
