package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cophysicist/internal/llm"
	"cophysicist/internal/logging"
)

const providerName = "openrouter"

// Client is a minimal HTTP wrapper around an OpenAI-compatible chat
// completions endpoint such as OpenRouter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient wires together the dependencies for API access. An empty key is
// rejected so a constructed client is always usable.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openrouter: API key is required")
	}
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("openrouter: base URL is required")
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmed,
		apiKey:     apiKey,
	}, nil
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat executes a single completion request.
func (c *Client) Chat(ctx context.Context, reqPayload llm.ChatRequest) (llm.ChatResponse, error) {
	var respPayload llm.ChatResponse

	payload, err := json.Marshal(reqPayload)
	if err != nil {
		return respPayload, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return respPayload, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "Co-Physicist")

	logging.DevLog("openrouter: sending %d messages to model %s", len(reqPayload.Messages), reqPayload.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return respPayload, ctx.Err()
		}
		return respPayload, &llm.ProviderError{
			Type:      llm.ErrorTypeProviderDown,
			Provider:  providerName,
			Message:   "request failed: " + err.Error(),
			Retryable: true,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return respPayload, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		logging.ErrorLog("openrouter API error: %d - %s", resp.StatusCode, string(body))
		var envelope errorEnvelope
		detail := string(body)
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			detail = envelope.Error.Message
		}
		return respPayload, llm.ErrorFromStatus(providerName, resp.StatusCode, detail, resp.Header)
	}

	if err := json.Unmarshal(body, &respPayload); err != nil {
		logging.ErrorLog("openrouter response parse error: %v", err)
		return respPayload, fmt.Errorf("parse response: %w", err)
	}
	if len(respPayload.Choices) == 0 {
		return respPayload, llm.NewProviderError(providerName, llm.ErrorTypeUnknown, "", "response contained no choices")
	}
	logging.DevLog("openrouter: received response with %d choices", len(respPayload.Choices))
	return respPayload, nil
}
