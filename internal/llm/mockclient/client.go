package mockclient

import (
	"context"
	"fmt"
	"strings"

	"cophysicist/internal/llm"
	"cophysicist/internal/state"
)

// Client is a deterministic llm.Client used for tests and offline runs.
type Client struct {
	prefix string
}

// New returns a mock client that echoes the last message it receives.
func New() *Client {
	return &Client{prefix: "MOCK"}
}

// Chat satisfies the llm.Client interface.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}
	response := state.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("%s RESPONSE", c.prefix),
	}
	if n := len(req.Messages); n > 0 {
		if last := strings.TrimSpace(req.Messages[n-1].Content); last != "" {
			response.Content = fmt.Sprintf("%s RESPONSE: %s", c.prefix, last)
		}
	}

	return llm.ChatResponse{
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				Message:      response,
				FinishReason: llm.FinishStop,
			},
		},
		Usage: &llm.Usage{
			PromptTokens:     42,
			CompletionTokens: 7,
			TotalTokens:      49,
		},
	}, nil
}
