package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	asdk "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"

	"cophysicist/internal/llm"
	"cophysicist/internal/logging"
	"cophysicist/internal/state"
	"cophysicist/internal/tooling"
)

const providerName = "anthropic"

// Client talks to the Anthropic Messages API.
type Client struct {
	sdk asdk.Client
}

// NewClient builds a client for apiKey. baseURL may be empty for the public
// endpoint.
func NewClient(apiKey, baseURL string, timeout time.Duration) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []aoption.RequestOption{
		aoption.WithAPIKey(apiKey),
		aoption.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, aoption.WithBaseURL(base))
	}
	if timeout > 0 {
		opts = append(opts, aoption.WithRequestTimeout(timeout))
	}
	return &Client{sdk: asdk.NewClient(opts...)}, nil
}

// Chat satisfies llm.Client.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	messages, system := buildMessages(req.Messages)
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	params := asdk.MessageNewParams{
		Model:     asdk.Model(strings.TrimSpace(req.Model)),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []asdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = asdk.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	logging.DevLog("anthropic: sending %d messages to model %s", len(messages), req.Model)
	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return llm.ChatResponse{}, mapError(ctx, err)
	}
	return convertMessage(msg), nil
}

func buildTools(defs []tooling.ToolDefinition) []asdk.ToolUnionParam {
	out := make([]asdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := def.Function.Parameters
		param := asdk.ToolParam{
			Name:        def.Function.Name,
			Description: asdk.String(def.Function.Description),
			InputSchema: asdk.ToolInputSchemaParam{
				Type:       "object",
				Properties: schema["properties"],
				Required:   requiredFields(schema["required"]),
			},
		}
		out = append(out, asdk.ToolUnionParam{OfTool: &param})
	}
	return out
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, item := range req {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// buildMessages converts chat history into Anthropic message params. Tool
// results that follow one another share a single user message, as the API
// requires every tool_use of a turn to be answered together.
func buildMessages(history []state.Message) ([]asdk.MessageParam, string) {
	out := make([]asdk.MessageParam, 0, len(history))
	var system []string
	var pending []asdk.ContentBlockParamUnion
	flush := func() {
		if len(pending) > 0 {
			out = append(out, asdk.NewUserMessage(pending...))
			pending = nil
		}
	}
	for _, msg := range history {
		switch msg.Role {
		case "system":
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				system = append(system, txt)
			}
		case "tool":
			pending = append(pending, asdk.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		case "assistant":
			flush()
			blocks := make([]asdk.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, asdk.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := json.RawMessage(call.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, asdk.NewToolUseBlock(call.ID, input, call.Function.Name))
			}
			if len(blocks) > 0 {
				out = append(out, asdk.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			out = append(out, asdk.NewUserMessage(asdk.NewTextBlock(msg.Content)))
		}
	}
	flush()
	return out, strings.Join(system, "\n\n")
}

func convertMessage(msg *asdk.Message) llm.ChatResponse {
	reply := state.Message{Role: "assistant"}
	var text []string
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case asdk.TextBlock:
			text = append(text, variant.Text)
		case asdk.ToolUseBlock:
			args := "{}"
			if len(variant.Input) > 0 {
				args = string(variant.Input)
			}
			reply.ToolCalls = append(reply.ToolCalls, state.ToolCall{
				ID:       variant.ID,
				Type:     "function",
				Function: state.FunctionCall{Name: variant.Name, Arguments: args},
			})
		}
	}
	reply.Content = strings.Join(text, "\n")

	finish := mapStopReason(msg.StopReason)
	if len(reply.ToolCalls) > 0 {
		finish = llm.FinishToolCalls
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return llm.ChatResponse{
		Choices: []llm.ChatChoice{{Index: 0, Message: reply, FinishReason: finish}},
		Usage:   &llm.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}

func mapStopReason(reason asdk.StopReason) string {
	switch strings.ToLower(strings.TrimSpace(string(reason))) {
	case "tool_use":
		return llm.FinishToolCalls
	case "max_tokens":
		return llm.FinishLength
	case "refusal":
		return "content_filter"
	default:
		return llm.FinishStop
	}
}

func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *asdk.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		logging.ErrorLog("anthropic API error: %d - %v", apiErr.StatusCode, err)
		pe := llm.ErrorFromStatus(providerName, apiErr.StatusCode, apiErr.Error(), header)
		pe.Err = err
		return pe
	}
	return &llm.ProviderError{
		Type:      llm.ErrorTypeProviderDown,
		Provider:  providerName,
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
		Err:       err,
	}
}
