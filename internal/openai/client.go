package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"

	"cophysicist/internal/llm"
	"cophysicist/internal/logging"
	"cophysicist/internal/state"
	"cophysicist/internal/tooling"
)

const providerName = "openai"

// Client talks to the OpenAI Responses API.
type Client struct {
	sdk oai.Client
}

// NewClient builds a client for apiKey. baseURL may be empty for the public
// endpoint. Retries are left to the caller.
func NewClient(apiKey, baseURL string, timeout time.Duration) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	opts := []ooption.RequestOption{
		ooption.WithAPIKey(apiKey),
		ooption.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, ooption.WithBaseURL(base))
	}
	if timeout > 0 {
		opts = append(opts, ooption.WithRequestTimeout(timeout))
	}
	return &Client{sdk: oai.NewClient(opts...)}, nil
}

// Chat satisfies llm.Client.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	input, instructions := buildInput(req.Messages)
	params := oresponses.ResponseNewParams{
		Model: oshared.ResponsesModel(strings.TrimSpace(req.Model)),
		Input: oresponses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}
	if instructions != "" {
		params.Instructions = oai.String(instructions)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = oai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 && acceptsTemperature(req.Model) {
		params.Temperature = oai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
		params.ParallelToolCalls = oai.Bool(false)
	}

	logging.DevLog("openai: sending %d input items to model %s", len(input), req.Model)
	resp, err := c.sdk.Responses.New(ctx, params)
	if err != nil {
		return llm.ChatResponse{}, mapError(ctx, err)
	}
	out := convertResponse(resp)
	logging.DevLog("openai: response status=%s tool_calls=%d", resp.Status, len(out.Choices[0].Message.ToolCalls))
	return out, nil
}

func buildTools(defs []tooling.ToolDefinition) []oresponses.ToolUnionParam {
	out := make([]oresponses.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tool := oresponses.ToolParamOfFunction(def.Function.Name, def.Function.Parameters, false)
		if tool.OfFunction != nil && def.Function.Description != "" {
			tool.OfFunction.Description = oai.String(def.Function.Description)
		}
		out = append(out, tool)
	}
	return out
}

// buildInput converts chat history into Responses input items. System
// messages become the instructions string.
func buildInput(messages []state.Message) (oresponses.ResponseInputParam, string) {
	items := make(oresponses.ResponseInputParam, 0, len(messages))
	var instructions []string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				instructions = append(instructions, txt)
			}
		case "assistant":
			if msg.Content != "" {
				items = append(items, oresponses.ResponseInputItemParamOfMessage(msg.Content, oresponses.EasyInputMessageRoleAssistant))
			}
			for _, call := range msg.ToolCalls {
				args := call.Function.Arguments
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				items = append(items, oresponses.ResponseInputItemParamOfFunctionCall(args, call.ID, call.Function.Name))
			}
		case "tool":
			items = append(items, oresponses.ResponseInputItemParamOfFunctionCallOutput(msg.ToolCallID, msg.Content))
		default:
			items = append(items, oresponses.ResponseInputItemParamOfMessage(msg.Content, oresponses.EasyInputMessageRoleUser))
		}
	}
	return items, strings.Join(instructions, "\n\n")
}

func convertResponse(resp *oresponses.Response) llm.ChatResponse {
	msg := state.Message{Role: "assistant"}
	var text strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case "function_call":
			msg.ToolCalls = append(msg.ToolCalls, state.ToolCall{
				ID:   item.CallID,
				Type: "function",
				Function: state.FunctionCall{
					Name:      item.Name,
					Arguments: item.Arguments,
				},
			})
		case "message":
			for _, part := range item.AsMessage().Content {
				if part.Type != "output_text" {
					continue
				}
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(part.Text)
			}
		}
	}
	msg.Content = text.String()

	finish := mapStatus(resp.Status)
	if len(msg.ToolCalls) > 0 {
		finish = llm.FinishToolCalls
	}
	return llm.ChatResponse{
		Choices: []llm.ChatChoice{{Index: 0, Message: msg, FinishReason: finish}},
		Usage: &llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

func mapStatus(status oresponses.ResponseStatus) string {
	switch strings.ToLower(string(status)) {
	case "incomplete":
		return llm.FinishLength
	case "failed", "cancelled":
		return "error"
	default:
		return llm.FinishStop
	}
}

// acceptsTemperature reports whether the model takes a sampling temperature.
// Reasoning models reject the parameter.
func acceptsTemperature(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(m, prefix) {
			return false
		}
	}
	return true
}

func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		pe := llm.ErrorFromStatus(providerName, apiErr.StatusCode, apiErr.Message, header)
		pe.Err = err
		logging.ErrorLog("openai API error: %d - %s", apiErr.StatusCode, apiErr.Message)
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
