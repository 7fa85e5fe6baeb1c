package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cophysicist/internal/config"
	"cophysicist/internal/llm"
	"cophysicist/internal/logging"
	"cophysicist/internal/prompts"
	"cophysicist/internal/state"
	"cophysicist/internal/tooling"
)

// ErrToolRoundLimit is returned when the model keeps requesting tools past
// the configured number of rounds.
var ErrToolRoundLimit = errors.New("tool round limit reached")

// ToolOutcome describes one tool call executed while answering a prompt.
type ToolOutcome struct {
	CallID   string
	Name     string
	Text     string
	IsError  bool
	Duration time.Duration
}

// Reply is the final assistant answer to one prompt.
type Reply struct {
	Text         string
	FinishReason string
	ToolOutcomes []ToolOutcome
	Usage        llm.Usage
}

// Agent runs the chat/tool loop against one workspace.
type Agent struct {
	client     llm.Client
	cfg        config.Config
	dispatcher *tooling.Dispatcher
	conv       *state.Conversation
	logger     *logging.StructuredLogger

	// retryDelay is the first backoff step between provider attempts.
	retryDelay time.Duration

	mu          sync.Mutex
	totalTokens int
}

// New returns an agent that answers with client and acts on the workspace
// behind dispatcher.
func New(client llm.Client, cfg config.Config, dispatcher *tooling.Dispatcher) *Agent {
	logger := logging.NewStructuredLogger(nil, "agent", cfg.LogJSON).
		WithWorkspace(dispatcher.Store().Root())
	return &Agent{
		client:     client,
		cfg:        cfg,
		dispatcher: dispatcher,
		conv:       state.NewConversation(prompts.Combine(cfg.SystemPrompt, "")),
		logger:     logger,
		retryDelay: time.Second,
	}
}

// Dispatcher exposes the tool dispatcher used by the agent.
func (a *Agent) Dispatcher() *tooling.Dispatcher {
	return a.dispatcher
}

// Config returns the settings the agent was built with.
func (a *Agent) Config() config.Config {
	return a.cfg
}

// History returns a copy of the conversation, system prompt first.
func (a *Agent) History() []state.Message {
	return a.conv.Messages()
}

// Reset wipes the conversation history.
func (a *Agent) Reset() {
	a.conv.Clear()
}

// TotalTokens reports the tokens consumed since the agent was created.
func (a *Agent) TotalTokens() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalTokens
}

func (a *Agent) addTokens(n int) {
	a.mu.Lock()
	a.totalTokens += n
	a.mu.Unlock()
}

// Ask sends prompt to the model and executes requested tools until the model
// answers in plain text. On error the turn is rolled back so the history
// stays well formed for the next prompt.
func (a *Agent) Ask(ctx context.Context, prompt string) (Reply, error) {
	mark := a.conv.Len()
	a.conv.Append(state.Message{Role: "user", Content: prompt})

	reply, err := a.loop(ctx)
	if err != nil {
		a.conv.Truncate(mark)
		return Reply{}, err
	}
	return reply, nil
}

func (a *Agent) loop(ctx context.Context) (Reply, error) {
	var reply Reply
	for round := 0; ; round++ {
		if round > a.cfg.MaxToolRounds {
			return Reply{}, fmt.Errorf("%w (%d)", ErrToolRoundLimit, a.cfg.MaxToolRounds)
		}
		a.refreshSystemPrompt()

		req := llm.ChatRequest{
			Model:       a.cfg.Model,
			Messages:    a.conv.Messages(),
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxOutputTokens,
		}
		if !a.cfg.DisableTools {
			req.Tools = tooling.DefaultRegistry().Definitions()
		}

		resp, err := a.callProviderWithRetry(ctx, req)
		if err != nil {
			return Reply{}, err
		}
		if len(resp.Choices) == 0 {
			return Reply{}, errors.New("provider returned no choices")
		}
		if resp.Usage != nil {
			a.addTokens(resp.Usage.TotalTokens)
			reply.Usage.PromptTokens += resp.Usage.PromptTokens
			reply.Usage.CompletionTokens += resp.Usage.CompletionTokens
			reply.Usage.TotalTokens += resp.Usage.TotalTokens
		}

		choice := resp.Choices[0]
		msg := choice.Message
		msg.Role = "assistant"
		a.conv.Append(msg)

		if len(msg.ToolCalls) == 0 {
			reply.Text = msg.Content
			reply.FinishReason = choice.FinishReason
			return reply, nil
		}

		for _, call := range msg.ToolCalls {
			outcome := a.runToolCall(ctx, call)
			reply.ToolOutcomes = append(reply.ToolOutcomes, outcome)
			a.conv.Append(state.Message{
				Role:       "tool",
				Name:       outcome.Name,
				Content:    outcome.Text,
				ToolCallID: outcome.CallID,
				IsError:    outcome.IsError,
			})
		}
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}
	}
}

func (a *Agent) refreshSystemPrompt() {
	summary, err := prompts.SummarizeWorkspace(a.dispatcher.Store().Root(), a.cfg.ContextSummaryBytes)
	if err != nil {
		a.logger.Warn("workspace summary failed", logging.Fields{"error": err.Error()})
		summary = ""
	}
	a.conv.SetSystemPrompt(prompts.Combine(a.cfg.SystemPrompt, summary))
}

func (a *Agent) runToolCall(ctx context.Context, call state.ToolCall) ToolOutcome {
	outcome := ToolOutcome{CallID: call.ID, Name: call.Function.Name}
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			outcome.Text = fmt.Sprintf("Error: invalid arguments for %s: %v", call.Function.Name, err)
			outcome.IsError = true
			a.logger.Error("invalid tool arguments", logging.Fields{"tool": call.Function.Name, "error": err.Error()})
			return outcome
		}
	}

	start := time.Now()
	formatted := tooling.Format(a.dispatcher.Dispatch(ctx, call.Function.Name, args))
	outcome.Duration = time.Since(start)
	outcome.Text = formatted.Text
	outcome.IsError = formatted.IsError
	a.logger.Info("tool executed", logging.Fields{
		"tool":        call.Function.Name,
		"error":       formatted.IsError,
		"duration_ms": outcome.Duration.Milliseconds(),
	})
	return outcome
}

func (a *Agent) callProviderWithRetry(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	const (
		maxAttempts = 5
		maxDelay    = 16 * time.Second
	)
	delay := a.retryDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		resp, err := a.client.Chat(ctx, req)
		elapsed := time.Since(start).Round(time.Millisecond)
		logging.DevLog("provider call finished: err=%v (attempt %d/%d, duration=%s)", err, attempt, maxAttempts, elapsed)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return llm.ChatResponse{}, ctx.Err()
		}

		if pe, ok := llm.IsProviderError(err); ok {
			if !pe.Retryable {
				a.logger.Error("provider error (non-retryable)", logging.Fields{"error": err.Error(), "type": string(pe.Type)})
				return llm.ChatResponse{}, err
			}
			if pe.RetryAfter != nil && *pe.RetryAfter > delay {
				delay = *pe.RetryAfter
			}
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}
		a.logger.Warn("retrying provider call", logging.Fields{
			"attempt":  attempt + 1,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return llm.ChatResponse{}, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return llm.ChatResponse{}, lastErr
}
