package state

// Message mirrors the OpenAI chat schema so that history can be reused
// verbatim in chat-completions requests. Providers with other wire formats
// translate from it.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	// IsError marks a tool message whose content reports a failed call.
	IsError bool `json:"-"`
}

// ToolCall represents a function call request emitted by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is embedded inside ToolCall for OpenAI-compatible schemas.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Conversation is the ordered chat history of one session. The system prompt
// is kept apart so it can be refreshed every turn.
type Conversation struct {
	system   string
	messages []Message
}

func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{system: systemPrompt}
}

// SetSystemPrompt replaces the system prompt sent ahead of the history.
func (c *Conversation) SetSystemPrompt(prompt string) {
	c.system = prompt
}

func (c *Conversation) SystemPrompt() string {
	return c.system
}

// Append adds a new chat message to the history.
func (c *Conversation) Append(msg Message) {
	c.messages = append(c.messages, msg)
}

// Messages returns the system prompt, when set, followed by a copy of the history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, 0, len(c.messages)+1)
	if c.system != "" {
		out = append(out, Message{Role: "system", Content: c.system})
	}
	return append(out, c.messages...)
}

// Len counts history messages, excluding the system prompt.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Truncate drops history past n messages. Used to roll back a failed turn.
func (c *Conversation) Truncate(n int) {
	if n >= 0 && n < len(c.messages) {
		c.messages = c.messages[:n]
	}
}

// Clear removes all history and keeps the system prompt.
func (c *Conversation) Clear() {
	c.messages = c.messages[:0]
}
