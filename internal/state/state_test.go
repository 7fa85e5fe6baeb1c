package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConversationMessages(t *testing.T) {
	conv := NewConversation("sys")
	conv.Append(Message{Role: "user", Content: "hi"})
	conv.Append(Message{Role: "assistant", Content: "hello"})

	want := []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	if diff := cmp.Diff(want, conv.Messages()); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	conv.SetSystemPrompt("")
	if got := conv.Messages(); len(got) != 2 || got[0].Role != "user" {
		t.Fatalf("empty system prompt should be omitted: %+v", got)
	}
}

func TestConversationTruncateAndClear(t *testing.T) {
	conv := NewConversation("sys")
	for _, content := range []string{"a", "b", "c"} {
		conv.Append(Message{Role: "user", Content: content})
	}
	conv.Truncate(1)
	if conv.Len() != 1 {
		t.Fatalf("Len after truncate = %d", conv.Len())
	}
	conv.Truncate(5)
	if conv.Len() != 1 {
		t.Fatalf("Truncate past end changed history")
	}
	conv.Clear()
	if conv.Len() != 0 || conv.SystemPrompt() != "sys" {
		t.Fatalf("Clear should keep system prompt only")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	conv := NewConversation("")
	conv.Append(Message{Role: "user", Content: "original"})
	msgs := conv.Messages()
	msgs[0].Content = "mutated"
	if conv.Messages()[0].Content != "original" {
		t.Fatalf("Messages must not alias history")
	}
}
