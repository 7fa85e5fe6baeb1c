package prompts

import (
	_ "embed"
	"strings"
	"sync"
)

//go:embed system_prompt.txt
var baseSystemPrompt string

// workspaceHeader introduces the workspace summary inside the system prompt.
const workspaceHeader = "This is what the agent has produced so far in the workspace:"

var (
	metadataMu sync.RWMutex
	metadata   string
)

// Base returns the built-in Co-Physicist system prompt.
func Base() string {
	return strings.TrimSpace(baseSystemPrompt)
}

// Combine joins the built-in prompt, the environment metadata, the current
// workspace summary and an optional user-provided prompt.
func Combine(user, workspaceSummary string) string {
	sections := []string{Base()}

	if meta := getMetadata(); meta != "" {
		sections = append(sections, "## Environment Context\n"+meta)
	}
	if summary := strings.TrimSpace(workspaceSummary); summary != "" {
		sections = append(sections, workspaceHeader+"\n"+summary)
	}
	if trimmed := strings.TrimSpace(user); trimmed != "" {
		sections = append(sections, trimmed)
	}

	return strings.Join(sections, "\n\n")
}

// SetMetadata defines the environment metadata appended to the system prompt.
func SetMetadata(info string) {
	metadataMu.Lock()
	defer metadataMu.Unlock()
	metadata = strings.TrimSpace(info)
}

func getMetadata() string {
	metadataMu.RLock()
	defer metadataMu.RUnlock()
	return metadata
}
