package agent

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxHistoryEntries bounds how many past prompts are offered for recall.
const maxHistoryEntries = 500

// inputHistory is the REPL's persisted prompt history, one entry per line.
// Only the most recent maxHistoryEntries are kept in memory; the file keeps
// everything.
type inputHistory struct {
	path    string
	entries []string
	mu      sync.Mutex
}

func loadInputHistory(path string) *inputHistory {
	h := &inputHistory{path: path}
	if path == "" {
		return h
	}
	f, err := os.Open(path)
	if err != nil {
		return h
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		h.push(scanner.Text())
	}
	return h
}

// push appends line unless it repeats the previous entry.
func (h *inputHistory) push(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return false
	}
	h.entries = append(h.entries, line)
	if over := len(h.entries) - maxHistoryEntries; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
	return true
}

func (h *inputHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Add records line and appends it to the history file.
func (h *inputHistory) Add(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.push(line) || h.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = fmt.Fprintln(f, strings.TrimSpace(line))
}

// Len reports how many entries are available for recall.
func (h *inputHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
