package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Fields carries key/value context for a structured log line.
type Fields map[string]any

// Entry is one structured log record as written in JSON mode.
type Entry struct {
	Timestamp string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Workspace string `json:"workspace,omitempty"`
	Message   string `json:"msg"`
	Fields    Fields `json:"fields,omitempty"`
}

// StructuredLogger writes leveled records with component and workspace
// context, either as JSON lines or as human-readable text.
type StructuredLogger struct {
	logger    *log.Logger
	component string
	workspace string
	jsonMode  bool
}

// NewStructuredLogger wraps logger. A nil logger means the shared Logger at
// the time of each write, so Setup can redirect it later.
func NewStructuredLogger(logger *log.Logger, component string, jsonMode bool) *StructuredLogger {
	return &StructuredLogger{
		logger:    logger,
		component: component,
		jsonMode:  jsonMode,
	}
}

// WithWorkspace returns a logger tagged with the workspace root.
func (s *StructuredLogger) WithWorkspace(workspace string) *StructuredLogger {
	clone := *s
	clone.workspace = workspace
	return &clone
}

// WithComponent returns a logger tagged with a different component.
func (s *StructuredLogger) WithComponent(component string) *StructuredLogger {
	clone := *s
	clone.component = component
	return &clone
}

func (s *StructuredLogger) Info(msg string, fields ...Fields)  { s.write("INFO", msg, fields) }
func (s *StructuredLogger) Warn(msg string, fields ...Fields)  { s.write("WARN", msg, fields) }
func (s *StructuredLogger) Error(msg string, fields ...Fields) { s.write("ERROR", msg, fields) }

// Debug only writes when DEV_MODE=1.
func (s *StructuredLogger) Debug(msg string, fields ...Fields) {
	if DevMode {
		s.write("DEBUG", msg, fields)
	}
}

// Printf provides compatibility with the standard logger interface.
func (s *StructuredLogger) Printf(format string, args ...any) {
	s.Info(fmt.Sprintf(format, args...))
}

func (s *StructuredLogger) write(level, msg string, fields []Fields) {
	out := s.logger
	if out == nil {
		out = Logger
	}
	merged := mergeFields(fields...)

	if s.jsonMode {
		data, err := json.Marshal(Entry{
			Timestamp: time.Now().Format(time.RFC3339),
			Level:     level,
			Component: s.component,
			Workspace: s.workspace,
			Message:   msg,
			Fields:    merged,
		})
		if err != nil {
			out.Printf("[%s] %s (unencodable fields: %v)", level, msg, err)
			return
		}
		out.Println(string(data))
		return
	}

	var b strings.Builder
	b.WriteString("[" + level + "] ")
	if s.component != "" {
		b.WriteString("[" + s.component + "] ")
	}
	if s.workspace != "" {
		b.WriteString("[ws:" + s.workspace + "] ")
	}
	b.WriteString(msg)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
	}
	out.Println(b.String())
}

func mergeFields(fields ...Fields) Fields {
	result := make(Fields)
	for _, m := range fields {
		for k, v := range m {
			result[k] = v
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
