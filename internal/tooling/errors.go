package tooling

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath marks absolute paths and paths that leave the workspace.
	ErrInvalidPath = errors.New("invalid path")
	// ErrExtension marks a script operation on a file without the .py extension.
	ErrExtension = errors.New("file must have .py extension")
	// ErrNotFound marks a missing file or directory.
	ErrNotFound = errors.New("not found")
	// ErrExecution marks a script that could not be started or exited non-zero.
	ErrExecution = errors.New("execution failed")
	// ErrTimeout is the ErrExecution variant for scripts killed by the wall-clock bound.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrExecution)
)

// UnknownToolError is returned when a tool call names something outside the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + e.Name
}
