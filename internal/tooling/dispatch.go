package tooling

import (
	"context"
	"fmt"
	"time"

	"cophysicist/internal/logging"
)

// Call is one parsed tool invocation. The set of implementations is closed:
// Execute switches over every one of them.
type Call interface {
	Tool() ToolName
	isCall()
}

type WriteScriptCall struct {
	Path    string
	Content string
}

type RunScriptCall struct {
	Path string
}

type ReadFileCall struct {
	Path string
}

type ListFilesCall struct {
	Path string
}

func (WriteScriptCall) Tool() ToolName { return ToolWriteScript }
func (RunScriptCall) Tool() ToolName   { return ToolRunScript }
func (ReadFileCall) Tool() ToolName    { return ToolReadFile }
func (ListFilesCall) Tool() ToolName   { return ToolListFiles }

func (WriteScriptCall) isCall() {}
func (RunScriptCall) isCall()   {}
func (ReadFileCall) isCall()    {}
func (ListFilesCall) isCall()   {}

// ParseCall turns a tool name and its decoded JSON arguments into a Call.
// Missing string arguments become empty strings and fail in the operation
// itself; list_files falls back to the workspace root.
func ParseCall(name string, args map[string]any) (Call, error) {
	path, _ := stringArg(args, "path")
	switch ToolName(name) {
	case ToolWriteScript:
		content, _ := stringArg(args, "content")
		return WriteScriptCall{Path: path, Content: content}, nil
	case ToolRunScript:
		return RunScriptCall{Path: path}, nil
	case ToolReadFile:
		return ReadFileCall{Path: path}, nil
	case ToolListFiles:
		if path == "" {
			path = "."
		}
		return ListFilesCall{Path: path}, nil
	default:
		return nil, &UnknownToolError{Name: name}
	}
}

// Recorder observes every dispatched call after it completes.
type Recorder interface {
	Record(ctx context.Context, name string, args map[string]any, result Result, duration time.Duration)
}

// Dispatcher routes tool calls to the workspace store and script runner.
type Dispatcher struct {
	store    *Store
	runner   *Runner
	recorder Recorder
}

func NewDispatcher(store *Store, runner *Runner) *Dispatcher {
	return &Dispatcher{store: store, runner: runner}
}

// WithRecorder returns a copy of the dispatcher that reports calls to rec.
func (d *Dispatcher) WithRecorder(rec Recorder) *Dispatcher {
	clone := *d
	clone.recorder = rec
	return &clone
}

// Store exposes the underlying workspace store.
func (d *Dispatcher) Store() *Store {
	return d.store
}

// Execute runs an already parsed call.
func (d *Dispatcher) Execute(ctx context.Context, call Call) Result {
	switch c := call.(type) {
	case WriteScriptCall:
		return d.store.WriteScript(ctx, c.Path, c.Content)
	case RunScriptCall:
		return d.runner.Run(ctx, c.Path)
	case ReadFileCall:
		return d.store.ReadFile(ctx, c.Path)
	case ListFilesCall:
		return d.store.ListDirectory(ctx, c.Path)
	default:
		return failure(fmt.Errorf("unhandled tool call %T", call))
	}
}

// Dispatch parses and executes a tool call by name. It never panics and
// never returns a Go error: every failure is folded into the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLog("dispatch: %s panicked: %v", name, r)
			result = failure(fmt.Errorf("%v", r))
		}
		if !result.Success {
			logging.DevLog("dispatch: %s failed: %s", name, result.Error)
		}
		if d.recorder != nil {
			d.recorder.Record(ctx, name, args, result, time.Since(start))
		}
	}()

	call, err := ParseCall(name, args)
	if err != nil {
		return failure(err)
	}
	return d.Execute(ctx, call)
}
