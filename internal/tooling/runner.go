package tooling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"cophysicist/internal/logging"
)

const (
	DefaultInterpreter    = "python3"
	DefaultScriptTimeout  = 30 * time.Second
	DefaultMaxOutputBytes = 1 << 20
)

type RunnerOptions struct {
	// Interpreter is looked up on PATH when not absolute.
	Interpreter    string
	Timeout        time.Duration
	MaxOutputBytes int
}

// Runner executes workspace scripts as child processes.
type Runner struct {
	store *Store
	opts  RunnerOptions
}

func NewRunner(store *Store, opts RunnerOptions) *Runner {
	if opts.Interpreter == "" {
		opts.Interpreter = DefaultInterpreter
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultScriptTimeout
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &Runner{store: store, opts: opts}
}

// Run executes a .py file with the workspace root as working directory.
// Output captured before a non-zero exit or a timeout is kept in the result.
func (r *Runner) Run(ctx context.Context, relPath string) Result {
	select {
	case <-ctx.Done():
		return failure(ctx.Err())
	default:
	}
	if err := r.store.EnsureRoot(); err != nil {
		return failure(err)
	}
	if err := checkScriptExt(relPath); err != nil {
		return failure(err)
	}
	abs, err := r.store.guard.Resolve(relPath)
	if err != nil {
		return failure(err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return failure(statError(relPath, err))
	}
	if !info.Mode().IsRegular() {
		return failure(fmt.Errorf("%s is not a regular file", relPath))
	}
	interpreter, err := exec.LookPath(r.opts.Interpreter)
	if err != nil {
		return failure(fmt.Errorf("%w: interpreter %s not found on PATH", ErrExecution, r.opts.Interpreter))
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, interpreter, abs)
	cmd.Dir = r.store.Root()
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	cmd.Stdin = nil
	// Grandchildren holding the pipes open must not stall Wait past the deadline.
	cmd.WaitDelay = time.Second

	buffers := newOutputBuffers(r.opts.MaxOutputBytes)
	cmd.Stdout = buffers.Stdout()
	cmd.Stderr = buffers.Stderr()

	logging.DevLog("runner: executing %s %s", interpreter, relPath)
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	stdout, stderr := buffers.Strings()
	result := Result{
		Stdout:    ptr(stdout),
		Stderr:    ptr(stderr),
		Truncated: buffers.Truncated(),
	}
	if runErr != nil {
		var failErr error
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			failErr = fmt.Errorf("%w after %s running %s", ErrTimeout, r.opts.Timeout, relPath)
		case ctx.Err() != nil:
			failErr = fmt.Errorf("%w: %s cancelled: %v", ErrExecution, relPath, ctx.Err())
		case errors.As(runErr, &exitErr):
			failErr = fmt.Errorf("%w: %s exited with code %d", ErrExecution, relPath, exitErr.ExitCode())
		default:
			failErr = fmt.Errorf("%w: %v", ErrExecution, runErr)
		}
		logging.ErrorLog("runner: %v (%dms)", failErr, duration.Milliseconds())
		result.Error = failErr.Error()
		result.Err = failErr
		return result
	}

	logging.DevLog("runner: %s completed in %dms", relPath, duration.Milliseconds())
	result.Success = true
	result.Message = "Executed: " + relPath
	return result
}
