package tooling

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultInterpreter); err != nil {
		t.Skipf("%s not available: %v", DefaultInterpreter, err)
	}
}

func newTestRunner(t *testing.T, opts RunnerOptions) (*Store, *Runner) {
	t.Helper()
	store := newTestStore(t)
	return store, NewRunner(store, opts)
}

func writeScript(t *testing.T, store *Store, path, content string) {
	t.Helper()
	if res := store.WriteScript(context.Background(), path, content); !res.Success {
		t.Fatalf("write %s: %s", path, res.Error)
	}
}

func TestRunnerHelloWorld(t *testing.T) {
	requirePython(t)
	store, runner := newTestRunner(t, RunnerOptions{})
	writeScript(t, store, "hello.py", "print(\"Hello, World!\")\n")

	res := runner.Run(context.Background(), "hello.py")
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	if *res.Stdout != "Hello, World!\n" || *res.Stderr != "" {
		t.Fatalf("unexpected output: stdout=%q stderr=%q", *res.Stdout, *res.Stderr)
	}
	if res.Message != "Executed: hello.py" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestRunnerWorkingDirectoryIsRoot(t *testing.T) {
	requirePython(t)
	store, runner := newTestRunner(t, RunnerOptions{})
	writeScript(t, store, "pkg/where.py", "import os\nopen('marker.txt', 'w').write('x')\nprint(os.getcwd())\n")

	res := runner.Run(context.Background(), "pkg/where.py")
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	realRoot, err := filepath.EvalSymlinks(store.Root())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	if got := strings.TrimSpace(*res.Stdout); got != realRoot {
		t.Fatalf("cwd = %q, want %q", got, realRoot)
	}
	if read := store.ReadFile(context.Background(), "marker.txt"); !read.Success {
		t.Fatalf("marker not written at root: %s", read.Error)
	}
}

func TestRunnerNonZeroExitKeepsOutput(t *testing.T) {
	requirePython(t)
	store, runner := newTestRunner(t, RunnerOptions{})
	writeScript(t, store, "fail.py", "import sys\nprint('partial')\nprint('boom', file=sys.stderr)\nsys.exit(3)\n")

	res := runner.Run(context.Background(), "fail.py")
	if res.Success {
		t.Fatalf("expected failure")
	}
	if !errors.Is(res.Err, ErrExecution) || errors.Is(res.Err, ErrTimeout) {
		t.Fatalf("err = %v, want plain ErrExecution", res.Err)
	}
	if !strings.Contains(res.Error, "code 3") {
		t.Fatalf("error should carry exit code: %s", res.Error)
	}
	if *res.Stdout != "partial\n" || *res.Stderr != "boom\n" {
		t.Fatalf("output lost: stdout=%q stderr=%q", *res.Stdout, *res.Stderr)
	}
}

func TestRunnerTimeoutKeepsPartialOutput(t *testing.T) {
	requirePython(t)
	store, runner := newTestRunner(t, RunnerOptions{Timeout: 500 * time.Millisecond})
	writeScript(t, store, "slow.py", "import time\nprint('started')\ntime.sleep(10)\n")

	start := time.Now()
	res := runner.Run(context.Background(), "slow.py")
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
	if res.Success {
		t.Fatalf("expected timeout failure")
	}
	if !errors.Is(res.Err, ErrTimeout) || !errors.Is(res.Err, ErrExecution) {
		t.Fatalf("err = %v, want ErrTimeout wrapping ErrExecution", res.Err)
	}
	if *res.Stdout != "started\n" {
		t.Fatalf("partial stdout lost: %q", *res.Stdout)
	}
}

func TestRunnerCapsOutput(t *testing.T) {
	requirePython(t)
	store, runner := newTestRunner(t, RunnerOptions{MaxOutputBytes: 64})
	writeScript(t, store, "noisy.py", "import sys\nsys.stdout.write('x' * 100000)\nsys.stderr.write('y' * 100000)\n")

	res := runner.Run(context.Background(), "noisy.py")
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	if !res.Truncated {
		t.Fatalf("expected truncated output")
	}
	if total := len(*res.Stdout) + len(*res.Stderr); total != 64 {
		t.Fatalf("captured %d bytes, want 64", total)
	}
}

func TestRunnerRejectsBeforeExecuting(t *testing.T) {
	store, runner := newTestRunner(t, RunnerOptions{})
	writeScript(t, store, "pkg/mod.py", "")
	ctx := context.Background()

	cases := []struct {
		path    string
		wantErr error
	}{
		{"missing.py", ErrNotFound},
		{"notes.txt", ErrExtension},
		{"../outside.py", ErrInvalidPath},
		{"/tmp/abs.py", ErrInvalidPath},
	}
	for _, tc := range cases {
		res := runner.Run(ctx, tc.path)
		if res.Success {
			t.Fatalf("Run(%q) should fail", tc.path)
		}
		if !errors.Is(res.Err, tc.wantErr) {
			t.Fatalf("Run(%q) err = %v, want %v", tc.path, res.Err, tc.wantErr)
		}
	}
}

func TestRunnerMissingInterpreter(t *testing.T) {
	store, runner := newTestRunner(t, RunnerOptions{Interpreter: "cophysicist-no-such-python"})
	writeScript(t, store, "hello.py", "print('hi')\n")
	res := runner.Run(context.Background(), "hello.py")
	if res.Success || !errors.Is(res.Err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %+v", res)
	}
}

func TestOutputBuffersShareBudget(t *testing.T) {
	buf := newOutputBuffers(10)
	if n, err := buf.Stdout().Write([]byte("123456")); n != 6 || err != nil {
		t.Fatalf("write stdout: n=%d err=%v", n, err)
	}
	if n, err := buf.Stderr().Write([]byte("abcdef")); n != 6 || err != nil {
		t.Fatalf("overflowing write must report full length: n=%d err=%v", n, err)
	}
	stdout, stderr := buf.Strings()
	if stdout != "123456" || stderr != "abcd" {
		t.Fatalf("stdout=%q stderr=%q", stdout, stderr)
	}
	if !buf.Truncated() {
		t.Fatalf("expected truncated")
	}
}
