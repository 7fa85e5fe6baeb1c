package tooling

import (
	"bytes"
	"io"
	"sync"
)

// outputBuffers captures a child's stdout and stderr against one shared byte
// budget. Writes past the budget are dropped but still reported as complete so
// the child never blocks on a full pipe.
type outputBuffers struct {
	max int

	mu        sync.Mutex
	used      int
	truncated bool

	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newOutputBuffers(max int) *outputBuffers {
	if max <= 0 {
		max = 1
	}
	return &outputBuffers{max: max}
}

func (b *outputBuffers) Stdout() io.Writer { return cappedWriter{b: b, dst: &b.stdout} }
func (b *outputBuffers) Stderr() io.Writer { return cappedWriter{b: b, dst: &b.stderr} }

func (b *outputBuffers) Strings() (stdout, stderr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stdout.String(), b.stderr.String()
}

func (b *outputBuffers) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

type cappedWriter struct {
	b   *outputBuffers
	dst *bytes.Buffer
}

func (w cappedWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.b.mu.Lock()
	defer w.b.mu.Unlock()

	remain := w.b.max - w.b.used
	if remain <= 0 {
		w.b.truncated = true
		return len(p), nil
	}
	n := len(p)
	if n > remain {
		n = remain
		w.b.truncated = true
	}
	_, _ = w.dst.Write(p[:n])
	w.b.used += n
	return len(p), nil
}
