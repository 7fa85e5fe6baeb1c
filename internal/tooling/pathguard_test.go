package tooling

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestGuard(t *testing.T) *PathGuard {
	t.Helper()
	guard, err := NewPathGuard(filepath.Join(t.TempDir(), "workspace"))
	if err != nil {
		t.Fatalf("NewPathGuard: %v", err)
	}
	if err := os.MkdirAll(guard.Root(), 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}
	return guard
}

func TestPathGuardResolveInside(t *testing.T) {
	guard := newTestGuard(t)
	cases := map[string]string{
		"script.py":           "script.py",
		"  padded.py  ":       "padded.py",
		"a/b/../c.py":         "a/c.py",
		"modules/math.py":     "modules/math.py",
		"./nested/./file.txt": "nested/file.txt",
		".":                   ".",
		"":                    ".",
	}
	for input, wantRel := range cases {
		got, err := guard.Resolve(input)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", input, err)
		}
		if !within(guard.Root(), got) {
			t.Fatalf("Resolve(%q) = %s, not under %s", input, got, guard.Root())
		}
		if rel := guard.Rel(got); rel != wantRel {
			t.Fatalf("Resolve(%q) rel = %q, want %q", input, rel, wantRel)
		}
	}
}

func TestPathGuardRejectsEscapes(t *testing.T) {
	guard := newTestGuard(t)
	for _, input := range []string{
		"/etc/passwd",
		" /etc/passwd",
		"../package.json",
		"../../anything",
		"a/../../x.py",
		"..",
	} {
		if _, err := guard.Resolve(input); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Resolve(%q) err = %v, want ErrInvalidPath", input, err)
		}
	}
}

func TestPathGuardRejectsSiblingPrefix(t *testing.T) {
	guard := newTestGuard(t)
	sibling := "../" + filepath.Base(guard.Root()) + "-other/x.py"
	if _, err := guard.Resolve(sibling); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("sibling directory with shared prefix accepted: %v", err)
	}
}

func TestPathGuardRejectsSymlinkEscape(t *testing.T) {
	guard := newTestGuard(t)
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s3cret"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(guard.Root(), "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink("../nowhere.py", filepath.Join(guard.Root(), "dangling.py")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	for _, input := range []string{"escape", "escape/secret.txt", "escape/new.py", "dangling.py"} {
		_, err := guard.Resolve(input)
		if !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Resolve(%q) err = %v, want ErrInvalidPath", input, err)
		}
		if !strings.Contains(err.Error(), "symlink") {
			t.Fatalf("Resolve(%q) error should mention the symlink: %v", input, err)
		}
	}
}

func TestPathGuardAllowsSymlinkWithinRoot(t *testing.T) {
	guard := newTestGuard(t)
	if err := os.MkdirAll(filepath.Join(guard.Root(), "real"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink("real", filepath.Join(guard.Root(), "alias")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	got, err := guard.Resolve("alias/run.py")
	if err != nil {
		t.Fatalf("Resolve through in-root symlink failed: %v", err)
	}
	if want := filepath.Join(guard.Root(), "alias", "run.py"); got != want {
		t.Fatalf("Resolve = %s, want %s", got, want)
	}
}
