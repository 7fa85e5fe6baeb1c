package tooling

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// PathGuard confines untrusted relative paths to a single workspace root.
type PathGuard struct {
	root string
}

// NewPathGuard anchors a guard at root, made absolute. The directory does not
// need to exist yet.
func NewPathGuard(root string) (*PathGuard, error) {
	if strings.TrimSpace(root) == "" {
		root = "workspace"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &PathGuard{root: abs}, nil
}

// Root is the absolute workspace directory.
func (p *PathGuard) Root() string {
	return p.root
}

// Resolve maps a workspace-relative path to an absolute path under Root.
//
// The path is normalized before the containment check, and the check is
// repeated on the symlink-resolved form: the host's resolution of the target
// must match a resolution that treats the workspace as the filesystem root.
func (p *PathGuard) Resolve(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if filepath.IsAbs(trimmed) || strings.HasPrefix(trimmed, "/") {
		return "", fmt.Errorf("%w: absolute paths are not allowed, use paths relative to the workspace", ErrInvalidPath)
	}
	target := filepath.Join(p.root, trimmed)
	if !within(p.root, target) {
		return "", fmt.Errorf("%w: path traversal detected, %q is outside the workspace", ErrInvalidPath, trimmed)
	}
	rel, err := filepath.Rel(p.root, target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	realRoot := resolveExisting(p.root)
	scoped, err := securejoin.SecureJoin(realRoot, rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if actual := resolveExisting(filepath.Join(realRoot, rel)); actual != scoped || !within(realRoot, actual) {
		return "", fmt.Errorf("%w: %q resolves outside the workspace through a symlink", ErrInvalidPath, trimmed)
	}
	return target, nil
}

// Rel reports path relative to the root, in slash form.
func (p *PathGuard) Rel(path string) string {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// resolveExisting evaluates symlinks along the longest existing prefix of path
// and appends the missing remainder unchanged.
func resolveExisting(path string) string {
	path = filepath.Clean(path)
	var missing []string
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
