package tooling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cophysicist/internal/logging"
)

const scriptExt = ".py"

// Store performs file operations confined to the guard's workspace root.
type Store struct {
	guard *PathGuard
}

func NewStore(guard *PathGuard) *Store {
	return &Store{guard: guard}
}

// Root is the absolute workspace directory.
func (s *Store) Root() string {
	return s.guard.Root()
}

// EnsureRoot creates the workspace directory if it is missing.
func (s *Store) EnsureRoot() error {
	if err := os.MkdirAll(s.guard.Root(), 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", s.guard.Root(), err)
	}
	return nil
}

// WriteScript creates or fully replaces a .py file, creating parent
// directories as needed.
func (s *Store) WriteScript(ctx context.Context, relPath, content string) Result {
	select {
	case <-ctx.Done():
		return failure(ctx.Err())
	default:
	}
	if err := s.EnsureRoot(); err != nil {
		return failure(err)
	}
	if err := checkScriptExt(relPath); err != nil {
		return failure(err)
	}
	abs, err := s.guard.Resolve(relPath)
	if err != nil {
		return failure(err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return failure(fmt.Errorf("create directory for %s: %w", relPath, err))
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return failure(fmt.Errorf("write %s: %w", relPath, err))
	}
	logging.DevLog("store: wrote %d bytes to %s", len(content), s.guard.Rel(abs))
	return Result{
		Success: true,
		Message: "Python file created/replaced: " + relPath,
		Path:    relPath,
	}
}

// ReadFile returns the full contents of a workspace file.
func (s *Store) ReadFile(ctx context.Context, relPath string) Result {
	select {
	case <-ctx.Done():
		return failure(ctx.Err())
	default:
	}
	if err := s.EnsureRoot(); err != nil {
		return failure(err)
	}
	abs, err := s.guard.Resolve(relPath)
	if err != nil {
		return failure(err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return failure(statError(relPath, err))
	}
	if info.IsDir() {
		return failure(fmt.Errorf("%s is a directory, not a file", relPath))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return failure(fmt.Errorf("read %s: %w", relPath, err))
	}
	return Result{
		Success: true,
		Content: ptr(string(data)),
		Path:    relPath,
	}
}

// ListDirectory returns the immediate entries of a workspace directory. The
// argument "." always means the workspace root itself.
func (s *Store) ListDirectory(ctx context.Context, relPath string) Result {
	select {
	case <-ctx.Done():
		return failure(ctx.Err())
	default:
	}
	if err := s.EnsureRoot(); err != nil {
		return failure(err)
	}

	dir := s.guard.Root()
	display := filepath.Base(dir) + "/"
	if relPath != "." {
		abs, err := s.guard.Resolve(relPath)
		if err != nil {
			return failure(err)
		}
		dir = abs
		display = relPath
	}

	info, err := os.Stat(dir)
	if err != nil {
		return failure(statError(relPath, err))
	}
	if !info.IsDir() {
		return failure(fmt.Errorf("%s is not a directory", relPath))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return failure(fmt.Errorf("list %s: %w", relPath, err))
	}

	prefix := s.guard.Rel(dir)
	listing := &Listing{Files: []string{}, Directories: []string{}}
	for _, entry := range entries {
		rel := path.Join(prefix, entry.Name())
		switch mode := entry.Type(); {
		case mode.IsDir():
			listing.Directories = append(listing.Directories, rel)
		case mode.IsRegular():
			listing.Files = append(listing.Files, rel)
		}
	}
	return Result{
		Success: true,
		Path:    display,
		Listing: listing,
	}
}

func checkScriptExt(relPath string) error {
	if !strings.HasSuffix(relPath, scriptExt) {
		return fmt.Errorf("%w: %s", ErrExtension, strings.TrimSpace(relPath))
	}
	return nil
}

func statError(relPath string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}
	return fmt.Errorf("stat %s: %w", relPath, err)
}
