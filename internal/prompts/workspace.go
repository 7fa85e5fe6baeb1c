package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// NoWorkspaceText is the summary of a workspace that does not exist yet.
const NoWorkspaceText = "No workspace directory found."

const sniffLen = 8 << 10

// SummarizeWorkspace renders every regular file under root as a delimited
// block, in lexical order. Paths are shown as <root-name>/<rel>. Binary and
// unreadable files are flagged instead of inlined. Once maxBytes of file
// content has been emitted the remaining files are only named; maxBytes <= 0
// means no limit.
func SummarizeWorkspace(root string, maxBytes int) (string, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return NoWorkspaceText, nil
	}
	if err != nil {
		return "", fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace %s is not a directory", root)
	}

	rootName := filepath.Base(filepath.Clean(root))
	var (
		b       strings.Builder
		used    int
		omitted []string
	)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		display := path.Join(rootName, filepath.ToSlash(rel))

		if maxBytes > 0 && used >= maxBytes {
			omitted = append(omitted, display)
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(&b, "\n--- Unreadable file: %s ---\n", display)
			return nil
		}
		if isBinary(data) {
			fmt.Fprintf(&b, "\n--- Binary file: %s (%s) omitted ---\n", display, humanize.Bytes(uint64(len(data))))
			return nil
		}
		if maxBytes > 0 && used+len(data) > maxBytes {
			omitted = append(omitted, display)
			used = maxBytes
			return nil
		}
		used += len(data)
		fmt.Fprintf(&b, "\n--- File: %s ---\n%s\n--- End of %s ---\n", display, data, display)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk workspace: %w", err)
	}
	if len(omitted) > 0 {
		fmt.Fprintf(&b, "\n--- Omitted (context limit %s reached): %s ---\n",
			humanize.Bytes(uint64(maxBytes)), strings.Join(omitted, ", "))
	}
	return b.String(), nil
}

// isBinary reports whether data looks like something other than UTF-8 text.
func isBinary(data []byte) bool {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	return !utf8.Valid(data)
}
