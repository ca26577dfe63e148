package fetch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bridgewarden/bridgewarden/internal/model"
)

// FileFetcher reads files under a fixed base directory. Paths that escape
// the base, through ".." or through symlinks, are rejected as bad input.
type FileFetcher struct {
	Base     string
	MaxBytes int64
}

// Fetch reads one file. Oversized files come back as a SIZE_EXCEEDED guard
// error; escapes and missing files as bad input.
func (f FileFetcher) Fetch(path string) ([]byte, model.Source, error) {
	src := model.Source{Kind: "file", Path: path}

	full, err := f.resolve(path)
	if err != nil {
		return nil, src, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, src, badInputCode(model.CodeFileNotFound, "file not found: %s", path)
		}
		return nil, src, guard(model.CodeFetchFailed, err)
	}
	if info.IsDir() {
		return nil, src, badInput("path is a directory: %s", path)
	}
	if f.MaxBytes > 0 && info.Size() > f.MaxBytes {
		return nil, src, guard(model.CodeSizeExceeded, nil)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, src, guard(model.CodeFetchFailed, err)
	}
	return data, src, nil
}

// resolve joins path onto the base and verifies containment twice: once on
// the lexical path and once after resolving symlinks, so a link inside the
// base cannot point outside it.
func (f FileFetcher) resolve(path string) (string, error) {
	if path == "" {
		return "", badInput("empty path")
	}
	if filepath.IsAbs(path) {
		return "", badInputCode(model.CodePathTraversal, "absolute paths are not allowed")
	}

	base, err := filepath.Abs(f.Base)
	if err != nil {
		return "", badInput("bad base directory: %v", err)
	}
	full := filepath.Join(base, filepath.Clean(path))
	if !contained(base, full) {
		return "", badInputCode(model.CodePathTraversal, "path escapes base directory")
	}

	// Symlink containment. The base itself may be a symlink (e.g. /tmp on
	// macOS), so compare resolved against resolved.
	resolvedBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", badInput("bad base directory: %v", err)
	}
	resolvedFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", badInputCode(model.CodeFileNotFound, "file not found: %s", path)
		}
		return "", badInput("cannot resolve path: %v", err)
	}
	if !contained(resolvedBase, resolvedFull) {
		return "", badInputCode(model.CodePathTraversal, "path escapes base directory")
	}
	return resolvedFull, nil
}

func contained(base, full string) bool {
	if full == base {
		return true
	}
	return strings.HasPrefix(full, base+string(filepath.Separator))
}
