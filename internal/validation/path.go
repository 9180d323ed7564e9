package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrPathTraversal   = fmt.Errorf("%w: parent directory references are not allowed", ErrInvalidPath)
	ErrPathOutsideRoot = fmt.Errorf("%w: path escapes the shared folder", ErrInvalidPath)
)

// ResolvePath maps a client supplied path onto the shared folder root.
// Both slash styles are accepted. A path that is already absolute and inside
// the root is returned cleaned, so resolving twice yields the same result.
// No filesystem access is performed.
func ResolvePath(raw, root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve shared folder: %w", err)
	}

	normalized := strings.ReplaceAll(raw, `\`, "/")
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", ErrPathTraversal
		}
	}

	native := filepath.FromSlash(normalized)
	if filepath.IsAbs(native) {
		cleaned := filepath.Clean(native)
		if Within(cleaned, absRoot) {
			return cleaned, nil
		}
	}

	relative := strings.TrimLeft(native, string(filepath.Separator))
	resolved := filepath.Join(absRoot, relative)
	if !Within(resolved, absRoot) {
		return "", ErrPathOutsideRoot
	}

	return resolved, nil
}

// Within reports whether path equals root or lies beneath it.
// Both arguments must be clean absolute paths.
func Within(path, root string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// RelativePath renders a canonical path relative to root with forward slashes,
// "/" for the root itself. Used in API responses and activity details.
func RelativePath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}
