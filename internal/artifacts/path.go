package artifacts

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathValidator confines artifact paths to the configured artifact root
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator for the given artifact root
func NewPathValidator(root string) (*PathValidator, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact root cannot be empty")
	}

	// The root need not exist yet; pipelines may create it after startup
	return &PathValidator{root: root}, nil
}

// Root returns the configured artifact root
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve turns a path into an absolute path inside the root.
// Relative paths are taken relative to the root.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	within, err := v.Contains(absPath)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return "", fmt.Errorf("path is outside artifact root: %s", path)
	}

	return absPath, nil
}

// Contains reports whether path lies inside the root, following symlinks on
// both sides so a link cannot point out of the tree
func (v *PathValidator) Contains(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absRoot, err := filepath.Abs(v.root)
	if err != nil {
		return false, fmt.Errorf("failed to resolve artifact root: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	cleanRoot := filepath.Clean(absRoot)

	realPath := cleanPath
	if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
		realPath = resolved
	}
	realRoot := cleanRoot
	if resolved, err := filepath.EvalSymlinks(cleanRoot); err == nil {
		realRoot = resolved
	}

	under := func(p string) bool {
		return isUnder(p, cleanRoot) || isUnder(p, realRoot)
	}
	return under(cleanPath) && under(realPath), nil
}

func isUnder(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
