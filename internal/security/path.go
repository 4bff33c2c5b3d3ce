// Package security confines file system access to a configured directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrOutsideDirectory is returned for paths that leave the configured directory
	ErrOutsideDirectory = errors.New("path is outside configured directory")
	// ErrNotPDF is returned for paths without a .pdf extension
	ErrNotPDF = errors.New("path is not a PDF file")
)

// PathValidator resolves user supplied paths inside one directory
type PathValidator struct {
	directory string
	realDir   string
}

// NewPathValidator creates a validator for directory. The directory does not
// have to exist yet.
func NewPathValidator(directory string) (*PathValidator, error) {
	if directory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	abs, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	realDir, err := realPath(abs)
	if err != nil {
		return nil, err
	}

	return &PathValidator{
		directory: abs,
		realDir:   realDir,
	}, nil
}

// Directory returns the configured directory as an absolute path
func (v *PathValidator) Directory() string {
	return v.directory
}

// Resolve returns the absolute form of path. Relative paths are taken
// relative to the configured directory. Paths that leave the directory,
// directly or through a symlink, are rejected. The target need not exist.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.directory, path)
	}
	clean := filepath.Clean(path)

	if !v.contains(clean) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
	}

	real, err := realPath(clean)
	if err != nil {
		return "", err
	}
	if !v.contains(real) {
		return "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideDirectory, path, real)
	}

	return clean, nil
}

// ResolvePDF is Resolve for paths that must name a .pdf file
func (v *PathValidator) ResolvePDF(path string) (string, error) {
	resolved, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(resolved), ".pdf") {
		return "", fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	return resolved, nil
}

func (v *PathValidator) contains(path string) bool {
	return within(path, v.directory) || within(path, v.realDir)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// realPath evaluates symlinks in the longest existing prefix of path and
// appends the rest unchanged
func realPath(path string) (string, error) {
	rest := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(current), rest)
		current = parent
	}
}
