package irtiff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResetDirectory makes path an empty directory.
//
// A missing directory is created and created is true. An existing directory
// is removed recursively together with all of its contents and then created
// again, created is false. There is no merge mode: anything stored under path
// before the call is lost.
func ResetDirectory(path string) (created bool, err error) {
	if strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("%w: empty directory path", ErrDirectoryIO)
	}
	clean := filepath.Clean(path)
	if abs, err := filepath.Abs(clean); err == nil && filepath.Dir(abs) == abs {
		return false, fmt.Errorf("%w: refusing to reset filesystem root %s", ErrDirectoryIO, abs)
	}

	_, err = os.Stat(clean)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(clean, 0o755); err != nil {
			return false, fmt.Errorf("%w: create %s: %w", ErrDirectoryIO, clean, err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("%w: stat %s: %w", ErrDirectoryIO, clean, err)
	}

	if err := os.RemoveAll(clean); err != nil {
		return false, fmt.Errorf("%w: remove %s: %w", ErrDirectoryIO, clean, err)
	}
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return false, fmt.Errorf("%w: recreate %s: %w", ErrDirectoryIO, clean, err)
	}
	return false, nil
}

// removeDirectory deletes the working directory tree at the end of a batch.
func removeDirectory(path string) error {
	if err := os.RemoveAll(filepath.Clean(path)); err != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrDirectoryIO, path, err)
	}
	return nil
}

// contains reports whether child is dir itself or lies below dir.
func contains(dir, child string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	absChild, err := filepath.Abs(child)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absDir, absChild)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}
