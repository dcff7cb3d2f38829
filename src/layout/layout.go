// Package layout finds the conventional source root of a checked-out
// dependency.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNoSourceLayout means none of the conventional directories exist.
	ErrNoSourceLayout = errors.New("no conventional source directory")
	// ErrCannotInferSourceDir means detection failed and no override was given.
	ErrCannotInferSourceDir = errors.New("cannot infer source directory")
)

// Candidates are checked in order; the first existing directory wins.
var Candidates = []string{"src", "lib"}

// Detect returns the first candidate that exists as a directory under root,
// relative to root.
func Detect(root string) (string, error) {
	for _, c := range Candidates {
		fi, err := os.Stat(filepath.Join(root, c))
		if err == nil && fi.IsDir() {
			return c, nil
		}
	}
	return "", ErrNoSourceLayout
}

// SourceDir runs Detect and falls back to override when nothing is found.
func SourceDir(root, override string) (string, error) {
	dir, err := Detect(root)
	if err == nil {
		return dir, nil
	}
	if override != "" {
		return filepath.ToSlash(filepath.Clean(override)), nil
	}
	return "", fmt.Errorf("%w in %s (tried %v; pass --dir): %w", ErrCannotInferSourceDir, root, Candidates, err)
}
