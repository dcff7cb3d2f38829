// Package lockfile records the exact commit every dependency was pinned to.
//
// rodep.lock is TOML, sits next to the settings file, and is rewritten in
// full after each add or remove. Records are kept sorted by name so diffs
// stay small.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const header = "# This file is generated by rodep. Do not edit by hand.\n\n"

// Version is the lockfile schema version.
const Version = 1

// Entry is one pinned dependency.
type Entry struct {
	Name       string    `toml:"name"`
	Source     string    `toml:"source"`
	URL        string    `toml:"url"`
	Path       string    `toml:"path"`
	Constraint string    `toml:"constraint,omitempty"`
	Ref        string    `toml:"ref"`
	Commit     string    `toml:"commit"`
	Partition  string    `toml:"partition"`
	AddedAt    time.Time `toml:"added_at"`
}

// File is the decoded lockfile.
type File struct {
	Version      int     `toml:"version"`
	Dependencies []Entry `toml:"dependency"`
}

// Load reads the lockfile at path. A missing file yields an empty File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &File{Version: Version}, nil
		}
		return nil, err
	}

	f := &File{}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.Version == 0 {
		f.Version = Version
	}
	if f.Version > Version {
		return nil, fmt.Errorf("%s: lockfile version %d is newer than supported version %d", path, f.Version, Version)
	}
	return f, nil
}

// Get returns the entry for name.
func (f *File) Get(name string) (Entry, bool) {
	for _, e := range f.Dependencies {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Put inserts e or replaces the entry with the same name.
func (f *File) Put(e Entry) {
	for i := range f.Dependencies {
		if f.Dependencies[i].Name == e.Name {
			f.Dependencies[i] = e
			return
		}
	}
	f.Dependencies = append(f.Dependencies, e)
	sort.Slice(f.Dependencies, func(i, j int) bool {
		return f.Dependencies[i].Name < f.Dependencies[j].Name
	})
}

// Delete removes the entry for name and reports whether it existed.
func (f *File) Delete(name string) bool {
	for i := range f.Dependencies {
		if f.Dependencies[i].Name == name {
			f.Dependencies = append(f.Dependencies[:i], f.Dependencies[i+1:]...)
			return true
		}
	}
	return false
}

// Save writes f to path through a temp file rename.
func (f *File) Save(path string) error {
	if f.Version == 0 {
		f.Version = Version
	}
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rodep.lock.*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(header); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// lockRetry is how often a contended lock is retried.
var lockRetry = 50 * time.Millisecond

// LockPath returns the advisory lock guarding path: "<base>.lock" inside
// lockDir, or next to path when lockDir is empty.
func LockPath(path, lockDir string) string {
	if lockDir == "" {
		return path + ".lock"
	}
	return filepath.Join(lockDir, filepath.Base(path)+".lock")
}

// Update loads path, applies fn and saves the result while holding the
// advisory lock from LockPath, so concurrent updates are serialized.
func Update(ctx context.Context, path, lockDir string, fn func(f *File)) error {
	lock := flock.New(LockPath(path, lockDir))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("could not lock %s", path)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("releasing lockfile lock")
		}
	}()

	f, err := Load(path)
	if err != nil {
		return err
	}
	fn(f)
	return f.Save(path)
}
