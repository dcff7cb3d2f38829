// Package project edits the partition map of a Rojo project file.
//
// The project file belongs to another tool and is hand-edited between runs,
// so it is handled as a loosely typed, order-preserving document: only the
// top-level "partitions" object is given a typed view, and everything else is
// written back exactly as it was read (modulo whitespace). Entries managed by
// rodep are namespaced with KeyPrefix so they stand apart from hand-authored
// ones.
//
// Every read-modify-write runs under an advisory lock ("<file>.lock", next to
// the file or in Patcher.LockDir) and replaces the file through a temp-file rename, so
// concurrent rodep invocations cannot lose each other's updates.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/amaranthinecodices/rodep/src/lockfile"
)

// KeyPrefix namespaces partition keys written by rodep.
const KeyPrefix = "__rodep_auto_"

const partitionsKey = "partitions"

// ErrIO wraps every failure to open, parse, or write the project file.
var ErrIO = errors.New("io error")

// lockRetry is how often a contended lock is retried.
var lockRetry = 50 * time.Millisecond

// Key returns the partition key for a dependency name.
func Key(name string) string {
	return KeyPrefix + name
}

// Partition is the typed view of one partitions entry.
type Partition struct {
	Key    string
	Path   string
	Target string
}

// Patcher writes partition entries for dependencies cloned under LibDir and
// synced under LibTarget.
type Patcher struct {
	LibDir    string
	LibTarget string
	// LockDir holds the advisory lock file. Empty means next to the
	// project file.
	LockDir string
}

// LockPath returns the advisory lock guarding configPath.
func (p *Patcher) LockPath(configPath string) string {
	return lockfile.LockPath(configPath, p.LockDir)
}

// Patch inserts or overwrites the entry for name in the project file at
// configPath. The entry path is LibDir/name/srcRel and the target is
// LibTarget.targetName (targetName defaults to name). An existing entry under
// the same key is replaced without prompting.
func (p *Patcher) Patch(ctx context.Context, configPath, name, srcRel, targetName string) (Partition, error) {
	if targetName == "" {
		targetName = name
	}

	part := Partition{
		Key:    Key(name),
		Path:   path.Join(filepath.ToSlash(p.LibDir), name, filepath.ToSlash(srcRel)),
		Target: p.LibTarget + "." + targetName,
	}

	err := update(ctx, configPath, p.LockPath(configPath), func(doc *Value) error {
		parts, err := partitions(doc, true)
		if err != nil {
			return err
		}

		entry := NewMap()
		if old, ok := parts.Get(part.Key); ok && old.Kind == Object {
			// Keep any extra fields a user added to a managed entry.
			entry = old.Object
		}
		entry.Set("path", StringValue(part.Path))
		entry.Set("target", StringValue(part.Target))
		parts.Set(part.Key, ObjectValue(entry))
		return nil
	})
	if err != nil {
		return Partition{}, err
	}

	log.Debug().Str("file", configPath).Str("key", part.Key).Str("path", part.Path).Str("target", part.Target).Msg("partition written")
	return part, nil
}

// Remove deletes the managed entry for name. It reports whether an entry was
// present; the file is left untouched when it was not.
func (p *Patcher) Remove(ctx context.Context, configPath, name string) (bool, error) {
	removed := false
	err := update(ctx, configPath, p.LockPath(configPath), func(doc *Value) error {
		parts, err := partitions(doc, false)
		if err != nil {
			return err
		}
		if parts == nil {
			return errUnchanged
		}
		removed = parts.Delete(Key(name))
		if !removed {
			return errUnchanged
		}
		return nil
	})
	return removed, err
}

// Partitions returns every entry of the partitions map that has the
// {path, target} shape, in document order.
func Partitions(configPath string) ([]Partition, error) {
	doc, _, err := read(configPath)
	if err != nil {
		return nil, err
	}
	parts, err := partitions(doc, false)
	if err != nil || parts == nil {
		return nil, err
	}

	var out []Partition
	for _, k := range parts.Keys() {
		v, _ := parts.Get(k)
		if v.Kind != Object {
			continue
		}
		pv, ok1 := v.Object.Get("path")
		tv, ok2 := v.Object.Get("target")
		if !ok1 || !ok2 || pv.Kind != String || tv.Kind != String {
			continue
		}
		out = append(out, Partition{Key: k, Path: pv.Str, Target: tv.Str})
	}
	return out, nil
}

// partitions returns the top-level partitions object, creating it when
// create is set.
func partitions(doc *Value, create bool) (*Map, error) {
	if doc.Kind != Object {
		return nil, fmt.Errorf("%w: top-level value is %s, expected object", ErrIO, doc.Kind)
	}
	v, ok := doc.Object.Get(partitionsKey)
	if !ok {
		if !create {
			return nil, nil
		}
		m := NewMap()
		doc.Object.Set(partitionsKey, ObjectValue(m))
		return m, nil
	}
	if v.Kind != Object {
		return nil, fmt.Errorf("%w: %q is %s, expected object", ErrIO, partitionsKey, v.Kind)
	}
	return v.Object, nil
}

// errUnchanged lets a mutation skip the write.
var errUnchanged = errors.New("unchanged")

// update performs a read-modify-write of configPath under the lock at lockPath.
func update(ctx context.Context, configPath, lockPath string, mutate func(doc *Value) error) error {
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("%w: locking %s: %w", ErrIO, configPath, err)
	}
	if !locked {
		return fmt.Errorf("%w: could not lock %s", ErrIO, configPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("file", configPath).Msg("releasing project lock")
		}
	}()

	doc, indent, err := read(configPath)
	if err != nil {
		return err
	}

	if err := mutate(doc); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}

	return write(configPath, doc, indent)
}

func read(configPath string) (*Value, string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading %s: %w", ErrIO, configPath, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: parsing %s: %w", ErrIO, configPath, err)
	}
	return doc, DetectIndent(data), nil
}

// write replaces configPath via a temp file in the same directory so readers
// never observe a half-written document.
func write(configPath string, doc *Value, indent string) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(configPath); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(configPath), "."+filepath.Base(configPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, configPath, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Encode(tmp, doc, indent); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encoding %s: %w", ErrIO, configPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrIO, configPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, configPath, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, configPath, err)
	}
	if err := os.Rename(tmpName, configPath); err != nil {
		return fmt.Errorf("%w: replacing %s: %w", ErrIO, configPath, err)
	}
	return nil
}
