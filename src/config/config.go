// Package config loads and writes the rodep settings file.
//
// The settings file is a flat JSON object with exactly three string fields.
// It is read once at process start and never mutated afterwards; the only
// writer is the `init` command.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFile is the canonical settings filename used by both init and load.
const DefaultFile = "rodep.json"

// ErrExists is returned by Init when the settings file is already present.
var ErrExists = errors.New("settings file already exists")

// Config is the rodep settings file.
type Config struct {
	// LibTarget is the logical parent every dependency is synced under,
	// e.g. "ReplicatedStorage".
	LibTarget string `json:"lib_target"`
	// LibDir is the directory submodules are cloned into.
	LibDir string `json:"lib_dir"`
	// RojoPath is the downstream project file holding the partition map.
	RojoPath string `json:"rojo_path"`

	// dir is the directory the settings file was loaded from.
	dir string
}

// Defaults returns the settings written by `rodep init`.
func Defaults() *Config {
	return &Config{
		LibTarget: "ReplicatedStorage",
		LibDir:    "lib",
		RojoPath:  "default.project.json",
	}
}

// Load reads the settings file at path. If path is empty, DefaultFile is used.
// A missing file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s not found (run `rodep init` to create one): %w", path, err)
		}
		return nil, err
	}

	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(abs)
	return cfg, nil
}

// Init writes the default settings to path. It refuses to replace an
// existing file unless force is set.
func Init(path string, force bool) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrExists)
		}
		return nil, err
	}
	defer f.Close()

	cfg := Defaults()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(abs)
	return cfg, nil
}

// Dir returns the directory containing the settings file. Relative paths in
// the settings are interpreted against it.
func (c *Config) Dir() string {
	if c.dir == "" {
		wd, _ := os.Getwd()
		return wd
	}
	return c.dir
}

// RojoPathAbs returns RojoPath as an absolute path.
func (c *Config) RojoPathAbs() string {
	return c.abs(c.RojoPath)
}

// LockPath returns the location of the lock file, a sibling of the settings file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Dir(), "rodep.lock")
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}
