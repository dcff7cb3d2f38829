package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate checks that every settings field is present and sane.
func Validate(cfg *Config) error {
	var errs []string

	if strings.TrimSpace(cfg.LibTarget) == "" {
		errs = append(errs, "lib_target: is required")
	} else if strings.HasSuffix(cfg.LibTarget, ".") || strings.HasPrefix(cfg.LibTarget, ".") {
		errs = append(errs, fmt.Sprintf("lib_target: %q must not start or end with '.'", cfg.LibTarget))
	}

	if strings.TrimSpace(cfg.LibDir) == "" {
		errs = append(errs, "lib_dir: is required")
	} else if filepath.Clean(cfg.LibDir) == "." {
		errs = append(errs, "lib_dir: must name a subdirectory, not the project root")
	}

	if strings.TrimSpace(cfg.RojoPath) == "" {
		errs = append(errs, "rojo_path: is required")
	}

	if len(errs) > 0 {
		return errors.New("invalid settings:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
