package submodule

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Cleanup removes every trace of the submodule at relPath: its .gitmodules
// record, repository config section, index entries, module git directory and
// working directory. It is safe to call on a partially added submodule and on
// a path that was never registered. All steps are attempted; their errors
// are joined.
func (m *Manager) Cleanup(relPath string) error {
	var errs []error

	name := relPath
	mods, err := m.readModules()
	if err != nil {
		errs = append(errs, err)
	} else {
		for n, s := range mods.Submodules {
			if s.Path == relPath || n == relPath {
				name = n
				delete(mods.Submodules, n)
			}
		}
		if len(mods.Submodules) == 0 {
			if err := m.wt.Filesystem.Remove(gitmodulesFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		} else if err := m.writeModules(mods); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg, err := m.repo.Config(); err != nil {
		errs = append(errs, err)
	} else if _, ok := cfg.Submodules[name]; ok {
		delete(cfg.Submodules, name)
		if err := m.repo.SetConfig(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	if idx, err := m.repo.Storer.Index(); err != nil {
		errs = append(errs, err)
	} else {
		kept := idx.Entries[:0]
		for _, e := range idx.Entries {
			if e.Name == relPath || strings.HasPrefix(e.Name, relPath+"/") {
				continue
			}
			kept = append(kept, e)
		}
		idx.Entries = kept
		if err := m.stageModulesFile(idx); err != nil {
			errs = append(errs, err)
		} else if err := m.setIndex(idx); err != nil {
			errs = append(errs, err)
		}
	}

	if dotgit, ok := m.gitDir(); ok {
		if err := util.RemoveAll(dotgit, path.Join("modules", name)); err != nil {
			errs = append(errs, err)
		}
	}

	if err := util.RemoveAll(m.wt.Filesystem, relPath); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("cleaning up %s: %w", relPath, err)
	}
	return nil
}

// gitDir returns the filesystem backing the repository's .git directory.
func (m *Manager) gitDir() (billy.Filesystem, bool) {
	type fsBased interface {
		Filesystem() billy.Filesystem
	}
	s, ok := m.repo.Storer.(fsBased)
	if !ok {
		return nil, false
	}
	return s.Filesystem(), true
}
