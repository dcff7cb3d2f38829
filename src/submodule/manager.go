// Package submodule adds git submodules pinned to a remote ref.
//
// An addition is a fixed sequence of stages (register, open, fetch, resolve,
// pin, checkout, set-head, finalize). Each stage either completes or stops
// the sequence with a *StageError naming it. Completed stages are not rolled
// back; Manager.Cleanup removes whatever a partial addition left behind.
package submodule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog/log"
)

const gitmodulesFile = ".gitmodules"

// Manager performs submodule operations on one enclosing repository.
type Manager struct {
	repo *git.Repository
	wt   *git.Worktree
	root string
}

// Discover finds the repository enclosing start, walking upward.
func Discover(start string) (*Manager, error) {
	repo, err := git.PlainOpenWithOptions(start, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, &StageError{Stage: StageDiscover, Kind: ErrNoRepository, Err: fmt.Errorf("%s: %w", start, err)}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, &StageError{Stage: StageDiscover, Kind: ErrNoRepository, Err: fmt.Errorf("%s: %w", start, err)}
	}
	return &Manager{repo: repo, wt: wt, root: wt.Filesystem.Root()}, nil
}

// Root returns the working tree root of the enclosing repository.
func (m *Manager) Root() string { return m.root }

// GitDir returns the repository's git directory on disk, or "" when the
// repository is not stored on the filesystem.
func (m *Manager) GitDir() string {
	dotgit, ok := m.gitDir()
	if !ok {
		return ""
	}
	return dotgit.Root()
}

// Rel converts an absolute destination into the slash separated,
// root-relative path git records for a submodule.
func (m *Manager) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(m.root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the repository at %s", abs, m.root)
	}
	return rel, nil
}

// Options tune which remote ref an addition pins.
type Options struct {
	// Branch overrides default-branch detection.
	Branch string
	// Constraint pins the highest matching semver tag instead of a branch.
	Constraint *semver.Constraints
}

// Handle describes a completed addition.
type Handle struct {
	Name   string                 // submodule name, equal to Path
	Path   string                 // root-relative, slash separated
	Dir    string                 // absolute working directory
	URL    string                 // remote URL
	Ref    plumbing.ReferenceName // pinned remote ref (branch or tag)
	Commit plumbing.Hash
}

// addition carries state from one stage to the next.
type addition struct {
	m    *Manager
	ctx  context.Context
	url  string
	path string
	opts Options

	sub      *git.Submodule
	subRepo  *git.Repository
	ref      plumbing.ReferenceName
	tracking plumbing.ReferenceName
	local    plumbing.ReferenceName
	commit   *object.Commit

	// modified is set once .gitmodules has been rewritten.
	modified bool
}

type step struct {
	stage Stage
	kind  error
	run   func(*addition) error
}

var steps = []step{
	{StageRegister, ErrSubmoduleCreateFailed, (*addition).register},
	{StageOpen, ErrSubmoduleCreateFailed, (*addition).open},
	{StageFetch, ErrFetchFailed, (*addition).fetch},
	{StageResolve, ErrRefResolutionFailed, (*addition).resolve},
	{StagePin, ErrCheckoutFailed, (*addition).pin},
	{StageCheckout, ErrCheckoutFailed, (*addition).checkout},
	{StageSetHead, ErrCheckoutFailed, (*addition).setHead},
	{StageFinalize, ErrFinalizeFailed, (*addition).finalize},
}

// Add registers a submodule for url at the root-relative path relPath,
// fetches the selected ref from origin and checks it out. On failure the
// returned *StageError names the stage; nothing is rolled back.
func (m *Manager) Add(ctx context.Context, url, relPath string, opts Options) (*Handle, error) {
	a := &addition{m: m, ctx: ctx, url: url, path: relPath, opts: opts}

	for _, s := range steps {
		log.Debug().Str("stage", s.stage.String()).Str("path", relPath).Str("url", url).Msg("submodule")
		if err := s.run(a); err != nil {
			return nil, &StageError{Stage: s.stage, Kind: s.kind, Path: relPath, Err: err, Modified: a.modified}
		}
	}

	return &Handle{
		Name:   relPath,
		Path:   relPath,
		Dir:    filepath.Join(m.root, filepath.FromSlash(relPath)),
		URL:    url,
		Ref:    a.ref,
		Commit: a.commit.Hash,
	}, nil
}

// register writes the .gitmodules record and initializes the submodule in
// the repository config.
func (a *addition) register() error {
	p := path.Clean(a.path)
	if p != a.path || p == "." || path.IsAbs(p) || strings.HasPrefix(p, "../") {
		return fmt.Errorf("invalid submodule path %q", a.path)
	}

	mods, err := a.m.readModules()
	if err != nil {
		return err
	}
	for name, s := range mods.Submodules {
		if s.Path == p || name == p {
			return fmt.Errorf("%s is already a submodule (%s)", p, s.URL)
		}
	}

	idx, err := a.m.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	for _, e := range idx.Entries {
		if e.Name == p || strings.HasPrefix(e.Name, p+"/") {
			return fmt.Errorf("%s is already tracked", p)
		}
	}

	entries, err := os.ReadDir(filepath.Join(a.m.root, filepath.FromSlash(p)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%s already exists and is not empty", p)
	}

	sc := &config.Submodule{Name: p, Path: p, URL: a.url, Branch: a.opts.Branch}
	if err := sc.Validate(); err != nil {
		return err
	}
	mods.Submodules[p] = sc
	if err := a.m.writeModules(mods); err != nil {
		return err
	}
	a.modified = true

	sub, err := a.m.wt.Submodule(p)
	if err != nil {
		return err
	}
	if err := sub.Init(); err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	a.sub = sub
	return nil
}

func (a *addition) open() error {
	r, err := a.sub.Repository()
	if err != nil {
		return err
	}
	a.subRepo = r
	return nil
}

// fetch lists the remote, picks the ref to pin and fetches only that ref.
func (a *addition) fetch() error {
	remote, err := a.subRepo.Remote(git.DefaultRemoteName)
	if err != nil {
		return fmt.Errorf("remote %q: %w", git.DefaultRemoteName, err)
	}

	refs, err := remote.ListContext(a.ctx, &git.ListOptions{})
	if err != nil {
		return fmt.Errorf("listing %s: %w", a.url, err)
	}

	ref, err := selectRef(refs, a.opts.Branch, a.opts.Constraint)
	if err != nil {
		return err
	}
	a.ref = ref
	a.tracking = trackingRef(git.DefaultRemoteName, ref)

	spec := config.RefSpec(fmt.Sprintf("+%s:%s", ref, a.tracking))
	err = remote.FetchContext(a.ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []config.RefSpec{spec},
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching %s: %w", ref.Short(), err)
	}

	log.Debug().Str("path", a.path).Str("ref", ref.String()).Msg("fetched")
	return nil
}

func (a *addition) resolve() error {
	ref, err := a.subRepo.Reference(a.tracking, true)
	if err != nil {
		return fmt.Errorf("%s: %w", a.tracking, err)
	}
	c, err := peelToCommit(a.subRepo, ref.Hash())
	if err != nil {
		return fmt.Errorf("%s: %w", a.tracking, err)
	}
	a.commit = c
	return nil
}

// pin creates or force-resets the local branch matching the pinned remote
// branch and makes it track origin. Tag pins have no local branch.
func (a *addition) pin() error {
	if !a.ref.IsBranch() {
		return nil
	}
	a.local = a.ref

	if err := a.subRepo.Storer.SetReference(plumbing.NewHashReference(a.local, a.commit.Hash)); err != nil {
		return err
	}

	cfg, err := a.subRepo.Config()
	if err != nil {
		return err
	}
	short := a.local.Short()
	cfg.Branches[short] = &config.Branch{Name: short, Remote: git.DefaultRemoteName, Merge: a.local}
	return a.subRepo.SetConfig(cfg)
}

// checkout must be forced: registration may have left files behind that a
// safe checkout would refuse to overwrite.
func (a *addition) checkout() error {
	w, err := a.subRepo.Worktree()
	if err != nil {
		return err
	}
	return w.Checkout(&git.CheckoutOptions{Hash: a.commit.Hash, Force: true})
}

func (a *addition) setHead() error {
	head := plumbing.NewHashReference(plumbing.HEAD, a.commit.Hash)
	if a.local != "" {
		head = plumbing.NewSymbolicReference(plumbing.HEAD, a.local)
	}
	return a.subRepo.Storer.SetReference(head)
}

// finalize stages .gitmodules and the gitlink for the new submodule, the
// equivalent of `git submodule add` leaving both in the index.
func (a *addition) finalize() error {
	idx, err := a.m.repo.Storer.Index()
	if err != nil {
		return err
	}
	if err := a.m.stageModulesFile(idx); err != nil {
		return err
	}

	e, err := idx.Entry(a.path)
	if errors.Is(err, index.ErrEntryNotFound) {
		e = idx.Add(a.path)
	} else if err != nil {
		return err
	}
	e.Hash = a.commit.Hash
	e.Mode = filemode.Submodule
	e.Size = 0
	e.ModifiedAt = a.commit.Committer.When
	e.CreatedAt = a.commit.Committer.When

	return a.m.setIndex(idx)
}

// peelToCommit resolves h to a commit, dereferencing annotated tags.
func peelToCommit(r *git.Repository, h plumbing.Hash) (*object.Commit, error) {
	if c, err := r.CommitObject(h); err == nil {
		return c, nil
	}
	tag, err := r.TagObject(h)
	if err != nil {
		return nil, fmt.Errorf("%s is neither a commit nor a tag: %w", h, err)
	}
	return tag.Commit()
}

func (m *Manager) readModules() (*config.Modules, error) {
	mods := config.NewModules()
	data, err := util.ReadFile(m.wt.Filesystem, gitmodulesFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mods, nil
		}
		return nil, err
	}
	if err := mods.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", gitmodulesFile, err)
	}
	return mods, nil
}

func (m *Manager) writeModules(mods *config.Modules) error {
	data, err := mods.Marshal()
	if err != nil {
		return err
	}
	return util.WriteFile(m.wt.Filesystem, gitmodulesFile, data, 0o644)
}

// stageModulesFile writes the current .gitmodules into the object store and
// points its index entry at it, removing the entry when the file is gone.
func (m *Manager) stageModulesFile(idx *index.Index) error {
	data, err := util.ReadFile(m.wt.Filesystem, gitmodulesFile)
	if errors.Is(err, fs.ErrNotExist) {
		if _, err := idx.Remove(gitmodulesFile); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
			return err
		}
		return nil
	}
	if err != nil {
		return err
	}

	obj := m.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	h, err := m.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return err
	}

	e, err := idx.Entry(gitmodulesFile)
	if errors.Is(err, index.ErrEntryNotFound) {
		e = idx.Add(gitmodulesFile)
	} else if err != nil {
		return err
	}
	e.Hash = h
	e.Mode = filemode.Regular
	e.Size = uint32(len(data))
	if fi, err := m.wt.Filesystem.Stat(gitmodulesFile); err == nil {
		e.ModifiedAt = fi.ModTime()
	}
	return nil
}

func (m *Manager) setIndex(idx *index.Index) error {
	sort.Slice(idx.Entries, func(i, j int) bool {
		return idx.Entries[i].Name < idx.Entries[j].Name
	})
	return m.repo.Storer.SetIndex(idx)
}
