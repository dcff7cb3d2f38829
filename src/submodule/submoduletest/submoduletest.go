// Package submoduletest builds throwaway git repositories for tests: bare
// "remotes" served in-process over the file transport, and working projects
// to add submodules to.
package submoduletest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

var installOnce sync.Once

// InstallFileTransport serves file:// URLs with go-git's in-process server
// so tests do not depend on a git binary.
func InstallFileTransport() {
	installOnce.Do(func() {
		client.InstallProtocol("file", server.DefaultServer)
	})
}

var signature = object.Signature{
	Name:  "rodep test",
	Email: "test@rodep.invalid",
	When:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
}

// Remote is a bare repository on disk with an in-memory worktree used to
// author commits.
type Remote struct {
	Dir  string
	Repo *git.Repository
	t    testing.TB
}

// NewRemote creates a bare repository at dir whose default branch is
// defaultBranch, with one commit holding files.
func NewRemote(t testing.TB, dir, defaultBranch string, files map[string]string) *Remote {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir remote: %v", err)
	}

	storer := filesystem.NewStorage(osfs.New(dir), cache.NewObjectLRUDefault())
	repo, err := git.InitWithOptions(storer, memfs.New(), git.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
	})
	if err != nil {
		t.Fatalf("init remote: %v", err)
	}

	r := &Remote{Dir: dir, Repo: repo, t: t}
	r.Commit("initial", files)
	return r
}

// URL returns the remote's file:// URL.
func (r *Remote) URL() string {
	return "file://" + filepath.ToSlash(r.Dir)
}

// Commit writes files to the worktree and commits them on the current branch.
func (r *Remote) Commit(msg string, files map[string]string) plumbing.Hash {
	r.t.Helper()
	wt, err := r.Repo.Worktree()
	if err != nil {
		r.t.Fatalf("remote worktree: %v", err)
	}
	for name, content := range files {
		if err := util.WriteFile(wt.Filesystem, name, []byte(content), 0o644); err != nil {
			r.t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		r.t.Fatalf("add: %v", err)
	}
	sig := signature
	h, err := wt.Commit(msg, &git.CommitOptions{Author: &sig, Committer: &sig, AllowEmptyCommits: true})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	return h
}

// Head returns the commit the current branch points at.
func (r *Remote) Head() plumbing.Hash {
	r.t.Helper()
	ref, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("remote head: %v", err)
	}
	return ref.Hash()
}

// Tag creates a tag at the current head; annotated tags carry a message.
func (r *Remote) Tag(name string, annotated bool) {
	r.t.Helper()
	var opts *git.CreateTagOptions
	if annotated {
		sig := signature
		opts = &git.CreateTagOptions{Tagger: &sig, Message: name}
	}
	if _, err := r.Repo.CreateTag(name, r.Head(), opts); err != nil {
		r.t.Fatalf("tag %s: %v", name, err)
	}
}

// NewProject creates a non-bare repository with one commit and returns its
// directory.
func NewProject(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# project\n"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("project worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("add readme: %v", err)
	}
	sig := signature
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: &sig, Committer: &sig}); err != nil {
		t.Fatalf("commit project: %v", err)
	}
	return dir
}
