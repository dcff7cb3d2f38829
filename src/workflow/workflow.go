// Package workflow drives batches of dependency additions and removals.
//
// Names are processed strictly in the order given, one to completion before
// the next starts: the enclosing repository and the project file are shared
// and unlocked between stages. A failure is recorded against its name and
// the batch moves on; only the caller decides whether the batch as a whole
// failed.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amaranthinecodices/rodep/src/layout"
	"github.com/amaranthinecodices/rodep/src/lockfile"
	"github.com/amaranthinecodices/rodep/src/project"
	"github.com/amaranthinecodices/rodep/src/resolve"
	"github.com/amaranthinecodices/rodep/src/submodule"
)

// Submodules is the VCS side of a batch.
type Submodules interface {
	Rel(abs string) (string, error)
	Add(ctx context.Context, url, relPath string, opts submodule.Options) (*submodule.Handle, error)
	Cleanup(relPath string) error
}

// Partitions is the project-file side of a batch.
type Partitions interface {
	Patch(ctx context.Context, configPath, name, srcRel, targetName string) (project.Partition, error)
	Remove(ctx context.Context, configPath, name string) (bool, error)
}

// Orchestrator wires the resolver, submodule manager, layout detector and
// partition patcher together.
type Orchestrator struct {
	BaseDir     string // directory lib_dir is relative to
	ProjectFile string // absolute path of the project file
	LockFile    string // absolute path of rodep.lock; empty disables recording
	LockDir     string // where advisory locks live; empty puts them next to each file

	Resolver   *resolve.Resolver
	Submodules Submodules
	Partitions Partitions

	// Notify, when set, is called after each name finishes.
	Notify func(Result)

	now func() time.Time
}

// AddOptions apply to every name of an add batch.
type AddOptions struct {
	SourceDir string        // fallback when no conventional source dir exists
	Target    string        // sync name; defaults to the cloned name
	Branch    string        // remote branch; defaults to the remote HEAD
	Timeout   time.Duration // bound on the VCS stages of one name; 0 = none
}

// Add resolves, adds, lays out and patches each token in order.
func (o *Orchestrator) Add(ctx context.Context, tokens []string, opts AddOptions) *Report {
	report := &Report{}
	for _, token := range tokens {
		start := o.clock()
		res := o.addOne(ctx, token, opts)
		res.Elapsed = o.clock().Sub(start)
		o.finish(report, res)
	}
	return report
}

func (o *Orchestrator) addOne(ctx context.Context, token string, opts AddOptions) Result {
	res := Result{Token: token}

	dep, err := o.Resolver.Resolve(token)
	if err != nil {
		return res.fail(StepResolve, err)
	}
	res.Dependency = dep

	rel, err := o.Submodules.Rel(o.destination(dep))
	if err != nil {
		return res.fail(StepSubmodule, &submodule.StageError{
			Stage: submodule.StageRegister,
			Kind:  submodule.ErrSubmoduleCreateFailed,
			Path:  dep.Path,
			Err:   err,
		})
	}

	vcsCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		vcsCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	handle, err := o.Submodules.Add(vcsCtx, dep.URL, rel, submodule.Options{
		Branch:     opts.Branch,
		Constraint: dep.Constraint,
	})
	if err != nil {
		return res.fail(StepSubmodule, err)
	}
	res.Handle = handle

	srcDir, err := layout.SourceDir(handle.Dir, opts.SourceDir)
	if err != nil {
		return res.fail(StepLayout, err)
	}
	res.SourceDir = srcDir

	part, err := o.Partitions.Patch(ctx, o.ProjectFile, dep.Name, srcDir, opts.Target)
	if err != nil {
		return res.fail(StepPatch, err)
	}
	res.Partition = part

	if o.LockFile != "" {
		entry := lockfile.Entry{
			Name:       dep.Name,
			Source:     dep.Source,
			URL:        dep.URL,
			Path:       dep.Path,
			Constraint: dep.Range,
			Ref:        handle.Ref.String(),
			Commit:     handle.Commit.String(),
			Partition:  part.Key,
			AddedAt:    o.clock().UTC(),
		}
		if err := lockfile.Update(ctx, o.LockFile, o.LockDir, func(f *lockfile.File) { f.Put(entry) }); err != nil {
			return res.fail(StepRecord, fmt.Errorf("%w: %s: %w", project.ErrIO, o.LockFile, err))
		}
	}

	return res
}

// Remove undoes Add for each token. A token may be a locked dependency
// name or anything Add accepts.
func (o *Orchestrator) Remove(ctx context.Context, tokens []string) *Report {
	report := &Report{}

	var locked *lockfile.File
	if o.LockFile != "" {
		f, err := lockfile.Load(o.LockFile)
		if err != nil {
			log.Warn().Err(err).Str("file", o.LockFile).Msg("ignoring unreadable lockfile")
		} else {
			locked = f
		}
	}

	for _, token := range tokens {
		start := o.clock()
		res := o.removeOne(ctx, token, locked)
		res.Elapsed = o.clock().Sub(start)
		o.finish(report, res)
	}
	return report
}

func (o *Orchestrator) removeOne(ctx context.Context, token string, locked *lockfile.File) Result {
	res := Result{Token: token}

	var dep *resolve.Dependency
	if e, ok := lookup(locked, token); ok {
		dep = &resolve.Dependency{Source: e.Source, Name: e.Name, URL: e.URL, Path: e.Path}
	} else {
		d, err := o.Resolver.Resolve(token)
		if err != nil {
			return res.fail(StepResolve, err)
		}
		dep = d
	}
	res.Dependency = dep

	rel, err := o.Submodules.Rel(o.destination(dep))
	if err != nil {
		return res.fail(StepSubmodule, err)
	}
	if err := o.Submodules.Cleanup(rel); err != nil {
		return res.fail(StepSubmodule, err)
	}

	if _, err := o.Partitions.Remove(ctx, o.ProjectFile, dep.Name); err != nil {
		return res.fail(StepPatch, err)
	}
	res.Partition = project.Partition{Key: project.Key(dep.Name)}

	if o.LockFile != "" {
		if err := lockfile.Update(ctx, o.LockFile, o.LockDir, func(f *lockfile.File) { f.Delete(dep.Name) }); err != nil {
			return res.fail(StepRecord, fmt.Errorf("%w: %s: %w", project.ErrIO, o.LockFile, err))
		}
	}
	return res
}

// destination is where dep is cloned on disk.
func (o *Orchestrator) destination(dep *resolve.Dependency) string {
	p := filepath.FromSlash(dep.Path)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.BaseDir, p)
}

func lookup(f *lockfile.File, token string) (lockfile.Entry, bool) {
	if f == nil {
		return lockfile.Entry{}, false
	}
	return f.Get(token)
}

func (o *Orchestrator) finish(report *Report, res Result) {
	if res.Err != nil {
		ev := log.Debug().Str("token", res.Token).Str("step", string(res.Step)).Str("kind", res.Kind()).Err(res.Err)
		var se *submodule.StageError
		if errors.As(res.Err, &se) {
			ev = ev.Str("stage", se.Stage.String())
		}
		ev.Msg("dependency failed")
		if se != nil && se.Partial() {
			log.Warn().Str("path", se.Path).Msgf("%s is partially registered; `rodep remove %s` cleans it up", se.Path, res.Name())
		}
	}
	report.Results = append(report.Results, res)
	if o.Notify != nil {
		o.Notify(res)
	}
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}
