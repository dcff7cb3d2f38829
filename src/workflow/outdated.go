package workflow

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/sync/errgroup"

	"github.com/amaranthinecodices/rodep/src/lockfile"
	"github.com/amaranthinecodices/rodep/src/submodule"
)

// CheckFunc reports what a fresh add of a pinned dependency would pin.
type CheckFunc func(ctx context.Context, url string, ref plumbing.ReferenceName, pinned plumbing.Hash, constraint *semver.Constraints) (*submodule.Status, error)

// Freshness is the outcome of checking one lock entry.
type Freshness struct {
	Entry  lockfile.Entry
	Status *submodule.Status
	Err    error
}

// Outdated checks every entry against its remote with at most jobs checks in
// flight. Nothing is written; results come back in entry order. check
// defaults to submodule.Check.
func Outdated(ctx context.Context, entries []lockfile.Entry, jobs int, check CheckFunc) []Freshness {
	if check == nil {
		check = submodule.Check
	}
	if jobs < 1 {
		jobs = 1
	}

	out := make([]Freshness, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, e := range entries {
		out[i].Entry = e
		g.Go(func() error {
			var constraint *semver.Constraints
			if e.Constraint != "" {
				c, err := semver.NewConstraint(e.Constraint)
				if err != nil {
					out[i].Err = fmt.Errorf("%s: constraint %q: %w", e.Name, e.Constraint, err)
					return nil
				}
				constraint = c
			}
			st, err := check(gctx, e.URL, plumbing.ReferenceName(e.Ref), plumbing.NewHash(e.Commit), constraint)
			if err != nil {
				out[i].Err = fmt.Errorf("%s: %w", e.Name, err)
				return nil
			}
			out[i].Status = st
			return nil
		})
	}
	// Per-entry failures are recorded in out; the group itself never fails.
	_ = g.Wait()
	return out
}
