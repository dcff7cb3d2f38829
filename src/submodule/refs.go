package submodule

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5/plumbing"
)

// DefaultBranch is assumed when the remote does not advertise its HEAD.
const DefaultBranch = "master"

var errNoMatch = errors.New("no matching ref on remote")

// selectRef picks the remote ref to pin, from the refs advertised by the
// remote. In order of precedence: the highest tag satisfying constraint, the
// explicit branch, the branch the remote HEAD points at, DefaultBranch.
func selectRef(refs []*plumbing.Reference, branch string, constraint *semver.Constraints) (plumbing.ReferenceName, error) {
	if constraint != nil {
		return selectTag(refs, constraint)
	}

	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, r := range refs {
		byName[r.Name()] = r
	}

	if branch != "" {
		name := plumbing.NewBranchReferenceName(branch)
		if _, ok := byName[name]; !ok {
			return "", fmt.Errorf("%w: remote has no branch %q", errNoMatch, branch)
		}
		return name, nil
	}

	if head, ok := byName[plumbing.HEAD]; ok {
		if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
			if _, ok := byName[head.Target()]; ok {
				return head.Target(), nil
			}
		}
		if head.Type() == plumbing.HashReference {
			if name := branchAt(refs, head.Hash()); name != "" {
				return name, nil
			}
		}
	}

	name := plumbing.NewBranchReferenceName(DefaultBranch)
	if _, ok := byName[name]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: remote advertises no HEAD and has no branch %q", errNoMatch, DefaultBranch)
}

// branchAt returns the branch pointing at h, preferring DefaultBranch, then
// "main", then the first in name order.
func branchAt(refs []*plumbing.Reference, h plumbing.Hash) plumbing.ReferenceName {
	var names []string
	for _, r := range refs {
		if r.Name().IsBranch() && r.Type() == plumbing.HashReference && r.Hash() == h {
			names = append(names, r.Name().Short())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	for _, pref := range []string{DefaultBranch, "main"} {
		for _, n := range names {
			if n == pref {
				return plumbing.NewBranchReferenceName(n)
			}
		}
	}
	return plumbing.NewBranchReferenceName(names[0])
}

// selectTag returns the highest semver tag satisfying constraint.
func selectTag(refs []*plumbing.Reference, constraint *semver.Constraints) (plumbing.ReferenceName, error) {
	var (
		best    *semver.Version
		bestRef plumbing.ReferenceName
	)
	for _, r := range refs {
		name := r.Name()
		if !name.IsTag() || strings.HasSuffix(name.String(), "^{}") {
			continue
		}
		v, err := semver.NewVersion(name.Short())
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRef = v, name
		}
	}
	if best == nil {
		return "", fmt.Errorf("%w: no tag satisfies %s", errNoMatch, constraint)
	}
	return bestRef, nil
}

// trackingRef is where a fetched remote ref is stored locally.
func trackingRef(remote string, ref plumbing.ReferenceName) plumbing.ReferenceName {
	if ref.IsBranch() {
		return plumbing.NewRemoteReferenceName(remote, ref.Short())
	}
	return ref
}
