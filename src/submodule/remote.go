package submodule

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Status compares a pinned commit with what its remote advertises.
type Status struct {
	URL       string
	Ref       plumbing.ReferenceName // ref the dependency was pinned from
	Pinned    plumbing.Hash
	LatestRef plumbing.ReferenceName // ref a fresh add would pin
	Latest    plumbing.Hash          // commit LatestRef points at
}

// Outdated reports whether a fresh add would pin something else. Tags are
// compared by name since an annotated tag may be advertised unpeeled.
func (s *Status) Outdated() bool {
	if s.Ref.IsTag() && s.LatestRef.IsTag() {
		return s.Ref != s.LatestRef
	}
	return s.LatestRef != s.Ref || s.Latest != s.Pinned
}

// Check lists url without cloning and works out what a fresh add with the
// same options would pin. Branch pins follow the same branch; tag pins pick
// the highest tag satisfying constraint again.
func Check(ctx context.Context, url string, ref plumbing.ReferenceName, pinned plumbing.Hash, constraint *semver.Constraints) (*Status, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrFetchFailed, url, err)
	}

	st := &Status{URL: url, Ref: ref, Pinned: pinned}

	switch {
	case constraint != nil:
		st.LatestRef, err = selectTag(refs, constraint)
	case ref.IsBranch():
		st.LatestRef, err = selectRef(refs, ref.Short(), nil)
	default:
		st.LatestRef, err = selectRef(refs, "", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRefResolutionFailed, url, err)
	}

	h, ok := advertised(refs, st.LatestRef)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not advertise %s", ErrRefResolutionFailed, url, st.LatestRef)
	}
	st.Latest = h
	return st, nil
}

// advertised returns the commit name points at, preferring the peeled
// entry of an annotated tag.
func advertised(refs []*plumbing.Reference, name plumbing.ReferenceName) (plumbing.Hash, bool) {
	var (
		direct plumbing.Hash
		found  bool
	)
	peeled := plumbing.ReferenceName(name.String() + "^{}")
	for _, r := range refs {
		switch r.Name() {
		case peeled:
			return r.Hash(), true
		case name:
			if r.Type() == plumbing.HashReference {
				direct, found = r.Hash(), true
			}
		}
	}
	return direct, found
}
