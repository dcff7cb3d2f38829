package submodule

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hashA = plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB = plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func branch(name string, h plumbing.Hash) *plumbing.Reference {
	return plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), h)
}

func tag(name string, h plumbing.Hash) *plumbing.Reference {
	return plumbing.NewHashReference(plumbing.NewTagReferenceName(name), h)
}

func TestSelectRef(t *testing.T) {
	tests := []struct {
		name    string
		refs    []*plumbing.Reference
		branch  string
		want    plumbing.ReferenceName
		wantErr bool
	}{
		{
			name: "symbolic head",
			refs: []*plumbing.Reference{
				plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main")),
				branch("main", hashA),
				branch("master", hashB),
			},
			want: "refs/heads/main",
		},
		{
			name: "hash head matches one branch",
			refs: []*plumbing.Reference{
				plumbing.NewHashReference(plumbing.HEAD, hashB),
				branch("develop", hashB),
				branch("master", hashA),
			},
			want: "refs/heads/develop",
		},
		{
			name: "hash head prefers master",
			refs: []*plumbing.Reference{
				plumbing.NewHashReference(plumbing.HEAD, hashA),
				branch("alpha", hashA),
				branch("master", hashA),
			},
			want: "refs/heads/master",
		},
		{
			name: "no head falls back to master",
			refs: []*plumbing.Reference{branch("master", hashA), branch("main", hashB)},
			want: "refs/heads/master",
		},
		{
			name:    "no head and no master",
			refs:    []*plumbing.Reference{branch("main", hashA)},
			wantErr: true,
		},
		{
			name:   "explicit branch",
			refs:   []*plumbing.Reference{branch("main", hashA), branch("stable", hashB)},
			branch: "stable",
			want:   "refs/heads/stable",
		},
		{
			name:    "explicit branch missing",
			refs:    []*plumbing.Reference{branch("main", hashA)},
			branch:  "stable",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectRef(tt.refs, tt.branch, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, errNoMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectTag(t *testing.T) {
	refs := []*plumbing.Reference{
		branch("master", hashA),
		tag("v1.0.0", hashA),
		tag("v1.2.0", hashB),
		tag("v1.2.0^{}", hashA),
		tag("1.10.1", hashB),
		tag("v2.0.0", hashA),
		tag("nightly", hashB),
	}

	tests := []struct {
		constraint string
		want       plumbing.ReferenceName
		wantErr    bool
	}{
		{constraint: "^1", want: "refs/tags/1.10.1"},
		{constraint: "~1.2", want: "refs/tags/v1.2.0"},
		{constraint: ">=2", want: "refs/tags/v2.0.0"},
		{constraint: "^3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			c, err := semver.NewConstraint(tt.constraint)
			require.NoError(t, err)

			got, err := selectRef(refs, "", c)
			if tt.wantErr {
				assert.ErrorIs(t, err, errNoMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
