package resolve

import (
	"net/url"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New("", "lib")
	require.NoError(t, err)
	return r
}

func TestResolveScenario(t *testing.T) {
	dep, err := newResolver(t).Resolve("foo/bar")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/foo/bar", dep.URL)
	assert.Equal(t, "bar", dep.Name)
	assert.Equal(t, "lib/bar", dep.Path)
	assert.Equal(t, "foo/bar", dep.Source)
	assert.Nil(t, dep.Constraint)
}

// The name is the last URL segment with a trailing ".git" dropped, the same
// directory name `git clone` picks. The URL itself keeps the suffix.
func TestResolveScenarioGitSuffix(t *testing.T) {
	dep, err := newResolver(t).Resolve("foo/bar.git")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/foo/bar.git", dep.URL)
	assert.Equal(t, "bar", dep.Name)
	assert.Equal(t, "lib/bar", dep.Path)
	assert.Equal(t, "foo/bar.git", dep.Source)
}

func TestResolveKeepsLastSegment(t *testing.T) {
	r := newResolver(t)
	for _, token := range []string{
		"foo/bar",
		"Roblox/roact",
		"some-org/my-lib",
		"evaera/promise",
		"x/y.z",
		"solo",
		"a/b_c-d",
	} {
		t.Run(token, func(t *testing.T) {
			dep, err := r.Resolve(token)
			require.NoError(t, err)

			u, err := url.Parse(dep.URL)
			require.NoError(t, err)
			assert.Equal(t, path.Base(token), path.Base(u.Path))
			assert.Equal(t, path.Base(token), dep.Name)
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	r := newResolver(t)
	for _, token := range []string{
		"",
		"   ",
		"foo/",
		"foo/bar baz",
		"foo/bar?ref=x",
		"foo/bar#main",
		"foo/..",
		"foo/bar@not a version",
		"foo/\x7fbar",
	} {
		t.Run(token, func(t *testing.T) {
			_, err := r.Resolve(token)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestResolveConstraint(t *testing.T) {
	dep, err := newResolver(t).Resolve("foo/bar@^1.2")
	require.NoError(t, err)

	assert.Equal(t, "foo/bar", dep.Source)
	assert.Equal(t, "https://github.com/foo/bar", dep.URL)
	assert.Equal(t, "^1.2", dep.Range)
	require.NotNil(t, dep.Constraint)
}

func TestResolveAbsoluteURL(t *testing.T) {
	dep, err := newResolver(t).Resolve("https://gitlab.com/group/thing.git")
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.com/group/thing.git", dep.URL)
	assert.Equal(t, "thing", dep.Name)
	assert.Equal(t, "lib/thing", dep.Path)
}

func TestResolveUserInfoIsNotConstraint(t *testing.T) {
	dep, err := newResolver(t).Resolve("https://me@example.com/org/repo")
	require.NoError(t, err)

	assert.Nil(t, dep.Constraint)
	assert.Equal(t, "repo", dep.Name)
}

func TestInjectedBase(t *testing.T) {
	r, err := New("file:///srv/mirrors", "packages")
	require.NoError(t, err)

	dep, err := r.Resolve("foo/bar")
	require.NoError(t, err)

	assert.Equal(t, "file:///srv/mirrors/foo/bar", dep.URL)
	assert.Equal(t, "packages/bar", dep.Path)
}

func TestNewRejectsRelativeBase(t *testing.T) {
	_, err := New("github.com", "lib")
	assert.Error(t, err)
}
