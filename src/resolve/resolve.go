// Package resolve turns short dependency names such as "foo/bar" into
// fully qualified repository URLs and the on-disk destination they are
// cloned to.
package resolve

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultBaseURL is the hosting origin bare names are joined against.
const DefaultBaseURL = "https://github.com/"

// ErrInvalidName is returned for tokens that cannot be joined into a usable
// repository URL.
var ErrInvalidName = errors.New("invalid dependency name")

// clonedNameRe restricts cloned names to what is safe as a directory name,
// a partition key and a sync target.
var clonedNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Dependency is one resolved CLI argument. It is immutable once returned.
type Dependency struct {
	Source     string              // token as given, without any @constraint suffix
	Name       string              // cloned name: last path segment of URL, ".git" stripped
	URL        string              // resolved remote location
	Path       string              // destination: <lib_dir>/<Name>, slash separated
	Constraint *semver.Constraints // nil when the default branch should be tracked
	Range      string              // raw constraint text, "" when Constraint is nil
}

// Resolver joins names against a base location. The base is injected so
// tests and self-hosted setups can substitute their own origin.
type Resolver struct {
	base   *url.URL
	libDir string
}

// New creates a resolver for base (DefaultBaseURL when empty) placing
// dependencies under libDir.
func New(base, libDir string) (*Resolver, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", base, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("base URL %q must be absolute", base)
	}
	return &Resolver{base: u, libDir: libDir}, nil
}

// Base returns the hosting origin in use.
func (r *Resolver) Base() string {
	return r.base.String()
}

// Resolve turns a token into a Dependency. A token may carry a version
// constraint suffix: "foo/bar@^1.2".
func (r *Resolver) Resolve(token string) (*Dependency, error) {
	source, rng := splitConstraint(token)

	var constraint *semver.Constraints
	if rng != "" {
		c, err := semver.NewConstraint(rng)
		if err != nil {
			return nil, fmt.Errorf("%w %q: version constraint %q: %v", ErrInvalidName, token, rng, err)
		}
		constraint = c
	}

	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w %q: empty", ErrInvalidName, token)
	}

	ref, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidName, token, err)
	}
	if ref.RawQuery != "" || ref.Fragment != "" {
		return nil, fmt.Errorf("%w %q: query and fragment are not allowed", ErrInvalidName, token)
	}

	resolved := r.base.ResolveReference(ref)
	name, err := ClonedName(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidName, token, err)
	}

	return &Dependency{
		Source:     source,
		Name:       name,
		URL:        resolved.String(),
		Path:       path.Join(filepath.ToSlash(r.libDir), name),
		Constraint: constraint,
		Range:      rng,
	}, nil
}

// ClonedName returns the canonical identifier for a repository URL: its last
// path segment with any ".git" suffix removed, matching the directory name
// `git clone` would choose.
func ClonedName(u *url.URL) (string, error) {
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return "", errors.New("no repository path segment")
	}
	name := strings.TrimSuffix(path.Base(p), ".git")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("unusable path segment %q", path.Base(p))
	}
	if !clonedNameRe.MatchString(name) {
		return "", fmt.Errorf("path segment %q contains characters outside [A-Za-z0-9_.-]", name)
	}
	return name, nil
}

// splitConstraint separates a trailing "@constraint". An '@' followed by a
// path or a port (as in user@host/...) is part of the URL, not a constraint.
func splitConstraint(token string) (source, rng string) {
	i := strings.LastIndex(token, "@")
	if i < 0 {
		return token, ""
	}
	suffix := token[i+1:]
	if strings.ContainsAny(suffix, "/:") {
		return token, ""
	}
	return token[:i], strings.TrimSpace(suffix)
}
