package workflow

import (
	"errors"
	"time"

	"github.com/amaranthinecodices/rodep/src/layout"
	"github.com/amaranthinecodices/rodep/src/project"
	"github.com/amaranthinecodices/rodep/src/resolve"
	"github.com/amaranthinecodices/rodep/src/submodule"
)

// Step is the part of the workflow a result stopped in.
type Step string

const (
	StepResolve   Step = "resolve"
	StepSubmodule Step = "submodule"
	StepLayout    Step = "layout"
	StepPatch     Step = "patch"
	StepRecord    Step = "record"
)

// Result is the outcome for one requested name.
type Result struct {
	Token      string
	Dependency *resolve.Dependency
	Handle     *submodule.Handle
	SourceDir  string
	Partition  project.Partition
	Elapsed    time.Duration

	Step Step  // set on failure
	Err  error // nil on success
}

// OK reports whether the name completed.
func (r Result) OK() bool { return r.Err == nil }

// Name returns the cloned name when resolution succeeded, else the token.
func (r Result) Name() string {
	if r.Dependency != nil {
		return r.Dependency.Name
	}
	return r.Token
}

// Kind classifies Err into one of the user-facing error kinds.
func (r Result) Kind() string {
	if r.Err == nil {
		return ""
	}
	return KindOf(r.Err)
}

func (r Result) fail(step Step, err error) Result {
	r.Step = step
	r.Err = err
	return r
}

var kinds = []struct {
	err  error
	name string
}{
	{resolve.ErrInvalidName, "InvalidName"},
	{submodule.ErrNoRepository, "NoRepository"},
	{submodule.ErrSubmoduleCreateFailed, "SubmoduleCreateFailed"},
	{submodule.ErrFetchFailed, "FetchFailed"},
	{submodule.ErrRefResolutionFailed, "RefResolutionFailed"},
	{submodule.ErrCheckoutFailed, "CheckoutFailed"},
	{submodule.ErrFinalizeFailed, "FinalizeFailed"},
	{layout.ErrCannotInferSourceDir, "CannotInferSourceDir"},
	{layout.ErrNoSourceLayout, "NoSourceLayout"},
	{project.ErrIO, "IoError"},
}

// KindOf names the error kind err belongs to, or "Error" when it matches none.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Error"
}

// Report collects the results of a batch in request order.
type Report struct {
	Results []Result
}

// Failed returns the results that did not complete.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Succeeded returns the results that completed.
func (r *Report) Succeeded() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}
