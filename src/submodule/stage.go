package submodule

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by Manager.Add wraps exactly one of
// these inside a *StageError.
var (
	ErrNoRepository          = errors.New("no enclosing git repository")
	ErrSubmoduleCreateFailed = errors.New("submodule create failed")
	ErrFetchFailed           = errors.New("fetch failed")
	ErrRefResolutionFailed   = errors.New("ref resolution failed")
	ErrCheckoutFailed        = errors.New("checkout failed")
	ErrFinalizeFailed        = errors.New("finalize failed")
)

// Stage names one step of a submodule addition.
type Stage int

const (
	StageDiscover Stage = iota + 1
	StageRegister
	StageOpen
	StageFetch
	StageResolve
	StagePin
	StageCheckout
	StageSetHead
	StageFinalize
)

var stageNames = map[Stage]string{
	StageDiscover: "discover",
	StageRegister: "register",
	StageOpen:     "open",
	StageFetch:    "fetch",
	StageResolve:  "resolve",
	StagePin:      "pin",
	StageCheckout: "checkout",
	StageSetHead:  "set-head",
	StageFinalize: "finalize",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError reports the step a submodule addition stopped at. Steps before
// Stage have already modified the enclosing repository and are not undone;
// see Manager.Cleanup.
type StageError struct {
	Stage Stage
	Kind  error
	Path  string
	Err   error

	// Modified is set when the failing stage had already written to the
	// repository, e.g. register after rewriting .gitmodules.
	Modified bool
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s at stage %s (%s): %v", e.Kind, e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Partial reports whether the enclosing repository was modified before the
// failure, i.e. whether Cleanup is needed.
func (e *StageError) Partial() bool {
	return e.Modified || e.Stage > StageRegister
}
