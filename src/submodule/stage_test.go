package submodule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageErrorPartial(t *testing.T) {
	tests := []struct {
		name string
		err  StageError
		want bool
	}{
		{"discover", StageError{Stage: StageDiscover}, false},
		{"register rejected", StageError{Stage: StageRegister}, false},
		{"register after .gitmodules write", StageError{Stage: StageRegister, Modified: true}, true},
		{"fetch", StageError{Stage: StageFetch}, true},
		{"finalize", StageError{Stage: StageFinalize}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Partial())
		})
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&StageError{Stage: StageFetch, Kind: ErrFetchFailed, Path: "lib/x", Err: cause})

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "fetch failed at stage fetch (lib/x): boom", err.Error())
}
