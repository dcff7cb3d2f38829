package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		dirs    []string
		files   []string
		want    string
		wantErr error
	}{
		{name: "src", dirs: []string{"src"}, want: "src"},
		{name: "lib", dirs: []string{"lib"}, want: "lib"},
		{name: "src wins over lib", dirs: []string{"lib", "src"}, want: "src"},
		{name: "src file is ignored", dirs: []string{"lib"}, files: []string{"src"}, want: "lib"},
		{name: "nothing", dirs: []string{"docs"}, wantErr: ErrNoSourceLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, d := range tt.dirs {
				require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
			}
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(root, f), nil, 0o644))
			}

			got, err := Detect(root)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceDirOverride(t *testing.T) {
	root := t.TempDir()

	_, err := SourceDir(root, "")
	assert.ErrorIs(t, err, ErrCannotInferSourceDir)
	assert.ErrorIs(t, err, ErrNoSourceLayout)

	got, err := SourceDir(root, "./module/")
	require.NoError(t, err)
	assert.Equal(t, "module", got)

	require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
	got, err = SourceDir(root, "module")
	require.NoError(t, err)
	assert.Equal(t, "src", got)
}
