package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rojoFixture = `{
  "name": "game",
  "tree": {
    "$className": "DataModel"
  },
  "partitions": {
    "main": {
      "path": "src",
      "target": "ReplicatedStorage.Main"
    }
  }
}
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rojo.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPatchScenario(t *testing.T) {
	path := writeProject(t, rojoFixture)
	p := &Patcher{LibDir: "lib", LibTarget: "ReplicatedStorage"}

	part, err := p.Patch(context.Background(), path, "bar", "src", "")
	require.NoError(t, err)
	assert.Equal(t, Partition{Key: "__rodep_auto_bar", Path: "lib/bar/src", Target: "ReplicatedStorage.bar"}, part)

	parts, err := Partitions(path)
	require.NoError(t, err)
	assert.Equal(t, []Partition{
		{Key: "main", Path: "src", Target: "ReplicatedStorage.Main"},
		{Key: "__rodep_auto_bar", Path: "lib/bar/src", Target: "ReplicatedStorage.bar"},
	}, parts)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"name\": \"game\",\n  \"tree\""), "document order preserved:\n%s", data)
}

func TestPatchTargetOverride(t *testing.T) {
	path := writeProject(t, rojoFixture)
	p := &Patcher{LibDir: "lib", LibTarget: "ReplicatedStorage"}

	part, err := p.Patch(context.Background(), path, "roact", "lib", "Roact")
	require.NoError(t, err)
	assert.Equal(t, "lib/roact/lib", part.Path)
	assert.Equal(t, "ReplicatedStorage.Roact", part.Target)
}

func TestPatchCreatesPartitions(t *testing.T) {
	path := writeProject(t, `{"name": "bare"}`)
	p := &Patcher{LibDir: "lib", LibTarget: "ServerStorage"}

	_, err := p.Patch(context.Background(), path, "foo", "src", "")
	require.NoError(t, err)

	parts, err := Partitions(path)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "ServerStorage.foo", parts[0].Target)
}

// Re-adding a dependency replaces its entry silently; this is the documented
// behaviour, not an accident.
func TestPatchOverwritesExistingEntry(t *testing.T) {
	path := writeProject(t, rojoFixture)
	p := &Patcher{LibDir: "lib", LibTarget: "ReplicatedStorage"}
	ctx := context.Background()

	_, err := p.Patch(ctx, path, "foo", "src", "")
	require.NoError(t, err)
	_, err = p.Patch(ctx, path, "foo", "lib", "Foo")
	require.NoError(t, err)

	parts, err := Partitions(path)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, Partition{Key: "__rodep_auto_foo", Path: "lib/foo/lib", Target: "ReplicatedStorage.Foo"}, parts[1])
}

func TestPatchErrors(t *testing.T) {
	p := &Patcher{LibDir: "lib", LibTarget: "ReplicatedStorage"}
	ctx := context.Background()

	tests := map[string]string{
		"missing file":          "",
		"invalid json":          `{"partitions": `,
		"top-level array":       `[]`,
		"partitions not object": `{"partitions": []}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rojo.json")
			if content != "" {
				require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			}
			_, err := p.Patch(ctx, path, "foo", "src", "")
			assert.ErrorIs(t, err, ErrIO)

			if content != "" {
				data, readErr := os.ReadFile(path)
				require.NoError(t, readErr)
				assert.Equal(t, content, string(data), "file must be untouched on failure")
			}
		})
	}
}

func TestRemove(t *testing.T) {
	path := writeProject(t, rojoFixture)
	p := &Patcher{LibDir: "lib", LibTarget: "ReplicatedStorage"}
	ctx := context.Background()

	_, err := p.Patch(ctx, path, "foo", "src", "")
	require.NoError(t, err)

	removed, err := p.Remove(ctx, path, "foo")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = p.Remove(ctx, path, "foo")
	require.NoError(t, err)
	assert.False(t, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rojoFixture, string(data))
}

func TestConcurrentPatchesKeepEveryEntry(t *testing.T) {
	path := writeProject(t, rojoFixture)
	p := &Patcher{LibDir: "lib", LibTarget: "ReplicatedStorage"}
	ctx := context.Background()

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	errs := make(chan error, len(names))
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_, err := p.Patch(ctx, path, n, "src", "")
			errs <- err
		}(n)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	parts, err := Partitions(path)
	require.NoError(t, err)
	assert.Len(t, parts, len(names)+1)
}

func TestPatchLockDir(t *testing.T) {
	path := writeProject(t, rojoFixture)
	lockDir := t.TempDir()
	p := &Patcher{LibDir: "lib", LibTarget: "ReplicatedStorage", LockDir: lockDir}

	_, err := p.Patch(context.Background(), path, "bar", "src", "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(lockDir, "rojo.json.lock"), p.LockPath(path))
	assert.FileExists(t, filepath.Join(lockDir, "rojo.json.lock"))
	assert.NoFileExists(t, path+".lock")
}
