package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "<1ms"},
		{42 * time.Millisecond, "42ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30.0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.d))
	}
}

func TestSectionResults(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Add", 0, false)
	SectionResults(sec, []ResultRow{
		{Name: "bar", Status: StatusOK, Detail: "__rodep_auto_bar → ReplicatedStorage.bar"},
		{Name: "baz", Status: StatusFailed, Kind: "FetchFailed", Detail: "fetch: repository not found\nmore"},
	}, false)
	SectionSummary(sec, 1, 1, 2*time.Second, false)
	sec.Close()

	out := buf.String()
	assert.Contains(t, out, "── Add ─")
	assert.Contains(t, out, "│ ✓ bar")
	assert.Contains(t, out, "│ ✗ baz")
	assert.Contains(t, out, "FetchFailed fetch: repository not found …")
	assert.NotContains(t, out, "more")
	assert.Contains(t, out, "1 ok, 1 failed")
	assert.True(t, strings.HasSuffix(out, "─\n"))
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"name", "ref"}, [][]string{
		{"bar", "refs/heads/master"},
		{"roact", "refs/tags/v1.0.0"},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAME   REF", lines[0])
	assert.Equal(t, "bar    refs/heads/master", lines[1])
}

func TestUseColorRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CI", "true")
	assert.False(t, UseColor(&bytes.Buffer{}))
}

func TestUseColorNonTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "xterm")
	t.Setenv("CI", "")
	assert.False(t, UseColor(&bytes.Buffer{}))
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "✓", StatusOK.Icon(false))
	assert.Equal(t, "✗", StatusFailed.Icon(false))
	assert.Equal(t, "⊘", StatusSkipped.Icon(false))
	assert.Equal(t, colorGreen+"✓"+colorReset, StatusOK.Icon(true))
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	Progress(&buf, 1, 3, ResultRow{Name: "bar", Status: StatusOK, Elapsed: 42 * time.Millisecond}, false)
	Progress(&buf, 2, 3, ResultRow{Name: "baz", Status: StatusFailed, Kind: "FetchFailed"}, false)

	assert.Equal(t, "    [1/3] ✓ bar 42ms\n    [2/3] ✗ baz FetchFailed\n", buf.String())
}
