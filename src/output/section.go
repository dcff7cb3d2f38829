package output

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const sectionWidth = 61 // inner width between │ and line end

// Section renders a box-drawing framed block of rows.
type Section struct {
	w     io.Writer
	name  string
	color bool
}

// NewSection writes the section header. A non-zero elapsed is shown
// right-aligned in the header.
func NewSection(w io.Writer, name string, elapsed time.Duration, color bool) *Section {
	s := &Section{w: w, name: name, color: color}
	s.writeHeader(elapsed)
	return s
}

// Row writes a content line inside the frame.
func (s *Section) Row(format string, args ...any) {
	fmt.Fprintf(s.w, "    │ %s\n", fmt.Sprintf(format, args...))
}

// Separator writes a mid-section divider.
func (s *Section) Separator() {
	fmt.Fprintf(s.w, "    ├%s\n", strings.Repeat("─", sectionWidth))
}

// Close writes the footer.
func (s *Section) Close() {
	fmt.Fprintf(s.w, "    └%s\n", strings.Repeat("─", sectionWidth))
}

// writeHeader renders: ── Name ──────────────────── elapsed ──
func (s *Section) writeHeader(elapsed time.Duration) {
	label := fmt.Sprintf("── %s ", s.name)
	suffix := "──"
	if elapsed > 0 {
		suffix = fmt.Sprintf(" %s ──", formatElapsed(elapsed))
	}

	fill := sectionWidth + 4 - len([]rune(label)) - len([]rune(suffix))
	if fill < 1 {
		fill = 1
	}
	line := label + strings.Repeat("─", fill) + suffix

	if s.color {
		fmt.Fprintf(s.w, "\n    %s%s%s\n", colorDimCyan, line, colorReset)
	} else {
		fmt.Fprintf(s.w, "\n    %s\n", line)
	}
}

// Status is the outcome shown next to a row.
type Status int

const (
	StatusSkipped Status = iota
	StatusOK
	StatusFailed
)

// Icon returns the status glyph, colored when color is set.
func (st Status) Icon(color bool) string {
	var glyph, c string
	switch st {
	case StatusOK:
		glyph, c = "✓", colorGreen
	case StatusFailed:
		glyph, c = "✗", colorRed
	default:
		glyph, c = "⊘", colorYellow
	}
	if !color {
		return glyph
	}
	return c + glyph + colorReset
}

// Dimmed returns dimmed text if color is enabled.
func Dimmed(text string, color bool) string {
	if !color {
		return text
	}
	return colorGray + text + colorReset
}

// KV is a key-value pair for ContextBlock.
type KV struct {
	Key   string
	Value string
}

// ContextBlock prints aligned key-value pairs ahead of the first section.
func ContextBlock(w io.Writer, kv []KV) {
	if len(kv) == 0 {
		return
	}
	width := 0
	for _, p := range kv {
		if len(p.Key) > width {
			width = len(p.Key)
		}
	}
	fmt.Fprintln(w)
	for _, p := range kv {
		fmt.Fprintf(w, "    %-*s  %s\n", width, p.Key, p.Value)
	}
}

// formatElapsed formats a duration for section headers and summaries.
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}
