package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// ResultRow is the view model for one dependency in a batch.
type ResultRow struct {
	Name    string
	Status  Status
	Detail  string // partition written, or the error
	Kind    string // error kind, failures only
	Elapsed time.Duration
}

// SectionResults renders one line per row, in the order given, with failure
// details indented underneath.
func SectionResults(sec *Section, rows []ResultRow, color bool) {
	for _, r := range rows {
		elapsed := ""
		if r.Elapsed > 0 {
			elapsed = Dimmed(formatElapsed(r.Elapsed), color)
		}
		sec.Row("%s %-24s %s", r.Status.Icon(color), r.Name, elapsed)

		switch {
		case r.Status == StatusFailed:
			sec.Row("    %s %s", bold(color, r.Kind), firstLine(r.Detail))
		case r.Detail != "":
			sec.Row("    %s", Dimmed(r.Detail, color))
		}
	}
}

// Progress writes a one-line "[done/total]" update for a finished row.
func Progress(w io.Writer, done, total int, r ResultRow, color bool) {
	line := fmt.Sprintf("    [%d/%d] %s %s", done, total, r.Status.Icon(color), r.Name)
	if r.Kind != "" {
		line += " " + r.Kind
	}
	if r.Elapsed > 0 {
		line += " " + Dimmed(formatElapsed(r.Elapsed), color)
	}
	fmt.Fprintln(w, line)
}

// SectionSummary closes a batch with totals.
func SectionSummary(sec *Section, ok, failed int, elapsed time.Duration, color bool) {
	sec.Separator()
	status := StatusOK
	if failed > 0 {
		status = StatusFailed
	}
	sec.Row("%-12s%d ok, %d failed   %s  %s", "total", ok, failed, formatElapsed(elapsed), status.Icon(color))
}

// Table writes rows as aligned columns under an upper-cased header.
func Table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	upper := make([]string, len(header))
	for i, h := range header {
		upper[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(tw, strings.Join(upper, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
