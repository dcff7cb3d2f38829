// Package output renders the user-facing result of a command: framed
// sections for batches, plain tables for listings. Diagnostics go through the
// logger instead.
package output

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorGray    = "\033[90m"
	colorBold    = "\033[1m"
	colorDimCyan = "\033[2;36m"
)

// IsCI reports whether we are running under a CI system.
func IsCI() bool {
	return os.Getenv("CI") == "true"
}

// UseColor reports whether output written to w should be colored.
// Respects NO_COLOR, TERM=dumb and terminal detection.
func UseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(w) || IsCI()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func bold(color bool, s string) string {
	if !color {
		return s
	}
	return colorBold + s + colorReset
}
