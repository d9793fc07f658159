package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"unflatten/internal/deps"
	"unflatten/internal/preflight"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = [...]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

const (
	statusIndent     = "  "
	statusLabelWidth = 20
)

// renderStatusLine formats "  Label:   [KIND] message" with the label padded
// so messages line up.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	var b strings.Builder
	fmt.Fprintf(&b, "%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.label)
	if message != "" {
		b.WriteString(" " + message)
	}
	return paint(b.String(), style.color, colorize)
}

func paint(s, color string, colorize bool) string {
	if colorize && color != "" {
		return color + s + ansiReset
	}
	return s
}

func renderSectionHeader(title string, colorize bool) []string {
	title = "== " + strings.TrimSpace(title) + " =="
	return []string{
		paint(title, ansiBlue, colorize),
		paint(strings.Repeat("-", len(title)), ansiBlue, colorize),
	}
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, len(results))
	for i, r := range results {
		kind := statusError
		if r.Passed {
			kind = statusOK
		}
		lines[i] = renderStatusLine(r.Name, kind, r.Detail, colorize)
	}
	return lines
}

// dependencyLines renders one line per binary and, when required ones are
// missing, a closing line naming them.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	var lines, missing []string
	for _, st := range statuses {
		kind, detail := statusOK, "Ready ("+st.Path+")"
		if !st.Available {
			detail = cmp.Or(strings.TrimSpace(st.Detail), "not available")
			kind = statusError
			if st.Optional {
				kind, detail = statusWarn, detail+" (optional)"
			} else {
				missing = append(missing, st.Name)
			}
		}
		lines = append(lines, renderStatusLine(st.Name, kind, detail, colorize))
	}
	if len(missing) > 0 {
		hint := strings.Join(missing, ", ") + " (install poppler-utils / tesseract-ocr or change the strategy)"
		lines = append(lines, renderStatusLine("Missing dependencies", statusError, hint, colorize))
	}
	return lines
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
