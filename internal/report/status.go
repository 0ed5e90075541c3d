package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"reshelve/internal/migration"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset = "\x1b[0m"

	// fieldWidth pads "Label:" so values line up in one column.
	fieldWidth = 18
	indent     = "  "
)

var statusStyles = map[statusKind]struct{ tag, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

// resultKind maps a migration outcome onto a status line style. A rollback
// is a warning: the collection is back where it started.
func resultKind(status migration.ResultStatus) statusKind {
	switch status {
	case migration.ResultCompleted:
		return statusOK
	case migration.ResultPartial, migration.ResultRolledBack:
		return statusWarn
	default:
		return statusError
	}
}

func renderField(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", indent, fieldWidth, label+":", value)
}

// renderLine is renderField with a [TAG] prefix on the value, coloured as a
// whole line when colorize is set.
func renderLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	value := "[" + style.tag + "]"
	if message != "" {
		value += " " + message
	}
	line := renderField(label, value)
	if colorize {
		return paint(line, style.color)
	}
	return line
}

func renderHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if colorize {
		color := statusStyles[statusInfo].color
		return []string{paint(heading, color), paint(rule, color)}
	}
	return []string{heading, rule}
}

func paint(s, color string) string {
	if color == "" {
		return s
	}
	return color + s + ansiReset
}

// ShouldColorize reports whether w is a terminal.
func ShouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
