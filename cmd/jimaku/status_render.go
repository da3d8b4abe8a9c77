package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"jimaku/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKinds = map[statusKind]struct {
	label string
	color text.Color
}{
	statusInfo:  {"INFO", text.FgBlue},
	statusOK:    {"OK", text.FgGreen},
	statusWarn:  {"WARN", text.FgYellow},
	statusError: {"ERROR", text.FgRed},
}

const statusLabelWidth = 22

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	k := statusKinds[kind]
	line := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", k.label)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return k.color.Sprint(line)
	}
	return line
}

// statusReport collects sectioned status lines for the status command.
type statusReport struct {
	colorize bool
	lines    []string
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	header := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(header))
	if r.colorize {
		header, rule = text.FgBlue.Sprint(header), text.FgBlue.Sprint(rule)
	}
	r.lines = append(r.lines, header, rule)
}

func (r *statusReport) add(label string, kind statusKind, message string) {
	r.lines = append(r.lines, renderStatusLine(label, kind, message, r.colorize))
}

// check adds a preflight result; failures are shown as failKind.
func (r *statusReport) check(result preflight.Result, failKind statusKind) {
	kind := failKind
	if result.Passed {
		kind = statusOK
	}
	r.add(result.Name, kind, result.Detail)
}

func (r *statusReport) String() string {
	return strings.Join(r.lines, "\n")
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
