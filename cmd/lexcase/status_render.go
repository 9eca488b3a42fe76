package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var styleHeader = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)

// statusKinds maps each kind to its label and ANSI colour.
var statusKinds = map[statusKind]struct {
	label string
	style lipgloss.Style
}{
	statusInfo:  {"INFO", lipgloss.NewStyle().Foreground(lipgloss.Color("4"))},
	statusOK:    {"OK", lipgloss.NewStyle().Foreground(lipgloss.Color("2"))},
	statusWarn:  {"WARN", lipgloss.NewStyle().Foreground(lipgloss.Color("3"))},
	statusError: {"ERROR", lipgloss.NewStyle().Foreground(lipgloss.Color("1"))},
}

const statusLabelWidth = 20

// renderStatusLine formats "  label:   [KIND] message", coloured by kind.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	spec, ok := statusKinds[kind]
	if !ok {
		spec = statusKinds[statusInfo]
	}
	line := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", spec.label)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return spec.style.Render(line)
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = styleHeader.Render(line)
		rule = styleHeader.Render(rule)
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
