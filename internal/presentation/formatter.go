// Package presentation renders execution events for the live CI log.
package presentation

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/codexci/internal/codex"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	textStyle  = lipgloss.NewStyle().Faint(true)
)

// Formatter echoes events to the live output stream as they arrive.
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{writer: w}
}

// Echo writes one event: structured events pretty-printed under a typed
// label, text fallbacks verbatim.
func (f *Formatter) Echo(ev codex.Event) {
	if f == nil || f.writer == nil {
		return
	}
	if !ev.IsStructured() {
		fmt.Fprintln(f.writer, textStyle.Render(ev.Text()))
		return
	}

	label := ev.Type()
	style := labelStyle
	if label == "error" || label == "turn.failed" {
		style = errorStyle
	}
	fmt.Fprintf(f.writer, "%s\n%s\n", style.Render(label), ev.PrettyJSON())
}
