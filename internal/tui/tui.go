// Package tui is an interactive findings browser: arrow keys or j/k to
// move, q to quit. It renders the same ordered findings the sinks see.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pyrite-audit/pyrite/internal/model"
)

type modelT struct {
	res    *model.ScanResult
	cursor int
}

func initialModel(res *model.ScanResult) modelT { return modelT{res: res} }

func (m modelT) Init() tea.Cmd { return nil }

func (m modelT) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.res.Findings)-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m modelT) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Findings (%d)  j/k move, q quit\n\n", len(m.res.Findings))
	for i, f := range m.res.Findings {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%-8s %s  %s\n", marker, f.Severity, f.DetectorID, location(f))
	}
	if m.cursor >= 0 && m.cursor < len(m.res.Findings) {
		f := m.res.Findings[m.cursor]
		fmt.Fprintf(&b, "\n%s\n", f.Message)
		if f.Remediation != "" {
			fmt.Fprintf(&b, "fix: %s\n", f.Remediation)
		}
		fmt.Fprintf(&b, "confidence: %s\n", f.Confidence)
	}
	if m.res.Summary.Suppressed > 0 {
		fmt.Fprintf(&b, "\n%d finding(s) suppressed\n", m.res.Summary.Suppressed)
	}
	return b.String()
}

func location(f model.Finding) string {
	loc := f.Span.File
	if f.Span.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.Span.File, f.Span.Line)
	}
	if f.Contract != "" {
		name := f.Contract
		if f.Function != "" {
			name += "." + f.Function
		}
		if loc != "" {
			return name + "  " + loc
		}
		return name
	}
	return loc
}

// Run launches the findings browser and blocks until the user quits.
func Run(res *model.ScanResult) error {
	p := tea.NewProgram(initialModel(res))
	_, err := p.Run()
	return err
}
