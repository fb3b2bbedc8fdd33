package cli

import (
	"fmt"
	"io"
	"strings"

	"autocomplete/internal/engine/frontend"
	"autocomplete/internal/engine/resolver"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A78BFA")).
			Width(10)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	deprecatedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94A3B8")).
			Strikethrough(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)
)

type completionOutput struct {
	File        string               `json:"file"`
	Line        int                  `json:"line"`
	Column      int                  `json:"column"`
	Candidates  []resolver.Candidate `json:"candidates"`
	Diagnostics []diagnosticOutput   `json:"diagnostics"`
}

type diagnoseOutput struct {
	File        string             `json:"file"`
	Diagnostics []diagnosticOutput `json:"diagnostics"`
}

type diagnosticOutput struct {
	Severity frontend.Severity `json:"severity"`
	Message  string            `json:"message"`
	File     string            `json:"file,omitempty"`
	Line     int               `json:"line,omitempty"`
	Column   int               `json:"column,omitempty"`
	Code     string            `json:"code,omitempty"`
}

type versionOutput struct {
	Engine   string `json:"engine"`
	Frontend string `json:"frontend"`
}

func jsonDiagnostics(diags []frontend.Diagnostic) []diagnosticOutput {
	out := make([]diagnosticOutput, 0, len(diags))
	for _, d := range diags {
		out = append(out, diagnosticOutput{
			Severity: d.Severity,
			Message:  d.Message,
			File:     d.Location.File,
			Line:     d.Location.Line,
			Column:   d.Location.Column,
			Code:     string(d.Code),
		})
	}
	return out
}

func renderCandidates(w io.Writer, candidates []resolver.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, detailStyle.Render("no candidates"))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d candidates", len(candidates))))
	for _, c := range candidates {
		name := c.DisplayText
		if c.Availability == frontend.Deprecated {
			name = deprecatedStyle.Render(name)
		}
		line := kindStyle.Render(c.Kind.String()) + " " + name
		if c.Description != "" && c.Description != c.DisplayText {
			line += "  " + detailStyle.Render(c.Description)
		}
		if c.Availability != frontend.Available {
			line += "  " + detailStyle.Render("["+c.Availability.String()+"]")
		}
		fmt.Fprintln(w, line)
	}
}

func renderDiagnostics(w io.Writer, diags []frontend.Diagnostic) {
	for _, d := range diags {
		var b strings.Builder
		if loc := d.Location.String(); loc != "" {
			b.WriteString(loc)
			b.WriteString(": ")
		}
		b.WriteString(severityStyle(d.Severity).Render(d.Severity.String()))
		b.WriteString(": ")
		b.WriteString(d.Message)
		if d.Code != "" {
			b.WriteString(" ")
			b.WriteString(detailStyle.Render("[" + string(d.Code) + "]"))
		}
		fmt.Fprintln(w, b.String())
	}
}

func severityStyle(s frontend.Severity) lipgloss.Style {
	switch s {
	case frontend.SeverityFatal, frontend.SeverityError:
		return errorStyle
	case frontend.SeverityWarning:
		return warningStyle
	default:
		return noteStyle
	}
}
