package output

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// Styles holds the colors used by text renderers.
type Styles struct {
	Path    *color.Color
	Error   *color.Color
	Warning *color.Color
	Kind    *color.Color
	Name    *color.Color
	Dim     *color.Color
}

// NewStyles returns the default palette. With enabled false every color
// prints plain text regardless of the terminal.
func NewStyles(enabled bool) *Styles {
	s := &Styles{
		Path:    color.New(color.Bold),
		Error:   color.New(color.FgRed, color.Bold),
		Warning: color.New(color.FgYellow, color.Bold),
		Kind:    color.New(color.FgCyan),
		Name:    color.New(color.FgGreen, color.Bold),
		Dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{s.Path, s.Error, s.Warning, s.Kind, s.Name, s.Dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func (s *Styles) severity(sev traverse.Severity) *color.Color {
	if sev == traverse.SeverityWarning {
		return s.Warning
	}
	return s.Error
}

// RenderDiagnostics writes one line per diagnostic in the
// path:row:col: severity: reason form editors understand. Rows and columns
// are one-based.
func RenderDiagnostics(w io.Writer, s *Styles, path string, diags []traverse.Diagnostic) error {
	if len(diags) == 0 {
		_, err := fmt.Fprintf(w, "%s: %s\n", s.Path.Sprint(path), s.Dim.Sprint("no syntax problems"))
		return err
	}
	for _, d := range diags {
		line := fmt.Sprintf("%s:%d:%d: %s: %s",
			s.Path.Sprint(path), d.Start.Row+1, d.Start.Column+1,
			s.severity(d.Severity).Sprint(d.Severity), d.Reason)
		if d.Construct != "" {
			line += s.Dim.Sprintf(" (in %s)", d.Construct)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderElements writes an outline of els, indented by containment.
func RenderElements(w io.Writer, s *Styles, path string, els []traverse.CodeElement) error {
	if _, err := fmt.Fprintln(w, s.Path.Sprint(path)); err != nil {
		return err
	}
	var open []syntax.ByteRange
	for _, el := range els {
		for len(open) > 0 && !open[len(open)-1].Contains(el.Span) {
			open = open[:len(open)-1]
		}
		line := fmt.Sprintf("%s%s %s %s",
			strings.Repeat("  ", len(open)+1),
			s.Kind.Sprintf("%-9s", el.Kind),
			s.Name.Sprint(displayName(el)),
			s.Dim.Sprintf("%d:%d", el.Start.Row+1, el.Start.Column+1))
		if len(el.Modifiers) > 0 {
			line += s.Dim.Sprintf(" [%s]", strings.Join(el.Modifiers, " "))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		open = append(open, el.Span)
	}
	return nil
}

func displayName(el traverse.CodeElement) string {
	if el.Name != "" {
		return el.Name
	}
	if doc := firstLine(el.Documentation); doc != "" {
		return fmt.Sprintf("%q", doc)
	}
	return "<anonymous>"
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	const max = 60
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// RenderMatches writes each match with its captures and their source text.
func RenderMatches(w io.Writer, s *Styles, source []byte, res query.Result) error {
	for i, m := range res.Matches {
		if _, err := fmt.Fprintf(w, "%s pattern %d\n", s.Kind.Sprintf("match %d", i), m.PatternIndex); err != nil {
			return err
		}
		for _, name := range slices.Sorted(maps.Keys(m.Captures)) {
			for _, n := range m.Captures[name] {
				_, err := fmt.Fprintf(w, "  %s %s %s %s\n",
					s.Name.Sprint("@"+name), n.Kind,
					s.Dim.Sprintf("%s-%s", n.StartPoint, n.EndPoint),
					firstLine(string(source[n.StartByte:n.EndByte])))
				if err != nil {
					return err
				}
			}
		}
	}
	if res.Partial {
		reason := "match limit exceeded"
		if res.TimedOut {
			reason = "timed out"
		}
		_, err := fmt.Fprintln(w, s.Warning.Sprintf("partial result: %s", reason))
		return err
	}
	return nil
}
