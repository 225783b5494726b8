package output

import (
	"fmt"
	"io"

	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// Diagnostics is the result of diagnosing one file.
type Diagnostics struct {
	Path        string                `json:"path" yaml:"path"`
	Diagnostics []traverse.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

func (d Diagnostics) WriteText(w io.Writer, s *Styles) error {
	return RenderDiagnostics(w, s, d.Path, d.Diagnostics)
}

// Elements is the element outline of one file.
type Elements struct {
	Path      string                 `json:"path" yaml:"path"`
	Elements  []traverse.CodeElement `json:"elements" yaml:"elements"`
	Truncated bool                   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

func (e Elements) WriteText(w io.Writer, s *Styles) error {
	if err := RenderElements(w, s, e.Path, e.Elements); err != nil {
		return err
	}
	if e.Truncated {
		_, err := fmt.Fprintln(w, s.Warning.Sprint("element extraction was truncated"))
		return err
	}
	return nil
}

// Matches is the result of one query run together with its source.
type Matches struct {
	Path   string `json:"path" yaml:"path"`
	Source []byte `json:"-" yaml:"-" msgpack:"-"`

	query.Result `yaml:",inline"`
}

func (m Matches) WriteText(w io.Writer, s *Styles) error {
	if _, err := fmt.Fprintf(w, "%s: %d matches\n", s.Path.Sprint(m.Path), len(m.Matches)); err != nil {
		return err
	}
	return RenderMatches(w, s, m.Source, m.Result)
}

// Lines is a plain list rendered one entry per line.
type Lines []string

func (l Lines) WriteText(w io.Writer, _ *Styles) error {
	for _, line := range l {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
