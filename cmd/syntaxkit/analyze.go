package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/output"
	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// parseReport summarizes one parse.
type parseReport struct {
	Path     string           `json:"path" yaml:"path"`
	Language string           `json:"language" yaml:"language"`
	RootKind string           `json:"rootKind" yaml:"rootKind"`
	Span     syntax.ByteRange `json:"span" yaml:"span"`
	Nodes    int              `json:"nodes" yaml:"nodes"`
	Problems int              `json:"problems" yaml:"problems"`
}

func (r parseReport) WriteText(w io.Writer, s *output.Styles) error {
	status := s.Dim.Sprint("ok")
	if r.Problems > 0 {
		status = s.Error.Sprintf("%d problems", r.Problems)
	}
	_, err := fmt.Fprintf(w, "%s: %s %s, %d nodes, %d bytes, %s\n",
		s.Path.Sprint(r.Path), r.Language, s.Kind.Sprint(r.RootKind), r.Nodes, r.Span.Len(), status)
	return err
}

// treeReport is the arena form of a tree for structured output.
type treeReport struct {
	Path     string             `json:"path" yaml:"path"`
	Language string             `json:"language" yaml:"language"`
	Nodes    []syntax.ArenaNode `json:"nodes" yaml:"nodes"`
}

// phantom is a string statement that is not a docstring.
type phantom struct {
	Span   syntax.ByteRange `json:"span" yaml:"span"`
	Line   int              `json:"line" yaml:"line"`
	Column int              `json:"column" yaml:"column"`
	Text   string           `json:"text" yaml:"text"`
}

type phantomReport struct {
	Path     string    `json:"path" yaml:"path"`
	Phantoms []phantom `json:"phantoms" yaml:"phantoms"`
}

func (r phantomReport) WriteText(w io.Writer, s *output.Styles) error {
	for _, p := range r.Phantoms {
		_, err := fmt.Fprintf(w, "%s:%d:%d: %s %s\n",
			s.Path.Sprint(r.Path), p.Line, p.Column, s.Warning.Sprint("phantom comment"), p.Text)
		if err != nil {
			return err
		}
	}
	return nil
}

type languageInfo struct {
	ID         string   `json:"id" yaml:"id"`
	Extensions []string `json:"extensions" yaml:"extensions"`
	Patterns   []string `json:"patterns" yaml:"patterns"`
}

type languageList []languageInfo

func (l languageList) WriteText(w io.Writer, s *output.Styles) error {
	for _, info := range l {
		_, err := fmt.Fprintf(w, "%-11s %-22s %s\n",
			s.Name.Sprint(info.ID), strings.Join(info.Extensions, " "), s.Dim.Sprintf("%d patterns", len(info.Patterns)))
		if err != nil {
			return err
		}
	}
	return nil
}

// withSource runs fn on the parsed tree of path.
func (a *app) withSource(cmd *cobra.Command, path, language string, fn func(*engine.Engine, *syntax.Tree) error) error {
	src, id, err := readSource(cmd.InOrStdin(), path, language)
	if err != nil {
		return err
	}
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	tree, err := e.Parse(cmd.Context(), src, id)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer tree.Close()
	return fn(e, tree)
}

// analyze runs the cached full analysis of path.
func (a *app) analyze(cmd *cobra.Command, path, language string) (*engine.Analysis, []byte, error) {
	src, id, err := readSource(cmd.InOrStdin(), path, language)
	if err != nil {
		return nil, nil, err
	}
	e, err := a.newEngine()
	if err != nil {
		return nil, nil, err
	}
	defer e.Close()

	an, err := e.Analyze(cmd.Context(), path, src, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, w := range an.Warnings {
		a.logger.Warn("analysis warning", "path", path, "warning", w)
	}
	return an, src, nil
}

func (a *app) parseCmd() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Parse a file and summarize its syntax tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSource(cmd, args[0], language, func(_ *engine.Engine, tree *syntax.Tree) error {
				snap := tree.Snapshot()
				return a.emit(parseReport{
					Path:     args[0],
					Language: string(tree.Language().ID()),
					RootKind: tree.Root().Kind,
					Span:     tree.Span(),
					Nodes:    snap.Len(),
					Problems: snap.CountProblems(),
				})
			})
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language id (default: from the file extension)")
	return cmd
}

func (a *app) treeCmd() *cobra.Command {
	var (
		language string
		opts     traverse.VisualizeOptions
	)
	cmd := &cobra.Command{
		Use:   "tree <file|->",
		Short: "Print the syntax tree of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSource(cmd, args[0], language, func(_ *engine.Engine, tree *syntax.Tree) error {
				if a.format == output.FormatText {
					return traverse.Visualize(tree, a.stdout, opts)
				}
				return a.emit(treeReport{
					Path:     args[0],
					Language: string(tree.Language().ID()),
					Nodes:    tree.Snapshot().Nodes,
				})
			})
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language id (default: from the file extension)")
	cmd.Flags().BoolVar(&opts.Anonymous, "anonymous", false, "include punctuation and keyword nodes")
	cmd.Flags().IntVar(&opts.MaxDepth, "depth", 0, "stop below this depth (0: unlimited)")
	return cmd
}

func (a *app) elementsCmd() *cobra.Command {
	var (
		language string
		kinds    []string
		mermaid  bool
	)
	cmd := &cobra.Command{
		Use:   "elements <file|->",
		Short: "List the functions, classes, imports and other elements of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, _, err := a.analyze(cmd, args[0], language)
			if err != nil {
				return err
			}
			els := an.Elements
			if len(kinds) > 0 {
				els = filterKinds(els, kinds)
			}
			if mermaid {
				return output.WriteMermaid(a.stdout, args[0], els)
			}
			return a.emit(output.Elements{Path: args[0], Elements: els, Truncated: an.Truncated})
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language id (default: from the file extension)")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "only list these kinds (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "write a Mermaid containment diagram instead")
	return cmd
}

func filterKinds(els []traverse.CodeElement, kinds []string) []traverse.CodeElement {
	want := make(map[traverse.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[traverse.Kind(strings.TrimSpace(k))] = true
	}
	var out []traverse.CodeElement
	for _, el := range els {
		if want[el.Kind] {
			out = append(out, el)
		}
	}
	return out
}

func (a *app) diagnoseCmd() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "diagnose <file|->...",
		Short: "Report syntax errors and missing tokens",
		Long:  "Report syntax errors and missing tokens. Exits non-zero when any file has problems.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problems := false
			for _, path := range args {
				an, _, err := a.analyze(cmd, path, language)
				if err != nil {
					return err
				}
				if len(an.Diagnostics) > 0 {
					problems = true
				}
				if err := a.emit(output.Diagnostics{Path: path, Diagnostics: an.Diagnostics}); err != nil {
					return err
				}
			}
			if problems {
				return errProblems
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language id (default: from the file extension)")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var (
		language      string
		key           string
		template      string
		matchLimit    uint
		maxStartDepth int
		timeoutMicros uint64
		startByte     int
		endByte       int
		captures      bool
	)
	cmd := &cobra.Command{
		Use:   "query <file|->",
		Short: "Run a catalog pattern or a tree-sitter query over a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (key == "") == (template == "") {
				return fmt.Errorf("exactly one of --pattern or --template is required")
			}
			return a.withSource(cmd, args[0], language, func(e *engine.Engine, tree *syntax.Tree) error {
				opts := query.Options{TimeoutMicros: timeoutMicros}
				if matchLimit > 0 {
					opts.MatchLimit = &matchLimit
				}
				if maxStartDepth >= 0 {
					d := uint(maxStartDepth)
					opts.MaxStartDepth = &d
				}
				if startByte >= 0 || endByte >= 0 {
					r := tree.Span()
					if startByte >= 0 {
						r.Start = uint(startByte)
					}
					if endByte >= 0 {
						r.End = uint(endByte)
					}
					opts.ByteRange = &r
				}
				if captures {
					opts.Mode = query.ModeCaptures
				}

				var (
					res query.Result
					err error
				)
				if key != "" {
					res, err = e.Query(cmd.Context(), tree, key, opts)
				} else {
					res, err = e.QueryTemplate(cmd.Context(), tree, template, opts)
				}
				if err != nil {
					return err
				}
				return a.emit(output.Matches{Path: args[0], Source: tree.Source(), Result: res})
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&language, "language", "l", "", "language id (default: from the file extension)")
	f.StringVarP(&key, "pattern", "p", "", "catalog pattern key, e.g. function, class, import")
	f.StringVarP(&template, "template", "t", "", "tree-sitter query source")
	f.UintVar(&matchLimit, "match-limit", 0, "cap on in-progress matches (0: catalog default)")
	f.IntVar(&maxStartDepth, "max-start-depth", -1, "how deep below the root a match may start (-1: catalog default)")
	f.Uint64Var(&timeoutMicros, "timeout-micros", 0, "stop after this many microseconds (0: catalog default)")
	f.IntVar(&startByte, "start-byte", -1, "only match nodes ending after this byte")
	f.IntVar(&endByte, "end-byte", -1, "only match nodes starting before this byte")
	f.BoolVar(&captures, "captures", false, "report one entry per capture instead of per match")
	return cmd
}

func (a *app) phantomsCmd() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "phantoms <file|->",
		Short: "Find string literal statements that are not docstrings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, src, err := a.analyze(cmd, args[0], language)
			if err != nil {
				return err
			}
			report := phantomReport{Path: args[0], Phantoms: make([]phantom, 0, len(an.Phantoms))}
			for _, r := range an.Phantoms {
				line, col := position(src, r.Start)
				report.Phantoms = append(report.Phantoms, phantom{
					Span:   r,
					Line:   line,
					Column: col,
					Text:   string(src[r.Start:r.End]),
				})
			}
			return a.emit(report)
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language id (default: from the file extension)")
	return cmd
}

// position returns the one-based line and byte column of offset in src.
func position(src []byte, offset uint) (line, col int) {
	before := src[:offset]
	line = bytes.Count(before, []byte{'\n'}) + 1
	col = len(before) - (bytes.LastIndexByte(before, '\n') + 1) + 1
	return line, col
}

func (a *app) languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported languages and their patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			var list languageList
			for _, id := range e.Registry().Languages() {
				info := languageInfo{ID: string(id), Extensions: lang.Extensions(id)}
				for _, p := range e.Catalog().Patterns(e.Registry().MustResolve(id)) {
					info.Patterns = append(info.Patterns, p.Key)
				}
				list = append(list, info)
			}
			return a.emit(list)
		},
	}
}
