package query

import (
	"errors"
	"fmt"
	"runtime"
	"slices"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrCompile is the sentinel wrapped by every *CompileError.
var ErrCompile = errors.New("query compile error")

// CompileError reports a template the grammar rejected, with the position
// tree-sitter pointed at.
type CompileError struct {
	Language lang.Language
	Template string
	Kind     string
	Message  string
	Row      uint
	Column   uint
	Offset   uint
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s query: %s error at %d:%d: %s", e.Language, e.Kind, e.Row+1, e.Column+1, e.Message)
}

func (e *CompileError) Unwrap() error { return ErrCompile }

var errorKinds = map[tree_sitter.QueryErrorKind]string{
	tree_sitter.QueryErrorSyntax:    "syntax",
	tree_sitter.QueryErrorNodeType:  "node type",
	tree_sitter.QueryErrorField:     "field",
	tree_sitter.QueryErrorCapture:   "capture",
	tree_sitter.QueryErrorPredicate: "predicate",
	tree_sitter.QueryErrorStructure: "structure",
	tree_sitter.QueryErrorLanguage:  "language",
}

// PatternInfo describes one sub-pattern of a compiled query.
type PatternInfo struct {
	Index uint `json:"index"`
	// Rooted patterns have a single root node.
	Rooted bool `json:"rooted"`
	// NonLocal patterns can match across a repeating grammar construct, so a
	// range-restricted run may miss matches that start before the range.
	NonLocal   bool     `json:"nonLocal"`
	StartByte  uint     `json:"startByte"`
	Predicates []string `json:"predicates,omitempty"`
}

// Compiled is an executable query bound to one grammar. It is immutable and
// safe for concurrent use; per-run state lives in the cursor created by Run.
type Compiled struct {
	handle   *lang.Handle
	key      string
	template string
	q        *tree_sitter.Query
	captures []string
	infos    []PatternInfo
	checks   [][]check
	cleanup  runtime.Cleanup
}

// Compile builds a query for h from template. key is an opaque identifier
// carried on every match the query produces.
func Compile(h *lang.Handle, key, template string) (*Compiled, error) {
	return compile(h, key, template, nil)
}

func compile(h *lang.Handle, key, template string, tweak func(*tree_sitter.Query)) (*Compiled, error) {
	q, qerr := tree_sitter.NewQuery(h.Grammar(), template)
	if qerr != nil {
		return nil, &CompileError{
			Language: h.ID(),
			Template: template,
			Kind:     errorKinds[qerr.Kind],
			Message:  qerr.Message,
			Row:      qerr.Row,
			Column:   qerr.Column,
			Offset:   qerr.Offset,
		}
	}

	c := &Compiled{
		handle:   h,
		key:      key,
		template: template,
		q:        q,
		captures: slices.Clone(q.CaptureNames()),
	}

	count := q.PatternCount()
	c.infos = make([]PatternInfo, count)
	c.checks = make([][]check, count)
	for i := range count {
		info := PatternInfo{
			Index:     i,
			Rooted:    q.IsPatternRooted(i),
			NonLocal:  q.IsPatternNonLocal(i),
			StartByte: q.StartByteForPattern(i),
		}
		for _, pred := range q.GeneralPredicates(i) {
			chk, err := newCheck(pred, c.captures)
			if err != nil {
				q.Close()
				row, col := position(template, info.StartByte)
				return nil, &CompileError{
					Language: h.ID(),
					Template: template,
					Kind:     "predicate",
					Message:  err.Error(),
					Row:      row,
					Column:   col,
					Offset:   info.StartByte,
				}
			}
			c.checks[i] = append(c.checks[i], chk)
			info.Predicates = append(info.Predicates, pred.Operator)
		}
		c.infos[i] = info
	}

	if tweak != nil {
		tweak(q)
	}
	c.cleanup = runtime.AddCleanup(c, func(q *tree_sitter.Query) { q.Close() }, q)
	return c, nil
}

// Key returns the identifier the query was compiled under.
func (c *Compiled) Key() string { return c.key }

// Template returns the query source.
func (c *Compiled) Template() string { return c.template }

// Language returns the grammar the query is bound to.
func (c *Compiled) Language() *lang.Handle { return c.handle }

// CaptureNames returns the capture names in index order.
func (c *Compiled) CaptureNames() []string { return slices.Clone(c.captures) }

// PatternCount returns the number of sub-patterns.
func (c *Compiled) PatternCount() int { return len(c.infos) }

// Info describes sub-pattern i.
func (c *Compiled) Info(i int) PatternInfo { return c.infos[i] }

// Infos describes every sub-pattern.
func (c *Compiled) Infos() []PatternInfo { return slices.Clone(c.infos) }

// RangeSafe reports whether restricting a run to a byte or point range
// returns the same matches as filtering an unrestricted run.
func (c *Compiled) RangeSafe() bool {
	for _, info := range c.infos {
		if info.NonLocal {
			return false
		}
	}
	return true
}

// WithoutCaptures returns a separately compiled copy that omits the named
// captures from its results. c itself is not modified.
func (c *Compiled) WithoutCaptures(names ...string) (*Compiled, error) {
	for _, name := range names {
		if !slices.Contains(c.captures, name) {
			return nil, fmt.Errorf("%w: unknown capture %q", ErrInvalidOptions, name)
		}
	}
	return compile(c.handle, c.key, c.template, func(q *tree_sitter.Query) {
		for _, name := range names {
			q.DisableCapture(name)
		}
	})
}

// WithoutPatterns returns a separately compiled copy with the given
// sub-patterns disabled. c itself is not modified.
func (c *Compiled) WithoutPatterns(indices ...uint) (*Compiled, error) {
	for _, i := range indices {
		if i >= uint(len(c.infos)) {
			return nil, fmt.Errorf("%w: pattern index %d out of range", ErrInvalidOptions, i)
		}
	}
	return compile(c.handle, c.key, c.template, func(q *tree_sitter.Query) {
		for _, i := range indices {
			q.DisablePattern(i)
		}
	})
}

// Close releases the native query early. Using c afterwards is an error.
func (c *Compiled) Close() {
	c.cleanup.Stop()
	c.q.Close()
}

func position(src string, offset uint) (row, col uint) {
	for i := 0; i < len(src) && uint(i) < offset; i++ {
		if src[i] == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return row, col
}
