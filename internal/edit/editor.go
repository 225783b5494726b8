package edit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
)

// State is the lifecycle stage of one edit.
type State int

const (
	StateFresh State = iota
	StateEdited
	StateReparsed
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateEdited:
		return "edited"
	case StateReparsed:
		return "reparsed"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled back"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrNotPending is returned when committing or discarding an edit that was
// already resolved.
var ErrNotPending = errors.New("edit is no longer pending")

// Problem is an ERROR or MISSING node of an edited tree.
type Problem struct {
	Missing bool           `json:"missing,omitempty"`
	Node    syntax.NodeRef `json:"node"`
}

// Result describes a committed edit.
type Result struct {
	Tree    *syntax.Tree
	Spec    Spec
	Changed []syntax.Range
	State   State
}

// Conflict is returned when an edit introduces more ERROR or MISSING nodes
// than the editor tolerates. The document is left untouched until the caller
// resolves the conflict with Commit or Discard.
//
// Before and After count raw ERROR and MISSING nodes, nested ones included,
// so they can exceed the number of diagnostics traverse.Diagnose reports for
// the same tree. Problems lists those nodes as references; callers wanting
// explanations run Diagnose on the committed tree.
type Conflict struct {
	Before   int
	After    int
	Problems []Problem
	Changed  []syntax.Range

	mu      sync.Mutex
	state   State
	doc     *syntax.Document
	from    uint64
	rev     *syntax.Revision
	spec    Spec
	onApply func(*Result)
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("edit conflict: %d syntax problem(s) after edit, %d before", c.After, c.Before)
}

// Tree returns the reparsed tree the conflict was detected on. It is valid
// until Discard.
func (c *Conflict) Tree() *syntax.Tree { return c.rev.Tree }

// State reports whether the conflict is still pending.
func (c *Conflict) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Commit installs the edit despite the conflict. It fails with
// syntax.ErrStaleVersion if the document changed in the meantime.
func (c *Conflict) Commit() (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReparsed {
		return nil, ErrNotPending
	}
	err := c.doc.Write(func(cur syntax.Revision) (*syntax.Revision, error) {
		if cur.Version != c.from {
			return nil, syntax.ErrStaleVersion
		}
		return c.rev, nil
	})
	if err != nil {
		c.rev.Tree.Close()
		c.state = StateRolledBack
		return nil, err
	}
	c.state = StateCommitted
	res := &Result{Tree: c.rev.Tree, Spec: c.spec, Changed: c.Changed, State: StateCommitted}
	if c.onApply != nil {
		c.onApply(res)
	}
	return res, nil
}

// Discard drops the edit and releases the reparsed tree.
func (c *Conflict) Discard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReparsed {
		return ErrNotPending
	}
	c.rev.Tree.Close()
	c.state = StateRolledBack
	return nil
}

// Editor applies edits to documents. It holds no per-document state and may
// be shared.
type Editor struct {
	reg       *lang.Registry
	tolerance int
	logger    *slog.Logger
	onApply   func(*Result)
}

// Option configures an Editor.
type Option func(*Editor)

// WithTolerance allows up to n additional ERROR or MISSING nodes per edit
// before it is reported as a Conflict.
func WithTolerance(n int) Option {
	return func(e *Editor) { e.tolerance = max(n, 0) }
}

// WithLogger sets the sink for parse and edit events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithCommitHook registers fn to run after every committed edit.
func WithCommitHook(fn func(*Result)) Option {
	return func(e *Editor) { e.onApply = fn }
}

// NewEditor returns an editor using reg's parsers.
func NewEditor(reg *lang.Registry, opts ...Option) *Editor {
	e := &Editor{reg: reg, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply validates spec, splices the document buffer, reparses incrementally
// and installs the new tree as the document's next version. When the edit
// introduces problems beyond the tolerance it returns a *Conflict instead and
// leaves the document unchanged.
func (e *Editor) Apply(doc *syntax.Document, spec Spec) (*Result, error) {
	var (
		res      *Result
		conflict *Conflict
	)
	err := doc.Write(func(cur syntax.Revision) (*syntax.Revision, error) {
		if err := spec.Validate(cur.Buffer); err != nil {
			return nil, err
		}
		if cur.Tree == nil {
			return nil, fmt.Errorf("document %s is closed", doc.Path())
		}

		// Edited: a clone of the current tree shifted by the edit.
		buf := spec.Splice(cur.Buffer)
		base := cur.Tree.Inner().Clone()
		base.Edit(spec.InputEdit())

		// Reparsed.
		inner, err := e.reg.ParserFor(doc.Language()).Parse(buf, base, nil)
		if err != nil {
			base.Close()
			return nil, err
		}
		next := syntax.NewEditedTree(doc.Language(), inner, buf, cur.Version+1, base, cur.Version)
		changed := syntax.ChangedRanges(cur.Tree, next)

		before := cur.Tree.Snapshot().CountProblems()
		after := next.Snapshot().CountProblems()
		rev := &syntax.Revision{Version: cur.Version + 1, Buffer: buf, Tree: next}

		e.logger.Debug("edit reparsed",
			"path", doc.Path(), "version", rev.Version, "edit", spec.String(),
			"changed", len(changed), "problems_before", before, "problems_after", after)

		if after > before+e.tolerance {
			conflict = &Conflict{
				Before:   before,
				After:    after,
				Problems: problems(next.Snapshot()),
				Changed:  changed,
				state:    StateReparsed,
				doc:      doc,
				from:     cur.Version,
				rev:      rev,
				spec:     spec,
				onApply:  e.onApply,
			}
			return nil, conflict
		}
		res = &Result{Tree: next, Spec: spec, Changed: changed, State: StateCommitted}
		return rev, nil
	})
	if err != nil {
		if conflict != nil {
			e.logger.Warn("edit conflict", "path", doc.Path(), "before", conflict.Before, "after", conflict.After)
		}
		return nil, err
	}
	if e.onApply != nil {
		e.onApply(res)
	}
	return res, nil
}

func problems(s *syntax.Snapshot) []Problem {
	var out []Problem
	for _, n := range s.Nodes {
		if !n.Error && !n.Missing {
			continue
		}
		out = append(out, Problem{
			Missing: n.Missing,
			Node: syntax.NodeRef{
				Kind:       n.Kind,
				StartByte:  n.Range.Start,
				EndByte:    n.Range.End,
				StartPoint: n.Start,
				EndPoint:   n.End,
			},
		})
	}
	return out
}
