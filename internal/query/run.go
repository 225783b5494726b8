package query

import (
	"cmp"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/dusk-indust/syntaxkit/internal/syntax"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrInvalidOptions reports a run configuration that can never succeed, such
// as a zero match limit. It is returned before any matching starts.
var ErrInvalidOptions = errors.New("invalid query options")

// MaxMatchLimit is the largest match limit tree-sitter accepts.
const MaxMatchLimit = 65536

// Mode selects how raw results are grouped. Both modes yield Match values.
type Mode int

const (
	// ModeMatches returns one Match per pattern match with all its captures.
	ModeMatches Mode = iota
	// ModeCaptures returns one Match per captured node, ordered by position.
	ModeCaptures
)

func (m Mode) String() string {
	if m == ModeCaptures {
		return "captures"
	}
	return "matches"
}

// PointRange is a half-open range of points.
type PointRange struct {
	Start syntax.Point `json:"start" yaml:"start"`
	End   syntax.Point `json:"end" yaml:"end"`
}

// Options bound a single run. The zero value runs over the whole tree without
// limits.
type Options struct {
	// ByteRange restricts matching to matches intersecting the range.
	ByteRange *syntax.ByteRange `json:"byteRange,omitempty" yaml:"byteRange,omitempty"`
	// PointRange restricts matching to matches intersecting the range.
	PointRange *PointRange `json:"pointRange,omitempty" yaml:"pointRange,omitempty"`
	// Within runs the query on this node instead of the root.
	Within *syntax.NodeRef `json:"within,omitempty" yaml:"within,omitempty"`
	// MatchLimit caps in-progress matches. Zero is rejected.
	MatchLimit *uint `json:"matchLimit,omitempty" yaml:"matchLimit,omitempty"`
	// MaxStartDepth caps how deep below the start node a match may begin.
	MaxStartDepth *uint `json:"maxStartDepth,omitempty" yaml:"maxStartDepth,omitempty"`
	// TimeoutMicros stops the run after the given time; zero disables it.
	TimeoutMicros uint64 `json:"timeoutMicros,omitempty" yaml:"timeoutMicros,omitempty"`
	Mode          Mode   `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Validate checks the options without running anything.
func (o Options) Validate() error {
	if o.MatchLimit != nil {
		if *o.MatchLimit == 0 {
			return fmt.Errorf("%w: match limit must be greater than zero", ErrInvalidOptions)
		}
		if *o.MatchLimit > MaxMatchLimit {
			return fmt.Errorf("%w: match limit %d exceeds %d", ErrInvalidOptions, *o.MatchLimit, MaxMatchLimit)
		}
	}
	if o.ByteRange != nil && o.ByteRange.Start > o.ByteRange.End {
		return fmt.Errorf("%w: byte range %s is inverted", ErrInvalidOptions, o.ByteRange)
	}
	if o.PointRange != nil && o.PointRange.End.Less(o.PointRange.Start) {
		return fmt.Errorf("%w: point range %s-%s is inverted", ErrInvalidOptions, o.PointRange.Start, o.PointRange.End)
	}
	if o.Mode != ModeMatches && o.Mode != ModeCaptures {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidOptions, o.Mode)
	}
	return nil
}

// Match is the single result shape of the engine: the pattern that matched
// and the nodes bound to each capture name.
type Match struct {
	PatternIndex uint                        `json:"patternIndex" yaml:"patternIndex" msgpack:"pattern_index"`
	Pattern      string                      `json:"pattern" yaml:"pattern" msgpack:"pattern"`
	Captures     map[string][]syntax.NodeRef `json:"captures" yaml:"captures" msgpack:"captures"`
}

// First returns the first node bound to name.
func (m Match) First(name string) (syntax.NodeRef, bool) {
	nodes := m.Captures[name]
	if len(nodes) == 0 {
		return syntax.NodeRef{}, false
	}
	return nodes[0], true
}

// Result holds the matches of one run. Partial is set whenever the run
// stopped early; the matches found until then are still returned.
type Result struct {
	Matches            []Match `json:"matches" yaml:"matches" msgpack:"matches"`
	Partial            bool    `json:"partial,omitempty" yaml:"partial,omitempty" msgpack:"partial"`
	MatchLimitExceeded bool    `json:"matchLimitExceeded,omitempty" yaml:"matchLimitExceeded,omitempty" msgpack:"match_limit_exceeded"`
	TimedOut           bool    `json:"timedOut,omitempty" yaml:"timedOut,omitempty" msgpack:"timed_out"`
}

// Run executes c over tree. Resource limits never produce an error: a run
// that hits its match limit or timeout returns what it found with Partial
// set. Range and depth restrictions apply to this run only.
func Run(c *Compiled, tree *syntax.Tree, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if tree.Language() != c.handle {
		return Result{}, fmt.Errorf("%w: %s query cannot run on a %s tree", ErrInvalidOptions, c.handle.ID(), tree.Language().ID())
	}
	defer runtime.KeepAlive(tree)
	defer runtime.KeepAlive(c)

	node := tree.RootNode()
	if opts.Within != nil {
		n, ok := tree.Lookup(*opts.Within)
		if !ok {
			return Result{}, fmt.Errorf("%w: node %s not found in tree", ErrInvalidOptions, opts.Within)
		}
		node = n
	}

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	if opts.MatchLimit != nil {
		qc.SetMatchLimit(*opts.MatchLimit)
	}
	qc.SetMaxStartDepth(opts.MaxStartDepth)
	if opts.ByteRange != nil {
		qc.SetByteRange(opts.ByteRange.Start, opts.ByteRange.End)
	}
	if opts.PointRange != nil {
		qc.SetPointRange(opts.PointRange.Start.TS(), opts.PointRange.End.TS())
	}

	source := tree.Source()
	var (
		matches  tree_sitter.QueryMatches
		timedOut bool
	)
	if opts.TimeoutMicros > 0 {
		deadline := time.Now().Add(time.Duration(opts.TimeoutMicros) * time.Microsecond)
		matches = qc.MatchesWithOptions(c.q, node, source, tree_sitter.QueryCursorOptions{
			ProgressCallback: func(tree_sitter.QueryCursorState) bool {
				if time.Now().After(deadline) {
					timedOut = true
					return true
				}
				return false
			},
		})
	} else {
		matches = qc.Matches(c.q, node, source)
	}

	var res Result
	for m := matches.Next(); m != nil; m = matches.Next() {
		if !satisfies(c.checks[m.PatternIndex], m.Captures) {
			continue
		}
		res.Matches = append(res.Matches, c.normalize(m))
	}

	res.MatchLimitExceeded = qc.DidExceedMatchLimit()
	res.TimedOut = timedOut
	res.Partial = res.MatchLimitExceeded || res.TimedOut

	if opts.Mode == ModeCaptures {
		res.Matches = flatten(res.Matches)
	}
	return res, nil
}

// normalize copies a binding match out of cursor-owned memory.
func (c *Compiled) normalize(m *tree_sitter.QueryMatch) Match {
	out := Match{
		PatternIndex: m.PatternIndex,
		Pattern:      c.key,
		Captures:     make(map[string][]syntax.NodeRef, len(m.Captures)),
	}
	for i := range m.Captures {
		name := c.captures[m.Captures[i].Index]
		out.Captures[name] = append(out.Captures[name], syntax.RefOf(&m.Captures[i].Node))
	}
	return out
}

// flatten splits matches into one Match per captured node, ordered by start
// byte and then by the order the matches were found.
func flatten(matches []Match) []Match {
	var out []Match
	for _, m := range matches {
		names := make([]string, 0, len(m.Captures))
		for name := range m.Captures {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			for _, ref := range m.Captures[name] {
				out = append(out, Match{
					PatternIndex: m.PatternIndex,
					Pattern:      m.Pattern,
					Captures:     map[string][]syntax.NodeRef{name: {ref}},
				})
			}
		}
	}
	slices.SortStableFunc(out, func(a, b Match) int {
		return cmp.Compare(firstStart(a), firstStart(b))
	})
	return out
}

func firstStart(m Match) uint {
	for _, refs := range m.Captures {
		return refs[0].StartByte
	}
	return 0
}

// Spans returns the byte range of capture name in every match that bound it.
func Spans(matches []Match, name string) []syntax.ByteRange {
	var out []syntax.ByteRange
	for _, m := range matches {
		for _, ref := range m.Captures[name] {
			out = append(out, ref.Range())
		}
	}
	return out
}
