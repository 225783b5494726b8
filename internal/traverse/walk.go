package traverse

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"

	"github.com/dusk-indust/syntaxkit/internal/syntax"
)

// FindByKind returns every node whose kind is one of kinds, in document order.
func FindByKind(tree *syntax.Tree, kinds ...string) []syntax.NodeRef {
	s := tree.Snapshot()
	var out []syntax.NodeRef
	for i := range s.Preorder() {
		n := s.Nodes[i]
		if slices.Contains(kinds, n.Kind) {
			out = append(out, syntax.NodeRef{
				Kind:       n.Kind,
				StartByte:  n.Range.Start,
				EndByte:    n.Range.End,
				StartPoint: n.Start,
				EndPoint:   n.End,
			})
		}
	}
	return out
}

// NodeAt returns the smallest named node spanning p.
func NodeAt(tree *syntax.Tree, p syntax.Point) (syntax.NodeRef, bool) {
	defer runtime.KeepAlive(tree)
	n := tree.RootNode().NamedDescendantForPointRange(p.TS(), p.TS())
	if n == nil {
		return syntax.NodeRef{}, false
	}
	return syntax.RefOf(n), true
}

// VisualizeOptions tune Visualize.
type VisualizeOptions struct {
	// Anonymous includes punctuation and keyword nodes.
	Anonymous bool
	// MaxDepth stops descending below this depth; zero means unlimited.
	MaxDepth int
}

// Visualize writes an indented outline of tree, one node per line, with
// field names, positions and ERROR/MISSING markers.
func Visualize(tree *syntax.Tree, w io.Writer, opts VisualizeOptions) error {
	s := tree.Snapshot()
	bw := bufio.NewWriter(w)
	depths := make([]int, len(s.Nodes))
	for i := range s.Preorder() {
		n := s.Nodes[i]
		if n.Parent >= 0 {
			depths[i] = depths[n.Parent] + 1
		}
		if opts.MaxDepth > 0 && depths[i] > opts.MaxDepth {
			continue
		}
		if !n.Named && !n.Missing && !opts.Anonymous {
			continue
		}

		var b strings.Builder
		b.WriteString(strings.Repeat("  ", depths[i]))
		if n.Field != "" {
			b.WriteString(n.Field)
			b.WriteString(": ")
		}
		switch {
		case n.Missing:
			fmt.Fprintf(&b, "MISSING %q", n.Kind)
		case n.Named:
			b.WriteString(n.Kind)
		default:
			fmt.Fprintf(&b, "%q", n.Kind)
		}
		fmt.Fprintf(&b, " [%s - %s]\n", n.Start, n.End)
		if _, err := bw.WriteString(b.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
