package syntax

import (
	"iter"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ArenaNode is one node of a Snapshot. Relationships are indices into the
// owning Snapshot's Nodes slice; the root's Parent is -1.
type ArenaNode struct {
	Kind     string    `json:"kind"`
	Field    string    `json:"field,omitempty"`
	Named    bool      `json:"named"`
	Error    bool      `json:"error,omitempty"`
	Missing  bool      `json:"missing,omitempty"`
	Range    ByteRange `json:"range"`
	Start    Point     `json:"start"`
	End      Point     `json:"end"`
	Parent   int       `json:"parent"`
	Children []int     `json:"children,omitempty"`
}

// Snapshot is an arena copy of a tree: nodes in pre-order, children as
// forward indices and parents as back indices. It holds no native memory and
// outlives the tree it was taken from.
type Snapshot struct {
	Nodes []ArenaNode `json:"nodes"`
}

func buildSnapshot(root *tree_sitter.Node) *Snapshot {
	s := &Snapshot{}
	cursor := root.Walk()
	defer cursor.Close()

	parents := []int{-1}
	for {
		n := cursor.Node()
		idx := len(s.Nodes)
		parent := parents[len(parents)-1]
		s.Nodes = append(s.Nodes, ArenaNode{
			Kind:    n.Kind(),
			Field:   cursor.FieldName(),
			Named:   n.IsNamed(),
			Error:   n.IsError(),
			Missing: n.IsMissing(),
			Range:   ByteRange{Start: n.StartByte(), End: n.EndByte()},
			Start:   pointOf(n.StartPosition()),
			End:     pointOf(n.EndPosition()),
			Parent:  parent,
		})
		if parent >= 0 {
			s.Nodes[parent].Children = append(s.Nodes[parent].Children, idx)
		}

		if cursor.GotoFirstChild() {
			parents = append(parents, idx)
			continue
		}
		for !cursor.GotoNextSibling() {
			if !cursor.GotoParent() {
				return s
			}
			parents = parents[:len(parents)-1]
		}
	}
}

// Len returns the number of nodes.
func (s *Snapshot) Len() int { return len(s.Nodes) }

// Depth returns the distance from node i to the root.
func (s *Snapshot) Depth(i int) int {
	d := 0
	for p := s.Nodes[i].Parent; p >= 0; p = s.Nodes[p].Parent {
		d++
	}
	return d
}

// Ancestors yields the indices of i's ancestors, nearest first.
func (s *Snapshot) Ancestors(i int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for p := s.Nodes[i].Parent; p >= 0; p = s.Nodes[p].Parent {
			if !yield(p) {
				return
			}
		}
	}
}

// Preorder yields every node index in document order.
func (s *Snapshot) Preorder() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range s.Nodes {
			if !yield(i) {
				return
			}
		}
	}
}

// Shape is the structural fingerprint used to compare two trees: kind and
// span of every node in pre-order.
type Shape struct {
	Kind  string
	Range ByteRange
}

// Shape returns the structural fingerprint of the snapshot.
func (s *Snapshot) Shape() []Shape {
	out := make([]Shape, len(s.Nodes))
	for i, n := range s.Nodes {
		out[i] = Shape{Kind: n.Kind, Range: n.Range}
	}
	return out
}

// CountProblems returns the number of ERROR and MISSING nodes.
func (s *Snapshot) CountProblems() int {
	n := 0
	for _, node := range s.Nodes {
		if node.Error || node.Missing {
			n++
		}
	}
	return n
}
