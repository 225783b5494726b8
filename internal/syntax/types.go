package syntax

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Point is a zero-based (row, column) position. Columns count bytes.
type Point struct {
	Row    uint `json:"row" yaml:"row" msgpack:"row"`
	Column uint `json:"column" yaml:"column" msgpack:"column"`
}

// Less reports whether p comes before o.
func (p Point) Less(o Point) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Column < o.Column
}

func (p Point) String() string { return fmt.Sprintf("%d:%d", p.Row, p.Column) }

func pointOf(p tree_sitter.Point) Point { return Point{Row: p.Row, Column: p.Column} }

// TS converts p to the binding's representation.
func (p Point) TS() tree_sitter.Point { return tree_sitter.Point{Row: p.Row, Column: p.Column} }

// ByteRange is a half-open [Start, End) byte span.
type ByteRange struct {
	Start uint `json:"start" yaml:"start" msgpack:"start"`
	End   uint `json:"end" yaml:"end" msgpack:"end"`
}

// Len returns the number of bytes covered.
func (r ByteRange) Len() uint {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether o lies entirely within r.
func (r ByteRange) Contains(o ByteRange) bool {
	return o.Start >= r.Start && o.End <= r.End
}

// Overlaps reports whether r and o share at least one byte. Empty ranges
// overlap a range that contains their position.
func (r ByteRange) Overlaps(o ByteRange) bool {
	if r.Len() == 0 || o.Len() == 0 {
		return r.Contains(o) || o.Contains(r)
	}
	return r.Start < o.End && o.Start < r.End
}

func (r ByteRange) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// NodeRef is a detached reference to a syntax node. It carries positions and
// kind only, so it stays valid after the tree it came from is closed.
type NodeRef struct {
	Kind       string `json:"kind" yaml:"kind" msgpack:"kind"`
	StartByte  uint   `json:"startByte" yaml:"startByte" msgpack:"start_byte"`
	EndByte    uint   `json:"endByte" yaml:"endByte" msgpack:"end_byte"`
	StartPoint Point  `json:"startPoint" yaml:"startPoint" msgpack:"start_point"`
	EndPoint   Point  `json:"endPoint" yaml:"endPoint" msgpack:"end_point"`
}

// RefOf detaches n from its tree.
func RefOf(n *tree_sitter.Node) NodeRef {
	return NodeRef{
		Kind:       n.Kind(),
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: pointOf(n.StartPosition()),
		EndPoint:   pointOf(n.EndPosition()),
	}
}

// Range returns the node's byte span.
func (n NodeRef) Range() ByteRange { return ByteRange{Start: n.StartByte, End: n.EndByte} }

// Text returns the node's text within source. Out of range references yield
// an empty string.
func (n NodeRef) Text(source []byte) string {
	if n.EndByte > uint(len(source)) || n.StartByte > n.EndByte {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

func (n NodeRef) String() string {
	return fmt.Sprintf("(%s %s-%s)", n.Kind, n.StartPoint, n.EndPoint)
}

// Range mirrors tree_sitter.Range with detached points.
type Range struct {
	ByteRange
	StartPoint Point `json:"startPoint" yaml:"startPoint" msgpack:"start_point"`
	EndPoint   Point `json:"endPoint" yaml:"endPoint" msgpack:"end_point"`
}

// RangeOf converts a binding range.
func RangeOf(r tree_sitter.Range) Range {
	return Range{
		ByteRange:  ByteRange{Start: r.StartByte, End: r.EndByte},
		StartPoint: pointOf(r.StartPoint),
		EndPoint:   pointOf(r.EndPoint),
	}
}
