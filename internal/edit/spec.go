// Package edit applies byte-range edits to documents, reparses incrementally
// and reports what changed.
package edit

import (
	"bytes"
	"errors"
	"fmt"

	"fortio.org/safecast"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/syntaxkit/internal/syntax"
)

// ErrInvalidEditRange is returned for edits that fall outside the buffer or
// whose byte offsets and points disagree.
var ErrInvalidEditRange = errors.New("invalid edit range")

// Spec describes one contiguous replacement: bytes [StartByte, OldEndByte)
// of the buffer become NewText, which ends at NewEndByte.
type Spec struct {
	StartByte   uint         `json:"startByte" yaml:"startByte"`
	OldEndByte  uint         `json:"oldEndByte" yaml:"oldEndByte"`
	NewEndByte  uint         `json:"newEndByte" yaml:"newEndByte"`
	StartPoint  syntax.Point `json:"startPoint" yaml:"startPoint"`
	OldEndPoint syntax.Point `json:"oldEndPoint" yaml:"oldEndPoint"`
	NewEndPoint syntax.Point `json:"newEndPoint" yaml:"newEndPoint"`
	NewText     []byte       `json:"newText" yaml:"newText"`
}

func (s Spec) String() string {
	return fmt.Sprintf("[%d,%d)->%d bytes", s.StartByte, s.OldEndByte, len(s.NewText))
}

// Validate checks s against buf, the buffer it will be applied to.
func (s Spec) Validate(buf []byte) error {
	size := safecast.MustConv[uint](len(buf))
	switch {
	case s.StartByte > s.OldEndByte:
		return fmt.Errorf("%w: start %d after old end %d", ErrInvalidEditRange, s.StartByte, s.OldEndByte)
	case s.OldEndByte > size:
		return fmt.Errorf("%w: old end %d beyond buffer length %d", ErrInvalidEditRange, s.OldEndByte, size)
	case s.NewEndByte != s.StartByte+safecast.MustConv[uint](len(s.NewText)):
		return fmt.Errorf("%w: new end %d does not match %d bytes of new text at %d",
			ErrInvalidEditRange, s.NewEndByte, len(s.NewText), s.StartByte)
	}
	if p := pointAt(buf, s.StartByte); p != s.StartPoint {
		return fmt.Errorf("%w: start point %s, offset %d is at %s", ErrInvalidEditRange, s.StartPoint, s.StartByte, p)
	}
	if p := pointAt(buf, s.OldEndByte); p != s.OldEndPoint {
		return fmt.Errorf("%w: old end point %s, offset %d is at %s", ErrInvalidEditRange, s.OldEndPoint, s.OldEndByte, p)
	}
	if p := advance(s.StartPoint, s.NewText); p != s.NewEndPoint {
		return fmt.Errorf("%w: new end point %s, new text ends at %s", ErrInvalidEditRange, s.NewEndPoint, p)
	}
	return nil
}

// Splice returns a new buffer with s applied to buf. buf is not modified.
func (s Spec) Splice(buf []byte) []byte {
	out := make([]byte, 0, len(buf)-safecast.MustConv[int](s.OldEndByte-s.StartByte)+len(s.NewText))
	out = append(out, buf[:s.StartByte]...)
	out = append(out, s.NewText...)
	return append(out, buf[s.OldEndByte:]...)
}

// Inverse returns the edit that undoes s. buf is the buffer s was applied to.
func (s Spec) Inverse(buf []byte) Spec {
	return Spec{
		StartByte:   s.StartByte,
		OldEndByte:  s.NewEndByte,
		NewEndByte:  s.OldEndByte,
		StartPoint:  s.StartPoint,
		OldEndPoint: s.NewEndPoint,
		NewEndPoint: s.OldEndPoint,
		NewText:     bytes.Clone(buf[s.StartByte:s.OldEndByte]),
	}
}

// InputEdit converts s for the binding.
func (s Spec) InputEdit() *tree_sitter.InputEdit {
	return &tree_sitter.InputEdit{
		StartByte:      s.StartByte,
		OldEndByte:     s.OldEndByte,
		NewEndByte:     s.NewEndByte,
		StartPosition:  s.StartPoint.TS(),
		OldEndPosition: s.OldEndPoint.TS(),
		NewEndPosition: s.NewEndPoint.TS(),
	}
}

// SpecFromBytes builds the edit replacing [start, oldEnd) of buf with text.
func SpecFromBytes(buf []byte, start, oldEnd uint, text []byte) (Spec, error) {
	size := safecast.MustConv[uint](len(buf))
	if start > oldEnd || oldEnd > size {
		return Spec{}, fmt.Errorf("%w: [%d,%d) in buffer of %d bytes", ErrInvalidEditRange, start, oldEnd, size)
	}
	sp := pointAt(buf, start)
	return Spec{
		StartByte:   start,
		OldEndByte:  oldEnd,
		NewEndByte:  start + safecast.MustConv[uint](len(text)),
		StartPoint:  sp,
		OldEndPoint: pointAt(buf, oldEnd),
		NewEndPoint: advance(sp, text),
		NewText:     bytes.Clone(text),
	}, nil
}

// SpecFromPoints builds the edit replacing the text between two points.
func SpecFromPoints(buf []byte, start, oldEnd syntax.Point, text []byte) (Spec, error) {
	if oldEnd.Less(start) {
		return Spec{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidEditRange, oldEnd, start)
	}
	s, err := offsetAt(buf, start)
	if err != nil {
		return Spec{}, err
	}
	e, err := offsetAt(buf, oldEnd)
	if err != nil {
		return Spec{}, err
	}
	return SpecFromBytes(buf, s, e, text)
}

// SpecFromDiff returns the smallest single edit turning old into new. ok is
// false when the buffers are equal.
func SpecFromDiff(old, new []byte) (spec Spec, ok bool) {
	if bytes.Equal(old, new) {
		return Spec{}, false
	}
	prefix := 0
	for prefix < len(old) && prefix < len(new) && old[prefix] == new[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(new)-prefix &&
		old[len(old)-1-suffix] == new[len(new)-1-suffix] {
		suffix++
	}
	start := safecast.MustConv[uint](prefix)
	oldEnd := safecast.MustConv[uint](len(old) - suffix)
	spec, err := SpecFromBytes(old, start, oldEnd, new[prefix:len(new)-suffix])
	if err != nil {
		// Offsets are derived from old itself.
		panic(err)
	}
	return spec, true
}

func pointAt(buf []byte, offset uint) syntax.Point {
	head := buf[:min(offset, safecast.MustConv[uint](len(buf)))]
	row := bytes.Count(head, []byte{'\n'})
	col := len(head) - (bytes.LastIndexByte(head, '\n') + 1)
	return syntax.Point{Row: safecast.MustConv[uint](row), Column: safecast.MustConv[uint](col)}
}

func offsetAt(buf []byte, p syntax.Point) (uint, error) {
	lineStart := 0
	for row := uint(0); row < p.Row; row++ {
		i := bytes.IndexByte(buf[lineStart:], '\n')
		if i < 0 {
			return 0, fmt.Errorf("%w: row %d beyond last line", ErrInvalidEditRange, p.Row)
		}
		lineStart += i + 1
	}
	lineEnd := len(buf)
	if i := bytes.IndexByte(buf[lineStart:], '\n'); i >= 0 {
		lineEnd = lineStart + i
	}
	if p.Column > safecast.MustConv[uint](lineEnd-lineStart) {
		return 0, fmt.Errorf("%w: column %d beyond end of row %d", ErrInvalidEditRange, p.Column, p.Row)
	}
	return safecast.MustConv[uint](lineStart) + p.Column, nil
}

func advance(p syntax.Point, text []byte) syntax.Point {
	n := bytes.Count(text, []byte{'\n'})
	if n == 0 {
		return syntax.Point{Row: p.Row, Column: p.Column + safecast.MustConv[uint](len(text))}
	}
	tail := len(text) - (bytes.LastIndexByte(text, '\n') + 1)
	return syntax.Point{Row: p.Row + safecast.MustConv[uint](n), Column: safecast.MustConv[uint](tail)}
}
