package query

import (
	"fmt"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Predicates evaluated here, after structural matching. Text predicates
// (#eq?, #match?, #any-of? and their negations) are handled by the binding.
const (
	opKindEq       = "kind-eq?"
	opNotKindEq    = "not-kind-eq?"
	opParentKindEq = "parent-kind-eq?"
)

type check struct {
	op      string
	capture uint
	kinds   []string
}

func newCheck(pred tree_sitter.QueryPredicate, captures []string) (check, error) {
	var (
		capture *uint
		literal []string
	)
	for _, arg := range pred.Args {
		switch {
		case arg.CaptureId != nil:
			if capture != nil {
				return check{}, fmt.Errorf("#%s takes exactly one capture, got @%s and @%s",
					pred.Operator, captures[*capture], captures[*arg.CaptureId])
			}
			capture = arg.CaptureId
		case arg.String != nil:
			literal = append(literal, *arg.String)
		}
	}
	if capture == nil {
		return check{}, fmt.Errorf("#%s has only literal operands; at least one capture is required", pred.Operator)
	}

	switch pred.Operator {
	case opKindEq, opNotKindEq, opParentKindEq:
		if len(literal) == 0 {
			return check{}, fmt.Errorf("#%s needs at least one node kind", pred.Operator)
		}
	default:
		return check{}, fmt.Errorf("unknown predicate #%s", pred.Operator)
	}
	return check{op: pred.Operator, capture: *capture, kinds: literal}, nil
}

// holds reports whether every node bound to the check's capture satisfies it.
// A capture that bound no node (an optional one) passes.
func (c check) holds(captures []tree_sitter.QueryCapture) bool {
	for i := range captures {
		if uint(captures[i].Index) != c.capture {
			continue
		}
		n := &captures[i].Node
		switch c.op {
		case opKindEq:
			if !slices.Contains(c.kinds, n.Kind()) {
				return false
			}
		case opNotKindEq:
			if slices.Contains(c.kinds, n.Kind()) {
				return false
			}
		case opParentKindEq:
			p := n.Parent()
			if p == nil || !slices.Contains(c.kinds, p.Kind()) {
				return false
			}
		}
	}
	return true
}

func satisfies(checks []check, captures []tree_sitter.QueryCapture) bool {
	for _, c := range checks {
		if !c.holds(captures) {
			return false
		}
	}
	return true
}
