package traverse

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dusk-indust/syntaxkit/internal/syntax"
)

// ErrSyntax is returned by ValidateSyntax for trees with ERROR or MISSING
// nodes.
var ErrSyntax = errors.New("syntax error")

// Severity of a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Node kinds a Diagnostic can point at.
const (
	NodeError   = "ERROR"
	NodeMissing = "MISSING"
)

// Diagnostic explains one malformed region of a tree.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity" msgpack:"severity"`
	NodeKind string   `json:"nodeKind" yaml:"nodeKind" msgpack:"node_kind"`
	Reason   string   `json:"reason" yaml:"reason" msgpack:"reason"`
	// Construct is the enclosing construct the reason was derived from.
	Construct string           `json:"construct,omitempty" yaml:"construct,omitempty" msgpack:"construct"`
	Span      syntax.ByteRange `json:"span" yaml:"span" msgpack:"span"`
	Start     syntax.Point     `json:"start" yaml:"start" msgpack:"start"`
	End       syntax.Point     `json:"end" yaml:"end" msgpack:"end"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (%s)", d.Start, d.Reason, d.NodeKind)
}

// Diagnose reports every ERROR and MISSING node of tree with a specific
// reason. Nodes nested inside an ERROR belong to that ERROR's diagnostic.
func Diagnose(tree *syntax.Tree) []Diagnostic {
	return diagnose(tree.Snapshot(), tree.Source())
}

// ValidateSyntax returns nil for a clean tree and an ErrSyntax describing the
// first problem otherwise.
func ValidateSyntax(tree *syntax.Tree) error {
	diags := Diagnose(tree)
	if len(diags) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d problem(s), first at %s: %s", ErrSyntax, len(diags), diags[0].Start, diags[0].Reason)
}

func diagnose(s *syntax.Snapshot, src []byte) []Diagnostic {
	var out []Diagnostic
	for i := 0; i < len(s.Nodes); i++ {
		n := s.Nodes[i]
		switch {
		case n.Error:
			reason, construct := errorReason(s, i, src)
			out = append(out, newDiagnostic(n, NodeError, reason, construct))
			i = lastDescendant(s, i)
		case n.Missing:
			reason, construct := missingReason(s, i)
			out = append(out, newDiagnostic(n, NodeMissing, reason, construct))
		}
	}
	return out
}

func newDiagnostic(n syntax.ArenaNode, kind, reason, construct string) Diagnostic {
	return Diagnostic{
		Severity:  SeverityError,
		NodeKind:  kind,
		Reason:    reason,
		Construct: construct,
		Span:      n.Range,
		Start:     n.Start,
		End:       n.End,
	}
}

func lastDescendant(s *syntax.Snapshot, i int) int {
	for len(s.Nodes[i].Children) > 0 {
		kids := s.Nodes[i].Children
		i = kids[len(kids)-1]
	}
	return i
}

// requirement is a child a construct cannot do without.
type requirement struct {
	field string
	label string
}

// required lists, per construct kind, the children whose absence explains a
// parse failure inside it. An empty field means "any named child".
var required = map[string][]requirement{
	"return_statement":      {{"", "expression"}},
	"if_statement":          {{"condition", "condition"}, {"consequence", "body"}},
	"if_expression":         {{"condition", "condition"}, {"consequence", "body"}},
	"elif_clause":           {{"condition", "condition"}, {"consequence", "body"}},
	"while_statement":       {{"condition", "condition"}, {"body", "body"}},
	"while_expression":      {{"condition", "condition"}, {"body", "body"}},
	"for_statement":         {{"body", "body"}},
	"for_expression":        {{"body", "body"}},
	"function_definition":   {{"name", "name"}, {"parameters", "parameter list"}, {"body", "body"}},
	"function_declaration":  {{"name", "name"}, {"parameters", "parameter list"}},
	"function_item":         {{"name", "name"}, {"parameters", "parameter list"}, {"body", "body"}},
	"method_declaration":    {{"name", "name"}, {"parameters", "parameter list"}},
	"class_definition":      {{"name", "name"}, {"body", "body"}},
	"class_declaration":     {{"name", "name"}, {"body", "body"}},
	"call_expression":       {{"arguments", "argument list"}},
	"call":                  {{"arguments", "argument list"}},
	"assignment":            {{"right", "value"}},
	"assignment_expression": {{"right", "value"}},
	"short_var_declaration": {{"right", "value"}},
	"import_spec":           {{"path", "import path"}},
}

var (
	functionKeywords = []string{"def", "func", "fn", "function"}
	typeKeywords     = []string{"class", "struct", "interface", "trait", "enum"}
	branchKeywords   = []string{"if", "elif", "while"}
	importKeywords   = []string{"import", "from", "use"}
	closers          = map[string]string{")": "parenthesis", "]": "bracket", "}": "brace"}
	binaryOperators  = []string{
		"+", "-", "*", "/", "%", "**", "//", "&", "|", "^", "&^", "<<", ">>",
		"&&", "||", "and", "or", "==", "!=", "<", ">", "<=", ">=",
	}
)

// wrappers are kinds that only group expressions. A problem inside one is
// reported against the nearest construct above it.
var wrappers = map[string]bool{
	"expression_list":          true,
	"parenthesized_expression": true,
	"binary_expression":        true,
	"binary_operator":          true,
	"boolean_operator":         true,
	"comparison_operator":      true,
	"unary_expression":         true,
}

type token struct {
	kind  string
	named bool
	text  string
}

func tokens(s *syntax.Snapshot, i int, src []byte) []token {
	var out []token
	last := lastDescendant(s, i)
	for j := i + 1; j <= last; j++ {
		n := s.Nodes[j]
		if len(n.Children) > 0 || n.Missing {
			continue
		}
		out = append(out, token{kind: n.Kind, named: n.Named, text: textOf(n, src)})
	}
	return out
}

func textOf(n syntax.ArenaNode, src []byte) string {
	if n.Range.End > uint(len(src)) || n.Range.Start >= n.Range.End {
		return n.Kind
	}
	return string(src[n.Range.Start:n.Range.End])
}

// errorReason explains an ERROR node from the tokens it swallowed and, when
// those are inconclusive, from the construct it interrupts.
func errorReason(s *syntax.Snapshot, i int, src []byte) (reason, construct string) {
	toks := tokens(s, i, src)

	for k, t := range toks {
		if t.named {
			continue
		}
		rest := toks[k+1:]
		switch {
		case t.kind == "return":
			if !slices.ContainsFunc(rest, func(t token) bool { return t.named }) {
				return "return statement missing required expression", "return_statement"
			}
		case slices.Contains(functionKeywords, t.kind):
			opens, closes := count(rest, "("), count(rest, ")")
			switch {
			case opens == 0:
				return "function definition missing parameter list", t.kind
			case opens > closes:
				return "function definition has unclosed parameter list", t.kind
			default:
				return "function definition missing body", t.kind
			}
		case slices.Contains(typeKeywords, t.kind):
			named := (len(rest) > 0 && rest[0].named) || (k > 0 && toks[k-1].named)
			if !named {
				return t.kind + " definition missing name", t.kind
			}
			return t.kind + " definition missing body", t.kind
		case slices.Contains(branchKeywords, t.kind):
			if len(rest) == 0 || rest[0].kind == ":" || rest[0].kind == "{" {
				return t.kind + " statement missing condition", t.kind
			}
			return t.kind + " statement missing body", t.kind
		case slices.Contains(importKeywords, t.kind):
			if !slices.ContainsFunc(rest, func(t token) bool { return t.named }) {
				return "import statement missing module path", t.kind
			}
		}
	}

	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}, {"{", "}"}} {
		if count(toks, pair[0]) > count(toks, pair[1]) {
			return "unclosed " + closers[pair[1]], ""
		}
	}
	if len(toks) > 0 {
		if last := toks[len(toks)-1].kind; last == "=" || last == ":=" {
			return "assignment missing value after '" + last + "'", ""
		}
	}

	if op, ok := danglingOperator(s, i, toks); ok {
		construct := s.Nodes[i].Parent
		if prev := prevSibling(s, i); prev >= 0 && len(s.Nodes[prev].Children) > 0 {
			construct = prev
		}
		kind := enclosingConstruct(s, construct)
		return fmt.Sprintf("incomplete expression after %q in %s", op, human(kind)), kind
	}

	for a := range s.Ancestors(i) {
		kind := s.Nodes[a].Kind
		if label, ok := missingRequirement(s, a); ok {
			return human(kind) + " missing required " + label, kind
		}
		if _, ok := required[kind]; ok {
			break
		}
	}

	text := textOf(s.Nodes[i], src)
	if len(toks) > 0 {
		text = toks[0].text
	}
	if text == "" || text == NodeError {
		return "unexpected input", ""
	}
	return fmt.Sprintf("unexpected %q", truncate(text, 24)), ""
}

// missingReason explains a MISSING node, the token the parser inserted to
// recover.
func missingReason(s *syntax.Snapshot, i int) (reason, construct string) {
	n := s.Nodes[i]
	parent := ""
	if n.Parent >= 0 {
		parent = s.Nodes[n.Parent].Kind
	}
	where := human(parent)

	switch {
	case closers[n.Kind] != "":
		return fmt.Sprintf("missing closing %s in %s", closers[n.Kind], where), parent
	case n.Kind == ";":
		return "missing ';' after " + where, parent
	case n.Kind == `"` || n.Kind == "'" || n.Kind == "`" || n.Kind == "string_end":
		return "unterminated string literal", parent
	case parent == "return_statement":
		return "return statement missing required expression", parent
	}

	if prev := prevSibling(s, i); prev >= 0 && !s.Nodes[prev].Named &&
		slices.Contains(binaryOperators, s.Nodes[prev].Kind) && prevSibling(s, prev) >= 0 {
		kind := enclosingConstruct(s, n.Parent)
		return fmt.Sprintf("incomplete expression after %q in %s", s.Nodes[prev].Kind, human(kind)), kind
	}

	for child, p := i, n.Parent; p >= 0; child, p = p, s.Nodes[p].Parent {
		kind := s.Nodes[p].Kind
		for _, r := range required[kind] {
			if r.field != "" && r.field == s.Nodes[child].Field {
				return human(kind) + " missing required " + r.label, kind
			}
		}
		if !wrappers[kind] {
			break
		}
	}

	if n.Field != "" {
		return where + " missing required " + human(n.Field), parent
	}
	if n.Named {
		return where + " missing required " + human(n.Kind), parent
	}
	return fmt.Sprintf("missing %q in %s", n.Kind, where), parent
}

// danglingOperator finds a binary operator among the ERROR's tokens that has a
// left operand but nothing after it. The left operand may be the ERROR's
// preceding sibling.
func danglingOperator(s *syntax.Snapshot, i int, toks []token) (string, bool) {
	for k := len(toks) - 1; k >= 0; k-- {
		t := toks[k]
		if t.named {
			return "", false
		}
		if !slices.Contains(binaryOperators, t.kind) {
			continue
		}
		if slices.ContainsFunc(toks[:k], func(t token) bool { return t.named }) {
			return t.kind, true
		}
		if k == 0 {
			if prev := prevSibling(s, i); prev >= 0 && s.Nodes[prev].Named && !s.Nodes[prev].Error {
				return t.kind, true
			}
		}
		return "", false
	}
	return "", false
}

// prevSibling returns the sibling before i, skipping comments, or -1.
func prevSibling(s *syntax.Snapshot, i int) int {
	p := s.Nodes[i].Parent
	if p < 0 {
		return -1
	}
	kids := s.Nodes[p].Children
	for k := slices.Index(kids, i) - 1; k >= 0; k-- {
		if s.Nodes[kids[k]].Kind != "comment" {
			return kids[k]
		}
	}
	return -1
}

// enclosingConstruct climbs from a past wrapper kinds.
func enclosingConstruct(s *syntax.Snapshot, a int) string {
	for a >= 0 && wrappers[s.Nodes[a].Kind] && s.Nodes[a].Parent >= 0 {
		a = s.Nodes[a].Parent
	}
	if a < 0 {
		return ""
	}
	return s.Nodes[a].Kind
}

// missingRequirement reports the first required child absent from node a.
func missingRequirement(s *syntax.Snapshot, a int) (string, bool) {
	for _, r := range required[s.Nodes[a].Kind] {
		found := false
		for _, c := range s.Nodes[a].Children {
			child := s.Nodes[c]
			if child.Error || child.Missing || !child.Named || child.Kind == "comment" {
				continue
			}
			if r.field == "" || child.Field == r.field {
				found = true
				break
			}
		}
		if !found {
			return r.label, true
		}
	}
	return "", false
}

func count(toks []token, kind string) int {
	n := 0
	for _, t := range toks {
		if t.kind == kind {
			n++
		}
	}
	return n
}

func human(kind string) string {
	if kind == "" {
		return "source"
	}
	return strings.ReplaceAll(kind, "_", " ")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
