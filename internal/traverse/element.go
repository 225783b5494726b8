// Package traverse walks syntax trees: it extracts code elements, finds
// string statements used as comments and explains malformed regions.
package traverse

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/pattern"
	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
)

// ErrTruncated is reported by Extract when a pattern hit its match limit and
// some elements may be missing.
var ErrTruncated = errors.New("element extraction truncated")

// Kind classifies a CodeElement.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindStruct    Kind = "struct"
	KindNamespace Kind = "namespace"
	KindImport    Kind = "import"
	KindVariable  Kind = "variable"
	KindField     Kind = "field"
	KindDocstring Kind = "docstring"
	KindComment   Kind = "comment"
)

// ModifierPhantom marks a comment element that is a bare string statement.
const ModifierPhantom = "phantom"

// CodeElement is a construct extracted from one match.
type CodeElement struct {
	Kind          Kind             `json:"kind" yaml:"kind" msgpack:"kind"`
	Name          string           `json:"name,omitempty" yaml:"name,omitempty" msgpack:"name"`
	Span          syntax.ByteRange `json:"span" yaml:"span" msgpack:"span"`
	Start         syntax.Point     `json:"start" yaml:"start" msgpack:"start"`
	End           syntax.Point     `json:"end" yaml:"end" msgpack:"end"`
	Documentation string           `json:"documentation,omitempty" yaml:"documentation,omitempty" msgpack:"documentation"`
	Modifiers     []string         `json:"modifiers,omitempty" yaml:"modifiers,omitempty" msgpack:"modifiers"`
}

// HasModifier reports whether m is among e's modifiers.
func (e CodeElement) HasModifier(m string) bool { return slices.Contains(e.Modifiers, m) }

// elementKeys are the catalog keys that produce elements, in the order used
// to break ties between elements sharing a span.
var elementKeys = []string{
	pattern.KeyNamespace,
	pattern.KeyImport,
	pattern.KeyClass,
	pattern.KeyInterface,
	pattern.KeyStruct,
	pattern.KeyMethod,
	pattern.KeyFunction,
	pattern.KeyField,
	pattern.KeyVariable,
	pattern.KeyComment,
}

var kindRank = map[Kind]int{
	KindNamespace: 0,
	KindImport:    1,
	KindClass:     2,
	KindInterface: 3,
	KindStruct:    4,
	KindMethod:    5,
	KindFunction:  6,
	KindField:     7,
	KindVariable:  8,
	KindDocstring: 9,
	KindComment:   10,
}

// Elements yields the code elements of tree in document order. The sequence
// is computed afresh on every iteration, so it can be ranged over repeatedly;
// patterns that fail to compile are skipped.
func Elements(tree *syntax.Tree, cat *pattern.Catalog) iter.Seq[CodeElement] {
	return func(yield func(CodeElement) bool) {
		els, _ := Extract(tree, cat)
		for _, e := range els {
			if !yield(e) {
				return
			}
		}
	}
}

// Extract collects every code element of tree. Failures of individual
// patterns are joined into the returned error; the elements that could be
// extracted are returned regardless.
func Extract(tree *syntax.Tree, cat *pattern.Catalog) ([]CodeElement, error) {
	defer runtime.KeepAlive(tree)

	h := tree.Language()
	src := tree.Source()
	var (
		els  []CodeElement
		errs []error
	)

	run := func(key string) []query.Match {
		c, err := cat.Compile(h, key)
		if err != nil {
			if !errors.Is(err, pattern.ErrUnknownPattern) {
				errs = append(errs, err)
			}
			return nil
		}
		res, err := query.Run(c, tree, elementOptions(cat, key))
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if res.Partial {
			errs = append(errs, fmt.Errorf("%w: %s", ErrTruncated, key))
		}
		return res.Matches
	}

	for _, key := range elementKeys {
		p, ok := cat.Lookup(h, key)
		if !ok {
			continue
		}
		primary := p.PrimaryCapture()
		for _, m := range run(key) {
			ref, ok := m.First(primary)
			if !ok {
				continue
			}
			e := CodeElement{
				Kind:  Kind(key),
				Name:  elementName(key, m, ref, src),
				Span:  ref.Range(),
				Start: ref.StartPoint,
				End:   ref.EndPoint,
			}
			if e.Kind == KindComment {
				e.Documentation = cleanComment(ref.Text(src))
			} else {
				e.Modifiers = modifiers(tree, ref, e.Name)
			}
			els = append(els, e)
		}
	}

	els = dropShadowedFunctions(els)

	// Docstrings: attach to the owner and also report them as elements.
	owned := make(map[syntax.ByteRange]string)
	for _, key := range pattern.DocstringKeys {
		for _, m := range run(key) {
			doc, ok := m.First("docstring")
			if !ok {
				continue
			}
			text := cleanString(doc.Text(src))
			e := CodeElement{
				Kind:          KindDocstring,
				Span:          doc.Range(),
				Start:         doc.StartPoint,
				End:           doc.EndPoint,
				Documentation: text,
				Modifiers:     []string{strings.TrimSuffix(key, "_docstring")},
			}
			if owner, ok := m.First("docstring.owner"); ok && key != pattern.KeyModuleDocstring {
				owned[owner.Range()] = text
			}
			els = append(els, e)
		}
	}

	phantoms, err := phantomRefs(tree, cat)
	if err != nil {
		errs = append(errs, err)
	}
	for _, n := range phantoms {
		els = append(els, CodeElement{
			Kind:          KindComment,
			Span:          n.Range(),
			Start:         n.StartPoint,
			End:           n.EndPoint,
			Documentation: cleanString(n.Text(src)),
			Modifiers:     []string{ModifierPhantom},
		})
	}

	sortElements(els)
	attachDocumentation(els, owned, src)
	return els, errors.Join(errs...)
}

// elementOptions keeps the match limit of key but drops depth and time
// bounds: extraction must see the whole tree.
func elementOptions(cat *pattern.Catalog, key string) query.Options {
	opts := cat.Settings(key)
	opts.MaxStartDepth = nil
	opts.TimeoutMicros = 0
	return opts
}

func elementName(key string, m query.Match, def syntax.NodeRef, src []byte) string {
	if ref, ok := m.First(key + ".name"); ok {
		return ref.Text(src)
	}
	switch key {
	case pattern.KeyImport:
		if ref, ok := m.First("import.path"); ok {
			return strings.Trim(ref.Text(src), "\"'`")
		}
		return firstLine(def.Text(src))
	case pattern.KeyNamespace:
		text := strings.TrimSpace(firstLine(def.Text(src)))
		text = strings.TrimPrefix(text, "package ")
		return strings.TrimSpace(strings.TrimSuffix(text, ";"))
	}
	return ""
}

// dropShadowedFunctions removes function elements whose span is also
// reported as a method.
func dropShadowedFunctions(els []CodeElement) []CodeElement {
	methods := make(map[syntax.ByteRange]bool)
	for _, e := range els {
		if e.Kind == KindMethod {
			methods[e.Span] = true
		}
	}
	return slices.DeleteFunc(els, func(e CodeElement) bool {
		return e.Kind == KindFunction && methods[e.Span]
	})
}

func sortElements(els []CodeElement) {
	slices.SortStableFunc(els, func(a, b CodeElement) int {
		if c := cmp.Compare(a.Span.Start, b.Span.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Span.End, a.Span.End); c != 0 {
			return c
		}
		return cmp.Compare(kindRank[a.Kind], kindRank[b.Kind])
	})
}

// attachDocumentation fills Documentation from an owned docstring or, failing
// that, from the comments on the lines directly above the element.
func attachDocumentation(els []CodeElement, owned map[syntax.ByteRange]string, src []byte) {
	byEndRow := make(map[uint]int)
	for i, e := range els {
		if e.Kind == KindComment && !e.HasModifier(ModifierPhantom) && startsLine(src, e.Span.Start) {
			byEndRow[e.End.Row] = i
		}
	}
	for i := range els {
		e := &els[i]
		if e.Kind == KindComment || e.Kind == KindDocstring {
			continue
		}
		if doc, ok := owned[e.Span]; ok {
			e.Documentation = doc
			continue
		}
		var lines []string
		row := e.Start.Row
		for row > 0 {
			j, ok := byEndRow[row-1]
			if !ok || els[j].Span.End > e.Span.Start {
				break
			}
			lines = append(lines, els[j].Documentation)
			row = els[j].Start.Row
		}
		slices.Reverse(lines)
		e.Documentation = strings.Join(lines, "\n")
	}
}

// startsLine reports whether only whitespace precedes offset on its line.
func startsLine(src []byte, offset uint) bool {
	if offset > uint(len(src)) {
		return false
	}
	lineStart := bytes.LastIndexByte(src[:offset], '\n') + 1
	return len(bytes.TrimSpace(src[lineStart:offset])) == 0
}

// modifiers derives declaration modifiers from the node's own keywords, its
// wrapping construct and, for Go, the export rule.
func modifiers(tree *syntax.Tree, ref syntax.NodeRef, name string) []string {
	n, ok := tree.Lookup(ref)
	if !ok {
		return nil
	}
	src := tree.Source()
	var out []string
	add := func(m string) {
		if m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}

	for i := range n.ChildCount() {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "modifiers":
			for _, f := range strings.Fields(c.Utf8Text(src)) {
				if !strings.HasPrefix(f, "@") {
					add(f)
				}
			}
		case "visibility_modifier", "accessibility_modifier":
			add(c.Utf8Text(src))
		case "async", "static", "abstract", "readonly", "unsafe", "const", "override", "default":
			add(c.Kind())
		}
	}

	if p := n.Parent(); p != nil {
		switch p.Kind() {
		case "export_statement":
			add("export")
		case "decorated_definition":
			add("decorated")
		}
	}

	switch tree.Language().ID() {
	case lang.Go:
		if r, _ := utf8.DecodeRuneInString(name); unicode.IsUpper(r) {
			add("exported")
		}
	case lang.Python:
		switch {
		case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"):
			add("dunder")
		case strings.HasPrefix(name, "_"):
			add("private")
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// cleanComment strips comment markers from every line of text.
func cleanComment(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		for _, p := range []string{"///", "//!", "//", "/**", "/*", "#"} {
			if strings.HasPrefix(l, p) {
				l = l[len(p):]
				break
			}
		}
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(strings.TrimSpace(l), "* ")
		l = strings.TrimSpace(strings.TrimPrefix(l, "*"))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// cleanString removes string prefixes and quotes from a string statement.
func cleanString(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}
	return strings.TrimSpace(s)
}
