package lang

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Language identifies a registered grammar.
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	Rust       Language = "rust"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	JavaScript Language = "javascript"
	Java       Language = "java"
)

// ErrUnsupportedLanguage is returned by Resolve when no grammar is registered
// for the requested identifier.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// aliases maps alternate spellings to canonical identifiers.
var aliases = map[string]Language{
	"golang": Go,
	"py":     Python,
	"rs":     Rust,
	"ts":     TypeScript,
	"js":     JavaScript,
	"jsx":    JavaScript,
}

// Handle is an immutable reference to a registered grammar.
type Handle struct {
	id      Language
	grammar *tree_sitter.Language
}

// ID returns the canonical language identifier.
func (h *Handle) ID() Language { return h.id }

// Grammar returns the underlying tree-sitter language.
func (h *Handle) Grammar() *tree_sitter.Language { return h.grammar }

func (h *Handle) String() string { return string(h.id) }

// Registry resolves language identifiers to grammar handles and hands out
// reusable parsers. It is populated once by NewRegistry and never mutated
// afterwards, so concurrent lookups need no locking.
type Registry struct {
	handles map[Language]*Handle
	parsers map[Language]*Parser
}

// NewRegistry creates a Registry with every bundled grammar registered.
func NewRegistry() *Registry {
	grammars := map[Language]*tree_sitter.Language{
		Go:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
		Python:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
		Rust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		TypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		TSX:        tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
		JavaScript: tree_sitter.NewLanguage(tree_sitter_javascript.Language()),
		Java:       tree_sitter.NewLanguage(tree_sitter_java.Language()),
	}

	r := &Registry{
		handles: make(map[Language]*Handle, len(grammars)),
		parsers: make(map[Language]*Parser, len(grammars)),
	}
	for id, g := range grammars {
		h := &Handle{id: id, grammar: g}
		r.handles[id] = h
		r.parsers[id] = newParser(h)
	}
	return r
}

// Resolve returns the handle registered for id. Identifiers are matched
// case-insensitively and common aliases ("py", "ts", "golang") are accepted.
func (r *Registry) Resolve(id string) (*Handle, error) {
	key := Language(strings.ToLower(strings.TrimSpace(id)))
	if canonical, ok := aliases[string(key)]; ok {
		key = canonical
	}
	h, ok := r.handles[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, id)
	}
	return h, nil
}

// MustResolve is like Resolve but panics on unknown identifiers. Intended for
// package-level tables and tests.
func (r *Registry) MustResolve(id Language) *Handle {
	h, err := r.Resolve(string(id))
	if err != nil {
		panic(err)
	}
	return h
}

// ParserFor returns the shared parser for h.
func (r *Registry) ParserFor(h *Handle) *Parser {
	return r.parsers[h.id]
}

// Languages returns the registered identifiers in sorted order.
func (r *Registry) Languages() []Language {
	out := make([]Language, 0, len(r.handles))
	for id := range r.handles {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Close releases every idle parser. Handles stay valid.
func (r *Registry) Close() error {
	for _, p := range r.parsers {
		p.drain()
	}
	return nil
}
