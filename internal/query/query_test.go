package query

import (
	"strings"
	"testing"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func setup(t *testing.T, id lang.Language, src string) (*lang.Registry, *syntax.Tree) {
	t.Helper()
	reg := lang.NewRegistry()
	t.Cleanup(func() { _ = reg.Close() })
	tree, err := syntax.Parse(reg, string(id), []byte(src), nil)
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return reg, tree
}

func mustCompile(t *testing.T, h *lang.Handle, template string) *Compiled {
	t.Helper()
	c, err := Compile(h, "test", template)
	require.NoError(t, err)
	return c
}

func texts(src []byte, matches []Match, name string) []string {
	var out []string
	for _, m := range matches {
		for _, ref := range m.Captures[name] {
			out = append(out, ref.Text(src))
		}
	}
	return out
}

func uintPtr(v uint) *uint { return &v }

const pySource = `import os

def alpha(x):
    return x

class Beta:
    def gamma(self):
        return 1

def delta():
    pass
`

// ---------------------------------------------------------------------------
// Compile
// ---------------------------------------------------------------------------

func TestCompile_Errors(t *testing.T) {
	reg, _ := setup(t, lang.Python, "")
	py := reg.MustResolve(lang.Python)

	tests := []struct {
		name     string
		template string
		kind     string
	}{
		{"syntax", "(function_definition", "syntax"},
		{"node type", "(no_such_node) @x", "node type"},
		{"field", "(function_definition nope: (identifier)) @x", "field"},
		{"literal only predicate", `((identifier) @x (#kind-eq? "identifier" "string"))`, "predicate"},
		{"unknown predicate", `((identifier) @x (#frobnicate? @x))`, "predicate"},
		{"literal first eq", `((identifier) @x (#eq? "a" @x))`, "predicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(py, "k", tt.template)
			assert.Nil(t, c)
			require.ErrorIs(t, err, ErrCompile)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, tt.template, ce.Template)
			assert.Equal(t, lang.Python, ce.Language)
		})
	}
}

func TestCompile_PatternInfo(t *testing.T) {
	reg, _ := setup(t, lang.Python, "")
	py := reg.MustResolve(lang.Python)

	c := mustCompile(t, py, `
(function_definition name: (identifier) @name) @def
((identifier) @a . (identifier) @b)
`)
	require.Equal(t, 2, c.PatternCount())
	assert.True(t, c.Info(0).Rooted)
	assert.False(t, c.Info(0).NonLocal)
	assert.False(t, c.Info(1).Rooted, "sibling sequence has two roots")
	assert.Equal(t, []string{"name", "def", "a", "b"}, c.CaptureNames())
}

func TestCompile_RangeSafe(t *testing.T) {
	reg, _ := setup(t, lang.Python, "")
	py := reg.MustResolve(lang.Python)

	assert.True(t, mustCompile(t, py, "(identifier) @id").RangeSafe())
	assert.False(t, mustCompile(t, py, "((expression_statement) @a (expression_statement) @b)").RangeSafe())
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_Matches(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(function_definition name: (identifier) @name) @def")

	res, err := Run(c, tree, Options{})
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.Equal(t, []string{"alpha", "gamma", "delta"}, texts(tree.Source(), res.Matches, "name"))

	for _, m := range res.Matches {
		assert.Equal(t, "test", m.Pattern)
		def, ok := m.First("def")
		require.True(t, ok)
		assert.True(t, tree.Span().Contains(def.Range()))
		assert.Equal(t, "function_definition", def.Kind)
	}
}

func TestRun_CapturesModeSameShape(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(function_definition name: (identifier) @name) @def")

	res, err := Run(c, tree, Options{Mode: ModeCaptures})
	require.NoError(t, err)
	require.Len(t, res.Matches, 6)

	var prev uint
	for _, m := range res.Matches {
		assert.Len(t, m.Captures, 1)
		start := firstStart(m)
		assert.GreaterOrEqual(t, start, prev, "captures come back in position order")
		prev = start
	}
	assert.Equal(t, []string{"alpha", "gamma", "delta"}, texts(tree.Source(), res.Matches, "name"))
}

func TestRun_Deterministic(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	py := reg.MustResolve(lang.Python)
	template := "[(function_definition) (class_definition)] @def"

	a, err := Run(mustCompile(t, py, template), tree, Options{})
	require.NoError(t, err)
	b, err := Run(mustCompile(t, py, template), tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_ByteRange(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(function_definition name: (identifier) @name)")

	start := uint(strings.Index(pySource, "class Beta"))
	end := uint(strings.Index(pySource, "def delta")) - 1
	res, err := Run(c, tree, Options{ByteRange: &syntax.ByteRange{Start: start, End: end}})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, texts(tree.Source(), res.Matches, "name"))

	// The cached query is untouched by the restriction.
	full, err := Run(c, tree, Options{})
	require.NoError(t, err)
	assert.Len(t, full.Matches, 3)
}

func TestRun_PointRange(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(function_definition name: (identifier) @name)")

	res, err := Run(c, tree, Options{PointRange: &PointRange{
		Start: syntax.Point{Row: 9, Column: 0},
		End:   syntax.Point{Row: 11, Column: 0},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"delta"}, texts(tree.Source(), res.Matches, "name"))
}

func TestRun_Within(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	py := reg.MustResolve(lang.Python)

	classes, err := Run(mustCompile(t, py, "(class_definition) @c"), tree, Options{})
	require.NoError(t, err)
	require.Len(t, classes.Matches, 1)
	cls, _ := classes.Matches[0].First("c")

	res, err := Run(mustCompile(t, py, "(function_definition name: (identifier) @name)"), tree, Options{Within: &cls})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, texts(tree.Source(), res.Matches, "name"))
}

func TestRun_MaxStartDepth(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(function_definition name: (identifier) @name)")

	// module(0) > function_definition(1); the method sits at depth 3.
	res, err := Run(c, tree, Options{MaxStartDepth: uintPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "delta"}, texts(tree.Source(), res.Matches, "name"))
}

func TestRun_ZeroMatchLimitFailsFast(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(identifier) @id")

	res, err := Run(c, tree, Options{MatchLimit: uintPtr(0)})
	require.ErrorIs(t, err, ErrInvalidOptions)
	assert.Empty(t, res.Matches)
	assert.False(t, res.Partial)
}

func TestRun_MatchLimitTruncates(t *testing.T) {
	src := "[" + strings.Repeat("hello, ", 50) + "]\n"
	reg, tree := setup(t, lang.Python, src)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(list (identifier) @pre (identifier) @post)")

	res, err := Run(c, tree, Options{MatchLimit: uintPtr(32)})
	require.NoError(t, err, "exceeding the match limit is not an error")
	assert.True(t, res.MatchLimitExceeded)
	assert.True(t, res.Partial)
}

func TestRun_InvalidOptions(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(identifier) @id")

	tests := []struct {
		name string
		opts Options
	}{
		{"limit too large", Options{MatchLimit: uintPtr(MaxMatchLimit + 1)}},
		{"inverted bytes", Options{ByteRange: &syntax.ByteRange{Start: 10, End: 2}}},
		{"inverted points", Options{PointRange: &PointRange{Start: syntax.Point{Row: 3}, End: syntax.Point{Row: 1}}}},
		{"unknown mode", Options{Mode: Mode(7)}},
		{"missing node", Options{Within: &syntax.NodeRef{Kind: "class_definition", StartByte: 0, EndByte: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(c, tree, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestRun_LanguageMismatch(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Go), "(identifier) @id")

	_, err := Run(c, tree, Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestRun_TimeoutGenerousMatchesUnbounded(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(identifier) @id")

	bounded, err := Run(c, tree, Options{TimeoutMicros: 10_000_000})
	require.NoError(t, err)
	unbounded, err := Run(c, tree, Options{})
	require.NoError(t, err)

	assert.False(t, bounded.TimedOut)
	assert.Equal(t, unbounded.Matches, bounded.Matches)
}

func TestRun_TimeoutTruncatesLargeTree(t *testing.T) {
	reg, tree := setup(t, lang.Python, strings.Repeat(pySource, 3000))
	c := mustCompile(t, reg.MustResolve(lang.Python), "(identifier) @id")

	unbounded, err := Run(c, tree, Options{})
	require.NoError(t, err)
	require.False(t, unbounded.Partial)

	bounded, err := Run(c, tree, Options{TimeoutMicros: 1})
	require.NoError(t, err)
	assert.True(t, bounded.TimedOut)
	assert.True(t, bounded.Partial)
	assert.Less(t, len(bounded.Matches), len(unbounded.Matches))
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func TestRun_KindPredicates(t *testing.T) {
	src := "x = 1\ny = 'a'\nz = None\n"
	reg, tree := setup(t, lang.Python, src)
	py := reg.MustResolve(lang.Python)

	c := mustCompile(t, py, `(assignment left: (identifier) @name right: (_) @value (#kind-eq? @value "integer" "string"))`)
	res, err := Run(c, tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, texts(tree.Source(), res.Matches, "name"))

	c = mustCompile(t, py, `(assignment left: (identifier) @name right: (_) @value (#not-kind-eq? @value "integer"))`)
	res, err = Run(c, tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, texts(tree.Source(), res.Matches, "name"))

	c = mustCompile(t, py, `((identifier) @name (#parent-kind-eq? @name "assignment"))`)
	res, err = Run(c, tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, texts(tree.Source(), res.Matches, "name"))
}

func TestRun_TextPredicates(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), `((function_definition name: (identifier) @name) (#match? @name "^[ad]"))`)

	res, err := Run(c, tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "delta"}, texts(tree.Source(), res.Matches, "name"))
}

// ---------------------------------------------------------------------------
// Disabling captures and patterns
// ---------------------------------------------------------------------------

func TestCompiled_WithoutCaptures(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), "(function_definition name: (identifier) @name) @def")

	trimmed, err := c.WithoutCaptures("def")
	require.NoError(t, err)

	res, err := Run(trimmed, tree, Options{})
	require.NoError(t, err)
	for _, m := range res.Matches {
		assert.NotContains(t, m.Captures, "def")
		assert.Contains(t, m.Captures, "name")
	}

	orig, err := Run(c, tree, Options{})
	require.NoError(t, err)
	assert.Contains(t, orig.Matches[0].Captures, "def")

	_, err = c.WithoutCaptures("nope")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestCompiled_WithoutPatterns(t *testing.T) {
	reg, tree := setup(t, lang.Python, pySource)
	c := mustCompile(t, reg.MustResolve(lang.Python), `
(function_definition name: (identifier) @fn)
(class_definition name: (identifier) @cls)
`)
	trimmed, err := c.WithoutPatterns(0)
	require.NoError(t, err)

	res, err := Run(trimmed, tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, texts(tree.Source(), res.Matches, "cls"))
	assert.Empty(t, texts(tree.Source(), res.Matches, "fn"))

	_, err = c.WithoutPatterns(5)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
