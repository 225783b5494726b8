package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/syntaxkit/internal/config"
	"github.com/dusk-indust/syntaxkit/internal/index"
	"github.com/dusk-indust/syntaxkit/internal/output"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const calcSource = `import math

def add(a, b):
    return a + b

class Calc:
    def total(self, xs):
        return sum(xs)
`

const phantomFixture = "../../testdata/fixtures/python/phantom.py"

// run executes the CLI with args and returns stdout, stderr and the error.
// The analysis cache is redirected into a temp dir.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decode[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(data), &v), data)
	return v
}

// ---------------------------------------------------------------------------
// Root
// ---------------------------------------------------------------------------

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestUnknownFormat(t *testing.T) {
	_, _, err := run(t, "", "--format", "xml", "version")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "custom.yml", "index:\n  backend: nosql\n")
	_, _, err := run(t, "", "--config", cfg, "version")
	assert.ErrorContains(t, err, "unknown index backend")
}

// ---------------------------------------------------------------------------
// Single-file commands
// ---------------------------------------------------------------------------

func TestParse(t *testing.T) {
	out, _, err := run(t, "", "parse", "--format", "json", phantomFixture)
	require.NoError(t, err)

	got := decode[parseReport](t, out)
	assert.Equal(t, "python", got.Language)
	assert.Equal(t, "module", got.RootKind)
	assert.Zero(t, got.Problems)
	assert.Greater(t, got.Nodes, 10)
}

func TestParse_Text(t *testing.T) {
	out, _, err := run(t, "def f(:\n", "parse", "--language", "python", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "-: python module")
	assert.Contains(t, out, "problems")
}

func TestTree(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "calc.py", calcSource)

	out, _, err := run(t, "", "tree", "--depth", "1", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "module"), out)
	assert.Contains(t, out, "function_definition")
	assert.NotContains(t, out, "return_statement")

	out, _, err = run(t, "", "tree", "--format", "json", path)
	require.NoError(t, err)
	got := decode[treeReport](t, out)
	require.NotEmpty(t, got.Nodes)
	assert.Equal(t, "module", got.Nodes[0].Kind)
	assert.Equal(t, -1, got.Nodes[0].Parent)
}

func TestElements(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "calc.py", calcSource)

	t.Run("text outline", func(t *testing.T) {
		out, _, err := run(t, "", "elements", path)
		require.NoError(t, err)
		assert.Contains(t, out, "add")
		assert.Contains(t, out, "Calc")
		assert.Contains(t, out, "    method    total", "methods are nested under their class")
	})

	t.Run("kind filter", func(t *testing.T) {
		out, _, err := run(t, "", "elements", "--format", "json", "--kind", "function,import", path)
		require.NoError(t, err)
		got := decode[output.Elements](t, out)
		var kinds []traverse.Kind
		for _, el := range got.Elements {
			kinds = append(kinds, el.Kind)
		}
		assert.ElementsMatch(t, []traverse.Kind{traverse.KindImport, traverse.KindFunction}, kinds)
	})

	t.Run("mermaid", func(t *testing.T) {
		out, _, err := run(t, "", "elements", "--mermaid", path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "graph TD\n"), out)
		assert.Contains(t, out, "subgraph")
	})

	t.Run("unknown extension", func(t *testing.T) {
		notes := writeFile(t, dir, "notes.txt", "hello")
		_, _, err := run(t, "", "elements", notes)
		assert.ErrorContains(t, err, "unsupported language")
	})
}

func TestDiagnose(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.py", calcSource)
	bad := writeFile(t, dir, "bad.py", "def f(:\n    pass\n")

	out, _, err := run(t, "", "diagnose", good)
	require.NoError(t, err)
	assert.Contains(t, out, "no syntax problems")

	out, _, err = run(t, "", "diagnose", good, bad)
	assert.ErrorIs(t, err, errProblems)
	assert.Contains(t, out, "bad.py:1:")
	assert.Contains(t, out, "error")
}

func TestQuery(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "calc.py", calcSource)

	t.Run("catalog pattern", func(t *testing.T) {
		out, _, err := run(t, "", "query", "--format", "json", "--pattern", "function", path)
		require.NoError(t, err)
		got := decode[output.Matches](t, out)
		assert.Len(t, got.Matches, 2)
		assert.False(t, got.Partial)
	})

	t.Run("template from stdin", func(t *testing.T) {
		out, _, err := run(t, calcSource, "query", "-l", "python",
			"--template", "(class_definition name: (identifier) @name)", "-")
		require.NoError(t, err)
		assert.Contains(t, out, "1 matches")
		assert.Contains(t, out, "@name identifier")
		assert.Contains(t, out, "Calc")
	})

	t.Run("byte range", func(t *testing.T) {
		end := strings.Index(calcSource, "class")
		out, _, err := run(t, "", "query", "--format", "json", "--pattern", "function",
			"--end-byte", strconv.Itoa(end), path)
		require.NoError(t, err)
		got := decode[output.Matches](t, out)
		assert.Len(t, got.Matches, 1, "total lies after the range")
	})

	t.Run("needs exactly one source", func(t *testing.T) {
		_, _, err := run(t, "", "query", path)
		assert.Error(t, err)
		_, _, err = run(t, "", "query", "--pattern", "function", "--template", "(x)", path)
		assert.Error(t, err)
	})

	t.Run("stdin needs language", func(t *testing.T) {
		_, _, err := run(t, calcSource, "query", "--pattern", "function", "-")
		assert.ErrorContains(t, err, "--language is required")
	})
}

func TestPhantoms(t *testing.T) {
	out, _, err := run(t, "", "phantoms", "--format", "json", phantomFixture)
	require.NoError(t, err)

	got := decode[phantomReport](t, out)
	require.Len(t, got.Phantoms, 3)
	assert.Equal(t, 7, got.Phantoms[0].Line)
	assert.Equal(t, 1, got.Phantoms[0].Column)
	assert.Equal(t, "'This is bogus.'", got.Phantoms[1].Text)
	assert.Equal(t, 19, got.Phantoms[1].Line)
	assert.Equal(t, 5, got.Phantoms[1].Column)
}

func TestPosition(t *testing.T) {
	src := []byte("ab\ncd\n\nef")
	tests := []struct {
		offset    uint
		line, col int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{7, 4, 1},
		{8, 4, 2},
	}
	for _, tt := range tests {
		line, col := position(src, tt.offset)
		assert.Equal(t, tt.line, line, "offset %d", tt.offset)
		assert.Equal(t, tt.col, col, "offset %d", tt.offset)
	}
}

func TestLanguages(t *testing.T) {
	out, _, err := run(t, "", "languages", "--format", "json")
	require.NoError(t, err)

	got := decode[[]languageInfo](t, out)
	byID := make(map[string]languageInfo)
	for _, info := range got {
		byID[info.ID] = info
	}
	require.Contains(t, byID, "python")
	assert.Contains(t, byID["python"].Extensions, ".py")
	assert.Contains(t, byID["python"].Patterns, "function")
	assert.Contains(t, byID, "java")
}

// ---------------------------------------------------------------------------
// Project commands
// ---------------------------------------------------------------------------

func TestIndexAndSearch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "calc.py", calcSource)
	writeFile(t, dir, "pkg/util.go", "package pkg\n\nfunc Add(a, b int) int { return a + b }\n")
	writeFile(t, dir, "node_modules/dep/index.js", "function add() {}\n")

	out, _, err := run(t, "", "index", "--format", "json", dir)
	require.NoError(t, err)
	got := decode[indexReport](t, out)
	assert.Equal(t, config.BackendMemory, got.Backend)
	assert.Equal(t, 2, got.Report.Indexed)
	assert.Equal(t, 2, got.Stats.FileCount)

	out, _, err = run(t, "", "index", "search", "--format", "json", "-C", dir, "add")
	require.NoError(t, err)
	hits := decode[[]index.Element](t, out)
	var paths []string
	for _, el := range hits {
		paths = append(paths, el.Path)
	}
	assert.ElementsMatch(t, []string{"calc.py", "pkg/util.go"}, paths)

	out, _, err = run(t, "", "index", "search", "-C", dir, "--kind", "class", "calc")
	require.NoError(t, err)
	assert.Contains(t, out, "calc.py:6:1")
	assert.Contains(t, out, "Calc")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".mcp.json", `{"mcpServers": {"other": {"command": "other"}}}`)

	out, _, err := run(t, "", "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "created syntaxkit.yml")
	assert.Contains(t, out, "updated .mcp.json")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Index.Backend)
	assert.Equal(t, 100, cfg.Watch.DebounceMs)

	data, err := os.ReadFile(filepath.Join(dir, ".mcp.json"))
	require.NoError(t, err)
	servers := decode[mcpConfig](t, string(data)).MCPServers
	assert.Contains(t, servers, "other")
	assert.Contains(t, servers, "syntaxkit")

	out, _, err = run(t, "", "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped syntaxkit.yml")
	assert.Contains(t, out, "skipped .mcp.json syntaxkit entry")
}
