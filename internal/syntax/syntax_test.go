package syntax

import (
	"sync"
	"testing"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTree(t *testing.T, reg *lang.Registry, id string, src string) *Tree {
	t.Helper()
	tree, err := Parse(reg, id, []byte(src), nil)
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

// ---------------------------------------------------------------------------
// Parse
// ---------------------------------------------------------------------------

func TestParse_RootSpanCoversSource(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	sources := map[string]string{
		"go":         "package main\n\nfunc main() {\n\tprintln(1)\n}\n",
		"python":     "import os\n\nclass A:\n    def f(self):\n        return 1\n",
		"rust":       "fn main() {\n    let x = 1;\n}\n",
		"typescript": "export function add(a: number, b: number): number {\n  return a + b;\n}\n",
		"tsx":        "const App = () => <div>hi</div>;\n",
		"javascript": "function f() { return 1; }\n",
		"java":       "class A {\n  int x;\n  void f() {}\n}\n",
	}
	for id, src := range sources {
		t.Run(id, func(t *testing.T) {
			tree := parseTree(t, reg, id, src)
			assert.Equal(t, uint(len(src)), tree.Span().Len())
			assert.Equal(t, uint(0), tree.Span().Start)
			assert.Equal(t, lang.Language(id), tree.Language().ID())
			assert.False(t, tree.HasError())
		})
	}
}

func TestParse_Unsupported(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	_, err := Parse(reg, "brainfuck", []byte("+"), nil)
	assert.ErrorIs(t, err, lang.ErrUnsupportedLanguage)
}

func TestParse_MalformedStillYieldsTree(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	tree := parseTree(t, reg, "python", "def broken(:\n    pass\n")
	assert.True(t, tree.HasError())
	assert.Positive(t, tree.Snapshot().CountProblems())
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

func TestSnapshot_ArenaLinks(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	tree := parseTree(t, reg, "go", "package p\n\nvar x = 1\n")
	snap := tree.Snapshot()

	require.Positive(t, snap.Len())
	root := snap.Nodes[0]
	assert.Equal(t, "source_file", root.Kind)
	assert.Equal(t, -1, root.Parent)

	for i, n := range snap.Nodes {
		for _, c := range n.Children {
			assert.Greater(t, c, i, "children are forward indices")
			assert.Equal(t, i, snap.Nodes[c].Parent)
			assert.True(t, n.Range.Contains(snap.Nodes[c].Range))
		}
	}

	// Snapshot is memoized.
	assert.Same(t, snap, tree.Snapshot())
}

func TestSnapshot_AncestorsAndDepth(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	tree := parseTree(t, reg, "python", "x = 1\n")
	snap := tree.Snapshot()

	leaf := -1
	for i := range snap.Preorder() {
		if snap.Nodes[i].Kind == "integer" {
			leaf = i
		}
	}
	require.NotEqual(t, -1, leaf)

	var kinds []string
	for a := range snap.Ancestors(leaf) {
		kinds = append(kinds, snap.Nodes[a].Kind)
	}
	assert.Equal(t, []string{"assignment", "expression_statement", "module"}, kinds)
	assert.Equal(t, 3, snap.Depth(leaf))
}

func TestTree_Lookup(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	tree := parseTree(t, reg, "python", "def f():\n    return 1\n")
	ref := RefOf(tree.RootNode().NamedChild(0))
	assert.Equal(t, "function_definition", ref.Kind)

	n, ok := tree.Lookup(ref)
	require.True(t, ok)
	assert.Equal(t, ref, RefOf(n))

	_, ok = tree.Lookup(NodeRef{Kind: "class_definition", StartByte: ref.StartByte, EndByte: ref.EndByte})
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

func TestDocument_WriteRequiresNextVersion(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	tree, err := Parse(reg, "go", []byte("package a\n"), nil)
	require.NoError(t, err)
	doc := NewDocument("a.go", tree)
	defer doc.Close()

	assert.NotEmpty(t, doc.ID())
	assert.Equal(t, uint64(0), doc.Version())

	err = doc.Write(func(cur Revision) (*Revision, error) {
		return &Revision{Version: cur.Version + 2, Buffer: cur.Buffer, Tree: cur.Tree}, nil
	})
	assert.ErrorIs(t, err, ErrStaleVersion)

	err = doc.Write(func(cur Revision) (*Revision, error) {
		return &Revision{Version: cur.Version + 1, Buffer: cur.Buffer, Tree: cur.Tree}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), doc.Version())
}

func TestDocument_ConcurrentReaders(t *testing.T) {
	reg := lang.NewRegistry()
	defer reg.Close()

	tree, err := Parse(reg, "python", []byte("a = 1\n"), nil)
	require.NoError(t, err)
	doc := NewDocument("", tree)
	defer doc.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = doc.Read(func(buf []byte, tree *Tree) error {
				assert.Equal(t, uint(len(buf)), tree.Span().Len())
				return nil
			})
		}()
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// Ranges
// ---------------------------------------------------------------------------

func TestByteRange(t *testing.T) {
	a := ByteRange{Start: 2, End: 10}
	assert.Equal(t, uint(8), a.Len())
	assert.True(t, a.Contains(ByteRange{Start: 2, End: 10}))
	assert.False(t, a.Contains(ByteRange{Start: 1, End: 3}))
	assert.True(t, a.Overlaps(ByteRange{Start: 9, End: 20}))
	assert.False(t, a.Overlaps(ByteRange{Start: 10, End: 20}))
	assert.True(t, a.Overlaps(ByteRange{Start: 5, End: 5}))
	assert.Equal(t, "[2,10)", a.String())
}
