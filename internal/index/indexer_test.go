package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/syntaxkit/internal/edit"
	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

func readFixture(t *testing.T, relPath string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../" + relPath)
	require.NoError(t, err)
	return data
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
}

// newIndexer builds an indexer over a temp project holding one Python and
// one Go file plus files it must ignore.
func newIndexer(t *testing.T, opts ...IndexerOption) (*Indexer, *MemStore, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"phantom.py":              readFixture(t, "testdata/fixtures/python/phantom.py"),
		"pkg/model.go":            readFixture(t, "testdata/fixtures/go_buffer/model.go"),
		"node_modules/dep/dep.js": []byte("function dep() {}\n"),
		"README.md":               []byte("# readme\n"),
	})

	e, err := engine.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	store := NewMemStore()
	ix, err := NewIndexer(e, store, root, opts...)
	require.NoError(t, err)
	return ix, store, root
}

// ---------------------------------------------------------------------------
// IndexDir
// ---------------------------------------------------------------------------

func TestIndexDir(t *testing.T) {
	ix, store, _ := newIndexer(t)
	ctx := context.Background()

	report, err := ix.IndexDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Zero(t, report.Unchanged)
	assert.Positive(t, report.Elements)

	f, err := store.GetFile(ctx, "pkg/model.go")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "go", string(f.Language))
	assert.Len(t, f.Hash, 64)

	missing, err := store.GetFile(ctx, "node_modules/dep/dep.js")
	require.NoError(t, err)
	assert.Nil(t, missing, "excluded directory must not be indexed")

	els, err := store.SearchElements(ctx, "test", traverse.KindClass, 0)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "phantom.py", els[0].Path)
	assert.Equal(t, "This is a class docstring.", els[0].Documentation)
}

func TestIndexDir_SkipsUnchanged(t *testing.T) {
	ix, _, root := newIndexer(t)
	ctx := context.Background()

	_, err := ix.IndexDir(ctx)
	require.NoError(t, err)

	report, err := ix.IndexDir(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Indexed)
	assert.Equal(t, 2, report.Unchanged)

	writeTree(t, root, map[string][]byte{"phantom.py": []byte("def only():\n    pass\n")})
	report, err = ix.IndexDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 1, report.Unchanged)
}

func TestIndexDir_Options(t *testing.T) {
	tests := []struct {
		name      string
		opts      []IndexerOption
		wantPaths []string
	}{
		{"languages", []IndexerOption{WithLanguages("go")}, []string{"pkg/model.go"}},
		{"exclude", []IndexerOption{WithExclude("pkg")}, []string{"phantom.py"}},
		{"max size", []IndexerOption{WithMaxFileSize(1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, store, _ := newIndexer(t, tt.opts...)
			ctx := context.Background()
			_, err := ix.IndexDir(ctx)
			require.NoError(t, err)

			var got []string
			for _, p := range []string{"phantom.py", "pkg/model.go"} {
				f, err := store.GetFile(ctx, p)
				require.NoError(t, err)
				if f != nil {
					got = append(got, p)
				}
			}
			assert.Equal(t, tt.wantPaths, got)
		})
	}
}

func TestIndexer_Rel(t *testing.T) {
	ix, _, root := newIndexer(t)
	assert.Equal(t, "pkg/model.go", ix.Rel(filepath.Join(root, "pkg", "model.go")))
	assert.Equal(t, "pkg/model.go", ix.Rel("pkg/model.go"))
	assert.True(t, ix.Excluded(filepath.Join(root, "node_modules", "x")))
	assert.False(t, ix.Excluded(filepath.Join(root, "pkg")))
}

// ---------------------------------------------------------------------------
// Reindex / Remove
// ---------------------------------------------------------------------------

const calcSource = `def add(a, b):
    return a + b

def sub(a, b):
    return a - b
`

func TestReindex(t *testing.T) {
	ix, store, root := newIndexer(t)
	ctx := context.Background()
	e := ix.engine
	path := filepath.Join(root, "calc.py")

	doc, err := e.Open(ctx, path, []byte(calcSource), "python")
	require.NoError(t, err)
	defer doc.Close()
	old := doc.Tree()
	_, err = ix.Reindex(ctx, path, old, nil)
	require.NoError(t, err)

	spec, ok := edit.SpecFromDiff(old.Source(), []byte(`def add(a, b):
    return a + b

def sub(a, b):
    return a - b - 1
`))
	require.True(t, ok)
	res, err := e.ApplyEdit(ctx, doc, spec)
	require.NoError(t, err)
	defer old.Close()

	changed := e.ChangedRanges(old, res.Tree)
	touched, err := ix.Reindex(ctx, path, res.Tree, changed)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	assert.Equal(t, "sub", touched[0].Name)

	f, err := store.GetFile(ctx, "calc.py")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, hashSource(res.Tree.Source()), f.Hash)
}

func TestReindex_NoChangeIsNoop(t *testing.T) {
	ix, store, _ := newIndexer(t)
	ctx := context.Background()
	e := ix.engine

	tree, err := e.Parse(ctx, []byte(calcSource), "python")
	require.NoError(t, err)
	defer tree.Close()

	_, err = ix.Reindex(ctx, "calc.py", tree, nil)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceElements(ctx, "calc.py", nil))

	touched, err := ix.Reindex(ctx, "calc.py", tree, nil)
	require.NoError(t, err)
	assert.Empty(t, touched)
	els, err := store.Elements(ctx, "calc.py")
	require.NoError(t, err)
	assert.Empty(t, els, "identical source must not be rewritten")
}

func TestRemove(t *testing.T) {
	ix, store, root := newIndexer(t)
	ctx := context.Background()
	_, err := ix.IndexDir(ctx)
	require.NoError(t, err)

	require.NoError(t, ix.Remove(ctx, filepath.Join(root, "phantom.py")))
	f, err := store.GetFile(ctx, "phantom.py")
	require.NoError(t, err)
	assert.Nil(t, f)
}
