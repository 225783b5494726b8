package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// storeSuite runs the behavior every Store backend shares. newStore must
// return a store with an initialized schema.
func storeSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("FileRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		f := File{Path: "pkg/a.go", Language: lang.Go, Size: 42, Hash: "abc", Truncated: true}
		require.NoError(t, s.PutFile(ctx, f))

		got, err := s.GetFile(ctx, "pkg/a.go")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, f, *got)

		f.Hash, f.Truncated = "def", false
		require.NoError(t, s.PutFile(ctx, f))
		got, err = s.GetFile(ctx, "pkg/a.go")
		require.NoError(t, err)
		assert.Equal(t, "def", got.Hash)
		assert.False(t, got.Truncated)

		missing, err := s.GetFile(ctx, "nope.go")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("ReplaceElements", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		putFile(t, s, "a.py")

		require.NoError(t, s.ReplaceElements(ctx, "a.py", sampleElements()))
		els, err := s.Elements(ctx, "a.py")
		require.NoError(t, err)
		require.Len(t, els, 3)
		assert.Equal(t, "Widget", els[0].Name, "outer element sorts first")
		assert.Equal(t, "render", els[1].Name)
		assert.Equal(t, []string{"async", "static"}, els[1].Modifiers)
		assert.Equal(t, "Draws it.", els[1].Documentation)
		assert.Equal(t, syntax.Point{Row: 2, Column: 4}, els[1].Start)
		assert.Equal(t, "a.py", els[2].Path)

		require.NoError(t, s.ReplaceElements(ctx, "a.py", sampleElements()[:1]))
		els, err = s.Elements(ctx, "a.py")
		require.NoError(t, err)
		require.Len(t, els, 1)
		assert.Equal(t, "Widget", els[0].Name)
		assert.Nil(t, els[0].Modifiers)
	})

	t.Run("SearchElements", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		putFile(t, s, "a.py")
		putFile(t, s, "b.py")
		require.NoError(t, s.ReplaceElements(ctx, "a.py", sampleElements()))
		require.NoError(t, s.ReplaceElements(ctx, "b.py", []traverse.CodeElement{
			{Kind: traverse.KindFunction, Name: "rerender", Span: syntax.ByteRange{Start: 0, End: 10}},
		}))

		tests := []struct {
			name  string
			query string
			kind  traverse.Kind
			limit int
			want  []string
		}{
			{"substring", "render", "", 0, []string{"a.py:render", "b.py:rerender"}},
			{"case insensitive", "WIDGET", "", 0, []string{"a.py:Widget"}},
			{"kind filter", "", traverse.KindVariable, 0, []string{"a.py:count"}},
			{"limit", "", "", 2, []string{"a.py:Widget", "a.py:render"}},
			{"no match", "zzz", "", 0, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				els, err := s.SearchElements(ctx, tt.query, tt.kind, tt.limit)
				require.NoError(t, err)
				var got []string
				for _, el := range els {
					got = append(got, el.Path+":"+el.Name)
				}
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("DiagnosticsAndDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		putFile(t, s, "a.py")
		putFile(t, s, "b.py")
		require.NoError(t, s.ReplaceElements(ctx, "a.py", sampleElements()))
		diags := []traverse.Diagnostic{
			{Severity: traverse.SeverityError, NodeKind: "ERROR", Reason: "unexpected token", Construct: "call",
				Span: syntax.ByteRange{Start: 30, End: 31}, Start: syntax.Point{Row: 3}, End: syntax.Point{Row: 3, Column: 1}},
			{Severity: traverse.SeverityError, NodeKind: ")", Reason: "missing )",
				Span: syntax.ByteRange{Start: 5, End: 5}},
		}
		require.NoError(t, s.ReplaceDiagnostics(ctx, "a.py", diags))

		got, err := s.Diagnostics(ctx, "a.py")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "missing )", got[0].Reason)
		assert.Equal(t, diags[0], got[1].Diagnostic)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{FileCount: 2, ElementCount: 3, DiagnosticCount: 2}, *st)

		require.NoError(t, s.DeleteFile(ctx, "a.py"))
		st, err = s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{FileCount: 1}, *st)

		els, err := s.Elements(ctx, "a.py")
		require.NoError(t, err)
		assert.Empty(t, els)
	})
}

func putFile(t *testing.T, s Store, path string) {
	t.Helper()
	require.NoError(t, s.PutFile(context.Background(), File{Path: path, Language: lang.Python, Hash: path}))
}

func sampleElements() []traverse.CodeElement {
	return []traverse.CodeElement{
		{
			Kind:  traverse.KindClass,
			Name:  "Widget",
			Span:  syntax.ByteRange{Start: 0, End: 80},
			Start: syntax.Point{Row: 0, Column: 0},
			End:   syntax.Point{Row: 6, Column: 0},
		},
		{
			Kind:          traverse.KindMethod,
			Name:          "render",
			Span:          syntax.ByteRange{Start: 20, End: 60},
			Start:         syntax.Point{Row: 2, Column: 4},
			End:           syntax.Point{Row: 4, Column: 0},
			Documentation: "Draws it.",
			Modifiers:     []string{"async", "static"},
		},
		{
			Kind: traverse.KindVariable,
			Name: "count",
			Span: syntax.ByteRange{Start: 62, End: 71},
		},
	}
}

// ---------------------------------------------------------------------------
// MemStore
// ---------------------------------------------------------------------------

func TestMemStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store {
		s := NewMemStore()
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.InitSchema(context.Background()))
		return s
	})
}

func TestMemStore_ReplaceCopiesInput(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	els := sampleElements()
	require.NoError(t, s.ReplaceElements(ctx, "a.py", els))
	els[0].Name = "Changed"

	got, err := s.Elements(ctx, "a.py")
	require.NoError(t, err)
	assert.Equal(t, "Widget", got[0].Name)
}

func TestOpen_Memory(t *testing.T) {
	for _, backend := range []string{"", BackendMemory} {
		s, err := Open(backend, "ignored")
		require.NoError(t, err)
		assert.IsType(t, &MemStore{}, s)
		require.NoError(t, s.Close())
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
