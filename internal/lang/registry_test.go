package lang

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Languages(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	assert.Equal(t, []Language{Go, Java, JavaScript, Python, Rust, TSX, TypeScript}, r.Languages())
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	tests := []struct {
		in   string
		want Language
	}{
		{"go", Go},
		{"Go", Go},
		{"golang", Go},
		{" python ", Python},
		{"py", Python},
		{"ts", TypeScript},
		{"tsx", TSX},
		{"js", JavaScript},
		{"java", Java},
		{"rs", Rust},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, err := r.Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.ID())
			assert.NotNil(t, h.Grammar())
		})
	}
}

func TestRegistry_ResolveUnsupported(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	h, err := r.Resolve("cobol")
	assert.Nil(t, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), "cobol")
}

func TestRegistry_HandlesAreStable(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	a, err := r.Resolve("python")
	require.NoError(t, err)
	b, err := r.Resolve("py")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, r.ParserFor(a), r.ParserFor(b))
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

func TestParser_Parse(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	p := r.ParserFor(r.MustResolve(Go))
	src := []byte("package main\n\nfunc main() {}\n")

	tree, err := p.Parse(src, nil, nil)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "source_file", root.Kind())
	assert.False(t, root.HasError())
	assert.Equal(t, uint(len(src)), root.EndByte())
}

func TestParser_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	p := r.ParserFor(r.MustResolve(Python))
	src := []byte("def f(x):\n    return x\n")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := p.Parse(src, nil, nil)
			if err != nil {
				errs <- err
				return
			}
			if tree.RootNode().Kind() != "module" {
				errs <- assert.AnError
			}
			tree.Close()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent parse: %v", err)
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"main.go", Go, true},
		{"pkg/mod.PY", Python, true},
		{"src/lib.rs", Rust, true},
		{"app.tsx", TSX, true},
		{"index.mjs", JavaScript, true},
		{"A.java", Java, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ForPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".cjs", ".js", ".jsx", ".mjs"}, Extensions(JavaScript))
	assert.Equal(t, []string{".py", ".pyi"}, Extensions(Python))
	assert.Empty(t, Extensions("cobol"))
}
