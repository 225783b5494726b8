package syntax

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Tree is a concrete syntax tree over one immutable source buffer. Edits never
// mutate a Tree; they produce a new one and the old tree remains usable for
// diffing until it is closed.
type Tree struct {
	handle  *lang.Handle
	inner   *tree_sitter.Tree
	source  []byte
	version uint64

	// base is the predecessor tree with the edit applied, kept so changed
	// ranges can be computed against this tree.
	base        *tree_sitter.Tree
	baseVersion uint64

	snapOnce sync.Once
	snap     *Snapshot

	res     *treeResources
	cleanup runtime.Cleanup
}

type treeResources struct {
	once  sync.Once
	inner *tree_sitter.Tree
	base  *tree_sitter.Tree
}

func (r *treeResources) close() {
	r.once.Do(func() {
		r.inner.Close()
		if r.base != nil {
			r.base.Close()
		}
	})
}

// NewTree wraps a parsed tree. source must not be modified afterwards.
func NewTree(h *lang.Handle, inner *tree_sitter.Tree, source []byte, version uint64) *Tree {
	return newTree(h, inner, source, version, nil, 0)
}

// NewEditedTree wraps a tree produced by reparsing after an edit. base is the
// predecessor tree with the edit already applied; ownership passes to the
// returned Tree.
func NewEditedTree(h *lang.Handle, inner *tree_sitter.Tree, source []byte, version uint64, base *tree_sitter.Tree, baseVersion uint64) *Tree {
	return newTree(h, inner, source, version, base, baseVersion)
}

func newTree(h *lang.Handle, inner *tree_sitter.Tree, source []byte, version uint64, base *tree_sitter.Tree, baseVersion uint64) *Tree {
	res := &treeResources{inner: inner, base: base}
	t := &Tree{
		handle:      h,
		inner:       inner,
		source:      source,
		version:     version,
		base:        base,
		baseVersion: baseVersion,
		res:         res,
	}
	t.cleanup = runtime.AddCleanup(t, func(r *treeResources) { r.close() }, res)
	return t
}

// Parse parses source with the grammar registered for languageID.
func Parse(reg *lang.Registry, languageID string, source []byte, logger *slog.Logger) (*Tree, error) {
	h, err := reg.Resolve(languageID)
	if err != nil {
		return nil, err
	}
	inner, err := reg.ParserFor(h).Parse(source, nil, logger)
	if err != nil {
		return nil, err
	}
	return NewTree(h, inner, source, 0), nil
}

// Language returns the grammar that produced the tree.
func (t *Tree) Language() *lang.Handle { return t.handle }

// Source returns the buffer the tree was parsed from. Callers must not modify it.
func (t *Tree) Source() []byte { return t.source }

// Version returns the document version this tree belongs to.
func (t *Tree) Version() uint64 { return t.version }

// Inner exposes the binding tree. The returned value is only valid while t
// is reachable and open.
func (t *Tree) Inner() *tree_sitter.Tree { return t.inner }

// RootNode returns the root node. Like Inner, the node is only valid while t
// is reachable.
func (t *Tree) RootNode() *tree_sitter.Node { return t.inner.RootNode() }

// Root returns a detached reference to the root node.
func (t *Tree) Root() NodeRef {
	ref := RefOf(t.inner.RootNode())
	runtime.KeepAlive(t)
	return ref
}

// Span returns the byte range covered by the tree. Leading whitespace is
// attributed to the root, so the span always starts at zero.
func (t *Tree) Span() ByteRange {
	end := t.inner.RootNode().EndByte()
	runtime.KeepAlive(t)
	return ByteRange{Start: 0, End: end}
}

// HasError reports whether the tree contains any ERROR or MISSING node.
func (t *Tree) HasError() bool {
	has := t.inner.RootNode().HasError()
	runtime.KeepAlive(t)
	return has
}

// Lookup resolves a detached reference back to a live node of this tree. The
// smallest node covering ref's range with the same kind wins.
func (t *Tree) Lookup(ref NodeRef) (*tree_sitter.Node, bool) {
	n := t.inner.RootNode().DescendantForByteRange(ref.StartByte, ref.EndByte)
	for n != nil {
		if n.Kind() == ref.Kind && n.StartByte() == ref.StartByte && n.EndByte() == ref.EndByte {
			return n, true
		}
		if n.StartByte() < ref.StartByte || n.EndByte() > ref.EndByte {
			break
		}
		n = n.Parent()
	}
	return nil, false
}

// Snapshot returns the arena form of the tree, built on first use.
func (t *Tree) Snapshot() *Snapshot {
	t.snapOnce.Do(func() {
		t.snap = buildSnapshot(t.inner.RootNode())
		runtime.KeepAlive(t)
	})
	return t.snap
}

// Close releases the native tree. It is safe to call more than once.
func (t *Tree) Close() {
	t.cleanup.Stop()
	t.res.close()
}

// ChangedRanges returns the ranges whose syntactic structure differs between
// old and new. When new was produced by editing old, the edited copy of old
// recorded at that time is used; otherwise old is compared as is, which is
// only meaningful if old was itself edited to match new's source.
func ChangedRanges(old, new *Tree) []Range {
	from := old.inner
	if new.base != nil && new.baseVersion == old.version {
		from = new.base
	}
	raw := from.ChangedRanges(new.inner)
	runtime.KeepAlive(old)
	runtime.KeepAlive(new)

	out := make([]Range, 0, len(raw))
	for _, r := range raw {
		out = append(out, RangeOf(r))
	}
	return out
}
