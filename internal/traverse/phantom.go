package traverse

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"

	"github.com/dusk-indust/syntaxkit/internal/pattern"
	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
)

// PhantomComments returns the spans of string statements that are not in a
// documentation position: the string_statement matches minus the union of
// the module, class and function docstring matches. Languages without
// docstring patterns have no phantom comments.
func PhantomComments(tree *syntax.Tree, cat *pattern.Catalog) ([]syntax.ByteRange, error) {
	refs, err := phantomRefs(tree, cat)
	if err != nil {
		return nil, err
	}
	out := make([]syntax.ByteRange, len(refs))
	for i, r := range refs {
		out[i] = r.Range()
	}
	return out, nil
}

func phantomRefs(tree *syntax.Tree, cat *pattern.Catalog) ([]syntax.NodeRef, error) {
	defer runtime.KeepAlive(tree)
	h := tree.Language()

	var docKeys []string
	for _, key := range pattern.DocstringKeys {
		if cat.Has(h, key) {
			docKeys = append(docKeys, key)
		}
	}
	stmt, ok := cat.Lookup(h, pattern.KeyStringStatement)
	if !ok || len(docKeys) == 0 {
		return nil, nil
	}

	// Both sides run unbounded in depth so they cover the same nodes.
	strs, err := spans(tree, cat, pattern.KeyStringStatement, stmt.PrimaryCapture())
	if err != nil {
		return nil, err
	}
	docs := make(map[syntax.ByteRange]bool)
	for _, key := range docKeys {
		refs, err := spans(tree, cat, key, "docstring")
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			docs[r.Range()] = true
		}
	}

	var out []syntax.NodeRef
	for _, r := range strs {
		if !docs[r.Range()] {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b syntax.NodeRef) int { return cmp.Compare(a.StartByte, b.StartByte) })
	return slices.CompactFunc(out, func(a, b syntax.NodeRef) bool { return a.Range() == b.Range() }), nil
}

func spans(tree *syntax.Tree, cat *pattern.Catalog, key, capture string) ([]syntax.NodeRef, error) {
	c, err := cat.Compile(tree.Language(), key)
	if err != nil {
		return nil, err
	}
	res, err := query.Run(c, tree, elementOptions(cat, key))
	if err != nil {
		return nil, err
	}
	if res.Partial {
		return nil, fmt.Errorf("%w: %s", ErrTruncated, key)
	}
	var out []syntax.NodeRef
	for _, m := range res.Matches {
		out = append(out, m.Captures[capture]...)
	}
	return out, nil
}
