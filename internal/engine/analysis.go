package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// Analysis is everything the engine derives from one source file.
type Analysis struct {
	Path        string                 `json:"path" yaml:"path" msgpack:"path"`
	Language    lang.Language          `json:"language" yaml:"language" msgpack:"language"`
	Size        int                    `json:"size" yaml:"size" msgpack:"size"`
	Elements    []traverse.CodeElement `json:"elements" yaml:"elements" msgpack:"elements"`
	Diagnostics []traverse.Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" msgpack:"diagnostics"`
	Phantoms    []syntax.ByteRange     `json:"phantoms,omitempty" yaml:"phantoms,omitempty" msgpack:"phantoms"`
	// Truncated is set when a match limit cut element extraction short.
	Truncated bool     `json:"truncated,omitempty" yaml:"truncated,omitempty" msgpack:"truncated"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty" msgpack:"warnings"`
}

// Input is one file of a batch.
type Input struct {
	Path     string
	Source   []byte
	Language string
}

// Analyze parses source and extracts its elements, diagnostics and phantom
// comments. Pattern failures do not fail the analysis; they are reported as
// warnings.
func (e *Engine) Analyze(ctx context.Context, path string, source []byte, languageID string) (*Analysis, error) {
	h, err := e.reg.Resolve(languageID)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if a, ok := e.cache.Get(h.ID(), source); ok {
			a.Path = path
			return a, nil
		}
	}

	tree, err := e.Parse(ctx, source, languageID)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	a := e.analyzeTree(path, tree)

	if e.cache != nil {
		if err := e.cache.Put(h.ID(), source, a); err != nil {
			e.logger.Warn("cache write failed", "path", path, "err", err)
		}
	}
	return a, nil
}

// AnalyzeTree is Analyze for a tree that is already parsed.
func (e *Engine) AnalyzeTree(path string, tree *syntax.Tree) *Analysis {
	return e.analyzeTree(path, tree)
}

func (e *Engine) analyzeTree(path string, tree *syntax.Tree) *Analysis {
	a := &Analysis{
		Path:        path,
		Language:    tree.Language().ID(),
		Size:        len(tree.Source()),
		Diagnostics: traverse.Diagnose(tree),
	}

	els, err := traverse.Extract(tree, e.catalog)
	a.Elements = els
	if err != nil {
		a.Truncated = errors.Is(err, traverse.ErrTruncated)
		a.Warnings = append(a.Warnings, err.Error())
		e.logger.Warn("element extraction incomplete", "path", path, "err", err)
	}

	phantoms, err := traverse.PhantomComments(tree, e.catalog)
	if err != nil {
		a.Warnings = append(a.Warnings, err.Error())
	}
	a.Phantoms = phantoms
	return a
}

// AnalyzeBatch analyzes inputs in parallel. Results are in input order. The
// first failing input cancels the rest.
func (e *Engine) AnalyzeBatch(ctx context.Context, inputs []Input) ([]*Analysis, error) {
	out := make([]*Analysis, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := e.Analyze(gctx, in.Path, in.Source, in.Language)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", in.Path, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ElementsIn returns the elements of a whose span overlaps one of ranges.
func ElementsIn(a *Analysis, ranges []syntax.ByteRange) []traverse.CodeElement {
	var out []traverse.CodeElement
	for _, el := range a.Elements {
		if slices.ContainsFunc(ranges, el.Span.Overlaps) {
			out = append(out, el)
		}
	}
	return out
}
