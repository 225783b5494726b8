package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// DefaultMaxFileSize bounds the files IndexDir reads.
const DefaultMaxFileSize = 2 << 20

// defaultExclude lists directory names never descended into.
var defaultExclude = []string{".git", ".hg", ".svn", "node_modules", "vendor", "__pycache__", "target"}

// Indexer keeps a Store in sync with the source files under a root
// directory. Paths in the store are slash-separated and relative to root.
type Indexer struct {
	engine    *engine.Engine
	store     Store
	root      string
	logger    *slog.Logger
	exclude   []string
	languages []string
	maxSize   int64
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the indexer's logger.
func WithLogger(l *slog.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// WithExclude adds directory names to skip.
func WithExclude(names ...string) IndexerOption {
	return func(ix *Indexer) { ix.exclude = append(ix.exclude, names...) }
}

// WithLanguages restricts indexing to the given language ids. Empty means all.
func WithLanguages(ids ...string) IndexerOption {
	return func(ix *Indexer) { ix.languages = ids }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) IndexerOption {
	return func(ix *Indexer) { ix.maxSize = n }
}

// NewIndexer returns an Indexer writing analyses of files under root to store.
func NewIndexer(e *engine.Engine, store Store, root string, opts ...IndexerOption) (*Indexer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve index root: %w", err)
	}
	ix := &Indexer{
		engine:  e,
		store:   store,
		root:    abs,
		logger:  slog.New(slog.DiscardHandler),
		exclude: slices.Clone(defaultExclude),
		maxSize: DefaultMaxFileSize,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix, nil
}

// Root returns the absolute directory the indexer is rooted at.
func (ix *Indexer) Root() string { return ix.root }

// Store returns the backing store.
func (ix *Indexer) Store() Store { return ix.store }

// Report summarizes one IndexDir run.
type Report struct {
	Indexed     int `json:"indexed" yaml:"indexed"`
	Unchanged   int `json:"unchanged" yaml:"unchanged"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Elements    int `json:"elements" yaml:"elements"`
	Diagnostics int `json:"diagnostics" yaml:"diagnostics"`
}

type pending struct {
	input engine.Input
	hash  string
}

// IndexDir walks the root and indexes every supported file whose content
// changed since it was last indexed.
func (ix *Indexer) IndexDir(ctx context.Context) (*Report, error) {
	if err := ix.store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("init index schema: %w", err)
	}

	var (
		report Report
		todo   []pending
	)
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != ix.root && ix.Excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		id, ok := ix.Supports(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > ix.maxSize {
			ix.logger.Debug("skipping large file", "path", path, "size", info.Size())
			report.Skipped++
			return nil
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel := ix.Rel(path)
		hash := hashSource(src)
		prev, err := ix.store.GetFile(ctx, rel)
		if err != nil {
			return err
		}
		if prev != nil && prev.Hash == hash {
			report.Unchanged++
			return nil
		}
		todo = append(todo, pending{
			input: engine.Input{Path: rel, Source: src, Language: string(id)},
			hash:  hash,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", ix.root, err)
	}

	inputs := make([]engine.Input, len(todo))
	for i, p := range todo {
		inputs[i] = p.input
	}
	analyses, err := ix.engine.AnalyzeBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for i, a := range analyses {
		if err := ix.write(ctx, a, todo[i].hash); err != nil {
			return nil, err
		}
		report.Indexed++
		report.Elements += len(a.Elements)
		report.Diagnostics += len(a.Diagnostics)
	}
	ix.logger.Info("index updated",
		"root", ix.root,
		"indexed", report.Indexed,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
	)
	return &report, nil
}

// Reindex stores the analysis of an edited tree for path and returns the
// elements that overlap changed. The whole element set of the file is
// replaced since offsets after an edit shift. An edit that produced no
// changed ranges and left the source identical is a no-op.
func (ix *Indexer) Reindex(ctx context.Context, path string, tree *syntax.Tree, changed []syntax.ByteRange) ([]traverse.CodeElement, error) {
	rel := ix.Rel(path)
	hash := hashSource(tree.Source())
	if len(changed) == 0 {
		prev, err := ix.store.GetFile(ctx, rel)
		if err != nil {
			return nil, err
		}
		if prev != nil && prev.Hash == hash {
			return nil, nil
		}
	}

	a := ix.engine.AnalyzeTree(rel, tree)
	if err := ix.write(ctx, a, hash); err != nil {
		return nil, err
	}
	return engine.ElementsIn(a, changed), nil
}

// Remove drops path from the index.
func (ix *Indexer) Remove(ctx context.Context, path string) error {
	if err := ix.store.DeleteFile(ctx, ix.Rel(path)); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (ix *Indexer) write(ctx context.Context, a *engine.Analysis, hash string) error {
	f := File{
		Path:      a.Path,
		Language:  a.Language,
		Size:      a.Size,
		Hash:      hash,
		Truncated: a.Truncated,
	}
	if err := ix.store.PutFile(ctx, f); err != nil {
		return fmt.Errorf("index %s: %w", a.Path, err)
	}
	if err := ix.store.ReplaceElements(ctx, a.Path, a.Elements); err != nil {
		return fmt.Errorf("index %s: %w", a.Path, err)
	}
	if err := ix.store.ReplaceDiagnostics(ctx, a.Path, a.Diagnostics); err != nil {
		return fmt.Errorf("index %s: %w", a.Path, err)
	}
	return nil
}

// Rel converts path to the form used as a store key. Paths outside the
// root are returned cleaned and slash-separated.
func (ix *Indexer) Rel(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	rel, err := filepath.Rel(ix.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// Excluded reports whether any directory component of path below the root
// is an excluded name.
func (ix *Indexer) Excluded(path string) bool {
	for _, part := range strings.Split(ix.Rel(path), "/") {
		if slices.Contains(ix.exclude, part) {
			return true
		}
	}
	return false
}

// Supports returns the language of path when the indexer handles it.
func (ix *Indexer) Supports(path string) (lang.Language, bool) {
	id, ok := lang.ForPath(path)
	if !ok {
		return "", false
	}
	if len(ix.languages) > 0 && !slices.Contains(ix.languages, string(id)) {
		return "", false
	}
	return id, true
}

func hashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
