// Package engine is the composition root of syntaxkit: it ties the language
// registry, pattern catalog and incremental editor together behind the
// operations exposed to the CLI, the MCP server and the indexer.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/dusk-indust/syntaxkit/internal/edit"
	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/pattern"
	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// Cache stores analyses keyed by language and source.
type Cache interface {
	Get(language lang.Language, source []byte) (*Analysis, bool)
	Put(language lang.Language, source []byte, a *Analysis) error
}

type options struct {
	logger        *slog.Logger
	parseLogging  bool
	meterProvider metric.MeterProvider
	registry      *lang.Registry
	packs         []pattern.Pack
	tolerance     int
	concurrency   int
	cache         Cache
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the engine's diagnostics sink.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithParseLogging forwards grammar parse events to the logger at debug
// level.
func WithParseLogging(on bool) Option {
	return func(o *options) { o.parseLogging = on }
}

// WithMeterProvider sets where engine metrics are recorded. The default is
// the global provider.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = p }
}

// WithRegistry shares an existing registry. The engine does not close it.
func WithRegistry(r *lang.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithPatternPacks adds pattern packs on top of the built-in catalog.
func WithPatternPacks(packs ...pattern.Pack) Option {
	return func(o *options) { o.packs = append(o.packs, packs...) }
}

// WithEditTolerance allows edits to add up to n syntax problems before they
// are reported as conflicts.
func WithEditTolerance(n int) Option {
	return func(o *options) { o.tolerance = n }
}

// WithConcurrency bounds AnalyzeBatch. Values below one mean GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithCache makes Analyze consult and fill c.
func WithCache(c Cache) Option {
	return func(o *options) { o.cache = c }
}

// Engine is safe for concurrent use.
type Engine struct {
	reg         *lang.Registry
	ownsReg     bool
	catalog     *pattern.Catalog
	editor      *edit.Editor
	logger      *slog.Logger
	parseLog    *slog.Logger
	metrics     *metrics
	concurrency int
	cache       Cache
}

// New builds an engine.
func New(opts ...Option) (*Engine, error) {
	o := options{
		logger:        slog.New(slog.DiscardHandler),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := newMetrics(o.meterProvider)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		reg:         o.registry,
		logger:      o.logger,
		metrics:     m,
		concurrency: o.concurrency,
		cache:       o.cache,
	}
	if e.reg == nil {
		e.reg = lang.NewRegistry()
		e.ownsReg = true
	}
	if e.concurrency < 1 {
		e.concurrency = runtime.GOMAXPROCS(0)
	}
	if o.parseLogging {
		e.parseLog = o.logger
	}
	e.catalog = pattern.New(e.reg, o.packs...)
	e.editor = edit.NewEditor(e.reg, edit.WithTolerance(o.tolerance), edit.WithLogger(o.logger))
	return e, nil
}

// Registry returns the language registry.
func (e *Engine) Registry() *lang.Registry { return e.reg }

// Catalog returns the pattern catalog.
func (e *Engine) Catalog() *pattern.Catalog { return e.catalog }

// Close releases idle parsers of an engine-owned registry.
func (e *Engine) Close() error {
	if e.ownsReg {
		return e.reg.Close()
	}
	return nil
}

// Parse builds a tree for source. The source is copied.
func (e *Engine) Parse(ctx context.Context, source []byte, languageID string) (*syntax.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	tree, err := syntax.Parse(e.reg, languageID, bytes.Clone(source), e.parseLog)
	e.metrics.recordParse(ctx, languageID, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", languageID, err)
	}
	return tree, nil
}

// Open parses source into a document that can be edited.
func (e *Engine) Open(ctx context.Context, path string, source []byte, languageID string) (*syntax.Document, error) {
	tree, err := e.Parse(ctx, source, languageID)
	if err != nil {
		return nil, err
	}
	doc := syntax.NewDocument(path, tree)
	e.logger.Debug("document opened", "path", path, "id", doc.ID(), "language", tree.Language().ID())
	return doc, nil
}

// Query runs the catalog pattern key over tree. Bounds the caller leaves
// unset fall back to the pattern's defaults.
func (e *Engine) Query(ctx context.Context, tree *syntax.Tree, key string, opts query.Options) (query.Result, error) {
	h := tree.Language()
	c, err := e.catalog.Compile(h, key)
	if err != nil {
		return query.Result{}, err
	}
	res, err := query.Run(c, tree, withDefaults(opts, e.catalog.Settings(key)))
	if err != nil {
		return query.Result{}, err
	}
	e.metrics.recordQuery(ctx, string(h.ID()), key, res.Partial)
	if res.Partial {
		e.logger.Debug("partial query result", "pattern", key, "language", h.ID(),
			"match_limit_exceeded", res.MatchLimitExceeded, "timed_out", res.TimedOut)
	}
	return res, nil
}

// QueryTemplate compiles template for tree's language and runs it. Ad hoc
// templates are not cached.
func (e *Engine) QueryTemplate(ctx context.Context, tree *syntax.Tree, template string, opts query.Options) (query.Result, error) {
	h := tree.Language()
	c, err := query.Compile(h, "adhoc", template)
	if err != nil {
		return query.Result{}, err
	}
	defer c.Close()
	res, err := query.Run(c, tree, opts)
	if err != nil {
		return query.Result{}, err
	}
	e.metrics.recordQuery(ctx, string(h.ID()), "adhoc", res.Partial)
	return res, nil
}

func withDefaults(opts, def query.Options) query.Options {
	if opts.MatchLimit == nil {
		opts.MatchLimit = def.MatchLimit
	}
	if opts.MaxStartDepth == nil {
		opts.MaxStartDepth = def.MaxStartDepth
	}
	if opts.TimeoutMicros == 0 {
		opts.TimeoutMicros = def.TimeoutMicros
	}
	return opts
}

// Elements yields the code elements of tree in document order.
func (e *Engine) Elements(tree *syntax.Tree) iter.Seq[traverse.CodeElement] {
	return traverse.Elements(tree, e.catalog)
}

// Diagnose explains every ERROR and MISSING node of tree.
func (e *Engine) Diagnose(tree *syntax.Tree) []traverse.Diagnostic {
	return traverse.Diagnose(tree)
}

// PhantomComments returns the string statements of tree that are not
// docstrings.
func (e *Engine) PhantomComments(tree *syntax.Tree) ([]syntax.ByteRange, error) {
	return traverse.PhantomComments(tree, e.catalog)
}

// ApplyEdit applies spec to doc. A *edit.Conflict is returned when the edit
// breaks the syntax; the caller decides whether to commit it.
func (e *Engine) ApplyEdit(ctx context.Context, doc *syntax.Document, spec edit.Spec) (*edit.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := e.editor.Apply(doc, spec)
	var conflict *edit.Conflict
	switch {
	case errors.As(err, &conflict):
		e.metrics.recordEdit(ctx, string(doc.Language().ID()), true)
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("apply edit %s to %s: %w", spec, doc.Path(), err)
	}
	e.metrics.recordEdit(ctx, string(doc.Language().ID()), false)
	return res, nil
}

// ChangedRanges returns the byte ranges whose structure differs between old
// and new.
func (e *Engine) ChangedRanges(old, new *syntax.Tree) []syntax.ByteRange {
	ranges := syntax.ChangedRanges(old, new)
	out := make([]syntax.ByteRange, len(ranges))
	for i, r := range ranges {
		out[i] = r.ByteRange
	}
	return out
}

// ValidateSyntax returns traverse.ErrSyntax when tree has problems.
func (e *Engine) ValidateSyntax(tree *syntax.Tree) error {
	return traverse.ValidateSyntax(tree)
}
