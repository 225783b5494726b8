// Package watch keeps open documents in sync with files on disk. Every
// change is applied as an incremental edit so the index only re-examines
// the regions that changed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dusk-indust/syntaxkit/internal/edit"
	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/index"
	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// DefaultDebounce is how long a file must be quiet before it is synced.
const DefaultDebounce = 100 * time.Millisecond

// Op describes what a sync did to a document.
type Op string

const (
	OpOpened    Op = "opened"
	OpEdited    Op = "edited"
	OpUnchanged Op = "unchanged"
	OpRemoved   Op = "removed"
)

// Event reports one synced file.
type Event struct {
	Path    string                 `json:"path"`
	Op      Op                     `json:"op"`
	Version uint64                 `json:"version"`
	Edit    string                 `json:"edit,omitempty"`
	Changed []syntax.ByteRange     `json:"changed,omitempty"`
	Touched []traverse.CodeElement `json:"touched,omitempty"`
	// Conflict is set when the edit introduced syntax problems. The edit is
	// committed anyway since the file on disk is authoritative.
	Conflict    bool `json:"conflict,omitempty"`
	Diagnostics int  `json:"diagnostics"`
}

// Watcher syncs files under a root directory.
type Watcher struct {
	engine   *engine.Engine
	indexer  *index.Indexer
	root     string
	logger   *slog.Logger
	debounce time.Duration
	exclude  []string
	onEvent  func(Event)

	mu      sync.Mutex
	docs    map[string]*syntax.Document
	pending map[string]time.Time

	fsw       *fsnotify.Watcher
	closeOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExclude skips directories with the given names.
func WithExclude(names ...string) Option {
	return func(w *Watcher) { w.exclude = append(w.exclude, names...) }
}

// WithIndexer reindexes every synced file through ix.
func WithIndexer(ix *index.Indexer) Option { return func(w *Watcher) { w.indexer = ix } }

// OnEvent registers a callback run after every sync that did something.
func OnEvent(fn func(Event)) Option { return func(w *Watcher) { w.onEvent = fn } }

// New returns a watcher over root. Nothing is watched until Run.
func New(e *engine.Engine, root string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	w := &Watcher{
		engine:   e,
		root:     abs,
		logger:   slog.New(slog.DiscardHandler),
		debounce: DefaultDebounce,
		exclude:  []string{".git", "node_modules"},
		docs:     make(map[string]*syntax.Document),
		pending:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Run watches the root until ctx is done. Files already present are opened
// first so later changes arrive as edits.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	w.fsw = fsw
	defer w.Close()

	if err := w.addTree(ctx, w.root); err != nil {
		return err
	}

	ticker := time.NewTicker(max(w.debounce/2, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)
		case <-ticker.C:
			w.flush(ctx, time.Now())
		}
	}
}

// Close stops watching and releases every open document.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if w.fsw != nil {
			err = w.fsw.Close()
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		for path, doc := range w.docs {
			doc.Close()
			delete(w.docs, path)
		}
	})
	return err
}

// addTree watches dir and its subdirectories and opens the files in them.
func (w *Watcher) addTree(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && w.excluded(path) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if _, ok := w.supports(path); ok {
			if _, err := w.Sync(ctx, path); err != nil {
				w.logger.Warn("initial sync failed", "path", path, "err", err)
			}
		}
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if w.excluded(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ctx, ev.Name); err != nil {
				w.logger.Warn("watch new directory failed", "path", ev.Name, "err", err)
			}
			return
		}
	}
	if _, ok := w.supports(ev.Name); !ok {
		return
	}
	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		w.pending[ev.Name] = time.Now()
		w.mu.Unlock()
	}
}

// flush syncs every pending file that has been quiet for the debounce
// interval.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var due []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	slices.Sort(due)
	for _, path := range due {
		if _, err := w.Sync(ctx, path); err != nil {
			w.logger.Warn("sync failed", "path", path, "err", err)
		}
	}
}

// Sync brings the document for path in line with the file on disk. A new
// file is opened; a changed file is applied as the single minimal edit
// between the two buffers; a missing file is closed and dropped from the
// index.
func (w *Watcher) Sync(ctx context.Context, path string) (Event, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return Event{}, err
	}
	id, ok := w.supports(path)
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", lang.ErrUnsupportedLanguage, path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return w.remove(ctx, path)
	}
	if err != nil {
		return Event{}, err
	}

	doc, ok := w.docs[path]
	if !ok {
		return w.open(ctx, path, src, id)
	}

	var old []byte
	_ = doc.Read(func(buf []byte, _ *syntax.Tree) error {
		old = buf
		return nil
	})
	spec, ok := edit.SpecFromDiff(old, src)
	if !ok {
		return Event{Path: w.rel(path), Op: OpUnchanged, Version: doc.Version()}, nil
	}

	oldTree := doc.Tree()
	ev := Event{Path: w.rel(path), Op: OpEdited, Edit: spec.String()}
	res, err := w.engine.ApplyEdit(ctx, doc, spec)
	var conflict *edit.Conflict
	if errors.As(err, &conflict) {
		w.logger.Warn("edit introduced syntax problems",
			"path", path, "before", conflict.Before, "after", conflict.After)
		ev.Conflict = true
		res, err = conflict.Commit()
	}
	if err != nil {
		return Event{}, err
	}
	defer oldTree.Close()

	ev.Version = doc.Version()
	ev.Changed = w.engine.ChangedRanges(oldTree, res.Tree)
	ev.Diagnostics = len(w.engine.Diagnose(res.Tree))
	if w.indexer != nil {
		touched, err := w.indexer.Reindex(ctx, path, res.Tree, ev.Changed)
		if err != nil {
			return Event{}, err
		}
		ev.Touched = touched
	}
	w.logger.Debug("synced", "path", path, "version", ev.Version, "changed", len(ev.Changed))
	w.emit(ev)
	return ev, nil
}

func (w *Watcher) open(ctx context.Context, path string, src []byte, id lang.Language) (Event, error) {
	doc, err := w.engine.Open(ctx, path, src, string(id))
	if err != nil {
		return Event{}, err
	}
	w.docs[path] = doc
	tree := doc.Tree()
	ev := Event{
		Path:        w.rel(path),
		Op:          OpOpened,
		Version:     doc.Version(),
		Changed:     []syntax.ByteRange{tree.Span()},
		Diagnostics: len(w.engine.Diagnose(tree)),
	}
	if w.indexer != nil {
		touched, err := w.indexer.Reindex(ctx, path, tree, ev.Changed)
		if err != nil {
			return Event{}, err
		}
		ev.Touched = touched
	}
	w.emit(ev)
	return ev, nil
}

func (w *Watcher) remove(ctx context.Context, path string) (Event, error) {
	if doc, ok := w.docs[path]; ok {
		doc.Close()
		delete(w.docs, path)
	}
	if w.indexer != nil {
		if err := w.indexer.Remove(ctx, path); err != nil {
			return Event{}, err
		}
	}
	ev := Event{Path: w.rel(path), Op: OpRemoved}
	w.emit(ev)
	return ev, nil
}

func (w *Watcher) emit(ev Event) {
	if w.onEvent != nil {
		w.onEvent(ev)
	}
}

// Document returns the open document for path, if any.
func (w *Watcher) Document(path string) (*syntax.Document, bool) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[path]
	return doc, ok
}

func (w *Watcher) supports(path string) (lang.Language, bool) {
	if w.indexer != nil {
		return w.indexer.Supports(path)
	}
	return lang.ForPath(path)
}

func (w *Watcher) excluded(path string) bool {
	for _, part := range strings.Split(w.rel(path), "/") {
		if slices.Contains(w.exclude, part) {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
