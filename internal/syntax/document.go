package syntax

import (
	"errors"
	"sync"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/google/uuid"
)

// ErrStaleVersion is returned when a write was prepared against a document
// version that is no longer current.
var ErrStaleVersion = errors.New("document version changed")

// Document owns a source buffer and the tree parsed from it. Reads may run
// concurrently; a write waits for in-flight reads and blocks new ones until
// it finishes.
type Document struct {
	mu      sync.RWMutex
	id      string
	path    string
	handle  *lang.Handle
	buf     []byte
	version uint64
	tree    *Tree
}

// NewDocument takes ownership of tree. The document's buffer is the tree's
// source.
func NewDocument(path string, tree *Tree) *Document {
	return &Document{
		id:      uuid.NewString(),
		path:    path,
		handle:  tree.Language(),
		buf:     tree.Source(),
		version: tree.Version(),
		tree:    tree,
	}
}

// ID returns a process-unique identifier for the document.
func (d *Document) ID() string { return d.id }

// Path returns the path the document was opened with, which may be empty.
func (d *Document) Path() string { return d.path }

// Language returns the document's grammar.
func (d *Document) Language() *lang.Handle { return d.handle }

// Version returns the current version.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Tree returns the current tree.
func (d *Document) Tree() *Tree {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree
}

// Read runs fn under the read lock with the current buffer and tree.
func (d *Document) Read(fn func(buf []byte, tree *Tree) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fn(d.buf, d.tree)
}

// Revision is the state handed to a write transaction.
type Revision struct {
	Version uint64
	Buffer  []byte
	Tree    *Tree
}

// Write runs fn under the write lock. If fn returns a non-nil revision it
// replaces the document state; the version must be exactly one greater than
// the current one. The replaced tree is not closed: holders of the old tree
// may still diff against it.
func (d *Document) Write(fn func(cur Revision) (*Revision, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := fn(Revision{Version: d.version, Buffer: d.buf, Tree: d.tree})
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	if next.Version != d.version+1 {
		return ErrStaleVersion
	}
	d.version = next.Version
	d.buf = next.Buffer
	d.tree = next.Tree
	return nil
}

// Close releases the current tree.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tree != nil {
		d.tree.Close()
		d.tree = nil
	}
}
