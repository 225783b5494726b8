// Package index persists analyses so elements and diagnostics can be
// searched across a project. It consumes engine output; the engine does not
// depend on it.
package index

import (
	"cmp"
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"fortio.org/safecast"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// Index backends.
const (
	BackendMemory = "memory"
	BackendKuzu   = "kuzu"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown index backend")

// Store is the interface for index backends.
// Implementations: KuzuStore, SQLiteStore (cgo), MemStore.
type Store interface {
	io.Closer

	// InitSchema is called once before any data is written. It is idempotent.
	InitSchema(ctx context.Context) error

	PutFile(ctx context.Context, f File) error
	GetFile(ctx context.Context, path string) (*File, error)
	// DeleteFile removes the file with its elements and diagnostics.
	DeleteFile(ctx context.Context, path string) error

	// ReplaceElements makes els the complete element set of path.
	ReplaceElements(ctx context.Context, path string, els []traverse.CodeElement) error
	Elements(ctx context.Context, path string) ([]Element, error)
	// SearchElements returns elements whose name contains query,
	// case-insensitively. An empty kind matches every kind; limit <= 0 means
	// no limit.
	SearchElements(ctx context.Context, query string, kind traverse.Kind, limit int) ([]Element, error)

	ReplaceDiagnostics(ctx context.Context, path string, diags []traverse.Diagnostic) error
	Diagnostics(ctx context.Context, path string) ([]Diagnostic, error)

	Stats(ctx context.Context) (*Stats, error)
}

// File is one indexed source file.
type File struct {
	Path     string        `json:"path" yaml:"path"`
	Language lang.Language `json:"language" yaml:"language"`
	Size     int           `json:"size" yaml:"size"`
	// Hash is the hex SHA-256 of the source the file was indexed from.
	Hash      string `json:"hash" yaml:"hash"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// Element is a code element with the file it belongs to.
type Element struct {
	traverse.CodeElement `yaml:",inline"`

	Path string `json:"path" yaml:"path"`
}

// Diagnostic is a diagnostic with the file it belongs to.
type Diagnostic struct {
	traverse.Diagnostic `yaml:",inline"`

	Path string `json:"path" yaml:"path"`
}

// Stats summarizes an index.
type Stats struct {
	FileCount       int `json:"fileCount" yaml:"fileCount"`
	ElementCount    int `json:"elementCount" yaml:"elementCount"`
	DiagnosticCount int `json:"diagnosticCount" yaml:"diagnosticCount"`
}

// sortElements orders elements by path, then by position.
func sortElements(els []Element) {
	slices.SortStableFunc(els, func(a, b Element) int {
		return cmp.Or(
			strings.Compare(a.Path, b.Path),
			cmp.Compare(a.Span.Start, b.Span.Start),
			cmp.Compare(b.Span.End, a.Span.End),
		)
	})
}

func sortDiagnostics(ds []Diagnostic) {
	slices.SortStableFunc(ds, func(a, b Diagnostic) int {
		return cmp.Or(
			strings.Compare(a.Path, b.Path),
			cmp.Compare(a.Span.Start, b.Span.Start),
		)
	})
}

// modifierSep joins modifiers in backends without list columns.
const modifierSep = ","

func joinModifiers(m []string) string { return strings.Join(m, modifierSep) }

func splitModifiers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, modifierSep)
}

func toInt64(v uint) int64 { return safecast.MustConv[int64](v) }
