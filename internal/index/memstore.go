package index

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	files    map[string]File
	elements map[string][]traverse.CodeElement
	diags    map[string][]traverse.Diagnostic
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		files:    make(map[string]File),
		elements: make(map[string][]traverse.CodeElement),
		diags:    make(map[string][]traverse.Diagnostic),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// PutFile stores f keyed by its path, replacing any previous record.
func (m *MemStore) PutFile(_ context.Context, f File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.Path] = f
	return nil
}

// GetFile returns the file for the given path, or nil if not found.
func (m *MemStore) GetFile(_ context.Context, path string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (m *MemStore) DeleteFile(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	delete(m.elements, path)
	delete(m.diags, path)
	return nil
}

func (m *MemStore) ReplaceElements(_ context.Context, path string, els []traverse.CodeElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elements[path] = slices.Clone(els)
	return nil
}

func (m *MemStore) Elements(_ context.Context, path string) ([]Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Element, 0, len(m.elements[path]))
	for _, el := range m.elements[path] {
		out = append(out, Element{Path: path, CodeElement: el})
	}
	sortElements(out)
	return out, nil
}

// SearchElements scans every element; results are sorted before the limit
// is applied so it is deterministic.
func (m *MemStore) SearchElements(_ context.Context, query string, kind traverse.Kind, limit int) ([]Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowerQuery := strings.ToLower(query)
	var results []Element
	for path, els := range m.elements {
		for _, el := range els {
			if kind != "" && el.Kind != kind {
				continue
			}
			if strings.Contains(strings.ToLower(el.Name), lowerQuery) {
				results = append(results, Element{Path: path, CodeElement: el})
			}
		}
	}
	sortElements(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemStore) ReplaceDiagnostics(_ context.Context, path string, diags []traverse.Diagnostic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diags[path] = slices.Clone(diags)
	return nil
}

func (m *MemStore) Diagnostics(_ context.Context, path string) ([]Diagnostic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Diagnostic, 0, len(m.diags[path]))
	for _, d := range m.diags[path] {
		out = append(out, Diagnostic{Path: path, Diagnostic: d})
	}
	sortDiagnostics(out)
	return out, nil
}

func (m *MemStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &Stats{FileCount: len(m.files)}
	for _, els := range m.elements {
		s.ElementCount += len(els)
	}
	for _, ds := range m.diags {
		s.DiagnosticCount += len(ds)
	}
	return s, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
