//go:build cgo

package index

import (
	"fmt"
	"path/filepath"
)

// Open returns the store for backend. path is ignored by the memory
// backend; for the others an empty path opens an in-memory database.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemStore(), nil
	case BackendKuzu:
		if path == "" {
			return NewKuzuStore()
		}
		return NewKuzuFileStore(path)
	case BackendSQLite:
		if path == "" {
			return NewSQLiteStore(":memory:")
		}
		return NewSQLiteStore(filepath.Clean(path))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
