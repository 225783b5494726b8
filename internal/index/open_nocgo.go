//go:build !cgo

package index

import "fmt"

// Open returns the store for backend. Only the memory backend is available
// without cgo.
func Open(backend, _ string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemStore(), nil
	case BackendKuzu, BackendSQLite:
		return nil, fmt.Errorf("index backend %q requires cgo", backend)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
