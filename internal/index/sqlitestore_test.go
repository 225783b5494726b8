//go:build cgo

package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

func TestSQLiteStore(t *testing.T) {
	storeSuite(t, newSQLiteStore)
}

func TestSQLiteStore_ElementsNeedFile(t *testing.T) {
	s := newSQLiteStore(t)
	err := s.ReplaceElements(context.Background(), "orphan.py", sampleElements())
	assert.Error(t, err, "foreign key must reject elements of an unknown file")
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	ctx := context.Background()

	s, err := Open(BackendSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	putFile(t, s, "a.py")
	require.NoError(t, s.ReplaceElements(ctx, "a.py", sampleElements()))
	require.NoError(t, s.Close())

	s, err = Open(BackendSQLite, path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InitSchema(ctx))
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{FileCount: 1, ElementCount: 3}, *st)
}
