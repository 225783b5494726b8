//go:build cgo

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/syntaxkit/internal/config"
)

func TestIndex_PersistentBackends(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendKuzu} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "calc.py", calcSource)

			out, _, err := run(t, "", "index", "--format", "json", "--backend", backend, dir)
			require.NoError(t, err)
			got := decode[indexReport](t, out)
			assert.Equal(t, backend, got.Backend)
			assert.Equal(t, 1, got.Report.Indexed)
			_, err = os.Stat(filepath.Join(dir, stateDir, "index."+backend))
			assert.NoError(t, err, "database is created under the state dir")

			out, _, err = run(t, "", "index", "--format", "json", "--backend", backend, dir)
			require.NoError(t, err)
			got = decode[indexReport](t, out)
			assert.Zero(t, got.Report.Indexed)
			assert.Equal(t, 1, got.Report.Unchanged, "second run reuses the stored hashes")
		})
	}
}
