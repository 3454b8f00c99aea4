package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/perks/internal/store"
)

// OpenBackend opens the named store backend under t.TempDir and closes it
// when the test ends.
func OpenBackend(t testing.TB, backend string) store.Backend {
	t.Helper()
	path := ""
	if backend != store.BackendMemory {
		path = filepath.Join(t.TempDir(), backend+".db")
	}
	b, err := store.Open(backend, path)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}
