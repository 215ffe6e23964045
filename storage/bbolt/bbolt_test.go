package bbolt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")

	store, err := NewStoreFromFile(dbPath, nil)
	require.NoError(t, err)

	_, ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save("sess_persisted"))

	id, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sess_persisted", id)

	// Reopen and confirm the identifier survived.
	require.NoError(t, store.Close())
	store2, err := NewStoreFromFile(dbPath, nil)
	require.NoError(t, err)
	defer store2.Close()

	id, ok, err = store2.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sess_persisted", id)

	require.NoError(t, store2.Clear())
	_, ok, err = store2.Load()
	require.NoError(t, err)
	require.False(t, ok)

	// Clearing again is a no-op.
	require.NoError(t, store2.Clear())
}
