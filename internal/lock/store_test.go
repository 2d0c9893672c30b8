package lock

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract exercises the CAS semantics every Store backend must
// provide. New backends plug in here.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create and read back", func(t *testing.T) {
		stored, err := store.Put(ctx, Item{Key: "k1", Value: []byte("v1")})
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)

		got, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got.Value)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("create conflicts with existing key", func(t *testing.T) {
		_, err := store.Put(ctx, Item{Key: "k1", Value: []byte("other")})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("update with current version", func(t *testing.T) {
		stored, err := store.Put(ctx, Item{Key: "k1", Value: []byte("v2"), Version: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("update with stale version conflicts", func(t *testing.T) {
		_, err := store.Put(ctx, Item{Key: "k1", Value: []byte("v3"), Version: 1})
		assert.ErrorIs(t, err, ErrConflict)

		got, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got.Value, "conflicting write must not land")
	})

	t.Run("delete then recreate", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "k1"))
		_, err := store.Get(ctx, "k1")
		assert.ErrorIs(t, err, ErrNotFound)

		stored, err := store.Put(ctx, Item{Key: "k1", Value: []byte("fresh")})
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("delete missing key is not an error", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "never-existed"))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "lock.db"))
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store)
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.db")

	for i := 0; i < 3; i++ {
		store, err := OpenSQLite(path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, store.Close())
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = store.Put(ctx, Item{Key: "k", Value: []byte("v")})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got.Value)
	assert.Equal(t, int64(1), got.Version)
}
