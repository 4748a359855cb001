package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalkeeper/portalkeeper/internal/client/storage"
)

// создаём тестовое BoltDB хранилище
func createTestStorage(t *testing.T) *Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session_test.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestStorage_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	key := storage.AuthTokenKey("mobifi")

	// Get до записи выдаст ErrKeyNotFound
	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, key, "signed-token"))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", got)

	// Перезапись
	require.NoError(t, store.Set(ctx, key, "newer-token"))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "newer-token", got)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestStorage_DeleteMissingKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	assert.NoError(t, store.Delete(ctx, "never-written"))
}

func TestStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session_test.db")

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, storage.KeyRememberMe, "true"))
	require.NoError(t, store.Close())

	// durable slot переживает перезапуск агента
	reopened, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, storage.KeyRememberMe)
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestStorage_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.Set(ctx, storage.AuthTokenKey("mobifi"), "t1"))
	require.NoError(t, store.Set(ctx, storage.AuthTokenKey("city-wifi"), "t2"))
	require.NoError(t, store.Set(ctx, storage.MacaddrKey("mobifi"), "AA:BB:CC:DD:EE:FF"))

	require.NoError(t, store.Delete(ctx, storage.AuthTokenKey("mobifi")))

	got, err := store.Get(ctx, storage.AuthTokenKey("city-wifi"))
	require.NoError(t, err)
	assert.Equal(t, "t2", got)

	got, err = store.Get(ctx, storage.MacaddrKey("mobifi"))
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got)
}
