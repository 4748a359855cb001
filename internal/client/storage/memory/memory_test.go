package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalkeeper/portalkeeper/internal/client/storage"
)

func TestMemoryStorage_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.Get(ctx, storage.AuthTokenKey("mobifi"))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, storage.AuthTokenKey("mobifi"), "T1"))

	got, err := store.Get(ctx, storage.AuthTokenKey("mobifi"))
	require.NoError(t, err)
	assert.Equal(t, "T1", got)

	require.NoError(t, store.Delete(ctx, storage.AuthTokenKey("mobifi")))
	_, err = store.Get(ctx, storage.AuthTokenKey("mobifi"))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	// повторное удаление - no-op
	assert.NoError(t, store.Delete(ctx, storage.AuthTokenKey("mobifi")))
}

func TestMemoryStorage_ClosedStoreRejectsAccess(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Set(ctx, storage.KeyPhoneTokenSent, "true"))
	require.NoError(t, store.Close())

	_, err := store.Get(ctx, storage.KeyPhoneTokenSent)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Set(ctx, "k", "v"), storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Delete(ctx, "k"), storage.ErrStorageClosed)
}

func TestMemoryStorage_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set(ctx, storage.KeyRememberMe, "true")
			_, _ = store.Get(ctx, storage.KeyRememberMe)
			_ = store.Delete(ctx, storage.KeyRememberMe)
		}()
	}
	wg.Wait()
}
