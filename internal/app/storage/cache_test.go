package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/app/testutil"
)

func TestCache(t *testing.T) {
	db, st, _ := testutil.NewDBInMemory()
	defer db.Close()
	ctx := context.Background()
	t.Run("can set and get", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		// when
		err := st.CacheSet(ctx, storage.CacheSetParams{
			Key:       "alpha",
			Value:     []byte("value"),
			ExpiresAt: time.Now().Add(time.Minute),
		})
		// then
		require.NoError(t, err)
		v, err := st.CacheGet(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), v)
	})
	t.Run("can overwrite", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		require.NoError(t, st.CacheSet(ctx, storage.CacheSetParams{Key: "alpha", Value: []byte("1")}))
		require.NoError(t, st.CacheSet(ctx, storage.CacheSetParams{Key: "alpha", Value: []byte("2")}))
		v, err := st.CacheGet(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), v)
	})
	t.Run("should report expired keys as not found", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		require.NoError(t, st.CacheSet(ctx, storage.CacheSetParams{
			Key:       "alpha",
			Value:     []byte("value"),
			ExpiresAt: time.Now().Add(-time.Minute),
		}))
		// when
		_, err := st.CacheGet(ctx, "alpha")
		// then
		assert.ErrorIs(t, err, app.ErrNotFound)
		ok, err := st.CacheExists(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("can delete", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		require.NoError(t, st.CacheSet(ctx, storage.CacheSetParams{Key: "alpha", Value: []byte("1")}))
		require.NoError(t, st.CacheDelete(ctx, "alpha"))
		ok, err := st.CacheExists(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("can clean up expired keys", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		require.NoError(t, st.CacheSet(ctx, storage.CacheSetParams{
			Key:       "old",
			Value:     []byte("1"),
			ExpiresAt: time.Now().Add(-time.Minute),
		}))
		require.NoError(t, st.CacheSet(ctx, storage.CacheSetParams{Key: "forever", Value: []byte("2")}))
		// when
		n, err := st.CacheCleanup(ctx)
		// then
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		ok, err := st.CacheExists(ctx, "forever")
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("can clear", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		require.NoError(t, st.CacheSet(ctx, storage.CacheSetParams{Key: "alpha", Value: []byte("1")}))
		require.NoError(t, st.CacheClear(ctx))
		ok, err := st.CacheExists(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
