package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/ErikKalkoken/go-set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/app/testutil"
	"github.com/ErikKalkoken/evesync/internal/optional"
	"github.com/ErikKalkoken/evesync/internal/xassert"
)

func TestAccountKey(t *testing.T) {
	db, st, factory := testutil.NewDBInMemory()
	defer db.Close()
	ctx := context.Background()
	t.Run("can create new", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		// when
		err := st.CreateAccountKey(ctx, storage.CreateAccountKeyParams{ID: 42, VerificationCode: "secret"})
		// then
		require.NoError(t, err)
		k, err := st.GetAccountKey(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), k.ID)
		assert.Equal(t, "secret", k.VerificationCode)
		assert.True(t, k.ExpiresAt.IsEmpty())
		assert.False(t, k.CreatedAt.IsZero())
	})
	t.Run("should return error when key already exists", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k := factory.CreateAccountKey()
		// when
		err := st.CreateAccountKey(ctx, storage.CreateAccountKeyParams{ID: k.ID, VerificationCode: "other"})
		// then
		assert.ErrorIs(t, err, app.ErrAlreadyExists)
	})
	t.Run("should reject invalid params", func(t *testing.T) {
		err := st.CreateAccountKey(ctx, storage.CreateAccountKeyParams{ID: 1})
		assert.ErrorIs(t, err, app.ErrInvalid)
	})
	t.Run("should return not found error", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		_, err := st.GetAccountKey(ctx, 99)
		assert.ErrorIs(t, err, app.ErrNotFound)
	})
	t.Run("can update attributes", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k := factory.CreateAccountKey()
		expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		// when
		err := st.UpdateAccountKey(ctx, storage.UpdateAccountKeyParams{
			ID:         k.ID,
			AccessMask: 268435455,
			Type:       "Account",
			ExpiresAt:  optional.New(expires),
		})
		// then
		require.NoError(t, err)
		k2, err := st.GetAccountKey(ctx, k.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(268435455), k2.AccessMask)
		assert.Equal(t, "Account", k2.Type)
		xassert.EqualTime(t, expires, k2.ExpiresAt.MustValue())
		assert.Equal(t, k.VerificationCode, k2.VerificationCode)
	})
	t.Run("can clear expiry", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k := factory.CreateAccountKey()
		require.NoError(t, st.UpdateAccountKey(ctx, storage.UpdateAccountKeyParams{
			ID:        k.ID,
			ExpiresAt: optional.New(time.Now()),
		}))
		// when
		err := st.UpdateAccountKey(ctx, storage.UpdateAccountKeyParams{ID: k.ID, Type: "Character"})
		// then
		require.NoError(t, err)
		k2, err := st.GetAccountKey(ctx, k.ID)
		require.NoError(t, err)
		assert.True(t, k2.ExpiresAt.IsEmpty())
	})
	t.Run("should return not found when updating unknown key", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		err := st.UpdateAccountKey(ctx, storage.UpdateAccountKeyParams{ID: 99})
		assert.ErrorIs(t, err, app.ErrNotFound)
	})
	t.Run("can list keys", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k1 := factory.CreateAccountKey()
		k2 := factory.CreateAccountKey()
		// when
		got, err := st.ListAccountKeyIDs(ctx)
		// then
		require.NoError(t, err)
		xassert.EqualSet(t, set.Of(k1.ID, k2.ID), got)
		kk, err := st.ListAccountKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, kk, 2)
	})
}

func TestAccountKeyCharacters(t *testing.T) {
	db, st, factory := testutil.NewDBInMemory()
	defer db.Close()
	ctx := context.Background()
	t.Run("can attach characters", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k := factory.CreateAccountKey()
		c1 := factory.CreateCharacter()
		c2 := factory.CreateCharacter()
		// when
		err := st.AttachAccountKeyCharacters(ctx, k.ID, set.Of(c1.ID, c2.ID))
		// then
		require.NoError(t, err)
		got, err := st.ListAccountKeyCharacterIDs(ctx, k.ID)
		require.NoError(t, err)
		xassert.EqualSet(t, set.Of(c1.ID, c2.ID), got)
	})
	t.Run("attaching the same character twice creates no duplicate", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k := factory.CreateAccountKey()
		c := factory.CreateCharacter()
		factory.AttachCharacters(k.ID, c.ID)
		// when
		err := st.AttachAccountKeyCharacters(ctx, k.ID, set.Of(c.ID))
		// then
		require.NoError(t, err)
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM account_key_characters;"))
		assert.Equal(t, 1, n)
	})
	t.Run("can detach characters without deleting them", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k := factory.CreateAccountKey()
		c1 := factory.CreateCharacter()
		c2 := factory.CreateCharacter()
		factory.AttachCharacters(k.ID, c1.ID, c2.ID)
		// when
		err := st.DetachAccountKeyCharacters(ctx, k.ID, set.Of(c1.ID))
		// then
		require.NoError(t, err)
		got, err := st.ListAccountKeyCharacterIDs(ctx, k.ID)
		require.NoError(t, err)
		xassert.EqualSet(t, set.Of(c2.ID), got)
		_, err = st.GetCharacter(ctx, c1.ID)
		assert.NoError(t, err)
	})
	t.Run("detach only affects the given key", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k1 := factory.CreateAccountKey()
		k2 := factory.CreateAccountKey()
		c := factory.CreateCharacter()
		factory.AttachCharacters(k1.ID, c.ID)
		factory.AttachCharacters(k2.ID, c.ID)
		// when
		err := st.DetachAccountKeyCharacters(ctx, k1.ID, set.Of(c.ID))
		// then
		require.NoError(t, err)
		kk, err := st.ListCharacterAccountKeys(ctx, c.ID)
		require.NoError(t, err)
		if assert.Len(t, kk, 1) {
			assert.Equal(t, k2.ID, kk[0].ID)
		}
	})
	t.Run("can list characters with at least one key", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		k1 := factory.CreateAccountKey()
		k2 := factory.CreateAccountKey()
		c1 := factory.CreateCharacter()
		c2 := factory.CreateCharacter()
		factory.CreateCharacter()
		factory.AttachCharacters(k1.ID, c1.ID, c2.ID)
		factory.AttachCharacters(k2.ID, c1.ID)
		// when
		got, err := st.ListCharacterIDsWithAccountKey(ctx)
		// then
		require.NoError(t, err)
		xassert.EqualSet(t, set.Of(c1.ID, c2.ID), got)
	})
	t.Run("should fail to attach unknown character", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		k := factory.CreateAccountKey()
		err := st.AttachAccountKeyCharacters(ctx, k.ID, set.Of[int32](99))
		assert.Error(t, err)
	})
}
