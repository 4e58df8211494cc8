package storage_test

import (
	"context"
	"testing"

	"github.com/ErikKalkoken/go-set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/testutil"
	"github.com/ErikKalkoken/evesync/internal/optional"
	"github.com/ErikKalkoken/evesync/internal/xassert"
)

func TestCharacter(t *testing.T) {
	db, st, factory := testutil.NewDBInMemory()
	defer db.Close()
	ctx := context.Background()
	t.Run("can create new minimal", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		// when
		c, err := st.CreateCharacter(ctx, app.Character{ID: 42, Name: "Bruce Wayne"})
		// then
		require.NoError(t, err)
		assert.Equal(t, int32(42), c.ID)
		c2, err := st.GetCharacter(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "Bruce Wayne", c2.Name)
		assert.True(t, c2.AllianceID.IsEmpty())
		assert.Nil(t, c2.Orders)
	})
	t.Run("can create new full", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		arg := app.Character{
			AccountBalance:  optional.New(1234.5),
			AllianceID:      optional.New[int32](99000001),
			AllianceName:    "Justice League",
			BloodLine:       "Deteis",
			BloodLineID:     optional.New[int32](1),
			CorporationID:   optional.New[int32](98000001),
			CorporationName: "Wayne Enterprises",
			FactionID:       optional.New[int32](500001),
			FactionName:     "Caldari State",
			Gender:          "Male",
			ID:              42,
			Name:            "Bruce Wayne",
			Orders:          []app.CharacterOrder{{"orderID": "7", "price": "12.5"}},
			Race:            "Caldari",
			SecurityStatus:  optional.New(-1.5),
		}
		// when
		_, err := st.CreateCharacter(ctx, arg)
		// then
		require.NoError(t, err)
		c, err := st.GetCharacter(ctx, 42)
		require.NoError(t, err)
		arg.CreatedAt = c.CreatedAt
		arg.UpdatedAt = c.UpdatedAt
		assert.Equal(t, &arg, c)
	})
	t.Run("should return error when character exists", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		c := factory.CreateCharacter()
		_, err := st.CreateCharacter(ctx, app.Character{ID: c.ID})
		assert.ErrorIs(t, err, app.ErrAlreadyExists)
	})
	t.Run("can update existing", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		c := factory.CreateCharacter()
		c2 := c.ApplyPatch(app.CharacterPatch{
			Name:   optional.New("Batman"),
			Orders: optional.New([]app.CharacterOrder{}),
		})
		// when
		got, err := st.UpdateCharacter(ctx, c2)
		// then
		require.NoError(t, err)
		assert.Equal(t, "Batman", got.Name)
		assert.Equal(t, c.CorporationName, got.CorporationName)
		assert.NotNil(t, got.Orders)
		assert.Len(t, got.Orders, 0)
		xassert.EqualTime(t, c.CreatedAt, got.CreatedAt)
	})
	t.Run("should return not found when updating unknown character", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		_, err := st.UpdateCharacter(ctx, app.Character{ID: 42})
		assert.ErrorIs(t, err, app.ErrNotFound)
	})
	t.Run("should return not found error", func(t *testing.T) {
		testutil.MustTruncateTables(db)
		_, err := st.GetCharacter(ctx, 42)
		assert.ErrorIs(t, err, app.ErrNotFound)
	})
	t.Run("can list characters", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		c1 := factory.CreateCharacter()
		c2 := factory.CreateCharacter()
		// when
		got, err := st.ListCharacterIDs(ctx)
		// then
		require.NoError(t, err)
		xassert.EqualSet(t, set.Of(c1.ID, c2.ID), got)
		cc, err := st.ListCharacters(ctx)
		require.NoError(t, err)
		assert.Len(t, cc, 2)
	})
}
