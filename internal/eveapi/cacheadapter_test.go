package eveapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ErikKalkoken/evesync/internal/app/pcache"
	"github.com/ErikKalkoken/evesync/internal/app/testutil"
	"github.com/ErikKalkoken/evesync/internal/eveapi"
)

func TestCacheAdapter(t *testing.T) {
	db, st, _ := testutil.NewDBInMemory()
	defer db.Close()
	pc := pcache.New(st, 0)
	defer pc.Close()
	ca := eveapi.NewCacheAdapter(pc, "prefix-", 0)
	t.Run("get existing key", func(t *testing.T) {
		pc.Clear()
		ca.Set("a", []byte("alpha"))
		got, ok := ca.Get("a")
		if assert.True(t, ok) {
			assert.Equal(t, []byte("alpha"), got)
		}
	})
	t.Run("get non existing key", func(t *testing.T) {
		pc.Clear()
		_, ok := ca.Get("a")
		assert.False(t, ok)
	})
	t.Run("should store keys with prefix", func(t *testing.T) {
		pc.Clear()
		ca.Set("a", []byte("alpha"))
		assert.True(t, pc.Exists("prefix-a"))
	})
	t.Run("can delete key", func(t *testing.T) {
		pc.Clear()
		ca.Set("a", []byte("alpha"))
		ca.Delete("a")
		assert.False(t, pc.Exists("prefix-a"))
	})
}
