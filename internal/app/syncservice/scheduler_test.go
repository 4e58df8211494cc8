package syncservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/app/syncservice"
	"github.com/ErikKalkoken/evesync/internal/app/testutil"
)

// blockingFetcher blocks all fetches until released.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error) {
	f.started <- struct{}{}
	<-f.release
	return nil, errFetch
}

func TestScheduler(t *testing.T) {
	db, st, factory := testutil.NewDBInMemory()
	defer db.Close()
	ctx := context.Background()
	t.Run("should update all keys, characters and markets", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		key := factory.CreateAccountKey()
		f := newFakeFetcher()
		f.payloads["account:APIKeyInfo"] = makeKeyInfo(makeKeyCharacter(101, "Alpha"))
		makeCharacterPayloads(f, 101)
		m := newFakeMarket()
		s := syncservice.New(syncservice.Params{Fetcher: f, Market: m, Storage: st})
		sc := syncservice.NewScheduler(s, syncservice.SchedulerParams{
			Markets: []syncservice.MarketTypeUpdateParams{{RegionID: 10000002, TypeID: 34}},
		})
		// when
		stats, ok := sc.RunOnce(ctx)
		// then
		if assert.True(t, ok) {
			assert.Equal(t, 3, stats.Succeeded)
			assert.Equal(t, 0, stats.Failed)
			ids, err := st.ListAccountKeyCharacterIDs(ctx, key.ID)
			if assert.NoError(t, err) {
				assert.True(t, ids.Contains(101))
			}
			c, err := st.GetCharacter(ctx, 101)
			if assert.NoError(t, err) {
				assert.Len(t, c.Orders, 2)
			}
			mt, err := st.GetMarketType(ctx, storage.MarketTypeKey{RegionID: 10000002, TypeID: 34})
			if assert.NoError(t, err) {
				assert.True(t, mt.HasCompleteData())
			}
		}
	})
	t.Run("should continue after failed updates", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		factory.CreateAccountKey()
		f := newFakeFetcher()
		f.errs["account:APIKeyInfo"] = &app.AuthError{Endpoint: "account:APIKeyInfo", Code: 222}
		m := newFakeMarket()
		s := syncservice.New(syncservice.Params{Fetcher: f, Market: m, Storage: st})
		sc := syncservice.NewScheduler(s, syncservice.SchedulerParams{
			Markets: []syncservice.MarketTypeUpdateParams{{RegionID: 10000002, TypeID: 34}},
		})
		// when
		stats, ok := sc.RunOnce(ctx)
		// then
		if assert.True(t, ok) {
			assert.Equal(t, 1, stats.Succeeded)
			assert.Equal(t, 1, stats.Failed)
		}
	})
	t.Run("should only update characters with a key", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		key := factory.CreateAccountKey()
		c1 := factory.CreateCharacter()
		factory.CreateCharacter()
		factory.AttachCharacters(key.ID, c1.ID)
		f := newFakeFetcher()
		f.payloads["account:APIKeyInfo"] = makeKeyInfo(makeKeyCharacter(c1.ID, "Alpha"))
		makeCharacterPayloads(f, c1.ID)
		s := syncservice.New(syncservice.Params{Fetcher: f, Storage: st})
		sc := syncservice.NewScheduler(s, syncservice.SchedulerParams{})
		// when
		stats, ok := sc.RunOnce(ctx)
		// then
		if assert.True(t, ok) {
			assert.Equal(t, 2, stats.Succeeded)
			assert.Equal(t, 0, stats.Failed)
		}
	})
	t.Run("should not start a run while another is in progress", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		factory.CreateAccountKey()
		f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
		s := syncservice.New(syncservice.Params{Fetcher: f, Storage: st})
		sc := syncservice.NewScheduler(s, syncservice.SchedulerParams{})
		done := make(chan struct{})
		go func() {
			sc.RunOnce(ctx)
			close(done)
		}()
		<-f.started
		// when
		_, ok := sc.RunOnce(ctx)
		// then
		assert.False(t, ok)
		close(f.release)
		<-done
	})
	t.Run("should skip updates during downtime", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		factory.CreateAccountKey()
		f := newFakeFetcher()
		s := syncservice.New(syncservice.Params{Fetcher: f, Storage: st})
		sc := syncservice.NewScheduler(s, syncservice.SchedulerParams{
			Interval:   10 * time.Millisecond,
			IsDowntime: func() bool { return true },
		})
		// when
		sc.Start(ctx)
		time.Sleep(50 * time.Millisecond)
		err := sc.Stop(ctx)
		// then
		if assert.NoError(t, err) {
			assert.Equal(t, 0, f.callCount())
		}
	})
	t.Run("should run periodically until stopped", func(t *testing.T) {
		// given
		testutil.MustTruncateTables(db)
		factory.CreateAccountKey()
		f := newFakeFetcher()
		f.payloads["account:APIKeyInfo"] = makeKeyInfo()
		s := syncservice.New(syncservice.Params{Fetcher: f, Storage: st})
		sc := syncservice.NewScheduler(s, syncservice.SchedulerParams{
			Interval:   10 * time.Millisecond,
			IsDowntime: func() bool { return false },
		})
		// when
		sc.Start(ctx)
		assert.Eventually(t, func() bool {
			return f.callCount() >= 2
		}, time.Second, 5*time.Millisecond)
		err := sc.Stop(ctx)
		// then
		assert.NoError(t, err)
	})
}
