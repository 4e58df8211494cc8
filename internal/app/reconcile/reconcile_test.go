package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ErikKalkoken/go-set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/reconcile"
	"github.com/ErikKalkoken/evesync/internal/xassert"
)

type fakeRelation struct {
	members   set.Set[string]
	calls     []string
	attachErr error
	detachErr error
}

func (r *fakeRelation) ListMemberIDs(_ context.Context) (set.Set[string], error) {
	return r.members.Clone(), nil
}

func (r *fakeRelation) Detach(_ context.Context, ids set.Set[string]) error {
	r.calls = append(r.calls, "detach")
	if r.detachErr != nil {
		return r.detachErr
	}
	for id := range ids.All() {
		r.members.Delete(id)
	}
	return nil
}

func (r *fakeRelation) Attach(_ context.Context, ids set.Set[string]) error {
	r.calls = append(r.calls, "attach")
	if r.attachErr != nil {
		return r.attachErr
	}
	r.members.AddSeq(ids.All())
	return nil
}

type record struct {
	id   string
	name string
}

type fakeStore struct {
	records map[string]record
	created []string
	failFor string
}

func newFakeStore(rr ...record) *fakeStore {
	s := &fakeStore{records: make(map[string]record)}
	for _, r := range rr {
		s.records[r.id] = r
	}
	return s
}

func (s *fakeStore) upsert(_ context.Context, r record) (string, error) {
	if r.id == s.failFor {
		return "", errors.New("upsert failed")
	}
	if _, ok := s.records[r.id]; !ok {
		s.created = append(s.created, r.id)
	}
	s.records[r.id] = r
	return r.id, nil
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	for _, strategy := range []reconcile.Strategy{reconcile.FullReplace, reconcile.Incremental} {
		t.Run("should replace members with authoritative set: "+strategy.String(), func(t *testing.T) {
			// given
			rel := &fakeRelation{members: set.Of("A", "B")}
			store := newFakeStore(record{"A", "alpha"}, record{"B", "bravo"})
			r := reconcile.Reconciler[string, record]{Relation: rel, Strategy: strategy, Upsert: store.upsert}
			// when
			got, err := r.Reconcile(ctx, []record{{"B", "bravo 2"}, {"C", "charlie"}})
			// then
			require.NoError(t, err)
			xassert.EqualSet(t, set.Of("B", "C"), rel.members)
			xassert.EqualSet(t, set.Of("B", "C"), got.Members)
			assert.Equal(t, "bravo 2", store.records["B"].name)
			assert.Equal(t, "alpha", store.records["A"].name)
			assert.Equal(t, []string{"C"}, store.created)
		})
		t.Run("should be idempotent: "+strategy.String(), func(t *testing.T) {
			// given
			rel := &fakeRelation{members: set.Of("A")}
			store := newFakeStore()
			r := reconcile.Reconciler[string, record]{Relation: rel, Strategy: strategy, Upsert: store.upsert}
			members := []record{{"B", "bravo"}, {"C", "charlie"}}
			_, err := r.Reconcile(ctx, members)
			require.NoError(t, err)
			// when
			_, err = r.Reconcile(ctx, members)
			// then
			require.NoError(t, err)
			xassert.EqualSet(t, set.Of("B", "C"), rel.members)
			assert.ElementsMatch(t, []string{"B", "C"}, store.created)
		})
		t.Run("should detach all when authoritative set is empty: "+strategy.String(), func(t *testing.T) {
			rel := &fakeRelation{members: set.Of("A", "B")}
			r := reconcile.Reconciler[string, record]{Relation: rel, Strategy: strategy, Upsert: newFakeStore().upsert}
			got, err := r.Reconcile(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, 0, rel.members.Size())
			xassert.EqualSet(t, set.Of("A", "B"), got.Detached)
		})
	}
	t.Run("full replace detaches before it attaches", func(t *testing.T) {
		rel := &fakeRelation{members: set.Of("A")}
		r := reconcile.Reconciler[string, record]{Relation: rel, Upsert: newFakeStore().upsert}
		got, err := r.Reconcile(ctx, []record{{"A", "alpha"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"detach", "attach"}, rel.calls)
		xassert.EqualSet(t, set.Of("A"), got.Detached)
		xassert.EqualSet(t, set.Of("A"), got.Attached)
	})
	t.Run("incremental only touches changed members", func(t *testing.T) {
		rel := &fakeRelation{members: set.Of("A", "B")}
		r := reconcile.Reconciler[string, record]{
			Relation: rel,
			Strategy: reconcile.Incremental,
			Upsert:   newFakeStore().upsert,
		}
		got, err := r.Reconcile(ctx, []record{{"B", "bravo"}, {"C", "charlie"}})
		require.NoError(t, err)
		xassert.EqualSet(t, set.Of("A"), got.Detached)
		xassert.EqualSet(t, set.Of("C"), got.Attached)
	})
	t.Run("should report partial reconciliation when attach fails after detach", func(t *testing.T) {
		// given
		rel := &fakeRelation{members: set.Of("A", "B"), attachErr: errors.New("disk full")}
		r := reconcile.Reconciler[string, record]{Relation: rel, Upsert: newFakeStore().upsert}
		// when
		_, err := r.Reconcile(ctx, []record{{"B", "bravo"}})
		// then
		assert.ErrorIs(t, err, app.ErrPartialReconciliation)
		var x *app.PartialReconciliationError
		if assert.ErrorAs(t, err, &x) {
			assert.Equal(t, 2, x.Detached)
		}
		assert.Equal(t, 0, rel.members.Size())
	})
	t.Run("should report partial reconciliation when upsert fails after detach", func(t *testing.T) {
		rel := &fakeRelation{members: set.Of("A")}
		store := newFakeStore()
		store.failFor = "C"
		r := reconcile.Reconciler[string, record]{Relation: rel, Upsert: store.upsert}
		_, err := r.Reconcile(ctx, []record{{"B", "bravo"}, {"C", "charlie"}})
		assert.ErrorIs(t, err, app.ErrPartialReconciliation)
	})
	t.Run("should report clean failure when nothing was detached", func(t *testing.T) {
		rel := &fakeRelation{attachErr: errors.New("disk full")}
		r := reconcile.Reconciler[string, record]{Relation: rel, Upsert: newFakeStore().upsert}
		_, err := r.Reconcile(ctx, []record{{"A", "alpha"}})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, app.ErrPartialReconciliation)
	})
	t.Run("should report clean failure when detach fails", func(t *testing.T) {
		rel := &fakeRelation{members: set.Of("A"), detachErr: errors.New("locked")}
		r := reconcile.Reconciler[string, record]{Relation: rel, Upsert: newFakeStore().upsert}
		_, err := r.Reconcile(ctx, []record{{"A", "alpha"}})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, app.ErrPartialReconciliation)
		xassert.EqualSet(t, set.Of("A"), rel.members)
	})
}

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		in   string
		want reconcile.Strategy
		ok   bool
	}{
		{"", reconcile.FullReplace, true},
		{"full_replace", reconcile.FullReplace, true},
		{"incremental", reconcile.Incremental, true},
		{"other", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := reconcile.ParseStrategy(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, app.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
