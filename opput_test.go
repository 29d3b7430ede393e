package todostore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// racingStore lets another writer change the record right before each of the
// next n batches is applied.
type racingStore struct {
	KVStore
	n     int
	other *Engine
	id    ID
}

func (s *racingStore) Write(ctx context.Context, b *Batch) error {
	if s.n > 0 {
		s.n--
		if _, err := s.other.Update(ctx, s.id, SetTitle(fmt.Sprintf("race %d", s.n))); err != nil {
			return err
		}
	}
	return s.KVStore.Write(ctx, b)
}

func TestUpdate_RetriesOnConcurrentChange(t *testing.T) {
	runWithAllStores(t, func(t *testing.T, kv KVStore) {
		ctx := context.Background()
		base := setup(t, kv)
		require.NoError(t, base.Create(ctx, &Record{ID: "a", Title: "x"}))

		rs := &racingStore{KVStore: kv, n: 1, other: base, id: "a"}
		e := New(rs, Options{Verbose: true})

		rec, err := e.Update(ctx, "a", SetCompleted(true))
		require.NoError(t, err)
		// the concurrent title change is not lost
		require.Equal(t, &Record{ID: "a", Title: "race 0", Completed: true}, rec)
		require.Equal(t, uint64(1), e.ConflictCount.Load())

		got, err := e.Get(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, rec, got)
		requireConsistent(t, e)
	})
}

func TestUpdate_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	kv := NewMemStore()
	base := setup(t, kv)
	require.NoError(t, base.Create(ctx, &Record{ID: "a", Title: "x"}))

	rs := &racingStore{KVStore: kv, n: 100, other: base, id: "a"}
	e := New(rs, Options{MaxRetries: 2})

	rec, err := e.Update(ctx, "a", SetCompleted(true))
	require.ErrorIs(t, err, ErrConflict)
	require.Nil(t, rec)
	require.Equal(t, uint64(3), e.ConflictCount.Load())
	require.Equal(t, 97, rs.n)

	got, err := e.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, got.Completed)
	requireConsistent(t, e)
}

func TestUpdate_RecordRemovedBeforeRetry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemStore()
	base := setup(t, kv)
	require.NoError(t, base.Create(ctx, &Record{ID: "a", Title: "x"}))

	e := New(&removingStore{KVStore: kv, other: base, id: "a"}, Options{})
	rec, err := e.Update(ctx, "a", SetCompleted(true))
	require.NoError(t, err)
	isnil(t, rec)

	all, err := e.FetchAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
	requireConsistent(t, e)
}

// removingStore removes the record right before the first batch is applied.
type removingStore struct {
	KVStore
	other *Engine
	id    ID
	done  bool
}

func (s *removingStore) Write(ctx context.Context, b *Batch) error {
	if !s.done {
		s.done = true
		if _, err := s.other.Remove(ctx, s.id); err != nil {
			return err
		}
	}
	return s.KVStore.Write(ctx, b)
}

func TestCreate_ClearsStaleIndexEntry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemStore()
	e := setup(t, kv)
	require.NoError(t, kv.Write(ctx, new(Batch).Put(indexKey(true, "a"), []byte("a"))))

	require.NoError(t, e.Create(ctx, &Record{ID: "a", Title: "x"}))

	done, err := e.FetchByCompleted(ctx, true)
	require.NoError(t, err)
	require.Empty(t, done)
	requireConsistent(t, e)
}
