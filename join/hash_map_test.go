package join

import (
	"context"
	"testing"

	"github.com/spirit-labs/streamjoin/conf"
	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/metrics"
	"github.com/spirit-labs/streamjoin/store"
	"github.com/spirit-labs/streamjoin/vnode"
	"github.com/stretchr/testify/require"
)

func setupHashMap(t *testing.T, needDegree bool) (*JoinHashMap, *store.Store) {
	st, err := store.NewStore(store.NewMemoryEngine(), conf.NewTestConfig())
	require.NoError(t, err)
	hm, err := newJoinHashMap(hashMapParams{
		side:           SideLeft,
		columnTypes:    kvSchema.ColumnTypes(),
		joinKeyIndices: []int{0},
		pkIndices:      []int{1},
		stateTableID:   100,
		degreeTableID:  101,
		needDegree:     needDegree,
		vnodes:         vnode.NewFullBitmap(),
		maxEntries:     100,
		metrics:        metrics.NewJoinMetrics(100).Left,
	}, st)
	require.NoError(t, err)
	hm.Init(1)
	return hm, st
}

func flushAndCommit(t *testing.T, hm *JoinHashMap, st *store.Store) {
	epoch := hm.StateTable().Epoch()
	require.NoError(t, hm.Flush(context.Background(), epoch+1))
	require.NoError(t, st.Commit(context.Background(), epoch))
}

func kv(k int64, v int64) []any {
	return []any{k, v}
}

func TestHashMapInsertFetchDelete(t *testing.T) {
	hm, st := setupHashMap(t, true)
	ctx := context.Background()
	key := hm.EncodeKey(kv(1, 0))

	entry, err := hm.Fetch(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 0, entry.Len())
	require.NoError(t, hm.Insert(key, kv(1, 20), 2))
	require.NoError(t, hm.Insert(key, kv(1, 10), 0))
	// cached entry is updated in place, in pk order
	require.Equal(t, 2, entry.Len())
	require.True(t, entry.IsDirty())
	require.Equal(t, kv(1, 10), entry.Rows()[0].Row)
	require.Equal(t, uint64(2), entry.Rows()[1].Degree)
	require.Equal(t, 2, hm.CachedRows())

	err = hm.Insert(key, kv(1, 10), 0)
	require.True(t, errors.IsStreamErrorWithCode(err, errors.InvariantViolation))

	flushAndCommit(t, hm, st)
	require.False(t, entry.IsDirty())

	jr, err := hm.Delete(ctx, key, kv(1, 20))
	require.NoError(t, err)
	require.Equal(t, uint64(2), jr.Degree)
	require.Equal(t, 1, hm.CachedRows())
	_, err = hm.Delete(ctx, key, kv(1, 20))
	require.True(t, errors.IsStreamErrorWithCode(err, errors.InvariantViolation))
}

func TestHashMapReloadsDegrees(t *testing.T) {
	hm, st := setupHashMap(t, true)
	ctx := context.Background()
	key := hm.EncodeKey(kv(1, 0))
	require.NoError(t, hm.Insert(key, kv(1, 10), 0))
	require.NoError(t, hm.Insert(key, kv(1, 20), 5))
	entry, err := hm.Fetch(ctx, key)
	require.NoError(t, err)
	require.NoError(t, hm.IncDegree(key, entry.Rows()[0]))
	require.NoError(t, hm.DecDegree(key, entry.Rows()[1]))
	flushAndCommit(t, hm, st)

	require.Equal(t, 1, hm.Evict(0))
	require.Equal(t, 0, hm.CachedEntries())
	require.Equal(t, 0, hm.Bytes())

	entry, err = hm.Fetch(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 2, entry.Len())
	require.Equal(t, uint64(1), entry.Rows()[0].Degree)
	require.Equal(t, uint64(4), entry.Rows()[1].Degree)
	require.Greater(t, hm.Bytes(), 0)
}

func TestHashMapDegreeBelowZero(t *testing.T) {
	hm, _ := setupHashMap(t, true)
	ctx := context.Background()
	key := hm.EncodeKey(kv(1, 0))
	require.NoError(t, hm.Insert(key, kv(1, 10), 0))
	entry, err := hm.Fetch(ctx, key)
	require.NoError(t, err)
	err = hm.DecDegree(key, entry.Rows()[0])
	require.True(t, errors.IsStreamErrorWithCode(err, errors.InvariantViolation))
}

func TestHashMapWithoutDegrees(t *testing.T) {
	hm, _ := setupHashMap(t, false)
	require.False(t, hm.NeedsDegree())
	require.Nil(t, hm.DegreeTable())
	key := hm.EncodeKey(kv(1, 0))
	require.NoError(t, hm.Insert(key, kv(1, 10), 3))
	entry, err := hm.Fetch(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, uint64(0), entry.Rows()[0].Degree)
	err = hm.SetDegree(key, entry.Rows()[0], 1)
	require.True(t, errors.IsStreamErrorWithCode(err, errors.InvariantViolation))
}

func TestHashMapEvictsOnlyCleanEntries(t *testing.T) {
	hm, st := setupHashMap(t, false)
	ctx := context.Background()
	for k := int64(0); k < 5; k++ {
		key := hm.EncodeKey(kv(k, 0))
		_, err := hm.Fetch(ctx, key)
		require.NoError(t, err)
		require.NoError(t, hm.Insert(key, kv(k, 1), 0))
	}
	require.Equal(t, 0, hm.Evict(0))
	require.Equal(t, 5, hm.CachedEntries())

	flushAndCommit(t, hm, st)
	// touch key 0 so it is the most recently used
	_, err := hm.Fetch(ctx, hm.EncodeKey(kv(0, 0)))
	require.NoError(t, err)
	perEntry := hm.Bytes() / 5
	require.Equal(t, 3, hm.Evict(2*perEntry))
	require.Equal(t, 2, hm.CachedEntries())
	entry, ok := hm.cached(hm.EncodeKey(kv(0, 0)))
	require.True(t, ok)
	require.Equal(t, 1, entry.Len())
}

func TestHashMapCountsEmptyEntries(t *testing.T) {
	hm, _ := setupHashMap(t, false)
	ctx := context.Background()
	for k := int64(0); k < 3; k++ {
		entry, err := hm.Fetch(ctx, hm.EncodeKey(kv(k, 0)))
		require.NoError(t, err)
		require.Equal(t, 0, entry.Len())
		require.Greater(t, entry.Bytes(), joinEntryOverhead)
	}
	require.Equal(t, 0, hm.CachedRows())
	require.Greater(t, hm.Bytes(), 3*joinEntryOverhead)
	require.Equal(t, 3, hm.Evict(0))
	require.Equal(t, 0, hm.Bytes())
}

func TestHashMapMaxEntries(t *testing.T) {
	hm, st := setupHashMap(t, false)
	hm.maxEntries = 2
	ctx := context.Background()
	for k := int64(0); k < 4; k++ {
		_, err := hm.Fetch(ctx, hm.EncodeKey(kv(k, 0)))
		require.NoError(t, err)
	}
	flushAndCommit(t, hm, st)
	require.Equal(t, 2, hm.Evict(1<<30))
	require.Equal(t, 2, hm.CachedEntries())
}

func TestHashMapVnodeUpdateDropsEntries(t *testing.T) {
	hm, st := setupHashMap(t, false)
	ctx := context.Background()
	keys := []JoinKey{hm.EncodeKey(kv(1, 0)), hm.EncodeKey(kv(2, 0))}
	for _, key := range keys {
		_, err := hm.Fetch(ctx, key)
		require.NoError(t, err)
	}
	flushAndCommit(t, hm, st)
	_, vn1 := hm.StateTable().EncodePrefix(keys[0].Datums)
	_, vn2 := hm.StateTable().EncodePrefix(keys[1].Datums)
	bitmap := vnode.NewFullBitmap()
	bitmap.Clear(vn1)
	require.NoError(t, hm.UpdateVnodeBitmap(bitmap))
	_, ok := hm.cached(keys[0])
	require.False(t, ok)
	_, ok = hm.cached(keys[1])
	require.Equal(t, vn1 != vn2, ok)
}
