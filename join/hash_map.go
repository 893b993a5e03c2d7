package join

import (
	"context"
	"math"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/spirit-labs/streamjoin/encoding"
	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/metrics"
	"github.com/spirit-labs/streamjoin/statetable"
	"github.com/spirit-labs/streamjoin/store"
	"github.com/spirit-labs/streamjoin/types"
	"github.com/spirit-labs/streamjoin/vnode"
)

type hashMapParams struct {
	side           Side
	columnTypes    []types.ColumnType
	joinKeyIndices []int
	pkIndices      []int
	nullSafe       []bool
	stateTableID   uint64
	degreeTableID  uint64
	needDegree     bool
	vnodes         *vnode.Bitmap
	maxEntries     int
	metrics        *metrics.JoinSideMetrics
}

// JoinHashMap is the state of one side of the join: a state table holding the rows keyed by
// (join key, row pk), an optional degree table keyed the same way, and an LRU cache of join key -> rows.
//
// Writes go to the cache entry, if the key is cached, and always to the tables. A cached entry is therefore
// complete, and an uncached key can be reloaded from the tables at any point.
type JoinHashMap struct {
	side        Side
	encoder     *HashKeyEncoder
	stateTable  *statetable.StateTable
	degreeTable *statetable.StateTable
	pkTypes     []types.ColumnType
	cache       *simplelru.LRU
	maxEntries  int
	bytes       int
	rows        int
	metrics     *metrics.JoinSideMetrics
}

func newJoinHashMap(p hashMapParams, st store.StateStore) (*JoinHashMap, error) {
	// state pk is the join key followed by whatever part of the input pk is not already in it
	statePk := append([]int{}, p.joinKeyIndices...)
	for _, pkIndex := range p.pkIndices {
		inKey := false
		for _, keyIndex := range p.joinKeyIndices {
			if keyIndex == pkIndex {
				inKey = true
				break
			}
		}
		if !inKey {
			statePk = append(statePk, pkIndex)
		}
	}
	stateTable := statetable.NewStateTable(p.stateTableID, p.columnTypes, statePk, len(p.joinKeyIndices), st,
		p.vnodes)
	pkTypes := make([]types.ColumnType, len(statePk))
	for i, index := range statePk {
		pkTypes[i] = p.columnTypes[index]
	}
	var degreeTable *statetable.StateTable
	if p.needDegree {
		degreeTypes := append(append([]types.ColumnType{}, pkTypes...), types.ColumnTypeInt)
		degreePk := make([]int, len(pkTypes))
		for i := range degreePk {
			degreePk[i] = i
		}
		degreeTable = statetable.NewStateTable(p.degreeTableID, degreeTypes, degreePk, len(p.joinKeyIndices), st,
			p.vnodes)
	}
	// Capacity is enforced when evicting at barriers, never on Add.
	cache, err := simplelru.NewLRU(math.MaxInt32, nil)
	if err != nil {
		return nil, err
	}
	return &JoinHashMap{
		side:        p.side,
		encoder:     NewHashKeyEncoder(p.joinKeyIndices, p.columnTypes, p.nullSafe),
		stateTable:  stateTable,
		degreeTable: degreeTable,
		pkTypes:     pkTypes,
		cache:       cache,
		maxEntries:  p.maxEntries,
		metrics:     p.metrics,
	}, nil
}

func (h *JoinHashMap) Init(epoch uint64) {
	h.stateTable.Init(epoch)
	if h.degreeTable != nil {
		h.degreeTable.Init(epoch)
	}
}

func (h *JoinHashMap) NeedsDegree() bool {
	return h.degreeTable != nil
}

func (h *JoinHashMap) EncodeKey(row []any) JoinKey {
	return h.encoder.Encode(row)
}

func (h *JoinHashMap) StateTable() *statetable.StateTable {
	return h.stateTable
}

func (h *JoinHashMap) DegreeTable() *statetable.StateTable {
	return h.degreeTable
}

func (h *JoinHashMap) pkKey(row []any) string {
	return string(encoding.KeyEncodeDatums(nil, h.stateTable.PkOf(row), h.pkTypes))
}

func (h *JoinHashMap) degreeRow(row []any, degree uint64) []any {
	return append(h.stateTable.PkOf(row), int64(degree))
}

func (h *JoinHashMap) cached(key JoinKey) (*JoinEntryState, bool) {
	v, ok := h.cache.Peek(key.Encoded)
	if !ok {
		return nil, false
	}
	return v.(*JoinEntryState), true //nolint:forcetypeassert
}

// Fetch returns every row stored under key, loading them from the tables on a cache miss.
func (h *JoinHashMap) Fetch(ctx context.Context, key JoinKey) (*JoinEntryState, error) {
	if v, ok := h.cache.Get(key.Encoded); ok {
		h.metrics.CacheHits.Inc()
		return v.(*JoinEntryState), nil //nolint:forcetypeassert
	}
	h.metrics.CacheMisses.Inc()
	entry, err := h.load(ctx, key)
	if err != nil {
		return nil, err
	}
	h.cache.Add(key.Encoded, entry)
	h.bytes += entry.Bytes()
	h.rows += entry.Len()
	return entry, nil
}

func (h *JoinHashMap) load(ctx context.Context, key JoinKey) (*JoinEntryState, error) {
	_, vn := h.stateTable.EncodePrefix(key.Datums)
	entry := newJoinEntryState(vn, len(key.Encoded))
	rowIter, err := h.stateTable.IterWithPrefix(ctx, key.Datums)
	if err != nil {
		return nil, err
	}
	defer rowIter.Close()
	var degreeIter *statetable.RowIterator
	if h.degreeTable != nil {
		degreeIter, err = h.degreeTable.IterWithPrefix(ctx, key.Datums)
		if err != nil {
			return nil, err
		}
		defer degreeIter.Close()
	}
	for {
		ok, row, err := rowIter.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		jr := &JoinRow{Row: row, pkKey: h.pkKey(row)}
		if degreeIter != nil {
			// both tables are ordered by the same pk
			ok, degreeRow, err := degreeIter.Next()
			if err != nil {
				return nil, err
			}
			if !ok || !types.RowsEqual(degreeRow[:len(degreeRow)-1], h.stateTable.PkOf(row)) {
				return nil, errors.NewInvariantViolation("%s degree table has no degree for stored row", h.side)
			}
			jr.Degree = uint64(degreeRow[len(degreeRow)-1].(int64)) //nolint:forcetypeassert
		}
		entry.insert(jr)
	}
	return entry, nil
}

// Insert stores row under key with the given initial degree.
func (h *JoinHashMap) Insert(key JoinKey, row []any, degree uint64) error {
	jr := &JoinRow{Row: row, Degree: degree, pkKey: h.pkKey(row)}
	if entry, ok := h.cached(key); ok {
		if !entry.insert(jr) {
			return errors.NewInvariantViolation("%s side already stores a row with pk %v", h.side,
				h.stateTable.PkOf(row))
		}
		entry.state = entryDirty
		h.bytes += jr.size()
		h.rows++
	}
	if err := h.stateTable.Insert(row); err != nil {
		return err
	}
	if h.degreeTable != nil {
		return h.degreeTable.Insert(h.degreeRow(row, degree))
	}
	return nil
}

// Delete removes the row with the pk of row from key, which must be present. The removed row is returned with
// its degree.
func (h *JoinHashMap) Delete(ctx context.Context, key JoinKey, row []any) (*JoinRow, error) {
	entry, err := h.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	jr, ok := entry.remove(h.pkKey(row))
	if !ok {
		return nil, errors.NewInvariantViolation("%s side deletes row with pk %v which is not stored", h.side,
			h.stateTable.PkOf(row))
	}
	entry.state = entryDirty
	h.bytes -= jr.size()
	h.rows--
	if err := h.stateTable.Delete(jr.Row); err != nil {
		return nil, err
	}
	if h.degreeTable != nil {
		if err := h.degreeTable.Delete(h.degreeRow(jr.Row, 0)); err != nil {
			return nil, err
		}
	}
	return jr, nil
}

func (h *JoinHashMap) IncDegree(key JoinKey, jr *JoinRow) error {
	return h.SetDegree(key, jr, jr.Degree+1)
}

func (h *JoinHashMap) DecDegree(key JoinKey, jr *JoinRow) error {
	if jr.Degree == 0 {
		return errors.NewInvariantViolation("%s side decrements degree of row with pk %v below zero", h.side,
			h.stateTable.PkOf(jr.Row))
	}
	return h.SetDegree(key, jr, jr.Degree-1)
}

// SetDegree updates the degree of a row previously returned by Fetch.
func (h *JoinHashMap) SetDegree(key JoinKey, jr *JoinRow, degree uint64) error {
	if h.degreeTable == nil {
		return errors.NewInvariantViolation("%s side keeps no degrees", h.side)
	}
	if jr.Degree == degree {
		return nil
	}
	jr.Degree = degree
	if entry, ok := h.cached(key); ok {
		entry.state = entryDirty
	}
	return h.degreeTable.Insert(h.degreeRow(jr.Row, degree))
}

// Flush hands all writes of the current epoch to the store and moves the tables to newEpoch. Every cache entry
// is clean afterwards.
func (h *JoinHashMap) Flush(ctx context.Context, newEpoch uint64) error {
	if err := h.stateTable.Commit(ctx, newEpoch); err != nil {
		return err
	}
	if h.degreeTable != nil {
		if err := h.degreeTable.Commit(ctx, newEpoch); err != nil {
			return err
		}
	}
	for _, k := range h.cache.Keys() {
		v, _ := h.cache.Peek(k)
		v.(*JoinEntryState).state = entryClean //nolint:forcetypeassert
	}
	return nil
}

// Evict drops clean entries, least recently used first, until the cache is within targetBytes and the
// configured maximum number of entries.
func (h *JoinHashMap) Evict(targetBytes int) int {
	evicted := 0
	for _, k := range h.cache.Keys() {
		if h.bytes <= targetBytes && h.cache.Len() <= h.maxEntries {
			break
		}
		v, _ := h.cache.Peek(k)
		entry := v.(*JoinEntryState) //nolint:forcetypeassert
		if entry.IsDirty() {
			continue
		}
		h.removeEntry(k, entry)
		evicted++
	}
	return evicted
}

func (h *JoinHashMap) removeEntry(k interface{}, entry *JoinEntryState) {
	h.cache.Remove(k)
	h.bytes -= entry.Bytes()
	h.rows -= entry.Len()
}

// UpdateVnodeBitmap changes the vnodes owned by this side. Cached entries of vnodes no longer owned are dropped.
func (h *JoinHashMap) UpdateVnodeBitmap(bitmap *vnode.Bitmap) error {
	prev, err := h.stateTable.UpdateVnodeBitmap(bitmap)
	if err != nil {
		return err
	}
	if h.degreeTable != nil {
		if _, err := h.degreeTable.UpdateVnodeBitmap(bitmap); err != nil {
			return err
		}
	}
	if len(prev.Removed(bitmap)) == 0 {
		return nil
	}
	for _, k := range h.cache.Keys() {
		v, _ := h.cache.Peek(k)
		entry := v.(*JoinEntryState) //nolint:forcetypeassert
		if !bitmap.IsSet(entry.vnode) {
			h.removeEntry(k, entry)
		}
	}
	return nil
}

func (h *JoinHashMap) UpdateMetrics() {
	h.metrics.CachedEntries.Set(float64(h.cache.Len()))
	h.metrics.CachedRows.Set(float64(h.rows))
	h.metrics.CachedBytes.Set(float64(h.bytes))
}

// Bytes is the estimated heap size of the cache.
func (h *JoinHashMap) Bytes() int {
	return h.bytes
}

func (h *JoinHashMap) CachedEntries() int {
	return h.cache.Len()
}

func (h *JoinHashMap) CachedRows() int {
	return h.rows
}
