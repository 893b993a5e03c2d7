package statetable

import (
	"bytes"
	"context"

	"github.com/google/btree"
	"github.com/spirit-labs/streamjoin/common"
	"github.com/spirit-labs/streamjoin/encoding"
	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/iteration"
	"github.com/spirit-labs/streamjoin/store"
	"github.com/spirit-labs/streamjoin/types"
	"github.com/spirit-labs/streamjoin/vnode"
)

const pendingTreeDegree = 16

// StateTable is an ordered table of rows persisted in a StateStore. Rows are keyed by
//
//	tableID (8 bytes BE) | vnode (2 bytes BE) | memcomparable(pk columns)
//
// where the vnode is the hash of the first distKeyLen pk columns. Mutations are held in a pending buffer
// overlaid on reads and handed to the store on Commit.
type StateTable struct {
	tableID     uint64
	columnTypes []types.ColumnType
	pkIndices   []int
	pkTypes     []types.ColumnType
	distKeyLen  int
	store       store.StateStore
	vnodes      *vnode.Bitmap
	epoch       uint64
	initialised bool
	pending     *btree.BTreeG[common.KV]
}

func NewStateTable(tableID uint64, columnTypes []types.ColumnType, pkIndices []int, distKeyLen int,
	st store.StateStore, vnodes *vnode.Bitmap) *StateTable {
	if tableID == store.MetaTableID {
		panic("table id is reserved")
	}
	if distKeyLen > len(pkIndices) {
		panic("distribution key longer than primary key")
	}
	pkTypes := make([]types.ColumnType, len(pkIndices))
	for i, index := range pkIndices {
		pkTypes[i] = columnTypes[index]
	}
	return &StateTable{
		tableID:     tableID,
		columnTypes: columnTypes,
		pkIndices:   pkIndices,
		pkTypes:     pkTypes,
		distKeyLen:  distKeyLen,
		store:       st,
		vnodes:      vnodes,
		pending:     btree.NewG(pendingTreeDegree, kvLess),
	}
}

func kvLess(a, b common.KV) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// Init sets the epoch the table starts writing at. It must be called once before any other operation.
func (s *StateTable) Init(epoch uint64) {
	s.epoch = epoch
	s.initialised = true
}

func (s *StateTable) IsInitialised() bool {
	return s.initialised
}

func (s *StateTable) Epoch() uint64 {
	return s.epoch
}

func (s *StateTable) TableID() uint64 {
	return s.tableID
}

func (s *StateTable) ColumnTypes() []types.ColumnType {
	return s.columnTypes
}

func (s *StateTable) Vnodes() *vnode.Bitmap {
	return s.vnodes
}

func (s *StateTable) PkOf(row []any) []any {
	pk := make([]any, len(s.pkIndices))
	for i, index := range s.pkIndices {
		pk[i] = row[index]
	}
	return pk
}

// EncodePrefix encodes a leading subset of the pk columns, which must cover the distribution key, returning
// the storage key prefix and the vnode it lives in.
func (s *StateTable) EncodePrefix(prefix []any) ([]byte, uint16) {
	if len(prefix) < s.distKeyLen {
		panic("prefix does not cover the distribution key")
	}
	var distKey []byte
	distKey = encoding.KeyEncodeDatums(distKey, prefix[:s.distKeyLen], s.pkTypes[:s.distKeyLen])
	vn := vnode.ComputeVnode(distKey)
	key := make([]byte, 0, 10+len(distKey)+16)
	key = encoding.AppendUint64ToBufferBE(key, s.tableID)
	key = encoding.AppendUint16ToBufferBE(key, vn)
	key = append(key, distKey...)
	key = encoding.KeyEncodeDatums(key, prefix[s.distKeyLen:], s.pkTypes[s.distKeyLen:len(prefix)])
	return key, vn
}

func (s *StateTable) checkVnode(vn uint16) error {
	if !s.vnodes.IsSet(vn) {
		return errors.NewStreamErrorf(errors.VnodeNotOwned, "table %d does not own vnode %d", s.tableID, vn)
	}
	return nil
}

func (s *StateTable) Insert(row []any) error {
	key, vn := s.EncodePrefix(s.PkOf(row))
	if err := s.checkVnode(vn); err != nil {
		return err
	}
	s.pending.ReplaceOrInsert(common.KV{Key: key, Value: encoding.EncodeRow(nil, row, s.columnTypes)})
	return nil
}

func (s *StateTable) Delete(row []any) error {
	key, vn := s.EncodePrefix(s.PkOf(row))
	if err := s.checkVnode(vn); err != nil {
		return err
	}
	s.pending.ReplaceOrInsert(common.KV{Key: key})
	return nil
}

// Update replaces oldRow with newRow, both must have the same pk.
func (s *StateTable) Update(oldRow []any, newRow []any) error {
	if !types.RowsEqual(s.PkOf(oldRow), s.PkOf(newRow)) {
		return errors.NewInvariantViolation("update changes the primary key of table %d", s.tableID)
	}
	return s.Insert(newRow)
}

func (s *StateTable) Get(ctx context.Context, pk []any) ([]any, bool, error) {
	key, _ := s.EncodePrefix(pk)
	if kv, ok := s.pending.Get(common.KV{Key: key}); ok {
		if kv.IsTombstone() {
			return nil, false, nil
		}
		row, _ := encoding.DecodeRow(kv.Value, 0, s.columnTypes)
		return row, true, nil
	}
	val, ok, err := s.store.Get(ctx, key, s.epoch)
	if err != nil || !ok {
		return nil, false, err
	}
	row, _ := encoding.DecodeRow(val, 0, s.columnTypes)
	return row, true, nil
}

// IterWithPrefix returns the rows whose leading pk columns equal prefix, in pk order, including mutations
// not yet committed.
func (s *StateTable) IterWithPrefix(ctx context.Context, prefix []any) (*RowIterator, error) {
	keyPrefix, _ := s.EncodePrefix(prefix)
	storeIter, err := s.store.Iter(ctx, keyPrefix, s.epoch)
	if err != nil {
		return nil, err
	}
	var pendingKVs []common.KV
	s.pending.AscendRange(common.KV{Key: keyPrefix}, common.KV{Key: common.IncBigEndianBytes(keyPrefix)},
		func(kv common.KV) bool {
			pendingKVs = append(pendingKVs, kv)
			return true
		})
	merged := iteration.NewMergingIterator([]iteration.Iterator{common.NewKvSliceIterator(pendingKVs), storeIter}, false)
	return &RowIterator{iter: merged, columnTypes: s.columnTypes}, nil
}

func (s *StateTable) HasPendingWrites() bool {
	return s.pending.Len() > 0
}

// Commit stages the pending mutations in the store at the current epoch and moves the table to newEpoch. The
// mutations become visible once the store commits the epoch.
func (s *StateTable) Commit(ctx context.Context, newEpoch uint64) error {
	if newEpoch <= s.epoch {
		return errors.NewInvariantViolation("table %d cannot move from epoch %d to %d", s.tableID, s.epoch, newEpoch)
	}
	if s.pending.Len() > 0 {
		kvs := make([]common.KV, 0, s.pending.Len())
		s.pending.Ascend(func(kv common.KV) bool {
			kvs = append(kvs, kv)
			return true
		})
		if err := s.store.WriteBatch(ctx, s.epoch, kvs); err != nil {
			return err
		}
		s.pending.Clear(false)
	}
	s.epoch = newEpoch
	return nil
}

// UpdateVnodeBitmap swaps the owned vnodes and returns the previous bitmap. It may only be called between
// epochs, with nothing pending.
func (s *StateTable) UpdateVnodeBitmap(bitmap *vnode.Bitmap) (*vnode.Bitmap, error) {
	if s.pending.Len() > 0 {
		return nil, errors.NewInvariantViolation("vnode bitmap of table %d updated with pending writes", s.tableID)
	}
	prev := s.vnodes
	s.vnodes = bitmap
	return prev, nil
}

type RowIterator struct {
	iter        iteration.Iterator
	columnTypes []types.ColumnType
}

func (r *RowIterator) Next() (bool, []any, error) {
	ok, kv, err := r.iter.Next()
	if err != nil || !ok {
		return false, nil, err
	}
	row, _ := encoding.DecodeRow(kv.Value, 0, r.columnTypes)
	return true, row, nil
}

func (r *RowIterator) Close() {
	r.iter.Close()
}
