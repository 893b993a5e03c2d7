package store

import (
	"bytes"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/btree"
	"github.com/spirit-labs/streamjoin/common"
	"github.com/spirit-labs/streamjoin/iteration"
)

// Engine is the raw ordered key value storage beneath the Store. Keys handed to an engine are already
// versioned; an empty value is stored as is and interpreted as a tombstone by the Store.
type Engine interface {
	// Write applies all kvs atomically.
	Write(kvs []common.KV) error
	Get(key []byte) ([]byte, bool, error)
	// NewIterator iterates keys in [lower, upper). A nil upper means no upper bound.
	NewIterator(lower []byte, upper []byte) (iteration.Iterator, error)
	Close() error
}

const btreeDegree = 32

// MemoryEngine is an Engine held in a copy-on-write btree. Iterators work on a clone so writes never disturb
// an open scan.
type MemoryEngine struct {
	lock sync.RWMutex
	tree *btree.BTreeG[common.KV]
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{tree: btree.NewG(btreeDegree, kvLess)}
}

func kvLess(a, b common.KV) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

func (m *MemoryEngine) Write(kvs []common.KV) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, kv := range kvs {
		m.tree.ReplaceOrInsert(common.KV{Key: common.ByteSliceCopy(kv.Key), Value: common.ByteSliceCopy(kv.Value)})
	}
	return nil
}

func (m *MemoryEngine) Get(key []byte) ([]byte, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	kv, ok := m.tree.Get(common.KV{Key: key})
	if !ok {
		return nil, false, nil
	}
	return kv.Value, true, nil
}

func (m *MemoryEngine) NewIterator(lower []byte, upper []byte) (iteration.Iterator, error) {
	// Clone updates copy-on-write state shared with the original, so it needs the write lock.
	m.lock.Lock()
	snapshot := m.tree.Clone()
	m.lock.Unlock()
	var kvs []common.KV
	collect := func(kv common.KV) bool {
		kvs = append(kvs, kv)
		return true
	}
	if upper == nil {
		snapshot.AscendGreaterOrEqual(common.KV{Key: lower}, collect)
	} else {
		snapshot.AscendRange(common.KV{Key: lower}, common.KV{Key: upper}, collect)
	}
	return common.NewKvSliceIterator(kvs), nil
}

func (m *MemoryEngine) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.tree.Len()
}

func (m *MemoryEngine) Close() error {
	return nil
}

// PebbleEngine is an Engine persisted by pebble. SSTable layout and compaction are pebble's concern.
type PebbleEngine struct {
	db *pebble.DB
}

func NewPebbleEngine(dir string) (*PebbleEngine, error) {
	return openPebble(dir, &pebble.Options{})
}

// NewInMemPebbleEngine runs pebble over an in-memory filesystem.
func NewInMemPebbleEngine() (*PebbleEngine, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (*PebbleEngine, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleEngine{db: db}, nil
}

func (p *PebbleEngine) Write(kvs []common.KV) error {
	batch := p.db.NewBatch()
	defer func() {
		_ = batch.Close()
	}()
	for _, kv := range kvs {
		if err := batch.Set(kv.Key, kv.Value, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (p *PebbleEngine) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	res := common.ByteSliceCopy(val)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (p *PebbleEngine) NewIterator(lower []byte, upper []byte) (iteration.Iterator, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{iter: iter}, nil
}

func (p *PebbleEngine) Close() error {
	return p.db.Close()
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	started bool
}

func (p *pebbleIterator) Next() (bool, common.KV, error) {
	var valid bool
	if !p.started {
		valid = p.iter.First()
		p.started = true
	} else {
		valid = p.iter.Next()
	}
	if !valid {
		return false, common.KV{}, p.iter.Error()
	}
	// pebble reuses its buffers on Next.
	return true, common.KV{
		Key:   common.ByteSliceCopy(p.iter.Key()),
		Value: common.ByteSliceCopy(p.iter.Value()),
	}, nil
}

func (p *pebbleIterator) Close() {
	_ = p.iter.Close()
}
