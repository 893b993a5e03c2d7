package iteration

import (
	"bytes"

	"github.com/spirit-labs/streamjoin/common"
)

// MergingIterator merges sorted iterators of unversioned keys. When the same key appears in more than one
// iterator the entry from the iterator with the lowest index wins, so newer sources go first. Entries with
// an empty value are tombstones and are dropped unless preserveTombstones is set.
type MergingIterator struct {
	iters              []Iterator
	heads              []*common.KV
	exhausted          []bool
	preserveTombstones bool
}

func NewMergingIterator(iters []Iterator, preserveTombstones bool) *MergingIterator {
	return &MergingIterator{
		iters:              iters,
		heads:              make([]*common.KV, len(iters)),
		exhausted:          make([]bool, len(iters)),
		preserveTombstones: preserveTombstones,
	}
}

func (m *MergingIterator) Next() (bool, common.KV, error) {
	for {
		chosen := -1
		for i := range m.iters {
			head, err := m.head(i)
			if err != nil {
				return false, common.KV{}, err
			}
			if head == nil {
				continue
			}
			if chosen == -1 || bytes.Compare(head.Key, m.heads[chosen].Key) < 0 {
				chosen = i
			}
		}
		if chosen == -1 {
			return false, common.KV{}, nil
		}
		kv := *m.heads[chosen]
		// Drop shadowed entries for the same key in lower priority iterators.
		for i := range m.iters {
			if m.heads[i] != nil && bytes.Equal(m.heads[i].Key, kv.Key) {
				m.heads[i] = nil
			}
		}
		if kv.IsTombstone() && !m.preserveTombstones {
			continue
		}
		return true, kv, nil
	}
}

func (m *MergingIterator) head(i int) (*common.KV, error) {
	if m.heads[i] != nil || m.exhausted[i] {
		return m.heads[i], nil
	}
	ok, kv, err := m.iters[i].Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		m.exhausted[i] = true
		return nil, nil
	}
	m.heads[i] = &kv
	return m.heads[i], nil
}

func (m *MergingIterator) Close() {
	for _, iter := range m.iters {
		iter.Close()
	}
}
