package common

import "bytes"

type KV struct {
	Key   []byte
	Value []byte
}

// IsTombstone reports whether the KV marks a deletion.
func (kv *KV) IsTombstone() bool {
	return len(kv.Value) == 0
}

func CompareKVs(kv1 KV, kv2 KV) int {
	return bytes.Compare(kv1.Key, kv2.Key)
}

func NewKvSliceIterator(kvs []KV) *KvSliceIterator {
	return &KvSliceIterator{kvs: kvs}
}

type KvSliceIterator struct {
	kvs []KV
	pos int
}

func (s *KvSliceIterator) Next() (bool, KV, error) {
	if s.pos >= len(s.kvs) {
		return false, KV{}, nil
	}
	result := s.kvs[s.pos]
	s.pos++
	return true, result, nil
}

func (s *KvSliceIterator) Close() {
}
