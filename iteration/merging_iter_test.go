package iteration

import (
	"testing"

	"github.com/spirit-labs/streamjoin/common"
	"github.com/stretchr/testify/require"
)

func kvs(pairs ...string) []common.KV {
	var res []common.KV
	for i := 0; i < len(pairs); i += 2 {
		var val []byte
		if pairs[i+1] != "" {
			val = []byte(pairs[i+1])
		}
		res = append(res, common.KV{Key: []byte(pairs[i]), Value: val})
	}
	return res
}

func drain(t *testing.T, iter Iterator) []string {
	t.Helper()
	var res []string
	for {
		ok, kv, err := iter.Next()
		require.NoError(t, err)
		if !ok {
			return res
		}
		res = append(res, string(kv.Key)+"="+string(kv.Value))
	}
}

func TestMergingIteratorNewestWins(t *testing.T) {
	newer := common.NewKvSliceIterator(kvs("b", "b2", "d", "d2"))
	older := common.NewKvSliceIterator(kvs("a", "a1", "b", "b1", "c", "c1"))
	iter := NewMergingIterator([]Iterator{newer, older}, false)
	defer iter.Close()
	require.Equal(t, []string{"a=a1", "b=b2", "c=c1", "d=d2"}, drain(t, iter))
}

func TestMergingIteratorTombstones(t *testing.T) {
	newer := common.NewKvSliceIterator(kvs("b", "", "e", ""))
	older := common.NewKvSliceIterator(kvs("a", "a1", "b", "b1", "c", "c1"))
	iter := NewMergingIterator([]Iterator{newer, older}, false)
	require.Equal(t, []string{"a=a1", "c=c1"}, drain(t, iter))

	newer = common.NewKvSliceIterator(kvs("b", ""))
	older = common.NewKvSliceIterator(kvs("b", "b1"))
	iter = NewMergingIterator([]Iterator{newer, older}, true)
	require.Equal(t, []string{"b="}, drain(t, iter))
}

func TestMergingIteratorEmpty(t *testing.T) {
	iter := NewMergingIterator([]Iterator{EmptyIterator{}, common.NewKvSliceIterator(nil)}, false)
	require.Empty(t, drain(t, iter))
}
