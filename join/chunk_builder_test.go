package join

import (
	"testing"

	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/stream"
	"github.com/spirit-labs/streamjoin/types"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(capacity int) *ChunkBuilder {
	schema := evbatch.NewEventSchema([]string{"b", "a"}, []types.ColumnType{types.ColumnTypeString, types.ColumnTypeInt})
	// full rows are (a, b)
	return NewChunkBuilder(schema, []int{1, 0}, capacity)
}

func TestChunkBuilderProjectsRows(t *testing.T) {
	cb := newTestBuilder(10)
	require.Nil(t, cb.Take())
	require.Nil(t, cb.AppendRow(stream.Insert, []any{int64(1), "x"}))
	require.Nil(t, cb.AppendRow(stream.Delete, []any{nil, "y"}))
	require.Equal(t, 2, cb.Len())
	chunk := cb.Take()
	require.Equal(t, []string{"+ x 1", "- y ."}, stream.FormatChunk(chunk))
	require.Equal(t, 0, cb.Len())
	require.Nil(t, cb.Take())
}

func TestChunkBuilderReturnsFullChunks(t *testing.T) {
	cb := newTestBuilder(2)
	require.Nil(t, cb.AppendRow(stream.Insert, []any{int64(1), "a"}))
	require.Nil(t, cb.AppendRow(stream.Insert, []any{int64(2), "b"}))
	full := cb.AppendRow(stream.Insert, []any{int64(3), "c"})
	require.Equal(t, []string{"+ a 1", "+ b 2"}, stream.FormatChunk(full))
	require.Equal(t, 1, cb.Len())
}

func TestChunkBuilderNeverSplitsUpdatePair(t *testing.T) {
	cb := newTestBuilder(3)
	require.Nil(t, cb.AppendRow(stream.Insert, []any{int64(1), "a"}))
	require.Nil(t, cb.AppendRow(stream.Insert, []any{int64(2), "b"}))
	full := cb.AppendUpdatePair([]any{int64(3), "c"}, []any{int64(3), "d"})
	require.Equal(t, []string{"+ a 1", "+ b 2"}, stream.FormatChunk(full))
	chunk := cb.Take()
	require.NoError(t, chunk.Validate())
	require.Equal(t, []string{"U- c 3", "U+ d 3"}, stream.FormatChunk(chunk))
}

func TestChunkBuilderCapacity(t *testing.T) {
	require.Panics(t, func() {
		newTestBuilder(1)
	})
}
