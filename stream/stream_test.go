package stream

import (
	"testing"

	serrors "github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/types"
	"github.com/spirit-labs/streamjoin/vnode"
	"github.com/stretchr/testify/require"
)

var kvSchema = evbatch.NewEventSchema([]string{"k", "v"}, []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeInt})

func TestParsePrettyChunk(t *testing.T) {
	chunk, err := ParsePrettyChunk(kvSchema, "+1 4, - 2 5, U- 3 6\nU+ 3 7, + . 8, - -1 -2")
	require.NoError(t, err)
	require.Equal(t, []Op{Insert, Delete, UpdateDelete, UpdateInsert, Insert, Delete}, chunk.Ops)
	require.Equal(t, []string{"+ 1 4", "- 2 5", "U- 3 6", "U+ 3 7", "+ . 8", "- -1 -2"}, FormatChunk(chunk))
}

func TestParsePrettyChunkErrors(t *testing.T) {
	_, err := ParsePrettyChunk(kvSchema, "+1 4 5")
	require.Error(t, err)
	_, err = ParsePrettyChunk(kvSchema, "* 1 4")
	require.Error(t, err)
	_, err = ParsePrettyChunk(kvSchema, "+ x 4")
	require.Error(t, err)
	_, err = ParsePrettyChunk(kvSchema, "U- 1 4, + 1 5")
	require.True(t, serrors.IsStreamErrorWithCode(err, serrors.ProtocolViolation))
	_, err = ParsePrettyChunk(kvSchema, "U+ 1 4")
	require.True(t, serrors.IsStreamErrorWithCode(err, serrors.ProtocolViolation))
}

func TestBarrierMutation(t *testing.T) {
	b := NewBarrier(NewEpoch(2, 1))
	require.False(t, b.IsStop())
	_, ok := b.VnodeBitmapFor(1)
	require.False(t, ok)

	bm := vnode.NewBitmapFromVnodes(1, 2)
	b.WithVnodeBitmap(7, bm).WithStop()
	require.True(t, b.IsStop())
	got, ok := b.VnodeBitmapFor(7)
	require.True(t, ok)
	require.Same(t, bm, got)
	_, ok = b.VnodeBitmapFor(8)
	require.False(t, ok)
}

func TestEpochNext(t *testing.T) {
	e := NewEpoch(5, 4)
	require.Equal(t, Epoch{Prev: 5, Curr: 6}, e.Next())
}
