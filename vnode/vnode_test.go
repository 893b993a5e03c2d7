package vnode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmap(t *testing.T) {
	b := NewBitmapFromVnodes(3, 7, 255)
	require.True(t, b.IsSet(7))
	require.False(t, b.IsSet(8))
	require.Equal(t, 3, b.Count())
	require.Equal(t, []uint16{3, 7, 255}, b.Vnodes())
	require.Equal(t, "{3,7,255}", b.String())

	c := b.Clone()
	c.Clear(7)
	require.True(t, b.IsSet(7))
	require.False(t, b.Equal(c))
	require.Equal(t, []uint16{7}, b.Removed(c))
	require.Empty(t, c.Removed(b))
}

func TestFullBitmap(t *testing.T) {
	b := NewFullBitmap()
	require.Equal(t, Count, b.Count())
	require.True(t, b.IsSet(0))
	require.True(t, b.IsSet(Count-1))
	require.Equal(t, "{}", NewBitmap().String())
}

func TestComputeVnodeStable(t *testing.T) {
	v1 := ComputeVnode([]byte("some-key"))
	require.Equal(t, v1, ComputeVnode([]byte("some-key")))
	require.Less(t, int(v1), Count)
	seen := map[uint16]struct{}{}
	for i := 0; i < 1000; i++ {
		seen[ComputeVnode([]byte{byte(i), byte(i >> 8)})] = struct{}{}
	}
	require.Greater(t, len(seen), 100)
}
