package vnode

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/spirit-labs/streamjoin/common"
)

// Count is the number of hash partitions a table's keyspace is split into.
const Count = 256

// ComputeVnode maps an encoded distribution key to its vnode.
func ComputeVnode(distKey []byte) uint16 {
	return uint16(common.Murmur2Hash(distKey) % Count)
}

// Bitmap is the set of vnodes owned by an actor.
type Bitmap struct {
	bits *bitset.BitSet
}

func NewBitmap() *Bitmap {
	return &Bitmap{bits: bitset.New(Count)}
}

func NewFullBitmap() *Bitmap {
	b := NewBitmap()
	for i := uint(0); i < Count; i++ {
		b.bits.Set(i)
	}
	return b
}

func NewBitmapFromVnodes(vnodes ...uint16) *Bitmap {
	b := NewBitmap()
	for _, v := range vnodes {
		b.Set(v)
	}
	return b
}

func (b *Bitmap) Set(vnode uint16) {
	b.bits.Set(uint(vnode))
}

func (b *Bitmap) Clear(vnode uint16) {
	b.bits.Clear(uint(vnode))
}

func (b *Bitmap) IsSet(vnode uint16) bool {
	return b.bits.Test(uint(vnode))
}

func (b *Bitmap) Count() int {
	return int(b.bits.Count())
}

func (b *Bitmap) Equal(other *Bitmap) bool {
	return b.bits.Equal(other.bits)
}

func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{bits: b.bits.Clone()}
}

// Vnodes returns the owned vnodes in ascending order.
func (b *Bitmap) Vnodes() []uint16 {
	res := make([]uint16, 0, b.bits.Count())
	for i, ok := b.bits.NextSet(0); ok; i, ok = b.bits.NextSet(i + 1) {
		res = append(res, uint16(i))
	}
	return res
}

// Removed returns the vnodes set in b but not in newer.
func (b *Bitmap) Removed(newer *Bitmap) []uint16 {
	diff := b.bits.Difference(newer.bits)
	res := make([]uint16, 0, diff.Count())
	for i, ok := diff.NextSet(0); ok; i, ok = diff.NextSet(i + 1) {
		res = append(res, uint16(i))
	}
	return res
}

func (b *Bitmap) String() string {
	var sb strings.Builder
	for i, v := range b.Vnodes() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	return "{" + sb.String() + "}"
}
