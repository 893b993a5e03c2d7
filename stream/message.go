package stream

import (
	"fmt"

	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/vnode"
)

type Op uint8

const (
	Insert Op = iota + 1
	Delete
	UpdateDelete
	UpdateInsert
)

func (o Op) String() string {
	switch o {
	case Insert:
		return "+"
	case Delete:
		return "-"
	case UpdateDelete:
		return "U-"
	case UpdateInsert:
		return "U+"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// IsInsert is true for ops that add a row.
func (o Op) IsInsert() bool {
	return o == Insert || o == UpdateInsert
}

// StreamChunk is a batch of row ops. Every UpdateDelete is immediately followed by its UpdateInsert.
type StreamChunk struct {
	Ops   []Op
	Batch *evbatch.Batch
}

func NewStreamChunk(ops []Op, batch *evbatch.Batch) *StreamChunk {
	if len(ops) != batch.RowCount {
		panic(fmt.Sprintf("chunk has %d ops but %d rows", len(ops), batch.RowCount))
	}
	return &StreamChunk{Ops: ops, Batch: batch}
}

func (c *StreamChunk) Cardinality() int {
	return len(c.Ops)
}

func (c *StreamChunk) Row(i int) []any {
	return c.Batch.Row(i)
}

// Validate checks update pairing.
func (c *StreamChunk) Validate() error {
	for i, op := range c.Ops {
		switch op {
		case UpdateDelete:
			if i+1 >= len(c.Ops) || c.Ops[i+1] != UpdateInsert {
				return errors.NewProtocolViolation("UpdateDelete at row %d is not followed by UpdateInsert", i)
			}
		case UpdateInsert:
			if i == 0 || c.Ops[i-1] != UpdateDelete {
				return errors.NewProtocolViolation("UpdateInsert at row %d is not preceded by UpdateDelete", i)
			}
		case Insert, Delete:
		default:
			return errors.NewProtocolViolation("unknown op %d at row %d", op, i)
		}
	}
	return nil
}

type Epoch struct {
	Prev uint64
	Curr uint64
}

func NewEpoch(curr uint64, prev uint64) Epoch {
	return Epoch{Prev: prev, Curr: curr}
}

func (e Epoch) Next() Epoch {
	return Epoch{Prev: e.Curr, Curr: e.Curr + 1}
}

func (e Epoch) String() string {
	return fmt.Sprintf("{curr:%d prev:%d}", e.Curr, e.Prev)
}

// Mutation is the configuration change carried by a barrier.
type Mutation struct {
	Stop bool
	// VnodeBitmaps holds new vnode ownership keyed by actor id.
	VnodeBitmaps map[uint32]*vnode.Bitmap
}

type Barrier struct {
	Epoch    Epoch
	Mutation *Mutation
}

func NewBarrier(epoch Epoch) *Barrier {
	return &Barrier{Epoch: epoch}
}

func (b *Barrier) WithStop() *Barrier {
	if b.Mutation == nil {
		b.Mutation = &Mutation{}
	}
	b.Mutation.Stop = true
	return b
}

func (b *Barrier) WithVnodeBitmap(actorID uint32, bitmap *vnode.Bitmap) *Barrier {
	if b.Mutation == nil {
		b.Mutation = &Mutation{}
	}
	if b.Mutation.VnodeBitmaps == nil {
		b.Mutation.VnodeBitmaps = map[uint32]*vnode.Bitmap{}
	}
	b.Mutation.VnodeBitmaps[actorID] = bitmap
	return b
}

func (b *Barrier) IsStop() bool {
	return b.Mutation != nil && b.Mutation.Stop
}

// VnodeBitmapFor returns the new bitmap for actorID if the barrier carries one.
func (b *Barrier) VnodeBitmapFor(actorID uint32) (*vnode.Bitmap, bool) {
	if b.Mutation == nil || b.Mutation.VnodeBitmaps == nil {
		return nil, false
	}
	bm, ok := b.Mutation.VnodeBitmaps[actorID]
	return bm, ok
}

// Message is exactly one of a chunk or a barrier.
type Message struct {
	Chunk   *StreamChunk
	Barrier *Barrier
}

func ChunkMessage(chunk *StreamChunk) Message {
	return Message{Chunk: chunk}
}

func BarrierMessage(barrier *Barrier) Message {
	return Message{Barrier: barrier}
}

func (m Message) IsBarrier() bool {
	return m.Barrier != nil
}
