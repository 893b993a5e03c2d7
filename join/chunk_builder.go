package join

import (
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/stream"
)

// ChunkBuilder accumulates output rows into chunks of at most capacity rows. An UpdateDelete and its
// UpdateInsert always land in the same chunk.
type ChunkBuilder struct {
	schema        *evbatch.EventSchema
	outputIndices []int
	capacity      int
	ops           []stream.Op
	builders      []evbatch.ColumnBuilder
}

// NewChunkBuilder creates a builder that takes full width rows and emits the columns at outputIndices, which
// outSchema describes. capacity must be at least 2.
func NewChunkBuilder(outSchema *evbatch.EventSchema, outputIndices []int, capacity int) *ChunkBuilder {
	if capacity < 2 {
		panic("chunk capacity must be at least 2")
	}
	return &ChunkBuilder{
		schema:        outSchema,
		outputIndices: outputIndices,
		capacity:      capacity,
	}
}

func (c *ChunkBuilder) Len() int {
	return len(c.ops)
}

func (c *ChunkBuilder) append(op stream.Op, row []any) {
	if c.builders == nil {
		c.builders = evbatch.CreateColBuilders(c.schema.ColumnTypes())
	}
	c.ops = append(c.ops, op)
	for i, index := range c.outputIndices {
		c.builders[i].AppendDatum(row[index])
	}
}

// AppendRow appends a row. If the current chunk is already full it is returned and the row starts the next one.
func (c *ChunkBuilder) AppendRow(op stream.Op, row []any) *stream.StreamChunk {
	var full *stream.StreamChunk
	if len(c.ops)+1 > c.capacity {
		full = c.Take()
	}
	c.append(op, row)
	return full
}

// AppendUpdatePair appends an UpdateDelete and UpdateInsert together. If they do not fit in the current chunk,
// that chunk is returned and the pair starts the next one.
func (c *ChunkBuilder) AppendUpdatePair(deleteRow []any, insertRow []any) *stream.StreamChunk {
	var full *stream.StreamChunk
	if len(c.ops)+2 > c.capacity {
		full = c.Take()
	}
	c.append(stream.UpdateDelete, deleteRow)
	c.append(stream.UpdateInsert, insertRow)
	return full
}

// Take returns whatever has been appended as a chunk, or nil if nothing has.
func (c *ChunkBuilder) Take() *stream.StreamChunk {
	if len(c.ops) == 0 {
		return nil
	}
	batch := evbatch.NewBatchFromBuilders(c.schema, c.builders...)
	chunk := stream.NewStreamChunk(c.ops, batch)
	c.ops = nil
	c.builders = nil
	return chunk
}
