package join

import (
	"context"
	"time"

	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/stream"
)

// AlignedMessage is a chunk from one side, or a barrier received from both sides.
type AlignedMessage struct {
	Side    Side
	Chunk   *stream.StreamChunk
	Barrier *stream.Barrier
}

// BarrierAligner merges the two inputs of the join. Chunks are passed on as they arrive, except that once a side
// has delivered a barrier nothing more is read from it until the other side delivers the barrier for the same
// epoch.
type BarrierAligner struct {
	inputs    [2]<-chan stream.Message
	pending   [2]*stream.Barrier
	onWaiting func(time.Duration)
}

func NewBarrierAligner(left <-chan stream.Message, right <-chan stream.Message, onWaiting func(time.Duration)) *BarrierAligner {
	return &BarrierAligner{inputs: [2]<-chan stream.Message{left, right}, onWaiting: onWaiting}
}

func (b *BarrierAligner) Next(ctx context.Context) (AlignedMessage, error) {
	for {
		if b.pending[SideLeft] != nil && b.pending[SideRight] != nil {
			left, right := b.pending[SideLeft], b.pending[SideRight]
			b.pending = [2]*stream.Barrier{}
			if left.Epoch != right.Epoch {
				return AlignedMessage{}, errors.NewProtocolViolation("barrier epochs do not match: left %s right %s",
					left.Epoch, right.Epoch)
			}
			return AlignedMessage{Barrier: left}, nil
		}
		var leftCh, rightCh <-chan stream.Message
		if b.pending[SideLeft] == nil {
			leftCh = b.inputs[SideLeft]
		}
		if b.pending[SideRight] == nil {
			rightCh = b.inputs[SideRight]
		}
		start := time.Now()
		var msg stream.Message
		var ok bool
		var side Side
		select {
		case <-ctx.Done():
			return AlignedMessage{}, ctx.Err()
		case msg, ok = <-leftCh:
			side = SideLeft
		case msg, ok = <-rightCh:
			side = SideRight
		}
		if b.onWaiting != nil {
			b.onWaiting(time.Since(start))
		}
		if !ok {
			return AlignedMessage{}, errors.NewStreamErrorf(errors.UpstreamClosed, "%s upstream closed", side)
		}
		if msg.IsBarrier() {
			b.pending[side] = msg.Barrier
			continue
		}
		if msg.Chunk == nil {
			return AlignedMessage{}, errors.NewProtocolViolation("%s upstream sent an empty message", side)
		}
		return AlignedMessage{Side: side, Chunk: msg.Chunk}, nil
	}
}
