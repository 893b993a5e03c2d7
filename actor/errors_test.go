package actor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spirit-labs/streamjoin/errors"
	"github.com/stretchr/testify/require"
)

func TestQueueReportAndDrain(t *testing.T) {
	q := NewErrorQueue()
	for i := 0; i < 1000; i++ {
		q.Report(7, "HashJoinExecutor-x", errors.NewStreamErrorf(errors.ExprEvalError, "err %d", i))
	}
	require.Equal(t, 1000, q.Len())
	reports := q.Drain()
	require.Len(t, reports, 1000)
	require.Equal(t, uint32(7), reports[0].ActorID)
	require.Equal(t, "err 0", reports[0].Err.Error())
	require.Equal(t, "err 999", reports[999].Err.Error())
	require.Equal(t, 0, q.Len())
}

func TestTakeWaitsForReport(t *testing.T) {
	q := NewErrorQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Report(1, "id", errors.New("boom"))
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, ok, err := q.Take(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "boom", report.Err.Error())
	require.Equal(t, "actor 1 (id): boom", report.String())
}

func TestTakeHonoursContextAndClose(t *testing.T) {
	q := NewErrorQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := q.Take(ctx)
	require.False(t, ok)
	require.ErrorIs(t, err, context.Canceled)

	q.Close()
	_, ok, err = q.Take(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	q.Report(1, "id", errors.New("dropped"))
	require.Equal(t, 0, q.Len())
}

func TestLoggingReporterForwards(t *testing.T) {
	q := NewErrorQueue()
	r := NewLoggingReporter(q)
	r.Report(3, "id", errors.New("warned"))
	require.Equal(t, 1, q.Len())
	NewLoggingReporter(nil).Report(3, "id", errors.New("only logged"))
}

func TestNewIdentityIsUnique(t *testing.T) {
	id1 := NewIdentity("HashJoinExecutor")
	id2 := NewIdentity("HashJoinExecutor")
	require.NotEqual(t, id1, id2)
	require.True(t, strings.HasPrefix(id1, "HashJoinExecutor-"))
}
