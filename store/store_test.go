package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spirit-labs/streamjoin/common"
	"github.com/spirit-labs/streamjoin/conf"
	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/iteration"
	"github.com/stretchr/testify/require"
)

type engineFactory struct {
	name   string
	create func(t *testing.T) Engine
}

var engineFactories = []engineFactory{
	{"memory", func(t *testing.T) Engine {
		return NewMemoryEngine()
	}},
	{"pebble", func(t *testing.T) Engine {
		e, err := NewInMemPebbleEngine()
		require.NoError(t, err)
		return e
	}},
}

func forEachEngine(t *testing.T, f func(t *testing.T, s *Store)) {
	for _, ef := range engineFactories {
		t.Run(ef.name, func(t *testing.T) {
			s, err := NewStore(ef.create(t), conf.NewTestConfig())
			require.NoError(t, err)
			defer func() {
				require.NoError(t, s.Close())
			}()
			f(t, s)
		})
	}
}

func kv(k string, v string) common.KV {
	var val []byte
	if v != "" {
		val = []byte(v)
	}
	return common.KV{Key: []byte(k), Value: val}
}

func drain(t *testing.T, iter iteration.Iterator) []string {
	t.Helper()
	defer iter.Close()
	var res []string
	for {
		ok, kv, err := iter.Next()
		require.NoError(t, err)
		if !ok {
			return res
		}
		res = append(res, fmt.Sprintf("%s=%s", kv.Key, kv.Value))
	}
}

func TestWritesInvisibleUntilCommit(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.WriteBatch(ctx, 1, []common.KV{kv("p/a", "1"), kv("p/b", "2")}))
		_, ok, err := s.Get(ctx, []byte("p/a"), 1)
		require.NoError(t, err)
		require.False(t, ok)
		iter, err := s.Iter(ctx, []byte("p/"), 1)
		require.NoError(t, err)
		require.Empty(t, drain(t, iter))

		require.NoError(t, s.Commit(ctx, 1))
		require.Equal(t, uint64(1), s.CommittedEpoch())
		val, ok, err := s.Get(ctx, []byte("p/a"), 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "1", string(val))
		iter, err = s.Iter(ctx, []byte("p/"), 1)
		require.NoError(t, err)
		require.Equal(t, []string{"p/a=1", "p/b=2"}, drain(t, iter))
	})
}

func TestReadsAtEpochSeeSnapshot(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.WriteBatch(ctx, 1, []common.KV{kv("p/a", "1"), kv("p/b", "2")}))
		require.NoError(t, s.Commit(ctx, 1))
		require.NoError(t, s.WriteBatch(ctx, 2, []common.KV{kv("p/a", "10"), kv("p/b", ""), kv("p/c", "3")}))
		require.NoError(t, s.Commit(ctx, 2))

		iter, err := s.Iter(ctx, []byte("p/"), 1)
		require.NoError(t, err)
		require.Equal(t, []string{"p/a=1", "p/b=2"}, drain(t, iter))
		iter, err = s.Iter(ctx, []byte("p/"), 2)
		require.NoError(t, err)
		require.Equal(t, []string{"p/a=10", "p/c=3"}, drain(t, iter))

		_, ok, err := s.Get(ctx, []byte("p/b"), 2)
		require.NoError(t, err)
		require.False(t, ok)
		val, ok, err := s.Get(ctx, []byte("p/b"), 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "2", string(val))
		// Cached reads return the same answer.
		s.readCache.Wait()
		val, ok, err = s.Get(ctx, []byte("p/b"), 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "2", string(val))
	})
}

func TestCommitAppliesAllEarlierEpochs(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.WriteBatch(ctx, 1, []common.KV{kv("x", "1")}))
		require.NoError(t, s.WriteBatch(ctx, 2, []common.KV{kv("y", "2")}))
		require.NoError(t, s.WriteBatch(ctx, 3, []common.KV{kv("z", "3")}))
		require.NoError(t, s.Commit(ctx, 2))
		iter, err := s.IterRange(ctx, nil, nil, 3)
		require.NoError(t, err)
		require.Equal(t, []string{"x=1", "y=2"}, drain(t, iter))
		// Commit is idempotent.
		require.NoError(t, s.Commit(ctx, 2))
		require.NoError(t, s.Commit(ctx, 3))
		iter, err = s.IterRange(ctx, nil, nil, 3)
		require.NoError(t, err)
		require.Equal(t, []string{"x=1", "y=2", "z=3"}, drain(t, iter))
	})
}

func TestWriteAtCommittedEpochRejected(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.WriteBatch(ctx, 5, []common.KV{kv("x", "1")}))
		require.NoError(t, s.Commit(ctx, 5))
		err := s.WriteBatch(ctx, 5, []common.KV{kv("x", "2")})
		require.True(t, errors.IsStreamErrorWithCode(err, errors.StateStoreError))
	})
}

func TestCancelledContext(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := s.Get(ctx, []byte("x"), 1)
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, s.Commit(ctx, 1), context.Canceled)
	})
}

func TestRecoverCommittedEpoch(t *testing.T) {
	engine := NewMemoryEngine()
	s, err := NewStore(engine, conf.NewTestConfig())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.WriteBatch(ctx, 7, []common.KV{kv("x", "1")}))
	require.NoError(t, s.Commit(ctx, 7))
	require.NoError(t, s.WriteBatch(ctx, 8, []common.KV{kv("x", "2")}))
	// Staged but uncommitted writes do not survive.
	s2, err := NewStore(engine, conf.NewTestConfig())
	require.NoError(t, err)
	require.Equal(t, uint64(7), s2.CommittedEpoch())
	val, ok, err := s2.Get(ctx, []byte("x"), 8)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(val))
}

func TestWaitCommitted(t *testing.T) {
	s, err := NewStore(NewMemoryEngine(), conf.NewTestConfig())
	require.NoError(t, err)
	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- s.WaitCommitted(ctx, 3)
	}()
	require.NoError(t, s.WriteBatch(ctx, 3, []common.KV{kv("x", "1")}))
	require.NoError(t, s.Commit(ctx, 3))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "wait did not complete")
	}

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.WaitCommitted(tctx, 10), context.DeadlineExceeded)
}

func TestClosedStore(t *testing.T) {
	s, err := NewStore(NewMemoryEngine(), conf.NewTestConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, _, err = s.Get(context.Background(), []byte("x"), 1)
	require.True(t, errors.IsStreamErrorWithCode(err, errors.StateStoreError))
}

func TestMemoryEngineConcurrentIterators(t *testing.T) {
	e := NewMemoryEngine()
	require.NoError(t, e.Write([]common.KV{kv("a", "1")}))
	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(writer bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if writer {
					if err := e.Write([]common.KV{kv(fmt.Sprintf("k%03d", j), "v")}); err != nil {
						errs <- err
						return
					}
					continue
				}
				iter, err := e.NewIterator([]byte("a"), nil)
				if err != nil {
					errs <- err
					return
				}
				ok, first, err := iter.Next()
				iter.Close()
				if err != nil {
					errs <- err
					return
				}
				if !ok || string(first.Key) != "a" {
					errs <- errors.Errorf("unexpected first key %s", first.Key)
					return
				}
			}
		}(i == 0)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 101, e.Len())
}
