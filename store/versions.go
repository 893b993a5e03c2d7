package store

import (
	"context"
	"sync"
)

// LocalVersionManager tracks the highest committed epoch of a store and lets callers wait for an epoch to
// become committed.
type LocalVersionManager struct {
	lock      sync.Mutex
	committed uint64
	waiters   map[uint64][]chan struct{}
}

func NewLocalVersionManager(committed uint64) *LocalVersionManager {
	return &LocalVersionManager{
		committed: committed,
		waiters:   map[uint64][]chan struct{}{},
	}
}

func (l *LocalVersionManager) CommittedEpoch() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.committed
}

// Advance moves the committed epoch forward and releases waiters. It is a no-op for older epochs.
func (l *LocalVersionManager) Advance(epoch uint64) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if epoch <= l.committed {
		return
	}
	l.committed = epoch
	for e, chans := range l.waiters {
		if e <= epoch {
			for _, ch := range chans {
				close(ch)
			}
			delete(l.waiters, e)
		}
	}
}

func (l *LocalVersionManager) WaitCommitted(ctx context.Context, epoch uint64) error {
	l.lock.Lock()
	if epoch <= l.committed {
		l.lock.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters[epoch] = append(l.waiters[epoch], ch)
	l.lock.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
