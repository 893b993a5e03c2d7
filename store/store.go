package store

import (
	"bytes"
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/spirit-labs/streamjoin/common"
	"github.com/spirit-labs/streamjoin/conf"
	"github.com/spirit-labs/streamjoin/encoding"
	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/iteration"
	log "github.com/spirit-labs/streamjoin/logger"
	"github.com/spirit-labs/streamjoin/metrics"
)

// StateStore is a versioned key value store with transactional per-epoch writes. Writes staged for an epoch
// are invisible until that epoch is committed. User keys must be prefix free: no user key may be a proper
// prefix of another.
type StateStore interface {
	// Get returns the newest value for key written at an epoch <= epoch.
	Get(ctx context.Context, key []byte, epoch uint64) ([]byte, bool, error)
	// Iter returns the live entries whose keys start with prefix, in key order, as of epoch.
	Iter(ctx context.Context, prefix []byte, epoch uint64) (iteration.Iterator, error)
	// IterRange is Iter over [lower, upper).
	IterRange(ctx context.Context, lower []byte, upper []byte, epoch uint64) (iteration.Iterator, error)
	// WriteBatch stages kvs for epoch. An empty value deletes the key.
	WriteBatch(ctx context.Context, epoch uint64, kvs []common.KV) error
	// Commit atomically applies every batch staged at an epoch <= epoch.
	Commit(ctx context.Context, epoch uint64) error
	CommittedEpoch() uint64
}

// MetaTableID is reserved for store metadata, no state table may use it.
const MetaTableID = math.MaxUint64

var committedEpochKey = encoding.AppendUint64ToBufferBE(nil, MetaTableID)

const (
	readCacheAvgEntrySize = 256
	minReadCacheCounters  = 1000
)

type Store struct {
	id        string
	engine    Engine
	versions  *LocalVersionManager
	readCache *ristretto.Cache
	metrics   *metrics.StoreMetrics
	lock      sync.Mutex
	staged    map[uint64][]common.KV
	closed    bool
}

func NewStore(engine Engine, cfg conf.Config) (*Store, error) {
	maxCost := int64(*cfg.StoreReadCacheMaxSizeBytes)
	numCounters := 10 * (maxCost / readCacheAvgEntrySize)
	if numCounters < minReadCacheCounters {
		numCounters = minReadCacheCounters
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	committed, err := loadCommittedEpoch(engine)
	if err != nil {
		return nil, err
	}
	s := &Store{
		id:        uuid.New().String(),
		engine:    engine,
		versions:  NewLocalVersionManager(committed),
		readCache: cache,
		metrics:   metrics.NewStoreMetrics(),
		staged:    map[uint64][]common.KV{},
	}
	log.Debugf("opened state store %s at committed epoch %d", s.id, committed)
	return s, nil
}

// NewStoreFromConfig opens the engine selected by the config.
func NewStoreFromConfig(cfg conf.Config) (*Store, error) {
	var engine Engine
	switch *cfg.StoreBackend {
	case conf.PebbleStoreBackend:
		pe, err := NewPebbleEngine(*cfg.StoreDataDir)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open pebble store at %s", *cfg.StoreDataDir)
		}
		engine = pe
	default:
		engine = NewMemoryEngine()
	}
	return NewStore(engine, cfg)
}

func loadCommittedEpoch(engine Engine) (uint64, error) {
	val, ok, err := engine.Get(committedEpochKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	epoch, _ := encoding.ReadUint64FromBufferBE(val, 0)
	return epoch, nil
}

func (s *Store) ID() string {
	return s.id
}

func (s *Store) CommittedEpoch() uint64 {
	return s.versions.CommittedEpoch()
}

func (s *Store) WaitCommitted(ctx context.Context, epoch uint64) error {
	return s.versions.WaitCommitted(ctx, epoch)
}

func (s *Store) checkOpen() error {
	if s.closed {
		return errors.NewStreamError(errors.StateStoreError, "state store is closed")
	}
	return nil
}

func (s *Store) WriteBatch(ctx context.Context, epoch uint64, kvs []common.KV) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if committed := s.versions.CommittedEpoch(); epoch <= committed {
		return errors.NewStreamErrorf(errors.StateStoreError, "cannot write at epoch %d, epoch %d already committed",
			epoch, committed)
	}
	for _, kv := range kvs {
		s.staged[epoch] = append(s.staged[epoch], common.KV{
			Key:   encoding.EncodeVersion(common.ByteSliceCopy(kv.Key), epoch),
			Value: common.ByteSliceCopy(kv.Value),
		})
	}
	return nil
}

func (s *Store) Commit(ctx context.Context, epoch uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if epoch <= s.versions.CommittedEpoch() {
		return nil
	}
	var epochs []uint64
	size := 1
	for e, kvs := range s.staged {
		if e <= epoch {
			epochs = append(epochs, e)
			size += len(kvs)
		}
	}
	sort.Slice(epochs, func(i, j int) bool {
		return epochs[i] < epochs[j]
	})
	batch := make([]common.KV, 0, size)
	for _, e := range epochs {
		batch = append(batch, s.staged[e]...)
	}
	batch = append(batch, common.KV{Key: committedEpochKey, Value: encoding.AppendUint64ToBufferBE(nil, epoch)})
	if err := s.engine.Write(batch); err != nil {
		return errors.WithStack(errors.NewStreamErrorf(errors.StateStoreError, "failed to commit epoch %d: %v", epoch, err))
	}
	for _, e := range epochs {
		delete(s.staged, e)
	}
	s.versions.Advance(epoch)
	s.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	log.Debugf("state store %s committed epoch %d with %d writes", s.id, epoch, len(batch)-1)
	return nil
}

type cachedValue struct {
	val []byte
	ok  bool
}

func readCacheKey(key []byte, epoch uint64) string {
	return string(encoding.AppendUint64ToBufferBE(common.ByteSliceCopy(key), epoch))
}

func (s *Store) Get(ctx context.Context, key []byte, epoch uint64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	// Results at committed epochs can never change, so only those are cached.
	cacheable := epoch <= s.versions.CommittedEpoch()
	ck := readCacheKey(key, epoch)
	if cacheable {
		if v, ok := s.readCache.Get(ck); ok {
			s.metrics.ReadCacheHits.Inc()
			cv := v.(cachedValue) //nolint:forcetypeassert
			return cv.val, cv.ok, nil
		}
		s.metrics.ReadCacheMisses.Inc()
	}
	iter, err := s.engine.NewIterator(encoding.EncodeVersion(common.ByteSliceCopy(key), epoch), common.IncBigEndianBytes(key))
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	defer iter.Close()
	ok, kv, err := iter.Next()
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	var val []byte
	if ok && !kv.IsTombstone() {
		if userKey, _ := encoding.DecodeVersion(kv.Key); bytes.Equal(userKey, key) {
			val = kv.Value
		}
	}
	if cacheable {
		s.readCache.Set(ck, cachedValue{val: val, ok: val != nil}, int64(len(ck)+len(val)+16))
	}
	return val, val != nil, nil
}

func (s *Store) Iter(ctx context.Context, prefix []byte, epoch uint64) (iteration.Iterator, error) {
	var upper []byte
	if len(prefix) > 0 {
		upper = common.IncBigEndianBytes(prefix)
	}
	return s.IterRange(ctx, prefix, upper, epoch)
}

func (s *Store) IterRange(ctx context.Context, lower []byte, upper []byte, epoch uint64) (iteration.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	// Never scan into the metadata table.
	if upper == nil || bytes.Compare(upper, committedEpochKey) > 0 {
		upper = committedEpochKey
	}
	iter, err := s.engine.NewIterator(lower, upper)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &versionedIterator{iter: iter, epoch: epoch}, nil
}

func (s *Store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.readCache.Close()
	return s.engine.Close()
}

// versionedIterator collapses the versions of each user key to the newest visible at epoch and hides
// tombstones. Versions of a key are adjacent and newest first.
type versionedIterator struct {
	iter    iteration.Iterator
	epoch   uint64
	lastKey []byte
}

func (v *versionedIterator) Next() (bool, common.KV, error) {
	for {
		ok, kv, err := v.iter.Next()
		if err != nil || !ok {
			return false, common.KV{}, err
		}
		if len(kv.Key) < 8 {
			continue
		}
		userKey, version := encoding.DecodeVersion(kv.Key)
		if version > v.epoch {
			continue
		}
		if v.lastKey != nil && bytes.Equal(userKey, v.lastKey) {
			continue
		}
		v.lastKey = userKey
		if kv.IsTombstone() {
			continue
		}
		return true, common.KV{Key: userKey, Value: kv.Value}, nil
	}
}

func (v *versionedIterator) Close() {
	v.iter.Close()
}
