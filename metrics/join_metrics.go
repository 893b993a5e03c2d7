package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	joinCachedEntries = prometheus.NewGaugeVec(GaugeOpts{
		Name: "join_cached_entry_count",
		Help: "Number of join keys held in the join cache",
	}, []string{"actor_id", "side"})
	joinCachedRows = prometheus.NewGaugeVec(GaugeOpts{
		Name: "join_cached_row_count",
		Help: "Number of rows held in the join cache",
	}, []string{"actor_id", "side"})
	joinCachedBytes = prometheus.NewGaugeVec(GaugeOpts{
		Name: "join_cached_bytes",
		Help: "Estimated heap size of the join cache",
	}, []string{"actor_id", "side"})
	joinCacheLookups = prometheus.NewCounterVec(CounterOpts{
		Name: "join_cache_lookup_count",
		Help: "Join cache lookups by result",
	}, []string{"actor_id", "side", "result"})
	joinInputWaiting = prometheus.NewCounterVec(CounterOpts{
		Name: "join_actor_input_waiting_duration_ns",
		Help: "Total time the join actor spent waiting for input",
	}, []string{"actor_id"})
	joinMatchRows = prometheus.NewHistogramVec(HistogramOpts{
		Name:    "join_matched_rows_per_probe",
		Help:    "Number of matched rows returned by each probe of the opposite side",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"actor_id", "side"})
	joinEvalErrors = prometheus.NewCounterVec(CounterOpts{
		Name: "join_condition_eval_error_count",
		Help: "Join condition evaluations that failed and were treated as non-matching",
	}, []string{"actor_id"})

	storeCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "state_store_commit_duration_seconds",
		Help:    "Time taken to commit an epoch to the state store",
		Buckets: prometheus.DefBuckets,
	})
	storeReadCacheLookups = prometheus.NewCounterVec(CounterOpts{
		Name: "state_store_read_cache_lookup_count",
		Help: "State store read cache lookups by result",
	}, []string{"result"})
)

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(joinCachedEntries, joinCachedRows, joinCachedBytes, joinCacheLookups,
			joinInputWaiting, joinMatchRows, joinEvalErrors, storeCommitDuration, storeReadCacheLookups)
	})
}

// JoinSideMetrics are the metrics for one side of one join actor.
type JoinSideMetrics struct {
	CachedEntries Gauge
	CachedRows    Gauge
	CachedBytes   Gauge
	CacheHits     Counter
	CacheMisses   Counter
	MatchRows     Observer
}

type JoinMetrics struct {
	Left         *JoinSideMetrics
	Right        *JoinSideMetrics
	InputWaiting Counter
	EvalErrors   Counter
}

func NewJoinMetrics(actorID uint32) *JoinMetrics {
	register()
	actor := strconv.FormatUint(uint64(actorID), 10)
	return &JoinMetrics{
		Left:         newJoinSideMetrics(actor, "left"),
		Right:        newJoinSideMetrics(actor, "right"),
		InputWaiting: joinInputWaiting.WithLabelValues(actor),
		EvalErrors:   joinEvalErrors.WithLabelValues(actor),
	}
}

func newJoinSideMetrics(actor string, side string) *JoinSideMetrics {
	return &JoinSideMetrics{
		CachedEntries: joinCachedEntries.WithLabelValues(actor, side),
		CachedRows:    joinCachedRows.WithLabelValues(actor, side),
		CachedBytes:   joinCachedBytes.WithLabelValues(actor, side),
		CacheHits:     joinCacheLookups.WithLabelValues(actor, side, "hit"),
		CacheMisses:   joinCacheLookups.WithLabelValues(actor, side, "miss"),
		MatchRows:     joinMatchRows.WithLabelValues(actor, side),
	}
}

func (m *JoinMetrics) AddInputWaiting(d time.Duration) {
	m.InputWaiting.Add(float64(d.Nanoseconds()))
}

type StoreMetrics struct {
	CommitDuration  Observer
	ReadCacheHits   Counter
	ReadCacheMisses Counter
}

func NewStoreMetrics() *StoreMetrics {
	register()
	return &StoreMetrics{
		CommitDuration:  storeCommitDuration,
		ReadCacheHits:   storeReadCacheLookups.WithLabelValues("hit"),
		ReadCacheMisses: storeReadCacheLookups.WithLabelValues("miss"),
	}
}
