package conf

import (
	"time"

	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/types"
)

const (
	DefaultActorID                        = 1
	DefaultChunkSize                      = 256
	DefaultJoinCacheMemoryTargetBytes     = 64 * 1024 * 1024
	DefaultJoinCacheMaxEntries            = 1 << 20
	DefaultHighJoinAmplificationThreshold = 2048
	DefaultStoreReadCacheMaxSizeBytes     = 32 * 1024 * 1024
	DefaultStoreCommitTimeout             = 30 * time.Second
	DefaultMetricsBind                    = "localhost:9102"
	DefaultMetricsEnabled                 = false

	MemoryStoreBackend  = "memory"
	PebbleStoreBackend  = "pebble"
	DefaultStoreBackend = MemoryStoreBackend
)

type Config struct {
	ActorID *int

	// Join operator
	ChunkSize                      *int
	JoinCacheMemoryTargetBytes     *ParseableInt
	JoinCacheMaxEntries            *int
	HighJoinAmplificationThreshold *int

	// State store
	StoreBackend               *string
	StoreDataDir               *string
	StoreReadCacheMaxSizeBytes *ParseableInt
	StoreCommitTimeout         *time.Duration

	// Metrics
	MetricsEnabled *bool
	MetricsBind    *string
}

// ParseableInt is a size in bytes.
type ParseableInt int

func (c *Config) ApplyDefaults() {
	if c.ActorID == nil {
		c.ActorID = types.AddressOf(DefaultActorID)
	}
	if c.ChunkSize == nil {
		c.ChunkSize = types.AddressOf(DefaultChunkSize)
	}
	if c.JoinCacheMemoryTargetBytes == nil {
		c.JoinCacheMemoryTargetBytes = types.AddressOf(ParseableInt(DefaultJoinCacheMemoryTargetBytes))
	}
	if c.JoinCacheMaxEntries == nil {
		c.JoinCacheMaxEntries = types.AddressOf(DefaultJoinCacheMaxEntries)
	}
	if c.HighJoinAmplificationThreshold == nil {
		c.HighJoinAmplificationThreshold = types.AddressOf(DefaultHighJoinAmplificationThreshold)
	}
	if c.StoreBackend == nil {
		c.StoreBackend = types.AddressOf(DefaultStoreBackend)
	}
	if c.StoreDataDir == nil {
		c.StoreDataDir = types.AddressOf("")
	}
	if c.StoreReadCacheMaxSizeBytes == nil {
		c.StoreReadCacheMaxSizeBytes = types.AddressOf(ParseableInt(DefaultStoreReadCacheMaxSizeBytes))
	}
	if c.StoreCommitTimeout == nil {
		c.StoreCommitTimeout = types.AddressOf(DefaultStoreCommitTimeout)
	}
	if c.MetricsEnabled == nil {
		c.MetricsEnabled = types.AddressOf(DefaultMetricsEnabled)
	}
	if c.MetricsBind == nil {
		c.MetricsBind = types.AddressOf(DefaultMetricsBind)
	}
}

func (c *Config) Validate() error {
	if *c.ActorID < 0 {
		return errors.NewInvalidConfigurationError("actor-id must be >= 0")
	}
	// A chunk must be able to hold an update pair.
	if *c.ChunkSize < 2 {
		return errors.NewInvalidConfigurationError("chunk-size must be >= 2")
	}
	if *c.JoinCacheMemoryTargetBytes < 0 {
		return errors.NewInvalidConfigurationError("join-cache-memory-target-bytes must be >= 0")
	}
	if *c.JoinCacheMaxEntries < 1 {
		return errors.NewInvalidConfigurationError("join-cache-max-entries must be > 0")
	}
	if *c.HighJoinAmplificationThreshold < 1 {
		return errors.NewInvalidConfigurationError("high-join-amplification-threshold must be > 0")
	}
	switch *c.StoreBackend {
	case MemoryStoreBackend:
	case PebbleStoreBackend:
		if *c.StoreDataDir == "" {
			return errors.NewInvalidConfigurationError("store-data-dir must be specified for the pebble store backend")
		}
	default:
		return errors.NewInvalidConfigurationError("store-backend must be one of 'memory' or 'pebble'")
	}
	if *c.StoreReadCacheMaxSizeBytes < 1 {
		return errors.NewInvalidConfigurationError("store-read-cache-max-size-bytes must be > 0")
	}
	if *c.StoreCommitTimeout < time.Millisecond {
		return errors.NewInvalidConfigurationError("store-commit-timeout must be >= 1ms")
	}
	if *c.MetricsEnabled && *c.MetricsBind == "" {
		return errors.NewInvalidConfigurationError("metrics-bind must be specified if metrics-enabled is true")
	}
	return nil
}

// NewTestConfig returns a valid config with defaults applied, for use in tests.
func NewTestConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}
