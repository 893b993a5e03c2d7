package main

import (
	"time"

	"github.com/spirit-labs/streamjoin/conf"
)

// joinFlags are the flags and config file entries that make up a conf.Config. Defaults match the conf
// package defaults. Byte sizes must be quoted in the config file.
type joinFlags struct {
	ActorID                        int           `help:"Id of the join actor, used in error reports and metrics" default:"1"`
	ChunkSize                      int           `help:"Maximum number of rows in an output chunk" default:"256"`
	JoinCacheMemoryTargetBytes     int           `help:"Bytes each side's join cache is evicted down to at a barrier" default:"67108864"`
	JoinCacheMaxEntries            int           `help:"Maximum number of join keys cached per side" default:"1048576"`
	HighJoinAmplificationThreshold int           `help:"Number of matches for one key above which a warning is logged" default:"2048"`
	StoreBackend                   string        `help:"State store backend" enum:"memory,pebble" default:"memory"`
	StoreDataDir                   string        `help:"Directory of the pebble state store"`
	StoreReadCacheMaxSizeBytes     int           `help:"Size of the state store read cache in bytes" default:"33554432"`
	StoreCommitTimeout             time.Duration `help:"Maximum time an epoch commit may take" default:"30s"`
	MetricsEnabled                 bool          `help:"Serve prometheus metrics"`
	MetricsBind                    string        `help:"Address the metrics server listens on" default:"localhost:9102"`
}

func (f *joinFlags) toConfig() conf.Config {
	memTarget := conf.ParseableInt(f.JoinCacheMemoryTargetBytes)
	readCache := conf.ParseableInt(f.StoreReadCacheMaxSizeBytes)
	cfg := conf.Config{
		ActorID:                        &f.ActorID,
		ChunkSize:                      &f.ChunkSize,
		JoinCacheMemoryTargetBytes:     &memTarget,
		JoinCacheMaxEntries:            &f.JoinCacheMaxEntries,
		HighJoinAmplificationThreshold: &f.HighJoinAmplificationThreshold,
		StoreBackend:                   &f.StoreBackend,
		StoreDataDir:                   &f.StoreDataDir,
		StoreReadCacheMaxSizeBytes:     &readCache,
		StoreCommitTimeout:             &f.StoreCommitTimeout,
		MetricsEnabled:                 &f.MetricsEnabled,
		MetricsBind:                    &f.MetricsBind,
	}
	cfg.ApplyDefaults()
	return cfg
}
