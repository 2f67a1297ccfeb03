package shardset

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tamirms/shardset/internal/partition"
)

const (
	// defaultMaxParts caps the partition count so the splitter never holds
	// more shard files open than a typical descriptor limit allows.
	defaultMaxParts = 4096

	// defaultMemoryFraction is the share of physical memory used as the
	// budget when neither the engine nor the query sets one.
	defaultMemoryFraction = 4
)

// HashID selects the partition hash. It affects only which shard a line is
// routed to, never the result of a query.
type HashID = partition.HashID

// Partition hash functions.
const (
	HashDJB2    = partition.DJB2
	HashXXHash  = partition.XXHash
	HashXXH3    = partition.XXH3
	HashMurmur3 = partition.Murmur3
)

// ScratchPolicy controls when shard files are removed from the working
// directory.
type ScratchPolicy uint8

const (
	// PurgeAfterQuery removes each query's shards when the query returns,
	// whether it succeeded or not. Close also removes the working directory
	// if New created it and it is empty.
	PurgeAfterQuery ScratchPolicy = iota
	// PurgeOnClose keeps shards until Close, which removes every query
	// directory and then the working directory if New created it and it is
	// empty.
	PurgeOnClose
	// RetainScratch never removes shards. Use it to inspect partitions.
	RetainScratch
)

func (p ScratchPolicy) String() string {
	switch p {
	case PurgeAfterQuery:
		return "purge-after-query"
	case PurgeOnClose:
		return "purge-on-close"
	case RetainScratch:
		return "retain"
	default:
		return "unknown"
	}
}

// Option is a functional option for configuring an Engine.
type Option func(*engineConfig)

// QueryOption is a functional option for configuring a single query.
type QueryOption func(*queryConfig)

type engineConfig struct {
	threads      int
	memoryBudget uint64
	hash         HashID
	scratch      ScratchPolicy
	maxParts     int
	logger       logrus.FieldLogger
	registerer   prometheus.Registerer
}

type queryConfig struct {
	splitFactor    int
	splitFactorSet bool   // selects the split-factor planner
	memoryBudget   uint64 // overrides engineConfig.memoryBudget when > 0
}

func defaultEngineConfig() *engineConfig {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &engineConfig{
		hash:     HashDJB2,
		scratch:  PurgeAfterQuery,
		maxParts: defaultMaxParts,
		logger:   logger,
	}
}

// WithThreads sets the worker pool size. Zero uses runtime.NumCPU().
func WithThreads(n int) Option {
	return func(c *engineConfig) {
		c.threads = n
	}
}

// WithMemoryBudget sets the memory budget in bytes used by the memory
// heuristic planner. Zero falls back to a quarter of physical memory.
func WithMemoryBudget(bytes uint64) Option {
	return func(c *engineConfig) {
		c.memoryBudget = bytes
	}
}

// WithHash sets the partition hash function. Default is HashDJB2.
func WithHash(id HashID) Option {
	return func(c *engineConfig) {
		c.hash = id
	}
}

// WithScratchPolicy sets when shard files are deleted.
// Default is PurgeAfterQuery.
func WithScratchPolicy(p ScratchPolicy) Option {
	return func(c *engineConfig) {
		c.scratch = p
	}
}

// WithMaxParts caps the number of partitions a plan may produce.
// Values below 1 restore the default of 4096.
func WithMaxParts(n int) Option {
	return func(c *engineConfig) {
		c.maxParts = n
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithMetrics registers the engine's collectors with reg.
// Without it a private registry is used.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *engineConfig) {
		c.registerer = reg
	}
}

// WithSplitFactor makes the query use threads*n partitions instead of the
// memory heuristic. The count is capped by WithMaxParts (4096 by default),
// and n below 1 gives a single partition.
func WithSplitFactor(n int) QueryOption {
	return func(c *queryConfig) {
		c.splitFactor = n
		c.splitFactorSet = true
	}
}

// WithQueryMemoryBudget overrides the engine's memory budget for one query.
func WithQueryMemoryBudget(bytes uint64) QueryOption {
	return func(c *queryConfig) {
		c.memoryBudget = bytes
	}
}
