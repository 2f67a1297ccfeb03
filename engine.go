package shardset

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pbnjay/memory"
	"github.com/sirupsen/logrus"
	shardseterrors "github.com/tamirms/shardset/errors"
	"github.com/tamirms/shardset/internal/partition"
)

// Operation names, used in logs and metric labels.
const (
	opDifference = "difference"
	opUnionDedup = "union_dedup"
	opUnionMany  = "union_many"
)

// Engine computes set operations over the lines of large files by
// partitioning them into shards under a working directory.
//
// Thread Safety:
//   - Difference, UnionDedup and UnionMany are safe for concurrent use; all
//     queries of an Engine share one pool of Threads() workers
//   - Close must only be called after all queries have returned
type Engine struct {
	cfg     *engineConfig
	scratch *scratch
	exec    *executor
	metrics *metrics
	logger  logrus.FieldLogger

	closed atomic.Bool
}

// New creates an Engine that keeps its shard files under workDir, creating
// the directory if it does not exist.
func New(workDir string, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.threads < 0 {
		return nil, fmt.Errorf("%w: got %d", shardseterrors.ErrInvalidThreads, cfg.threads)
	}
	if !cfg.hash.Valid() {
		return nil, fmt.Errorf("%w: %d", shardseterrors.ErrUnknownHash, cfg.hash)
	}
	if cfg.maxParts < 1 {
		cfg.maxParts = defaultMaxParts
	}
	if cfg.logger == nil {
		cfg.logger = defaultEngineConfig().logger
	}

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, err
	}

	s, err := newScratch(workDir, cfg.scratch)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:     cfg,
		scratch: s,
		exec:    newExecutor(cfg.threads, cfg.logger),
		metrics: m,
		logger:  cfg.logger,
	}, nil
}

// Threads returns the size of the worker pool.
func (e *Engine) Threads() int {
	return e.exec.threads
}

// Close releases the working directory according to the scratch policy.
// Calling Close more than once is a no-op.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.scratch.close()
}

// Difference writes to outPath every line of queryPath that does not occur
// in refPath. Duplicate lines of queryPath are all written.
//
// By default the partition count comes from the memory heuristic; pass
// WithSplitFactor to use threads*n partitions instead.
func (e *Engine) Difference(ctx context.Context, refPath, queryPath, outPath string, opts ...QueryOption) error {
	return e.runQuery(ctx, queryRun{
		op:      opDifference,
		inputs:  []string{refPath, queryPath},
		outPath: outPath,
		plan:    e.twoFilePlanner(opts, refPath, queryPath),
		part: func(ctx context.Context, qs *queryScratch, part int, out *output) (partResult, error) {
			return differencePart(ctx, qs.shardPath(0, part), qs.shardPath(1, part), out)
		},
	})
}

// UnionDedup writes to outPath every distinct line found in pathA or pathB,
// each exactly once, in no particular order.
//
// Partitioning is chosen as in Difference.
func (e *Engine) UnionDedup(ctx context.Context, pathA, pathB, outPath string, opts ...QueryOption) error {
	return e.runQuery(ctx, queryRun{
		op:      opUnionDedup,
		inputs:  []string{pathA, pathB},
		outPath: outPath,
		plan:    e.twoFilePlanner(opts, pathA, pathB),
		part: func(ctx context.Context, qs *queryScratch, part int, out *output) (partResult, error) {
			return unionDedupPart(ctx, qs.partShards(2, part), out)
		},
	})
}

// UnionMany writes to outPath every distinct line found in any of paths, each
// exactly once. It always uses threads*splitFactor partitions, capped by
// WithMaxParts (4096 by default); a splitFactor below 1 gives a single
// partition. Within a partition lines appear in first-occurrence order across
// paths; there is no ordering across partitions.
func (e *Engine) UnionMany(ctx context.Context, paths []string, outPath string, splitFactor int) error {
	if len(paths) == 0 {
		return shardseterrors.ErrNoInputs
	}
	numFiles := len(paths)
	return e.runQuery(ctx, queryRun{
		op:      opUnionMany,
		inputs:  paths,
		outPath: outPath,
		plan: func() (plan, error) {
			return planBySplitFactor(e.Threads(), splitFactor, e.cfg.maxParts), nil
		},
		part: func(ctx context.Context, qs *queryScratch, part int, out *output) (partResult, error) {
			return uniquePart(ctx, qs.partShards(numFiles, part), out)
		},
	})
}

// twoFilePlanner returns the planner for a two-file query: split factor if
// requested, the memory heuristic with refPath as the set side otherwise.
func (e *Engine) twoFilePlanner(opts []QueryOption, refPath, otherPath string) func() (plan, error) {
	qc := &queryConfig{}
	for _, opt := range opts {
		opt(qc)
	}
	return func() (plan, error) {
		if qc.splitFactorSet {
			return planBySplitFactor(e.Threads(), qc.splitFactor, e.cfg.maxParts), nil
		}
		return planByMemory(e.Threads(), e.memoryBudget(qc), e.cfg.maxParts, refPath, refPath, otherPath)
	}
}

// memoryBudget resolves the budget for a query: query option, then engine
// option, then a quarter of physical memory.
func (e *Engine) memoryBudget(qc *queryConfig) uint64 {
	if qc.memoryBudget > 0 {
		return qc.memoryBudget
	}
	if e.cfg.memoryBudget > 0 {
		return e.cfg.memoryBudget
	}
	return memory.TotalMemory() / defaultMemoryFraction
}

// queryRun describes one query for runQuery.
type queryRun struct {
	op      string
	inputs  []string
	outPath string
	plan    func() (plan, error)
	part    func(ctx context.Context, qs *queryScratch, part int, out *output) (partResult, error)
}

// runQuery plans the query, splits every input into shards (phase 1), waits,
// then runs one worker per partition against a shared output (phase 2).
func (e *Engine) runQuery(ctx context.Context, q queryRun) (err error) {
	if e.closed.Load() {
		return shardseterrors.ErrEngineClosed
	}

	start := time.Now()
	status := "success"
	defer func() {
		if err != nil {
			status = "error"
		}
		e.metrics.queriesTotal.WithLabelValues(q.op, status).Inc()
		e.metrics.queryDuration.WithLabelValues(q.op).Observe(time.Since(start).Seconds())
	}()

	p, err := q.plan()
	if err != nil {
		return err
	}
	e.metrics.partitions.Set(float64(p.numParts))

	out, err := createOutput(q.outPath)
	if err != nil {
		return err
	}

	qs, err := e.scratch.newQuery()
	if err != nil {
		return errors.Join(err, out.close())
	}

	logger := e.logger.WithFields(logrus.Fields{
		"action":    "shardset_query",
		"op":        q.op,
		"query":     qs.id,
		"num_parts": p.numParts,
		"plan":      p.mode,
	})
	logger.Debug("partition plan ready")

	defer func() {
		if cleanupErr := e.scratch.finishQuery(qs); cleanupErr != nil {
			logger.WithError(cleanupErr).Warn("failed to remove query scratch directory")
			err = errors.Join(err, cleanupErr)
		}
	}()

	router := partition.NewRouter(e.cfg.hash, p.numParts)

	var linesSplit atomic.Uint64
	phaseStart := time.Now()
	err = e.exec.run(ctx, phaseSplit, len(q.inputs), func(ctx context.Context, i int) error {
		res, err := splitFile(ctx, q.inputs[i], qs.shardPaths(i, p.numParts), router)
		linesSplit.Add(res.lines)
		e.metrics.linesSplit.Add(float64(res.lines))
		return err
	})
	e.metrics.phaseDuration.WithLabelValues(string(phaseSplit)).Observe(time.Since(phaseStart).Seconds())
	if err != nil {
		primaryErr := fmt.Errorf("split phase: %w", err)
		return errors.Join(primaryErr, out.close())
	}
	logger.WithFields(logrus.Fields{
		"lines":    linesSplit.Load(),
		"duration": time.Since(phaseStart),
	}).Debug("split phase done")

	var linesRead atomic.Uint64
	phaseStart = time.Now()
	err = e.exec.run(ctx, phaseWork, p.numParts, func(ctx context.Context, part int) error {
		res, err := q.part(ctx, qs, part, out)
		linesRead.Add(res.linesRead)
		return err
	})
	e.metrics.phaseDuration.WithLabelValues(string(phaseWork)).Observe(time.Since(phaseStart).Seconds())
	if err != nil {
		primaryErr := fmt.Errorf("work phase: %w", err)
		return errors.Join(primaryErr, out.close())
	}

	if err := out.close(); err != nil {
		return err
	}
	e.metrics.linesEmitted.WithLabelValues(q.op).Add(float64(out.linesWritten()))
	logger.WithFields(logrus.Fields{
		"lines_read":    linesRead.Load(),
		"lines_written": out.linesWritten(),
		"duration":      time.Since(start),
	}).Debug("query done")
	return nil
}
