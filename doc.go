// Package shardset computes set operations over the lines of text files too
// large to hold in memory at once.
//
// Lines are routed by a hash of their content into shard files, one shard set
// per input, under a working directory. Equal lines always land in the same
// partition, so each partition can be processed on its own and the results of
// all partitions combine into the global answer.
//
// # Basic Usage
//
//	engine, err := shardset.New("/var/tmp/shards",
//	    shardset.WithThreads(8),
//	    shardset.WithMemoryBudget(4<<30))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	// Lines of new.txt absent from old.txt, duplicates kept.
//	if err := engine.Difference(ctx, "old.txt", "new.txt", "added.txt"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Distinct lines of both files.
//	if err := engine.UnionDedup(ctx, "a.txt", "b.txt", "both.txt"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Distinct lines of many files, threads*4 partitions.
//	if err := engine.UnionMany(ctx, paths, "unique.txt", 4); err != nil {
//	    log.Fatal(err)
//	}
//
// # Partitioning
//
// Difference and UnionDedup size partitions from a memory budget: the
// reference file's line count times a per-entry set overhead, plus the input
// sizes, times the thread count, divided by the budget. WithSplitFactor
// replaces the estimate with threads*n partitions. UnionMany always uses a
// split factor.
//
// Output order is unspecified across partitions.
//
// # Package Structure
//
//   - Public API: engine.go (New, Difference, UnionDedup, UnionMany, Close)
//   - Configuration: engine_options.go (Option, QueryOption, With* functions)
//   - Planning: planner.go (memory heuristic, split factor)
//   - Splitting: splitter.go, internal/partition (hash routing)
//   - Set operations: worker.go, mapped.go (mmap arena for line sets)
//   - Scheduling and output: executor.go, output.go
//   - Scratch files: scratch.go
//   - Line parsing: internal/lines
//   - Platform: fadvise_*.go
package shardset
