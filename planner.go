package shardset

import (
	"math/bits"
	"os"

	shardseterrors "github.com/tamirms/shardset/errors"
)

// hashSetBytesPerLine is the measured per-entry overhead of the in-memory
// line set (map bucket, string header, tophash) on top of the line bytes
// themselves. Determined empirically; the estimate only has to be in the
// right ballpark.
const hashSetBytesPerLine = 23.7

// planMode names the planner that produced a plan.
type planMode string

const (
	planMemory      planMode = "memory"
	planSplitFactor planMode = "split_factor"
)

// plan is the partition layout for one query.
type plan struct {
	numParts int
	mode     planMode
}

// planBySplitFactor derives numParts = threads * splitFactor, bounded to
// [1, maxParts]. A split factor below 1 yields a single partition.
func planBySplitFactor(threads, splitFactor, maxParts int) plan {
	if splitFactor < 1 {
		return plan{numParts: 1, mode: planSplitFactor}
	}
	n := uint64(threads) * uint64(splitFactor)
	return plan{numParts: clampParts(n, maxParts), mode: planSplitFactor}
}

// planByMemory sizes partitions so that threads concurrently running workers,
// each holding one partition of the reference file in a hash set, fit in
// budget. refPath is the file whose lines populate the set; paths are all
// files under comparison, refPath included.
func planByMemory(threads int, budget uint64, maxParts int, refPath string, paths ...string) (plan, error) {
	var totalBytes uint64
	for _, p := range paths {
		size, err := fileSize(p)
		if err != nil {
			return plan{}, err
		}
		totalBytes += size
	}

	refLines, err := countLines(refPath)
	if err != nil {
		return plan{}, err
	}

	hashSetBytes := uint64(float64(refLines) * hashSetBytesPerLine)
	return plan{
		numParts: clampParts(memoryParts(threads, totalBytes+hashSetBytes, budget), maxParts),
		mode:     planMemory,
	}, nil
}

// memoryParts computes threads*total/budget without overflowing.
// A zero budget cannot be satisfied by any split and yields 1.
func memoryParts(threads int, total, budget uint64) uint64 {
	if budget == 0 {
		return 1
	}
	hi, lo := bits.Mul64(uint64(threads), total)
	if hi >= budget {
		// Quotient does not fit in 64 bits.
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, budget)
	return q
}

// clampParts bounds n to [1, maxParts]. maxParts below 1 means the default.
func clampParts(n uint64, maxParts int) int {
	if maxParts < 1 {
		maxParts = defaultMaxParts
	}
	if n < 1 {
		return 1
	}
	if n > uint64(maxParts) {
		return maxParts
	}
	return int(n)
}

func fileSize(path string) (uint64, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, shardseterrors.NewPathError("stat", path, err)
	}
	return uint64(stat.Size()), nil
}

// countLines counts the lines of path by scanning a read-only mapping.
// Unlike shard mapping, a missing file here is an error.
func countLines(path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, shardseterrors.NewPathError("stat", path, err)
	}
	m, err := mapFile(path)
	if err != nil {
		return 0, err
	}
	n := m.lineCount()
	if err := m.close(); err != nil {
		return 0, shardseterrors.NewPathError("munmap", path, err)
	}
	return n, nil
}
