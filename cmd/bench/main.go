// Bench is a benchmarking tool for measuring shardset query throughput and
// memory usage on synthetic line files.
//
// Usage:
//
//	go run ./cmd/bench -lines 10000000 -op difference -threads 8
//
// Flags:
//
//	-lines     Lines per generated input file (default: 5,000,000)
//	-files     Number of input files for -op many (default: 4)
//	-overlap   Fraction of lines shared between consecutive files (default: 0.9)
//	-dups      Fraction of lines repeated within a file (default: 0.05)
//	-op        Operation: difference, dedup or many (default: difference)
//	-threads   Worker pool size, 0 for all CPUs (default: 0)
//	-split     Split factor; 0 uses the memory heuristic (default: 0)
//	-budget    Memory budget in MB for the heuristic (default: 512)
//	-hash      Partition hash: djb2, xxhash, xxh3, murmur3 (default: djb2)
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"

	"github.com/tamirms/shardset"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024 // Convert KB to bytes on Linux
	}
	return maxRSS
}

// lineFor renders line number id as a 32-hex-digit line. Hashing spreads ids
// so generated files are not sorted.
func lineFor(id uint64, buf []byte) []byte {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], id)
	h1, h2 := murmur3.Sum128WithSeed(key[:], 0x1234)
	buf = strconv.AppendUint(buf[:0], h1, 16)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, h2, 16)
	return append(buf, '\n')
}

// generateFile writes n lines to path. File i draws ids starting at
// i*(1-overlap)*n so consecutive files share overlap*n ids.
func generateFile(path string, fileIdx, n int, overlap, dups float64, rng *mrand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(f, 1<<20)
	first := uint64(float64(fileIdx) * (1 - overlap) * float64(n))
	buf := make([]byte, 0, 64)
	for i := range n {
		id := first + uint64(i)
		if i > 0 && rng.Float64() < dups {
			id = first + rng.Uint64N(uint64(i))
		}
		if _, err := w.Write(lineFor(id, buf)); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func parseHash(name string) (shardset.HashID, error) {
	switch name {
	case "djb2":
		return shardset.HashDJB2, nil
	case "xxhash":
		return shardset.HashXXHash, nil
	case "xxh3":
		return shardset.HashXXH3, nil
	case "murmur3":
		return shardset.HashMurmur3, nil
	default:
		return 0, fmt.Errorf("unknown hash: %s (use djb2, xxhash, xxh3 or murmur3)", name)
	}
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	n := 0
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}

func main() {
	linesFlag := flag.Int("lines", 5_000_000, "lines per input file")
	filesFlag := flag.Int("files", 4, "number of input files for -op many")
	overlapFlag := flag.Float64("overlap", 0.9, "fraction of lines shared between consecutive files")
	dupsFlag := flag.Float64("dups", 0.05, "fraction of lines repeated within a file")
	opFlag := flag.String("op", "difference", "operation: difference, dedup or many")
	threadsFlag := flag.Int("threads", 0, "worker pool size (0 = all CPUs)")
	splitFlag := flag.Int("split", 0, "split factor (0 = memory heuristic)")
	budgetFlag := flag.Uint64("budget", 512, "memory budget in MB for the heuristic")
	hashFlag := flag.String("hash", "djb2", "partition hash: djb2, xxhash, xxh3, murmur3")
	verbose := flag.Bool("v", false, "log engine phases")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (query phase only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (query phase only)")
	flag.Parse()

	hash, err := parseHash(*hashFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	numFiles := 2
	if *opFlag == "many" {
		numFiles = *filesFlag
	}

	tmpDir, err := os.MkdirTemp("", "bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	fmt.Println("Generating input files...")
	genStart := time.Now()
	rng := mrand.New(mrand.NewPCG(1, 2))
	inputs := make([]string, numFiles)
	var inputBytes int64
	for i := range inputs {
		inputs[i] = filepath.Join(tmpDir, fmt.Sprintf("input_%d.txt", i))
		if err := generateFile(inputs[i], i, *linesFlag, *overlapFlag, *dupsFlag, rng); err != nil {
			fmt.Printf("Failed to generate %s: %v\n", inputs[i], err)
			return
		}
		info, _ := os.Stat(inputs[i])
		inputBytes += info.Size()
	}
	genDuration := time.Since(genStart)

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}

	engine, err := shardset.New(filepath.Join(tmpDir, "work"),
		shardset.WithThreads(*threadsFlag),
		shardset.WithMemoryBudget(*budgetFlag<<20),
		shardset.WithHash(hash),
		shardset.WithLogger(logger),
	)
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		return
	}
	defer func() { _ = engine.Close() }()

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak memory (both heap and RSS).
	var peakAlloc atomic.Uint64
	var peakRSS atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	peakRSS.Store(baselineRSS)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
				rss := getMaxRSS()
				for {
					old := peakRSS.Load()
					if rss <= old || peakRSS.CompareAndSwap(old, rss) {
						break
					}
				}
			}
		}
	}()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	var queryOpts []shardset.QueryOption
	if *splitFlag > 0 {
		queryOpts = append(queryOpts, shardset.WithSplitFactor(*splitFlag))
	}

	outPath := filepath.Join(tmpDir, "output.txt")
	ctx := context.Background()
	fmt.Printf("Running %s...\n", *opFlag)
	queryStart := time.Now()
	switch *opFlag {
	case "difference":
		err = engine.Difference(ctx, inputs[0], inputs[1], outPath, queryOpts...)
	case "dedup":
		err = engine.UnionDedup(ctx, inputs[0], inputs[1], outPath, queryOpts...)
	case "many":
		split := *splitFlag
		if split == 0 {
			split = 1
		}
		err = engine.UnionMany(ctx, inputs, outPath, split)
	default:
		err = fmt.Errorf("unknown operation: %s (use difference, dedup or many)", *opFlag)
	}
	queryDuration := time.Since(queryStart)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC() // Get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	close(done)

	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	if final.Alloc > peakAlloc.Load() {
		peakAlloc.Store(final.Alloc)
	}
	finalRSS := getMaxRSS()
	if finalRSS > peakRSS.Load() {
		peakRSS.Store(finalRSS)
	}

	peakHeapMem := peakAlloc.Load() - baseline.Alloc
	peakRSSMem := peakRSS.Load() - baselineRSS

	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		return
	}

	outLines, err := countLines(outPath)
	if err != nil {
		fmt.Printf("Counting output lines failed: %v\n", err)
		return
	}

	totalLines := *linesFlag * numFiles
	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════════╗\n")
	fmt.Printf("║ Op: %-16s║ Hash: %-12s ║\n", *opFlag, *hashFlag)
	fmt.Printf("╠═════════════════════╬════════════════════╣\n")
	fmt.Printf("║ Metric              ║ Value              ║\n")
	fmt.Printf("╠═════════════════════╬════════════════════╣\n")
	fmt.Printf("║ Input files         ║ %8d           ║\n", numFiles)
	fmt.Printf("║ Input lines         ║ %8d           ║\n", totalLines)
	fmt.Printf("║ Input size          ║ %8.1f MB        ║\n", float64(inputBytes)/1_000_000)
	fmt.Printf("║ Output lines        ║ %8d           ║\n", outLines)
	fmt.Printf("║ Threads             ║ %8d           ║\n", engine.Threads())
	fmt.Printf("║ Generate time       ║ %8.2f sec       ║\n", genDuration.Seconds())
	fmt.Printf("║ Query time          ║ %8.2f sec       ║\n", queryDuration.Seconds())
	fmt.Printf("║ Throughput          ║ %8.2f M/sec     ║\n", float64(totalLines)/queryDuration.Seconds()/1_000_000)
	fmt.Printf("║ Peak heap memory    ║ %8.1f MB        ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %8.1f MB        ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════════╝\n")
}
