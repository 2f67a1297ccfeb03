package shardset

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns an RNG seeded from the test name, so each test gets its
// own reproducible stream.
func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewPCG(testSeed1^s1, testSeed2^s2))
}

// writeLines writes lines, each followed by '\n', to a new file in dir.
func writeLines(t testing.TB, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// readLines returns the lines of path in file order.
func readLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		return nil
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("%s does not end with a newline", path)
	}
	return strings.Split(string(data[:len(data)-1]), "\n")
}

// sortedLines returns readLines(path) sorted, for comparing unordered output.
func sortedLines(t testing.TB, path string) []string {
	t.Helper()
	got := readLines(t, path)
	slices.Sort(got)
	return got
}

// sorted returns a sorted copy of lines.
func sorted(lines []string) []string {
	out := slices.Clone(lines)
	slices.Sort(out)
	return out
}

// distinct returns the distinct elements of lines, sorted.
func distinct(lines []string) []string {
	return slices.Compact(sorted(lines))
}

// randomLines generates n lines drawn from a universe of the given size, so
// duplicates appear once n approaches universe.
func randomLines(rng *randv2.Rand, n, universe int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("line-%08x", rng.IntN(universe))
	}
	return out
}

// differenceOf is the reference answer for Difference: every element of query
// not present in ref, duplicates kept, sorted.
func differenceOf(ref, query []string) []string {
	set := make(map[string]struct{}, len(ref))
	for _, l := range ref {
		set[l] = struct{}{}
	}
	var out []string
	for _, l := range query {
		if _, ok := set[l]; !ok {
			out = append(out, l)
		}
	}
	return sorted(out)
}

// newTestEngine creates an engine under a fresh temp directory and closes it
// when the test ends.
func newTestEngine(t testing.TB, opts ...Option) *Engine {
	t.Helper()
	e, err := New(filepath.Join(t.TempDir(), "work"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return e
}

// requireLines fails the test if got and want differ.
func requireLines(t testing.TB, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !slices.Equal(got, want) {
		if len(got) > 20 || len(want) > 20 {
			t.Fatalf("got %d lines, want %d lines", len(got), len(want))
		}
		t.Fatalf("got %q, want %q", got, want)
	}
}
