package shardset

import (
	"context"
	"path/filepath"
	"testing"
)

func benchmarkQuery(b *testing.B, n int, run func(e *Engine, a, c, out string) error) {
	rng := newTestRNG(b)
	dir := b.TempDir()
	a := writeLines(b, dir, "a.txt", randomLines(rng, n, n))
	c := writeLines(b, dir, "c.txt", randomLines(rng, n, n))
	out := filepath.Join(dir, "out.txt")

	e, err := New(filepath.Join(dir, "work"), WithThreads(4))
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if err := run(e, a, c, out); err != nil {
			b.Fatal(err)
		}
	}
}

func difference(e *Engine, a, c, out string) error {
	return e.Difference(context.Background(), a, c, out, WithSplitFactor(2))
}

func unionDedup(e *Engine, a, c, out string) error {
	return e.UnionDedup(context.Background(), a, c, out, WithSplitFactor(2))
}

func unionMany(e *Engine, a, c, out string) error {
	return e.UnionMany(context.Background(), []string{a, c, a}, out, 2)
}

func BenchmarkDifference10K(b *testing.B)  { benchmarkQuery(b, 10000, difference) }
func BenchmarkDifference100K(b *testing.B) { benchmarkQuery(b, 100000, difference) }
func BenchmarkUnionDedup10K(b *testing.B)  { benchmarkQuery(b, 10000, unionDedup) }
func BenchmarkUnionDedup100K(b *testing.B) { benchmarkQuery(b, 100000, unionDedup) }
func BenchmarkUnionMany10K(b *testing.B)   { benchmarkQuery(b, 10000, unionMany) }
func BenchmarkUnionMany100K(b *testing.B)  { benchmarkQuery(b, 100000, unionMany) }
