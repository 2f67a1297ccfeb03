package shardset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// TestOutputConcurrentAppends checks that batches from concurrent workers
// never interleave inside a line.
func TestOutputConcurrentAppends(t *testing.T) {
	out, path := newTestOutput(t)
	const workers = 8
	const perWorker = 5000

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := newBatch(out)
			for i := range perWorker {
				// Long lines make torn writes likely if locking were wrong.
				line := fmt.Sprintf("w%d-%d-%s", w, i, strings.Repeat("x", 100))
				if err := b.addString(line); err != nil {
					t.Error(err)
					return
				}
			}
			if err := b.flush(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if err := out.close(); err != nil {
		t.Fatal(err)
	}

	got := readLines(t, path)
	if len(got) != workers*perWorker {
		t.Fatalf("got %d lines, want %d", len(got), workers*perWorker)
	}
	if out.linesWritten() != workers*perWorker {
		t.Errorf("linesWritten = %d", out.linesWritten())
	}
	seen := make(map[string]bool, len(got))
	suffix := strings.Repeat("x", 100)
	for _, l := range got {
		if !strings.HasSuffix(l, suffix) || strings.Count(l, "w") != 1 {
			t.Fatalf("torn line %q", l)
		}
		seen[l] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("got %d distinct lines, want %d", len(seen), workers*perWorker)
	}
}

func TestOutputTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(path, []byte("old content\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := createOutput(path)
	if err != nil {
		t.Fatal(err)
	}
	b := newBatch(out)
	if err := b.add([]byte("new")); err != nil {
		t.Fatal(err)
	}
	if err := b.flush(); err != nil {
		t.Fatal(err)
	}
	if err := out.close(); err != nil {
		t.Fatal(err)
	}
	if err := out.close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	requireLines(t, readLines(t, path), []string{"new"})
}

func TestBatchFlushEmpty(t *testing.T) {
	out, _ := newTestOutput(t)
	b := newBatch(out)
	if err := b.flush(); err != nil {
		t.Fatal(err)
	}
	if out.linesWritten() != 0 {
		t.Errorf("linesWritten = %d, want 0", out.linesWritten())
	}
}
