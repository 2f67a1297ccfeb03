package shardset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestQueryScratchNaming(t *testing.T) {
	s, err := newScratch(t.TempDir(), PurgeAfterQuery)
	if err != nil {
		t.Fatal(err)
	}
	q1, err := s.newQuery()
	if err != nil {
		t.Fatal(err)
	}
	q2, err := s.newQuery()
	if err != nil {
		t.Fatal(err)
	}
	if q1.dir == q2.dir {
		t.Fatal("two queries share a directory")
	}
	if !strings.HasPrefix(filepath.Base(q1.dir), queryDirPrefix) {
		t.Errorf("query dir %s lacks prefix %s", q1.dir, queryDirPrefix)
	}

	if got, want := q1.shardPath(2, 5), filepath.Join(q1.dir, "f2_5"); got != want {
		t.Errorf("shardPath = %s, want %s", got, want)
	}
	paths := q1.shardPaths(1, 3)
	if len(paths) != 3 || paths[2] != q1.shardPath(1, 2) {
		t.Errorf("shardPaths = %v", paths)
	}
	parts := q1.partShards(3, 4)
	if len(parts) != 3 || parts[0] != q1.shardPath(0, 4) || parts[2] != q1.shardPath(2, 4) {
		t.Errorf("partShards = %v", parts)
	}

	for _, q := range []*queryScratch{q1, q2} {
		if err := s.finishQuery(q); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(q.dir); !os.IsNotExist(err) {
			t.Errorf("%s not removed", q.dir)
		}
	}
}

func TestScratchCloseKeepsNonEmptyCreatedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	s, err := newScratch(dir, PurgeOnClose)
	if err != nil {
		t.Fatal(err)
	}
	if !s.created {
		t.Fatal("expected created to be true")
	}
	if _, err := s.newQuery(); err != nil {
		t.Fatal(err)
	}
	writeLines(t, dir, "caller.txt", []string{"keep"})

	if err := s.close(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "caller.txt" {
		t.Errorf("unexpected entries after close: %v", entries)
	}
}

func TestScratchPolicyString(t *testing.T) {
	for p, want := range map[ScratchPolicy]string{
		PurgeAfterQuery:   "purge-after-query",
		PurgeOnClose:      "purge-on-close",
		RetainScratch:     "retain",
		ScratchPolicy(42): "unknown",
	} {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", p, got, want)
		}
	}
}
