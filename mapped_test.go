package shardset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	shardseterrors "github.com/tamirms/shardset/errors"
)

func TestMapFile(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "f", []string{"one", "two"})

	m, err := mapFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(m.data) != "one\ntwo\n" {
		t.Errorf("data = %q", m.data)
	}
	if m.lineCount() != 2 {
		t.Errorf("lineCount = %d, want 2", m.lineCount())
	}
	if err := m.close(); err != nil {
		t.Fatal(err)
	}
	if err := m.close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if m.data != nil {
		t.Error("data not cleared after close")
	}
}

func TestMapFileEmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	empty := writeLines(t, dir, "empty", nil)
	for _, path := range []string{empty, filepath.Join(dir, "missing")} {
		m, err := mapFile(path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if len(m.data) != 0 || m.lineCount() != 0 {
			t.Errorf("%s: expected an empty mapping", path)
		}
		if err := m.close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMapFileDirectory(t *testing.T) {
	dir := t.TempDir()
	// Give the directory a non-zero size on every filesystem.
	writeLines(t, dir, "child", []string{"x"})
	_, err := mapFile(dir)
	if !errors.Is(err, shardseterrors.ErrIO) {
		t.Fatalf("expected ErrIO mapping a directory, got %v", err)
	}
}

func TestMapShardsUnmapsOnFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeLines(t, dir, "good", []string{"a"})
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeLines(t, sub, "child", []string{"x"})
	if _, err := mapShards([]string{good, sub}); err == nil {
		t.Fatal("expected error")
	}
}
