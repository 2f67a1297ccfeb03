package shardset

import (
	"errors"
	"io/fs"
	"os"

	"github.com/edsrzf/mmap-go"
	shardseterrors "github.com/tamirms/shardset/errors"
	"github.com/tamirms/shardset/internal/lines"
)

// mappedFile is a read-only memory mapping of a whole file. It is the arena
// backing a worker's line set: set keys are string views into data, so the
// mapping must stay alive until the worker is done with the set.
type mappedFile struct {
	mm   mmap.MMap
	data []byte
}

// mapFile maps path read-only. A missing or empty file yields an empty
// mapping, not an error.
func mapFile(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &mappedFile{}, nil
		}
		return nil, shardseterrors.NewPathError("open", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, shardseterrors.NewPathError("stat", path, err)
	}
	// mmap(2) rejects zero-length mappings.
	if stat.Size() == 0 {
		return &mappedFile{}, nil
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, shardseterrors.NewPathError("mmap", path, err)
	}
	adviseSequential(mm)
	return &mappedFile{mm: mm, data: []byte(mm)}, nil
}

// lineCount returns the number of lines in the mapping.
func (m *mappedFile) lineCount() int {
	return lines.Count(m.data)
}

// close unmaps the file. Idempotent.
func (m *mappedFile) close() error {
	if m.mm == nil {
		return nil
	}
	err := m.mm.Unmap()
	m.mm = nil
	m.data = nil
	return err
}

// closeAll unmaps every mapping in ms, joining errors.
func closeAll(ms []*mappedFile) error {
	var errs []error
	for _, m := range ms {
		if err := m.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
