package shardset

import (
	"bufio"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	shardseterrors "github.com/tamirms/shardset/errors"
)

const (
	// outputBufferSize is the buffer between the shared output mutex and
	// the file.
	outputBufferSize = 1 << 20

	// batchSize is how many bytes a worker accumulates privately before
	// appending them to the shared output in one locked write.
	batchSize = 64 << 10
)

// output is the single destination of one query. All partition workers of
// the query append to it through appendLines, which serializes writers so their
// bytes never interleave. No ordering across workers is implied.
type output struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	w     *bufio.Writer
	lines atomic.Uint64
}

// createOutput creates or truncates path.
func createOutput(path string) (*output, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, shardseterrors.NewPathError("create output", path, err)
	}
	return &output{
		path: path,
		file: f,
		w:    bufio.NewWriterSize(f, outputBufferSize),
	}, nil
}

// appendLines writes p, which must consist of n complete lines, as one unit.
func (o *output) appendLines(p []byte, n int) error {
	o.mu.Lock()
	_, err := o.w.Write(p)
	o.mu.Unlock()
	if err != nil {
		return shardseterrors.NewPathError("write output", o.path, err)
	}
	o.lines.Add(uint64(n))
	return nil
}

// linesWritten returns the number of lines appended so far.
func (o *output) linesWritten() uint64 {
	return o.lines.Load()
}

// close flushes and closes the file. Idempotent.
func (o *output) close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return nil
	}
	var errs []error
	if err := o.w.Flush(); err != nil {
		errs = append(errs, shardseterrors.NewPathError("flush output", o.path, err))
	}
	if err := o.file.Close(); err != nil {
		errs = append(errs, shardseterrors.NewPathError("close output", o.path, err))
	}
	o.file = nil
	return errors.Join(errs...)
}

// batch is a worker-private line buffer in front of an output.
type batch struct {
	out   *output
	buf   []byte
	lines int
}

func newBatch(out *output) *batch {
	return &batch{out: out, buf: make([]byte, 0, batchSize)}
}

// add copies line and a delimiter into the batch, flushing when full.
func (b *batch) add(line []byte) error {
	b.buf = append(b.buf, line...)
	b.buf = append(b.buf, '\n')
	b.lines++
	if len(b.buf) >= batchSize {
		return b.flush()
	}
	return nil
}

// addString is add for a line held as a string.
func (b *batch) addString(line string) error {
	b.buf = append(b.buf, line...)
	b.buf = append(b.buf, '\n')
	b.lines++
	if len(b.buf) >= batchSize {
		return b.flush()
	}
	return nil
}

// flush appends the buffered lines to the output.
func (b *batch) flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	err := b.out.appendLines(b.buf, b.lines)
	b.buf = b.buf[:0]
	b.lines = 0
	return err
}
