package shardset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	shardseterrors "github.com/tamirms/shardset/errors"
	"github.com/tamirms/shardset/internal/lines"
	"github.com/tamirms/shardset/internal/partition"
)

const (
	// contextCheckInterval is how often (in lines) long-running loops check
	// for context cancellation.
	contextCheckInterval = 10000

	// shardWriterBufferSize is the per-shard write buffer. Splitting holds
	// numParts of these at once.
	shardWriterBufferSize = 32 << 10
)

// splitResult reports what a split task produced.
type splitResult struct {
	lines uint64
}

// shardWriters holds the eagerly opened output streams of one split task.
type shardWriters struct {
	files   []*os.File
	writers []*bufio.Writer
}

// createShardWriters creates one shard file per partition.
func createShardWriters(paths []string) (*shardWriters, error) {
	sw := &shardWriters{
		files:   make([]*os.File, 0, len(paths)),
		writers: make([]*bufio.Writer, 0, len(paths)),
	}
	for _, p := range paths {
		f, err := os.Create(p)
		if err != nil {
			primaryErr := shardseterrors.NewPathError("create shard", p, err)
			return nil, errors.Join(primaryErr, sw.close())
		}
		sw.files = append(sw.files, f)
		sw.writers = append(sw.writers, bufio.NewWriterSize(f, shardWriterBufferSize))
	}
	return sw, nil
}

// writeLine appends line and its delimiter to shard idx.
func (sw *shardWriters) writeLine(idx int, line []byte) error {
	w := sw.writers[idx]
	if _, err := w.Write(line); err != nil {
		return shardseterrors.NewPathError("write shard", sw.files[idx].Name(), err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return shardseterrors.NewPathError("write shard", sw.files[idx].Name(), err)
	}
	return nil
}

// close flushes and closes every shard. Safe to call on a partially built
// shardWriters; errors are joined.
func (sw *shardWriters) close() error {
	var errs []error
	for i, f := range sw.files {
		if i < len(sw.writers) {
			if err := sw.writers[i].Flush(); err != nil {
				errs = append(errs, shardseterrors.NewPathError("flush shard", f.Name(), err))
			}
		}
		if err := f.Close(); err != nil {
			errs = append(errs, shardseterrors.NewPathError("close shard", f.Name(), err))
		}
	}
	sw.files = nil
	sw.writers = nil
	return errors.Join(errs...)
}

// splitFile streams inputPath and routes every line into the shard at
// shardPaths[router.Route(line)], preserving input order within each shard.
// len(shardPaths) must equal router.NumParts().
//
// On error the shard files are left in an undefined state.
func splitFile(ctx context.Context, inputPath string, shardPaths []string, router *partition.Router) (splitResult, error) {
	if len(shardPaths) != router.NumParts() {
		return splitResult{}, fmt.Errorf("split %s: %d shard paths for %d partitions", inputPath, len(shardPaths), router.NumParts())
	}

	sw, err := createShardWriters(shardPaths)
	if err != nil {
		return splitResult{}, err
	}

	input, err := os.Open(inputPath)
	if err != nil {
		primaryErr := shardseterrors.NewPathError("open input", inputPath, err)
		return splitResult{}, errors.Join(primaryErr, sw.close())
	}
	defer input.Close()
	fadviseSequential(input)

	var res splitResult
	lr := lines.NewReader(input)
	counter := 0
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			primaryErr := shardseterrors.NewPathError("read input", inputPath, err)
			return res, errors.Join(primaryErr, sw.close())
		}

		counter++
		if counter >= contextCheckInterval {
			counter = 0
			if err := ctx.Err(); err != nil {
				return res, errors.Join(err, sw.close())
			}
		}

		if err := sw.writeLine(router.Route(line), line); err != nil {
			return res, errors.Join(err, sw.close())
		}
		res.lines++
	}

	return res, sw.close()
}
