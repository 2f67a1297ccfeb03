package shardset

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"unsafe"

	shardseterrors "github.com/tamirms/shardset/errors"
	"github.com/tamirms/shardset/internal/lines"
)

// lineSet is a set of lines keyed by exact content. Keys are views into
// mapped shards (see mappedFile); a lineSet must not outlive its mappings.
type lineSet map[string]struct{}

// view returns a string sharing line's memory. The caller guarantees line is
// backed by a live, read-only mapping.
func view(line []byte) string {
	if len(line) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(line), len(line))
}

// partResult reports what a partition worker consumed.
type partResult struct {
	linesRead uint64
}

// lineTicker checks the context every contextCheckInterval lines.
type lineTicker struct {
	ctx     context.Context
	counter int
}

func (t *lineTicker) tick() error {
	t.counter++
	if t.counter < contextCheckInterval {
		return nil
	}
	t.counter = 0
	return t.ctx.Err()
}

// differencePart writes every line of queryShard that does not occur in
// refShard. Lines of queryShard are emitted once per occurrence.
func differencePart(ctx context.Context, refShard, queryShard string, out *output) (partResult, error) {
	var res partResult
	ticker := &lineTicker{ctx: ctx}

	ref, err := mapFile(refShard)
	if err != nil {
		return res, err
	}
	set := make(lineSet, ref.lineCount())
	for line := range lines.All(ref.data) {
		set[view(line)] = struct{}{}
		res.linesRead++
		if err := ticker.tick(); err != nil {
			return res, errors.Join(err, ref.close())
		}
	}

	n, err := streamMissing(ticker, queryShard, set, newBatch(out))
	res.linesRead += n
	if err != nil {
		return res, errors.Join(err, ref.close())
	}
	if err := ref.close(); err != nil {
		return res, shardseterrors.NewPathError("munmap", refShard, err)
	}
	return res, nil
}

// streamMissing reads path line by line and adds every line absent from set
// to b. A missing file has no lines.
func streamMissing(ticker *lineTicker, path string, set lineSet, b *batch) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, shardseterrors.NewPathError("open shard", path, err)
	}
	defer f.Close()
	fadviseSequential(f)

	var read uint64
	lr := lines.NewReader(f)
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return read, shardseterrors.NewPathError("read shard", path, err)
		}
		read++
		if err := ticker.tick(); err != nil {
			return read, err
		}
		if _, ok := set[string(line)]; ok {
			continue
		}
		if err := b.add(line); err != nil {
			return read, err
		}
	}
	return read, b.flush()
}

// mapShards maps every path, unmapping what was already mapped on failure.
func mapShards(paths []string) ([]*mappedFile, error) {
	ms := make([]*mappedFile, 0, len(paths))
	for _, p := range paths {
		m, err := mapFile(p)
		if err != nil {
			return nil, errors.Join(err, closeAll(ms))
		}
		ms = append(ms, m)
	}
	return ms, nil
}

// unionDedupPart loads every line of all shards into one set and, once all
// shards are read, writes each distinct line exactly once.
func unionDedupPart(ctx context.Context, shards []string, out *output) (partResult, error) {
	var res partResult
	ticker := &lineTicker{ctx: ctx}

	ms, err := mapShards(shards)
	if err != nil {
		return res, err
	}

	total := 0
	for _, m := range ms {
		total += m.lineCount()
	}
	set := make(lineSet, total)
	for _, m := range ms {
		for line := range lines.All(m.data) {
			set[view(line)] = struct{}{}
			res.linesRead++
			if err := ticker.tick(); err != nil {
				return res, errors.Join(err, closeAll(ms))
			}
		}
	}

	b := newBatch(out)
	for line := range set {
		if err := b.addString(line); err != nil {
			return res, errors.Join(err, closeAll(ms))
		}
	}
	if err := b.flush(); err != nil {
		return res, errors.Join(err, closeAll(ms))
	}
	return res, closeAll(ms)
}

// uniquePart scans shards in order and writes each line the first time it is
// seen, so output within the partition follows first occurrence.
func uniquePart(ctx context.Context, shards []string, out *output) (partResult, error) {
	var res partResult
	ticker := &lineTicker{ctx: ctx}

	ms, err := mapShards(shards)
	if err != nil {
		return res, err
	}

	total := 0
	for _, m := range ms {
		total += m.lineCount()
	}
	set := make(lineSet, total)
	b := newBatch(out)
	for _, m := range ms {
		for line := range lines.All(m.data) {
			res.linesRead++
			if err := ticker.tick(); err != nil {
				return res, errors.Join(err, closeAll(ms))
			}
			key := view(line)
			if _, ok := set[key]; ok {
				continue
			}
			set[key] = struct{}{}
			if err := b.add(line); err != nil {
				return res, errors.Join(err, closeAll(ms))
			}
		}
	}
	if err := b.flush(); err != nil {
		return res, errors.Join(err, closeAll(ms))
	}
	return res, closeAll(ms)
}
