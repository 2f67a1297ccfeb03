package shardset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	shardseterrors "github.com/tamirms/shardset/errors"
)

// queryDirPrefix prefixes every per-query scratch directory.
const queryDirPrefix = "q-"

// scratch owns the engine's working directory. Every query gets its own
// subdirectory so that concurrent or successive queries never share shard
// names.
type scratch struct {
	dir     string
	created bool // true if newScratch created dir
	policy  ScratchPolicy

	mu      sync.Mutex
	queries map[string]struct{} // query directories not yet removed
}

// newScratch ensures dir exists.
func newScratch(dir string, policy ScratchPolicy) (*scratch, error) {
	_, statErr := os.Stat(dir)
	created := errors.Is(statErr, fs.ErrNotExist)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, shardseterrors.NewPathError("create working directory", dir, err)
	}
	return &scratch{
		dir:     dir,
		created: created,
		policy:  policy,
		queries: make(map[string]struct{}),
	}, nil
}

// queryScratch is the shard namespace of one query.
type queryScratch struct {
	id  string
	dir string
}

// newQuery creates a fresh query directory.
func (s *scratch) newQuery() (*queryScratch, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.dir, queryDirPrefix+id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, shardseterrors.NewPathError("create query directory", dir, err)
	}
	s.mu.Lock()
	s.queries[dir] = struct{}{}
	s.mu.Unlock()
	return &queryScratch{id: id, dir: dir}, nil
}

// shardPath names the shard of input file fileIdx for partition part.
func (q *queryScratch) shardPath(fileIdx, part int) string {
	return filepath.Join(q.dir, fmt.Sprintf("f%d_%d", fileIdx, part))
}

// shardPaths names every shard of input file fileIdx.
func (q *queryScratch) shardPaths(fileIdx, numParts int) []string {
	paths := make([]string, numParts)
	for part := range numParts {
		paths[part] = q.shardPath(fileIdx, part)
	}
	return paths
}

// partShards names the shard of partition part for each of numFiles inputs,
// in input order.
func (q *queryScratch) partShards(numFiles, part int) []string {
	paths := make([]string, numFiles)
	for i := range numFiles {
		paths[i] = q.shardPath(i, part)
	}
	return paths
}

// finishQuery applies the policy at the end of a query.
func (s *scratch) finishQuery(q *queryScratch) error {
	if s.policy != PurgeAfterQuery {
		return nil
	}
	return s.removeQuery(q.dir)
}

func (s *scratch) removeQuery(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return shardseterrors.NewPathError("remove query directory", dir, err)
	}
	s.mu.Lock()
	delete(s.queries, dir)
	s.mu.Unlock()
	return nil
}

// close applies the policy when the engine is closed.
func (s *scratch) close() error {
	if s.policy == RetainScratch {
		return nil
	}

	s.mu.Lock()
	dirs := make([]string, 0, len(s.queries))
	for dir := range s.queries {
		dirs = append(dirs, dir)
	}
	s.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		if err := s.removeQuery(dir); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// Only remove a directory we created, and only if it is empty, so
	// caller files placed next to the shards survive.
	if !s.created {
		return nil
	}
	empty, err := isDirEmpty(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return shardseterrors.NewPathError("read working directory", s.dir, err)
	}
	if !empty {
		return nil
	}
	if err := os.Remove(s.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return shardseterrors.NewPathError("remove working directory", s.dir, err)
	}
	return nil
}

func isDirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
