package shardset

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// phase names a barrier-delimited stage of a query.
type phase string

const (
	phaseSplit phase = "split"
	phaseWork  phase = "work"
)

// executor runs the tasks of a phase on a bounded pool. One executor is
// shared by every query of an Engine, so concurrent queries share the bound.
type executor struct {
	threads int
	sem     *semaphore.Weighted
	logger  logrus.FieldLogger
}

// newExecutor creates an executor with threads slots. Zero or fewer means
// runtime.NumCPU().
func newExecutor(threads int, logger logrus.FieldLogger) *executor {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &executor{
		threads: threads,
		sem:     semaphore.NewWeighted(int64(threads)),
		logger:  logger,
	}
}

// run executes task(ctx, i) for every i in [0, n) and returns once all of
// them have finished. This is the phase barrier: no caller observes the
// return before every started task has returned.
//
// The first failure cancels the context passed to the remaining tasks; tasks
// that have not acquired a slot yet are skipped. The first error is returned.
// A panicking task is converted into an error.
func (ex *executor) run(ctx context.Context, ph phase, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		if err := ex.sem.Acquire(gctx, 1); err != nil {
			// Context cancelled, either by the caller or by a failed task.
			break
		}
		g.Go(func() (err error) {
			defer ex.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					ex.logger.WithFields(logrus.Fields{
						"action": "shardset_task_panic",
						"phase":  ph,
						"task":   i,
					}).Errorf("Recovered from panic: %v\n%s", r, debug.Stack())
					err = fmt.Errorf("%s task %d: panic occurred: %v", ph, i, r)
				}
			}()
			return task(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// The loop may have stopped on a cancelled parent without any task failing.
	return ctx.Err()
}
