/*
    Copyright (c) 2012, 2013 by Jonathan Ross (jonross@alum.mit.edu)

    Permission is hereby granted, free of charge, to any person obtaining a copy
    of this software and associated documentation files (the "Software"), to deal
    in the Software without restriction, including without limitation the rights
    to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
    copies of the Software, and to permit persons to whom the Software is
    furnished to do so, subject to the following conditions:

    The above copyright notice and this permission notice shall be included in
    all copies or substantial portions of the Software.

    THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
    IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
    FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
    AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
    LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
    OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
    SOFTWARE.
*/

// Package job is the collector's worker-pool abstraction (spec section 5,
// "job API offering Run(delegate), GetMaxConcurrency(workers), and
// cooperative yielding"). This collector's ancestor farmed independent
// slices of work to goroutines synchronized with a bare sync.WaitGroup
// (graph.go's NewGraphWithCounts, refbag.go's MergeBags); this package
// generalizes that shape onto golang.org/x/sync/errgroup so a worker's
// returned error or a caller-requested cancellation actually propagates, and onto
// golang.org/x/sync/semaphore so concurrency is capped rather than one
// goroutine per unit of work.
package job

import (
    "context"

    "golang.org/x/sync/errgroup"
    "golang.org/x/sync/semaphore"
)

// Delegate is one unit of parallel work: it claims items until none remain,
// cooperatively yielding between them (spec section 5, "Suspension points").
type Delegate interface {
	// Run processes work for the given 0-based task id. isJoiningThread is
	// true for task 0; every task, task 0 included, runs on its own pool
	// goroutine, never on the goroutine that calls Join.
    Run(ctx context.Context, taskID int, isJoiningThread bool) error
    // GetMaxConcurrency reports how many tasks are worth running given how
    // many workers are already active, so the runner never oversubscribes a
    // small page list.
    GetMaxConcurrency(workers int) int
}

// Runner posts a Delegate's tasks to a bounded pool and waits for them to
// complete; the caller of Join does not run a task itself.
type Runner struct {
    maxWorkers int
}

// NewRunner builds a Runner capped at maxWorkers concurrent tasks.
func NewRunner(maxWorkers int) *Runner {
    if maxWorkers < 1 {
        maxWorkers = 1
    }
    return &Runner{maxWorkers: maxWorkers}
}

// Handle represents a posted job; Join blocks until every task has
// completed (or one returned an error, which cancels the rest).
type Handle struct {
    group *errgroup.Group
}

func (h *Handle) Join() error {
    return h.group.Wait()
}

// PostJob starts delegate.GetMaxConcurrency(r.maxWorkers) tasks, with
// task ids 0..n-1 in start order, and returns a Handle the
// caller can Join. This is the async form; Run below is the common
// synchronous "post then immediately join" case most phases use.
func (r *Runner) PostJob(ctx context.Context, delegate Delegate) *Handle {
    n := delegate.GetMaxConcurrency(r.maxWorkers)
    if n < 1 {
        n = 1
    }
    if n > r.maxWorkers {
        n = r.maxWorkers
    }

    g, gctx := errgroup.WithContext(ctx)
    sem := semaphore.NewWeighted(int64(r.maxWorkers))

    for i := 0; i < n; i++ {
        taskID := i
        g.Go(func() error {
            if err := sem.Acquire(gctx, 1); err != nil {
                return err
            }
            defer sem.Release(1)
            return delegate.Run(gctx, taskID, taskID == 0)
        })
    }

    return &Handle{group: g}
}

// Run posts the job and immediately joins it -- the shape every phase in
// this collector actually uses (MarkLiveObjects' root closure, Evacuate's
// CopyInParallel and UpdatePointers all run one job to completion before moving on).
func (r *Runner) Run(ctx context.Context, delegate Delegate) error {
    return r.PostJob(ctx, delegate).Join()
}
