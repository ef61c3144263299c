/*
    Copyright (c) 2013, 2014 by Jonathan Ross (jonross@alum.mit.edu)

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

package collector

import (
    "context"
    "sync/atomic"
    "time"

    "github.com/markcompact/mcgc/internal/fatal"
    "github.com/markcompact/mcgc/job"
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/remset"
    "github.com/markcompact/mcgc/roots"
)

// WriteBarrier is the incremental-marker collaborator from spec section 6.
// Stop reports whether incremental marking was actually running (spec 4.4
// step 1, "was_marking"); PublishAll flushes any color transitions recorded
// while it ran so the closure below sees them.
type WriteBarrier interface {
    Stop() (wasMarking bool)
    PublishAll()
    DeactivateAll()
}

// NoopWriteBarrier is used when no incremental marker is attached; the
// closure below then behaves as an ordinary stop-the-world mark from
// scratch.
type NoopWriteBarrier struct{}

func (NoopWriteBarrier) Stop() bool     { return false }
func (NoopWriteBarrier) PublishAll()    {}
func (NoopWriteBarrier) DeactivateAll() {}

// ClientHeapScanner implements spec 4.4 step 4 for shared-heap collectors:
// it walks every client heap attached to a shared heap and records
// OLD_TO_SHARED slots pointing into it. sink is called once per discovered
// slot; the collector inserts it directly into that chunk's remembered set.
type ClientHeapScanner interface {
    ScanClientHeaps(sink func(chunk *pageset.Page, offset uint32))
}

// runRootClosure implements spec 4.4's seven steps: stop incremental
// marking, enter the embedder's final-pause mode, visit strong roots (and
// shared-heap references from clients, if attached) in parallel, run a
// single-threaded final closure (embedder tracing plus the ephemeron
// fixpoint), verify every ephemeron worklist drained, then deactivate the
// write barrier and advance the epoch.
func (c *Collector) runRootClosure(ctx context.Context, it roots.Iterator, skip roots.SkipSet, includeClients bool, workers int) error {
    wb := c.writeBarrier
    if wb == nil {
        wb = NoopWriteBarrier{}
    }
    if wb.Stop() {
        wb.PublishAll()
    }

    tracer := c.tracer
    if tracer == nil {
        tracer = mark.NoopTracer{}
    }
    tracer.PrepareForTrace()
    tracer.TracePrologue()
    tracer.EnterFinalPause()

    if c.clients != nil {
        c.clients.ScanClientHeaps(func(chunk *pageset.Page, offset uint32) {
            chunk.RememberedSets.SlotSetFor(remset.OldToShared).Insert(offset)
        })
    }

    j := &rootMarkingJob{c: c, roots: it, skip: skip, includeClients: includeClients}
    runner := job.NewRunner(workers)
    if err := runner.Run(ctx, j); err != nil {
        return err
    }

    finalWorker := c.driver.NewWorker()
    finalWorker.RunEmbedderTracing(tracer, time.Time{})
    finalWorker.EphemeronFixpoint(c.flags.EphemeronFixpointIterations)
    finalWorker.PublishAll()

    if !c.worklists.CurrentEphemerons.IsEmpty() ||
        !c.worklists.NextEphemerons.IsEmpty() ||
        !c.worklists.DiscoveredEphemerons.IsEmpty() {
        fatal.Invariant("collector: ephemeron worklists not empty after root closure")
    }

    wb.DeactivateAll()
    c.epoch++
    return nil
}

// rootMarkingJob implements job.Delegate for the parallel portion of the
// root closure: the first task to start visits every strong root once, then every task
// drains the shared marking worklist until it runs dry.
type rootMarkingJob struct {
    c              *Collector
    roots          roots.Iterator
    skip           roots.SkipSet
    includeClients bool
    started        int32
}

func (j *rootMarkingJob) GetMaxConcurrency(workers int) int {
    if workers < 1 {
        return 1
    }
    return workers
}

// rootPublishInterval is how many roots the sole root-visiting task
// processes between PublishAll flushes, so sibling tasks find work on the
// global marking pool while roots are still being visited instead of only
// after every root has been queued locally.
const rootPublishInterval = 64

func (j *rootMarkingJob) Run(ctx context.Context, taskID int, _ bool) error {
    w := j.c.driver.NewWorker()

    if atomic.CompareAndSwapInt32(&j.started, 0, 1) {
        visited := 0
        visitor := roots.VisitorFunc(func(r roots.Root) {
            w.RootVisitor().VisitRootPointer(r)
            visited++
            if visited%rootPublishInterval == 0 {
                w.PublishAll()
            }
        })
        if j.includeClients {
            j.roots.IterateRootsIncludingClients(visitor, j.skip)
        } else {
            j.roots.IterateRoots(visitor, j.skip)
        }
        w.PublishAll()
    }

    for {
        select {
        case <-ctx.Done():
            w.PublishAll()
            return ctx.Err()
        default:
        }
        if w.ProcessMarkingWorklist(0) {
            break
        }
    }

    w.PublishAll()
    return nil
}
