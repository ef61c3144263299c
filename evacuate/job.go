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

package evacuate

import (
    "context"
    "sync"
    "sync/atomic"

    "github.com/markcompact/mcgc/pageset"
)

// PageAssignment is one candidate page paired with the mode and destination
// space it was assigned during compaction-candidate selection.
type PageAssignment struct {
    Page   *pageset.Page
	Mode   PageMode
    Dest   pageset.Space
}

// PageEvacuationJob partitions a page list across workers via an atomic
// claim counter, so "each page is processed exactly once" holds regardless
// of how many workers actually run (spec 4.6, "Parallelism").
type PageEvacuationJob struct {
    migrator *Migrator
    pages    []PageAssignment
    claimed  int64
    allocFor func(taskID int) *Allocator

    mu      sync.Mutex
    aborted []*AbortInfo
}

// NewPageEvacuationJob builds a job over pages; allocFor lets the caller
// hand each worker its own EvacuationAllocator (spec 4.6, "each worker owns
// an EvacuationAllocator").
func NewPageEvacuationJob(m *Migrator, pages []PageAssignment, allocFor func(taskID int) *Allocator) *PageEvacuationJob {
    return &PageEvacuationJob{migrator: m, pages: pages, allocFor: allocFor}
}

// GetMaxConcurrency implements job.Delegate: N = min(ceil(items / pagesPerTask), workers),
// where pagesPerTask = ceil(1MiB / pageSize), taken from the first page's area.
func (j *PageEvacuationJob) GetMaxConcurrency(workers int) int {
    if len(j.pages) == 0 {
        return 1
    }
    pagesPerTask := 1
    if size := int(j.pages[0].Page.AreaEnd - j.pages[0].Page.AreaStart); size > 0 && size < 1<<20 {
        pagesPerTask = (1<<20 + size - 1) / size
    }
    n := (len(j.pages) + pagesPerTask - 1) / pagesPerTask
    if n < workers {
        return n
    }
    return workers
}

// Run implements job.Delegate: each task loops claiming the next
// unclaimed page via an atomic counter until none remain.
func (j *PageEvacuationJob) Run(ctx context.Context, taskID int, _ bool) error {
    alloc := j.allocFor(taskID)
    defer alloc.Finalize()

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        default:
        }

        i := atomic.AddInt64(&j.claimed, 1) - 1
        if i >= int64(len(j.pages)) {
            return nil
        }
        assignment := j.pages[i]

        switch assignment.Mode {
        case PageNewToOld, PageNewToNew:
            PromotePageWhole(assignment.Page, assignment.Dest)
        default:
            if info := j.migrator.MigrateObjects(assignment.Page, assignment.Dest, alloc); info != nil {
                j.mu.Lock()
                j.aborted = append(j.aborted, info)
                j.mu.Unlock()
            }
        }
    }
}

// Aborted returns every page this job's workers reported an abort for.
func (j *PageEvacuationJob) Aborted() []*AbortInfo {
    j.mu.Lock()
    defer j.mu.Unlock()
    out := make([]*AbortInfo, len(j.aborted))
    copy(out, j.aborted)
    return out
}
