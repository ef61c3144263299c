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

package pointerupdate

import (
    "context"
    "sync/atomic"

    "github.com/markcompact/mcgc/pageset"
)

// MaxWorkers is the parallelism cap spec 4.7 names: "Parallelism mirrors
// the evacuator via a PointersUpdatingJob with up to 8 workers."
const MaxWorkers = 8

// Job partitions a page list across up to MaxWorkers workers via an atomic
// claim counter, the same shape as evacuate.PageEvacuationJob.
type Job struct {
    updater *Updater
    pages   []*pageset.Page
    filter  InvalidatedSlotsFilter
    claimed int64
}

func NewJob(u *Updater, pages []*pageset.Page, filter InvalidatedSlotsFilter) *Job {
    if filter == nil {
        filter = AlwaysValid{}
    }
    return &Job{updater: u, pages: pages, filter: filter}
}

func (j *Job) GetMaxConcurrency(workers int) int {
    n := len(j.pages)
    if n == 0 {
        return 1
    }
    if n > MaxWorkers {
        n = MaxWorkers
    }
    if n > workers {
        n = workers
    }
    if n < 1 {
        n = 1
    }
    return n
}

func (j *Job) Run(ctx context.Context, _ int, _ bool) error {
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
        j.updater.UpdateChunk(j.pages[i], j.filter)
    }
}
