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

// Package mmc runs the young-generation mark-compact pipeline (spec section
// 4.8): a scoped-down marking pass seeded from the strong roots (minus
// old-generation ones) plus the OLD_TO_NEW remembered set, evacuation
// (whole-page promotion above the threshold, per-object copying into old
// space below it), and a young-only weak-clearing pass. It reuses
// package mark's driver with Grey as the terminal color, so a page holding
// both nursery and old objects carries both collectors' mark bits without
// collision (Black stays reserved for the full collector).
package mmc

import (
    "context"
    "sync/atomic"

    "github.com/markcompact/mcgc/internal/gclog"
    "github.com/markcompact/mcgc/job"
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/pointerupdate"
    "github.com/markcompact/mcgc/remset"
    "github.com/markcompact/mcgc/roots"
    "github.com/markcompact/mcgc/worklist"
)

// MaxWorkers is the fixed marking parallelism cap spec 4.8 names ("a fixed
// cap (e.g. 8 workers)").
const MaxWorkers = 8

// OldGenSkip is the SkipSet a caller should pass to Marker.Run so
// old-generation-only root kinds are excluded, leaving "strong roots minus
// old-generation" (spec 4.8, "Roots"). The roots package's Kind enum has no
// entry that is exclusively old-generation (every kind here can hold a
// nursery pointer too), so this starts empty; a host embedding this
// collector with an old-gen-only root kind of its own registers it here.
var OldGenSkip = roots.SkipSet{}

// Marker drives the young-generation marking pass.
type Marker struct {
    hv        mark.HeapView
    worklists *worklist.Bundle
    storage   pointerupdate.SlotStorage
    log       *gclog.Logger

    ephemeronIterations int
}

func NewMarker(hv mark.HeapView, wl *worklist.Bundle, storage pointerupdate.SlotStorage, ephemeronIterations int, log *gclog.Logger) *Marker {
    if log == nil {
        log = gclog.Default
    }
    return &Marker{hv: hv, worklists: wl, storage: storage, ephemeronIterations: ephemeronIterations, log: log}
}

// Run seeds the closure from it (filtered by skip) plus every recorded
// OLD_TO_NEW slot on oldToNewChunks, drains the closure in parallel across
// up to MaxWorkers, then runs the ephemeron fixpoint once as a barrier step.
func (m *Marker) Run(ctx context.Context, it roots.Iterator, skip roots.SkipSet, oldToNewChunks []*pageset.Page) error {
    driver := mark.NewDriver(m.hv, m.worklists, m.ephemeronIterations, m.log)
    driver.SetTerminalColor(objmodel.Grey)

    j := &markJob{marker: m, driver: driver, roots: it, skip: skip, chunks: oldToNewChunks}
    runner := job.NewRunner(MaxWorkers)
    if err := runner.Run(ctx, j); err != nil {
        return err
    }

    fixpointWorker := driver.NewWorker()
    fixpointWorker.EphemeronFixpoint(m.ephemeronIterations)
    fixpointWorker.PublishAll()
    return nil
}

// markJob implements job.Delegate: task 0 visits roots, every task claims
// OLD_TO_NEW source chunks off a shared atomic counter, then each drains its
// own share of the marking worklist (a shared MPMC pool, so workers steal
// from each other via worklist.Global regardless of which chunk surfaced an
// object).
type markJob struct {
    marker  *Marker
    driver  *mark.Driver
    roots   roots.Iterator
    skip    roots.SkipSet
    chunks  []*pageset.Page
    claimed int64
}

func (j *markJob) GetMaxConcurrency(workers int) int {
    if workers > MaxWorkers {
        workers = MaxWorkers
    }
    if workers < 1 {
        workers = 1
    }
    return workers
}

func (j *markJob) Run(ctx context.Context, taskID int, _ bool) error {
    w := j.driver.NewWorker()

    if taskID == 0 {
        j.roots.IterateRoots(w.RootVisitor(), j.skip)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        default:
        }
        i := atomic.AddInt64(&j.claimed, 1) - 1
        if i >= int64(len(j.chunks)) {
            break
        }
        j.marker.scanOldToNewChunk(w, j.chunks[i])
    }

    w.ProcessMarkingWorklist(0)
    w.PublishAll()
    return nil
}

// scanOldToNewChunk walks chunk's recorded OLD_TO_NEW slots and greys
// whichever targets are still in new space (spec 4.8: "iterating its slots
// discovers reachable nursery objects").
func (m *Marker) scanOldToNewChunk(w *mark.Worker, chunk *pageset.Page) {
    set := chunk.RememberedSets.SlotSetFor(remset.OldToNew)
    for _, offset := range set.Offsets() {
        target := m.storage.LoadSlot(chunk, offset)
        if target == objmodel.NullAddress {
            continue
        }
        if targetPage := m.hv.PageAt(target); targetPage != nil && targetPage.Space == pageset.SpaceNew {
            w.MarkGreyIfWhite(target)
        }
    }
}
