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

package mmc

import (
    "context"

    "github.com/markcompact/mcgc/evacuate"
    "github.com/markcompact/mcgc/internal/gclog"
    "github.com/markcompact/mcgc/job"
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
)

// Evacuator runs the young generation's evacuation stage: every nursery
// page is either promoted whole (kPageNewToOld), promoted eagerly as a
// single large object, or -- if it fell below the promotion threshold --
// swept object by object into old space so the nursery ends the cycle empty
// (spec 4.8, "Evacuation").
type Evacuator struct {
    threshold float64
    migrator  *evacuate.Migrator
    alloc     pageset.Allocator
}

func NewEvacuator(hv mark.HeapView, sweeper pageset.Sweeper, alloc pageset.Allocator, pagePromotionThreshold float64, log *gclog.Logger) *Evacuator {
    migrator := evacuate.NewMigrator(hv, sweeper, false, log)
    // Young marking's terminal color is Grey (see marker.go), not the full
    // collector's Black, so a nursery survivor is recognized here the same
    // way it was recognized as reachable there.
    migrator.SetLiveColor(objmodel.Grey)
    return &Evacuator{
        threshold: pagePromotionThreshold,
        migrator:  migrator,
        alloc:     alloc,
    }
}

// Plan assigns each nursery page a destination: FlagLargeObject pages go
// straight to SpaceLargeObject; pages whose live-byte fraction clears the
// threshold promote whole into SpaceOld (kPageNewToOld); everything else is
// "cold" and evacuates its surviving objects into SpaceOld one at a time
// (kObjectsNewToOld), leaving the cold page itself empty for the sweeper.
func (e *Evacuator) Plan(nurseryPages []*pageset.Page) []evacuate.PageAssignment {
    assignments := make([]evacuate.PageAssignment, 0, len(nurseryPages))
    for _, p := range nurseryPages {
        if p.HasFlag(pageset.FlagLargeObject) {
            assignments = append(assignments, evacuate.PageAssignment{Page: p, Mode: evacuate.PageNewToOld, Dest: pageset.SpaceLargeObject})
            continue
        }
        if evacuate.ShouldPromoteWhole(p, e.threshold) {
            assignments = append(assignments, evacuate.PageAssignment{Page: p, Mode: evacuate.PageNewToOld, Dest: pageset.SpaceOld})
        } else {
            assignments = append(assignments, evacuate.PageAssignment{Page: p, Mode: evacuate.ObjectsNewToOld, Dest: pageset.SpaceOld})
        }
    }
    return assignments
}

// Run executes every planned page: whole-page assignments flip ownership
// with no copy, ObjectsNewToOld assignments copy each Grey object through
// the Migrator into a per-worker Allocator backed by the shared old-space
// allocator. The job still claims pages off a shared atomic counter to
// match the parallelism shape spec 4.6/4.8 describe.
func (e *Evacuator) Run(ctx context.Context, assignments []evacuate.PageAssignment) error {
    j := evacuate.NewPageEvacuationJob(e.migrator, assignments, func(int) *evacuate.Allocator { return evacuate.NewAllocator(e.alloc) })
    runner := job.NewRunner(MaxWorkers)
    return runner.Run(ctx, j)
}
