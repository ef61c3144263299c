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
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/pointerupdate"
    "github.com/markcompact/mcgc/roots"
    "github.com/markcompact/mcgc/weakclear"
    "github.com/markcompact/mcgc/worklist"
)

// Collector runs one young-generation cycle end to end: mark, evacuate,
// clear, then the epilogue that sets the new age mark and relinquishes any
// fully-dead nursery pages.
type Collector struct {
    hv        mark.HeapView
    pages     pageset.Iterator
    sweeper   pageset.Sweeper
    marker    *Marker
    evacuator *Evacuator
    clearer   *weakclear.Pipeline

    // AllocationTop is the nursery's post-evacuation bump-allocation
    // pointer, recomputed by Run's epilogue step (spec 4.8: "the nursery's
    // age mark is set to the post-evacuation allocation top").
    AllocationTop objmodel.Address
}

func NewCollector(hv mark.HeapView, pages pageset.Iterator, sweeper pageset.Sweeper, alloc pageset.Allocator, wl *worklist.Bundle, storage pointerupdate.SlotStorage, pagePromotionThreshold float64, ephemeronIterations int, log *gclog.Logger) *Collector {
    clearer := weakclear.NewPipeline(hv, wl, weakclear.Collaborators{})
    clearer.SetMarkedColor(objmodel.Grey)
    return &Collector{
        hv:        hv,
        pages:     pages,
        sweeper:   sweeper,
        marker:    NewMarker(hv, wl, storage, ephemeronIterations, log),
        evacuator: NewEvacuator(hv, sweeper, alloc, pagePromotionThreshold, log),
        clearer:   clearer,
    }
}

// SetExternalStringTable wires the young-side half of spec 4.8's clearing
// step; the internalized string table is deliberately left unwired since it
// lives in old space and is untouched by a minor cycle.
func (c *Collector) SetExternalStringTable(t weakclear.ExternalStringTable) {
    c.clearer.SetExternalStringTable(t)
}

// AddWeakList registers the young-weak-retainer traversal spec 4.8 names.
func (c *Collector) AddWeakList(l weakclear.WeakListRetainer) {
    c.clearer.AddWeakList(l)
}

// Run drives one full minor cycle: mark reachable nursery objects seeded
// from roots (minus old-generation kinds) and the OLD_TO_NEW remembered
// set, evacuate every nursery page, clear young-only weak state, then run
// the epilogue.
func (c *Collector) Run(ctx context.Context, it roots.Iterator, oldToNewChunks []*pageset.Page) error {
    if err := c.marker.Run(ctx, it, OldGenSkip, oldToNewChunks); err != nil {
        return err
    }

    nurseryPages := c.pages.Pages(pageset.SpaceNew)
    assignments := c.evacuator.Plan(nurseryPages)
    if err := c.evacuator.Run(ctx, assignments); err != nil {
        return err
    }

    c.clearer.Run()
    c.runEpilogue(assignments)
    return nil
}

// runEpilogue sets AllocationTop to the highest occupied address among
// pages still in new space after evacuation (the ObjectsNewToOld pages;
// Plan assigns no PageNewToNew) and hands any that ended up fully empty back
// to the sweeper,
// the "residual pages on the from-space are relinquished" half of spec 4.8.
func (c *Collector) runEpilogue(assignments []evacuate.PageAssignment) {
    var top objmodel.Address
    for _, a := range assignments {
        if a.Page.Space != pageset.SpaceNew {
            continue
        }
        if a.Page.LiveBytes() == 0 {
            if c.sweeper != nil {
                c.sweeper.AddPage(pageset.SpaceNew, a.Page, 0)
            }
            continue
        }
        occupied := a.Page.AreaStart + objmodel.Address(a.Page.AllocatedBytes())
        if occupied > top {
            top = occupied
        }
    }
    c.AllocationTop = top
}
