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

package mark

import (
    "github.com/markcompact/mcgc/internal/gclog"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/roots"
    "github.com/markcompact/mcgc/worklist"
)

// Driver runs the marking pipeline against a HeapView: grey-drain, the
// ephemeron fixpoint, and embedder wrapper tracing.
type Driver struct {
    hv        HeapView
    worklists *worklist.Bundle
    log       *gclog.Logger

    ephemeronIterations int // config.Flags.EphemeronFixpointIterations

    // terminalColor is the mark bit a fully-visited object settles into.
    // The full collector uses Black; the young generation's collector uses
    // Grey as its "marked" state so both collectors' bits coexist on a page
    // that holds both young and old objects (spec 4.8, "Marking color").
    terminalColor objmodel.Color
}

func NewDriver(hv HeapView, wl *worklist.Bundle, ephemeronIterations int, log *gclog.Logger) *Driver {
    if log == nil {
        log = gclog.Default
    }
    return &Driver{hv: hv, worklists: wl, ephemeronIterations: ephemeronIterations, log: log, terminalColor: objmodel.Black}
}

// SetTerminalColor overrides the mark bit a fully-visited object settles
// into. Used by the young-generation driver to mark Grey instead of Black.
func (d *Driver) SetTerminalColor(c objmodel.Color) { d.terminalColor = c }

// Worker is one marking thread's state: its own local worklist views plus a
// slot visitor bound back to the driver.
type Worker struct {
    driver *Driver
    locals *worklist.Locals
    sv     *slotVisitor
}

func (d *Driver) NewWorker() *Worker {
    w := &Worker{driver: d, locals: d.worklists.NewLocals()}
    w.sv = &slotVisitor{d: d, w: w}
    return w
}

// MarkGreyIfWhite transitions addr's object to Grey and, if this call won the
// race, pushes it to the worker's local marking worklist. Used both for
// roots and for the general grey-drain.
func (w *Worker) MarkGreyIfWhite(addr objmodel.Address) {
    page, index, ok := ObjectIndex(w.driver.hv, addr)
    if !ok {
        return
    }
    if page.Bitmap.TransitionToGrey(index) {
        w.locals.Marking.Push(addr)
    }
}

// RootMarkingVisitor adapts a Worker to roots.Visitor (spec 4.4 step 3:
// "Visit strong roots with a RootMarkingVisitor").
type RootMarkingVisitor struct {
    w *Worker
}

func (w *Worker) RootVisitor() *RootMarkingVisitor { return &RootMarkingVisitor{w: w} }

func (v *RootMarkingVisitor) VisitRootPointer(r roots.Root) {
    v.w.MarkGreyIfWhite(r.Address)
    for _, lit := range r.DeoptLiterals {
        v.w.MarkGreyIfWhite(lit)
    }
}

// ProcessMarkingWorklist pops items from the marking worklist until either
// it drains or bytesBudget objects have been processed (spec 4.2's
// "ProcessMarkingWorklist(bytes_budget)"; this collector counts objects
// rather than bytes visited, since object size is a Descriptor concern the
// driver does not otherwise need). Returns true if the worklist drained.
func (w *Worker) ProcessMarkingWorklist(budget int) bool {
    processed := 0
    for budget <= 0 || processed < budget {
        addr, ok := w.locals.Marking.Pop()
        if !ok {
            return true
        }
        w.visitOne(addr)
        processed++
    }
    return false
}

func (w *Worker) visitOne(addr objmodel.Address) {
    desc := w.driver.hv.DescriptorAt(addr)
    if desc == nil || desc.Kind() == objmodel.KindFiller {
        // Fillers are pseudo-objects left by array left-trimming; the
        // marker does not blacken them or visit their (nonexistent) slots.
        return
    }
    page, index, ok := ObjectIndex(w.driver.hv, addr)
    if ok {
        // Grey is already the terminal state for a young-generation driver
        // (MarkGreyIfWhite set it on push); only the full collector needs
        // the extra Grey->Black step here.
        if w.driver.terminalColor == objmodel.Black {
            page.Bitmap.TransitionToBlack(index)
        }
        page.AddLiveBytes(int64(desc.Size()))
    }
    desc.VisitSlots(addr, w.sv)
}

// PublishAll flushes every local worklist to its global pool -- called at
// every cross-phase barrier per spec 4.1 and 5.
func (w *Worker) PublishAll() { w.locals.PublishAll() }

func (w *Worker) IsEmptyLocalAndGlobal() bool { return w.locals.IsEmptyLocalAndGlobal() }
