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

// Package weakclear runs the ten-step weak-reference clearing pipeline
// (spec section 4.5) strictly after marking has reached fixpoint. Each
// step's actual bookkeeping (shrinking an SFI, compacting a transition
// array, invoking a finalizer callback) belongs to the host runtime that
// owns real object layouts, the same division of labor as objmodel.Descriptor;
// this package only owns step ordering and the liveness predicate each step
// consults.
package weakclear

import (
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/worklist"
)

// Collaborators bundles the host-owned pieces steps 1-4, 9, 10 delegate to.
// Any field left nil skips that step (e.g. ExternalPointers is nil outside
// a sandboxed build).
type Collaborators struct {
    StringForwarding    StringForwardingTable
    InternalizedStrings InternalizedStringTable
    ExternalStrings     ExternalStringTable
    PhantomHandles      PhantomGlobalHandles
    DependentCode       DependentCodeRegistry
    ExternalPointers    ExternalPointerTable
}

type StringForwardingTable interface {
    CleanUpForwardingTable(isLive func(objmodel.Address) bool)
}

type InternalizedStringTable interface {
    RemoveDeadEntries(isLive func(objmodel.Address) bool)
}

type ExternalStringTable interface {
    FinalizeDeadExternals(isLive func(objmodel.Address) bool)
}

type PhantomGlobalHandles interface {
    InvokeDeadCallbacks(isLive func(objmodel.Address) bool)
}

type DependentCodeRegistry interface {
    MarkForDeoptIfWeakDied(isLive func(objmodel.Address) bool)
}

type ExternalPointerTable interface {
    Sweep()
}

// BytecodeFlusher performs step 5's in-place SFI rewrite; the pipeline only
// decides which candidates are dead.
type BytecodeFlusher interface {
    IsBytecodeDead(sfi objmodel.Address) bool
    FlushBytecode(sfi objmodel.Address)
    ResetDeadBaselineCode(sfi objmodel.Address)
}

// JSFunctionCodeResetter resets the code-entry slot of a JSFunction whose
// backing SFI had its bytecode flushed (spec 4.5 step 5, last sentence).
// The pipeline drains FlushedJSFunctions; no package in this module pushes to
// it, so its entries come from the host.
type JSFunctionCodeResetter interface {
    ResetCodeEntry(fn objmodel.Address)
}

// EphemeronHashTableClearer performs the WeakMap/WeakSet half of step 8:
// entries whose key died are removed from the table.
type EphemeronHashTableClearer interface {
    ClearDeadEntries(table objmodel.Address, isLive func(objmodel.Address) bool)
}

// WeakListRetainer is the generic WeakObjectRetainer of step 6: Objects
// enumerates the list, Retain/Drop apply the collector's verdict.
type WeakListRetainer interface {
    Objects() []objmodel.Address
    IsAllocationSite(addr objmodel.Address) bool
    Retain(addr objmodel.Address, zombie bool)
    Drop(addr objmodel.Address)
}

// TransitionArrayCompactor performs step 7's in-place slide-and-trim.
type TransitionArrayCompactor interface {
    CompactInPlace(array objmodel.Address, isLive func(objmodel.Address) bool)
}

// WeakSlotClearer performs step 8: the host inspects owner's own weak slots
// (it alone knows their layout) and clears whichever point at a dead object.
type WeakSlotClearer interface {
    ClearDeadWeakSlots(owner objmodel.Address, isLive func(objmodel.Address) bool)
}

// Pipeline runs the ten steps in spec order against one HeapView.
type Pipeline struct {
    hv          mark.HeapView
    worklists   *worklist.Bundle
    collab      Collaborators
    flusher     BytecodeFlusher
    weakLists   []WeakListRetainer
    compactor   TransitionArrayCompactor
    slots       WeakSlotClearer
    resetter    JSFunctionCodeResetter
    ephemeron   EphemeronHashTableClearer
    markedColor objmodel.Color
}

func NewPipeline(hv mark.HeapView, wl *worklist.Bundle, collab Collaborators) *Pipeline {
    return &Pipeline{hv: hv, worklists: wl, collab: collab, markedColor: objmodel.Black}
}

// SetMarkedColor overrides the mark bit IsLive treats as "reachable". The
// young generation's clearing pass runs after a Grey-terminal marking cycle
// (mmc.Marker), so it sets this to Grey instead of the full collector's
// Black.
func (p *Pipeline) SetMarkedColor(c objmodel.Color) { p.markedColor = c }

func (p *Pipeline) SetBytecodeFlusher(f BytecodeFlusher)             { p.flusher = f }
func (p *Pipeline) AddWeakList(l WeakListRetainer)                   { p.weakLists = append(p.weakLists, l) }
func (p *Pipeline) SetTransitionArrayCompactor(c TransitionArrayCompactor) { p.compactor = c }
func (p *Pipeline) SetWeakSlotClearer(c WeakSlotClearer)             { p.slots = c }
func (p *Pipeline) SetExternalStringTable(t ExternalStringTable)     { p.collab.ExternalStrings = t }
func (p *Pipeline) SetJSFunctionCodeResetter(r JSFunctionCodeResetter)     { p.resetter = r }
func (p *Pipeline) SetEphemeronHashTableClearer(c EphemeronHashTableClearer) { p.ephemeron = c }

// IsLive is the liveness predicate every step consults: an object is live
// iff its mark bit is the marked color (Black unless SetMarkedColor changed
// it). NullAddress is never live; an address on no known page counts as live.
func (p *Pipeline) IsLive(addr objmodel.Address) bool {
    if addr == objmodel.NullAddress {
        return false
    }
    page, index, ok := mark.ObjectIndex(p.hv, addr)
    if !ok {
        return true // foreign/embedder-owned; this pipeline can't judge it
    }
    return page.Bitmap.Get(index) == p.markedColor
}

// Run executes all ten steps in order.
func (p *Pipeline) Run() {
    p.stringForwardingTable()
    p.internalizedStringTable()
    p.externalStringTable()
    p.phantomGlobalHandles()
    p.flushBytecode()
    p.retainWeakLists()
    p.compactTransitionArrays()
    p.clearWeakSlots()
    p.markDependentCodeForDeopt()
    p.sweepExternalPointerTable()
}

func (p *Pipeline) stringForwardingTable() {
    if p.collab.StringForwarding != nil {
        p.collab.StringForwarding.CleanUpForwardingTable(p.IsLive)
    }
}

func (p *Pipeline) internalizedStringTable() {
    if p.collab.InternalizedStrings != nil {
        p.collab.InternalizedStrings.RemoveDeadEntries(p.IsLive)
    }
}

func (p *Pipeline) externalStringTable() {
    if p.collab.ExternalStrings != nil {
        p.collab.ExternalStrings.FinalizeDeadExternals(p.IsLive)
    }
}

func (p *Pipeline) phantomGlobalHandles() {
    if p.collab.PhantomHandles != nil {
        p.collab.PhantomHandles.InvokeDeadCallbacks(p.IsLive)
    }
}

// flushBytecode drains the flushing-candidates worklist: dead bytecode is
// replaced in place, and every candidate's baseline code, if dead, is reset
// to its bytecode fallback (spec 4.5 step 5).
func (p *Pipeline) flushBytecode() {
    if p.flusher == nil {
        return
    }
    for _, sfi := range drainAll(p.worklists.FlushingCandidates) {
        if p.flusher.IsBytecodeDead(sfi) {
            p.flusher.FlushBytecode(sfi)
        }
        p.flusher.ResetDeadBaselineCode(sfi)
    }
    if p.resetter != nil {
        for _, fn := range drainAll(p.worklists.FlushedJSFunctions) {
            p.resetter.ResetCodeEntry(fn)
        }
    }
}

// retainWeakLists runs the generic WeakObjectRetainer over every registered
// weak list (spec 4.5 step 6): live objects (IsLive) are retained outright;
// allocation sites get a one-time reprieve, forced to the marked color and
// flagged zombie; everything else is dropped.
func (p *Pipeline) retainWeakLists() {
    for _, list := range p.weakLists {
        for _, addr := range list.Objects() {
            if p.IsLive(addr) {
                list.Retain(addr, false)
                continue
            }
            if list.IsAllocationSite(addr) {
                p.forceMarkLive(addr)
                list.Retain(addr, true)
                continue
            }
            list.Drop(addr)
        }
    }
}

func (p *Pipeline) forceMarkLive(addr objmodel.Address) {
    page, index, ok := mark.ObjectIndex(p.hv, addr)
    if !ok {
        return
    }
    if p.markedColor == objmodel.Black {
        page.Bitmap.TransitionToBlack(index)
    } else {
        page.Bitmap.TransitionToGrey(index)
    }
}

func (p *Pipeline) compactTransitionArrays() {
    if p.compactor == nil {
        return
    }
    for _, array := range drainAll(p.worklists.TransitionArrays) {
        p.compactor.CompactInPlace(array, p.IsLive)
    }
}

// clearWeakSlots drains the three per-object-kind weak worklists into one
// pass over the host's WeakSlotClearer (spec 4.5 step 8).
func (p *Pipeline) clearWeakSlots() {
    if p.slots == nil {
        return
    }
    owners := drainAll(p.worklists.WeakReferences)
    owners = append(owners, drainAll(p.worklists.WeakCells)...)
    owners = append(owners, drainAll(p.worklists.JSWeakRefs)...)
    for _, owner := range owners {
        p.slots.ClearDeadWeakSlots(owner, p.IsLive)
    }
    if p.ephemeron != nil {
        for _, table := range drainAll(p.worklists.EphemeronHashTables) {
            p.ephemeron.ClearDeadEntries(table, p.IsLive)
        }
    }
}

func (p *Pipeline) markDependentCodeForDeopt() {
    if p.collab.DependentCode != nil {
        p.collab.DependentCode.MarkForDeoptIfWeakDied(p.IsLive)
    }
}

func (p *Pipeline) sweepExternalPointerTable() {
    if p.collab.ExternalPointers != nil {
        p.collab.ExternalPointers.Sweep()
    }
}

// drainAll pops every item off a Global worklist through a scratch Local;
// weak clearing runs single-threaded so there's no publish/steal race.
func drainAll[T any](g *worklist.Global[T]) []T {
    l := worklist.NewLocal(g)
    var out []T
    for {
        v, ok := l.Pop()
        if !ok {
            break
        }
        out = append(out, v)
    }
    return out
}
