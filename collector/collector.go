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

// Package collector wires the marking driver, the weak-clearing pipeline,
// compaction-candidate selection, the evacuator, and the pointer-update
// phase into the full collector's state machine (spec section 4.9):
// IDLE -> PREPARE_GC -> MARK_LIVE_OBJECTS -> SWEEP_SPACES -> RELOCATE_OBJECTS
// -> IDLE, with AbortCompaction reachable from any state. Everything this
// package composes was already built as an independently testable package;
// Collector's job is only sequencing and state assertions, the same
// leaves-first layering the rest of this repository follows.
package collector

import (
    "context"

    "github.com/markcompact/mcgc/compact"
    "github.com/markcompact/mcgc/config"
    "github.com/markcompact/mcgc/evacuate"
    "github.com/markcompact/mcgc/internal/fatal"
    "github.com/markcompact/mcgc/internal/gclog"
    "github.com/markcompact/mcgc/job"
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/pointerupdate"
    "github.com/markcompact/mcgc/remset"
    "github.com/markcompact/mcgc/roots"
    "github.com/markcompact/mcgc/weakclear"
    "github.com/markcompact/mcgc/worklist"
)

// State is one node of the full collector's state machine (spec 4.9).
type State int

const (
    StateIdle State = iota
    StatePrepareGC
    StateMarkLiveObjects
    StateSweepSpaces
    StateRelocateObjects
)

func (s State) String() string {
    switch s {
    case StateIdle:
        return "IDLE"
    case StatePrepareGC:
        return "PREPARE_GC"
    case StateMarkLiveObjects:
        return "MARK_LIVE_OBJECTS"
    case StateSweepSpaces:
        return "SWEEP_SPACES"
    case StateRelocateObjects:
        return "RELOCATE_OBJECTS"
    default:
        return "UNKNOWN"
    }
}

// allSpaces enumerates every pageset.Space the full collector's marking
// verification, StartSweepSpaces and pointer-update phases walk. Compaction
// candidates are drawn from a narrower list (OLD, MAP, CODE) per spec 4.3.
var allSpaces = []pageset.Space{
    pageset.SpaceNew,
    pageset.SpaceOld,
    pageset.SpaceMap,
    pageset.SpaceCode,
    pageset.SpaceLargeObject,
    pageset.SpaceSharedOld,
}

// Collector runs one full-heap mark-compact cycle end to end. It owns the
// evacuation-candidate list and the state machine; every other piece of
// work (marking, clearing, copying, pointer update) is delegated to the
// packages that already implement it.
type Collector struct {
    hv      mark.HeapView
    pages   pageset.Service
    sweeper pageset.Sweeper
    alloc   pageset.Allocator
    storage pointerupdate.SlotStorage

    worklists *worklist.Bundle
    flags     config.Flags
    log       *gclog.Logger

    writeBarrier WriteBarrier
    tracer       mark.Tracer
    clients      ClientHeapScanner

    driver          *mark.Driver
    migrator        *evacuate.Migrator
    clearer         *weakclear.Pipeline
    ephemeronRemset *remset.EphemeronRememberedSet

    // PageSizeBytes feeds compact.Params.PageSizeBytes for adaptive-mode
    // target-fragmentation math (spec 4.3); left zero falls back to the
    // fixed 20% floor.
    PageSizeBytes int64
    // measuredCompactionSpeed is bytes/ms observed on the last cycle,
    // updated by the caller (this package does no timing of its own)
    // through SetMeasuredCompactionSpeed for the next cycle's adaptive mode.
    measuredCompactionSpeed float64

    state      State
    candidates []*pageset.Page
    epoch      uint64

    // rootsIter/rootsSkip/includeClients are captured during
    // MarkLiveObjects so Evacuate's pointer-update phase can re-walk the
    // same root set (spec 4.7 step 1).
    rootsIter      roots.Iterator
    rootsSkip      roots.SkipSet
    includeClients bool
}

// NewCollector builds a Collector over the given external collaborators
// (spec section 6). log may be nil (gclog.Default is used).
func NewCollector(hv mark.HeapView, pages pageset.Service, sweeper pageset.Sweeper, alloc pageset.Allocator, storage pointerupdate.SlotStorage, flags config.Flags, log *gclog.Logger) *Collector {
    if log == nil {
        log = gclog.Default
    }
    wl := worklist.NewBundle()
    migrator := evacuate.NewMigrator(hv, sweeper, flags.CrashOnAbortedEvacuation, log)
    ephemeronRemset := remset.NewEphemeronRememberedSet()
    migrator.SetEphemeronRememberedSet(ephemeronRemset)
    clearer := weakclear.NewPipeline(hv, wl, weakclear.Collaborators{})

    return &Collector{
        hv:              hv,
        pages:           pages,
        sweeper:         sweeper,
        alloc:           alloc,
        storage:         storage,
        worklists:       wl,
        flags:           flags,
        log:             log,
        migrator:        migrator,
        clearer:         clearer,
        ephemeronRemset: ephemeronRemset,
    }
}

func (c *Collector) State() State { return c.state }

// Epoch is incremented once per completed root closure (spec 4.4 step 7,
// "increment the epoch counter").
func (c *Collector) Epoch() uint64 { return c.epoch }

func (c *Collector) SetWriteBarrier(wb WriteBarrier)         { c.writeBarrier = wb }
func (c *Collector) SetTracer(t mark.Tracer)                 { c.tracer = t }
func (c *Collector) SetClientHeapScanner(s ClientHeapScanner) { c.clients = s }
func (c *Collector) SetMeasuredCompactionSpeed(bytesPerMs float64) {
    c.measuredCompactionSpeed = bytesPerMs
}

func (c *Collector) AddMigrationObserver(o evacuate.MigrationObserver) { c.migrator.AddObserver(o) }

func (c *Collector) SetBytecodeFlusher(f weakclear.BytecodeFlusher)         { c.clearer.SetBytecodeFlusher(f) }
func (c *Collector) AddWeakList(l weakclear.WeakListRetainer)              { c.clearer.AddWeakList(l) }
func (c *Collector) SetTransitionArrayCompactor(t weakclear.TransitionArrayCompactor) {
    c.clearer.SetTransitionArrayCompactor(t)
}
func (c *Collector) SetWeakSlotClearer(w weakclear.WeakSlotClearer)             { c.clearer.SetWeakSlotClearer(w) }
func (c *Collector) SetExternalStringTable(t weakclear.ExternalStringTable)     { c.clearer.SetExternalStringTable(t) }
func (c *Collector) SetJSFunctionCodeResetter(r weakclear.JSFunctionCodeResetter) {
    c.clearer.SetJSFunctionCodeResetter(r)
}
func (c *Collector) SetEphemeronHashTableClearer(e weakclear.EphemeronHashTableClearer) {
    c.clearer.SetEphemeronHashTableClearer(e)
}

func (c *Collector) assertState(want State) {
    if c.state != want {
        fatal.Invariant("collector: expected state %v, got %v", want, c.state)
    }
}

// Prepare selects evacuation candidates (spec 4.3) and flags them, then
// advances IDLE -> PREPARE_GC. Only Prepare may leave IDLE (spec 4.9).
func (c *Collector) Prepare(linearAllocationPage *pageset.Page) {
    c.assertState(StateIdle)
    c.candidates = c.candidates[:0]

    if c.flags.Compact && !c.flags.GCExperimentLessCompaction {
        c.candidates = append(c.candidates, c.selectCandidates(pageset.SpaceOld, linearAllocationPage)...)
        if c.flags.CompactMaps {
            c.candidates = append(c.candidates, c.selectCandidates(pageset.SpaceMap, linearAllocationPage)...)
        }
        if c.flags.CompactCodeSpace {
            c.candidates = append(c.candidates, c.selectCandidates(pageset.SpaceCode, linearAllocationPage)...)
        }
        for _, p := range c.candidates {
            p.SetFlag(pageset.FlagEvacuationCandidate)
        }
    }

    c.state = StatePrepareGC
}

// MarkLiveObjects composes the root-closure (spec 4.4) followed immediately
// by the weak-reference clearing pipeline (spec 4.5) and a marking-invariant
// verification pass, then advances PREPARE_GC -> MARK_LIVE_OBJECTS.
func (c *Collector) MarkLiveObjects(ctx context.Context, it roots.Iterator, skip roots.SkipSet, includeClients bool, workers int) error {
    c.assertState(StatePrepareGC)

    c.driver = mark.NewDriver(c.hv, c.worklists, c.flags.EphemeronFixpointIterations, c.log)
    c.rootsIter, c.rootsSkip, c.includeClients = it, skip, includeClients

    if err := c.runRootClosure(ctx, it, skip, includeClients, workers); err != nil {
        return err
    }

    c.clearer.Run()
    c.verifyMarking()

    c.state = StateMarkLiveObjects
    return nil
}

// verifyMarking checks invariant 3 and 5 (no 01 bitmap pattern) across every
// space; a debug-build CHECK in the source, modeled here as fatal.Invariant.
func (c *Collector) verifyMarking() {
    for _, space := range allSpaces {
        for _, p := range c.pages.Pages(space) {
            p.Bitmap.CheckNoCorruption(p.NumObjects)
        }
    }
}

// StartSweepSpaces hands every non-candidate page to the sweeper and starts
// it, then advances MARK_LIVE_OBJECTS -> SWEEP_SPACES. The sweeper is a
// black-box external collaborator (spec section 6) that reclaims free space
// on non-evacuated pages concurrently with the phases that follow.
func (c *Collector) StartSweepSpaces() {
    c.assertState(StateMarkLiveObjects)
    for _, space := range allSpaces {
        for _, p := range c.pages.Pages(space) {
            if p.HasFlag(pageset.FlagEvacuationCandidate) {
                continue
            }
            c.sweeper.AddPage(space, p, 0)
        }
    }
    c.sweeper.StartSweeping()
    c.state = StateSweepSpaces
}

// Evacuate runs the copy-in-parallel and pointer-update sub-phases (spec
// 4.6, 4.7) against the candidate list Prepare selected, then advances
// SWEEP_SPACES -> RELOCATE_OBJECTS. filter may be nil (pointerupdate.AlwaysValid).
func (c *Collector) Evacuate(ctx context.Context, workers int, filter pointerupdate.InvalidatedSlotsFilter) error {
    c.assertState(StateSweepSpaces)

    assignments := c.evacuationPrologue()
    if len(assignments) > 0 {
        aborted, err := c.copyInParallel(ctx, assignments, workers)
        if err != nil {
            return err
        }
        if err := c.updatePointers(ctx, workers, filter); err != nil {
            return err
        }
        c.evacuationEpilogue(assignments, aborted)
    }

    c.state = StateRelocateObjects
    return nil
}

// evacuationPrologue assigns every selected candidate the same-space
// object-copy mode; the full collector's candidates are always drawn from
// OLD/MAP/CODE (spec 4.3), never from new space, so kPageNewToOld/
// kPageNewToNew whole-page promotion never applies here (that path is
// mmc.Evacuator's, spec 4.8).
func (c *Collector) evacuationPrologue() []evacuate.PageAssignment {
    out := make([]evacuate.PageAssignment, 0, len(c.candidates))
    for _, p := range c.candidates {
        out = append(out, evacuate.PageAssignment{Page: p, Mode: evacuate.ObjectsOldToOld, Dest: p.Space})
    }
    return out
}

func (c *Collector) copyInParallel(ctx context.Context, assignments []evacuate.PageAssignment, workers int) ([]*evacuate.AbortInfo, error) {
    j := evacuate.NewPageEvacuationJob(c.migrator, assignments, func(int) *evacuate.Allocator {
        return evacuate.NewAllocator(c.alloc)
    })
    runner := job.NewRunner(workers)
    if err := runner.Run(ctx, j); err != nil {
        return nil, err
    }
    return j.Aborted(), nil
}

// updatePointers implements spec 4.7: roots first, then every chunk's
// remembered sets (Updater.UpdateChunk is a no-op for chunks with none
// recorded, so passing every page in every space is cheap and correct),
// then ephemeron remembered-set rekeying.
func (c *Collector) updatePointers(ctx context.Context, workers int, filter pointerupdate.InvalidatedSlotsFilter) error {
    updater := pointerupdate.NewUpdater(c.hv, c.storage)
    updater.UpdateRoots(c.rootsIter, c.rootsSkip, c.includeClients)

    var pages []*pageset.Page
    for _, space := range allSpaces {
        pages = append(pages, c.pages.Pages(space)...)
    }

    j := pointerupdate.NewJob(updater, pages, filter)
    runner := job.NewRunner(workers)
    if err := runner.Run(ctx, j); err != nil {
        return err
    }

    updater.RekeyEphemerons(c.ephemeronRemset)
    return nil
}

// evacuationEpilogue releases every candidate page whose evacuation
// completed (its live objects moved out, spec S2's "original page is
// released"); a page the migrator aborted keeps its
// FlagCompactionAborted-then-sweep routing and is left alone here.
func (c *Collector) evacuationEpilogue(assignments []evacuate.PageAssignment, aborted []*evacuate.AbortInfo) {
    abortedPages := make(map[*pageset.Page]bool, len(aborted))
    for _, info := range aborted {
        abortedPages[info.Page] = true
    }
    for _, a := range assignments {
        if abortedPages[a.Page] {
            continue
        }
        c.pages.ReleasePage(a.Page)
    }
    c.candidates = c.candidates[:0]
}

// Finish advances RELOCATE_OBJECTS -> IDLE, completing the cycle.
func (c *Collector) Finish() {
    c.assertState(StateRelocateObjects)
    c.state = StateIdle
}

// AbortCompaction clears the candidate list and its page flags without
// advancing the state machine, reachable from any state (spec 4.9). Per
// invariant 7, running this then Prepare from IDLE is equivalent to running
// Prepare directly.
func (c *Collector) AbortCompaction() {
    for _, p := range c.candidates {
        p.ClearFlag(pageset.FlagEvacuationCandidate)
    }
    c.candidates = c.candidates[:0]
}

// RunFullCycle drives Prepare through Finish, the common case every caller
// outside this package's own tests actually wants.
func (c *Collector) RunFullCycle(ctx context.Context, it roots.Iterator, skip roots.SkipSet, includeClients bool, linearAllocationPage *pageset.Page, workers int, filter pointerupdate.InvalidatedSlotsFilter) error {
    c.Prepare(linearAllocationPage)
    if err := c.MarkLiveObjects(ctx, it, skip, includeClients, workers); err != nil {
        return err
    }
    c.StartSweepSpaces()
    if err := c.Evacuate(ctx, workers, filter); err != nil {
        return err
    }
    c.Finish()
    return nil
}

// selectCandidates runs compact.Select over one space's pages, wrapping
// each pageset.Page in the narrow adapter compact.Select requires.
func (c *Collector) selectCandidates(space pageset.Space, linearAllocationPage *pageset.Page) []*pageset.Page {
    pages := c.pages.Pages(space)
    wrapped := make([]compactionPage, len(pages))
    for i, p := range pages {
        wrapped[i] = compactionPage{p: p, linearAllocationPage: linearAllocationPage}
    }

    params := compact.Params{
        Mode:                    compact.ModeAdaptive,
        MeasuredCompactionSpeed: c.measuredCompactionSpeed,
        PageSizeBytes:           c.PageSizeBytes,
    }
    switch {
    case c.flags.StressCompactionRandom:
        params.Test = compact.TestModeRandom
    case c.flags.StressCompaction:
        params.Test = compact.TestModeForced
    }

    chosen := compact.Select(wrapped, params)
    out := make([]*pageset.Page, len(chosen))
    for i, cp := range chosen {
        out[i] = cp.p
    }
    return out
}
