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

// Package pageset models the page/chunk service the collector treats as an
// external collaborator (spec section 6): page iteration, mark-bitmap
// storage, area bounds, free lists, and atomic flag bits. The real paged
// allocator is out of scope for this repository; Service is the seam a
// host runtime implements, and this package additionally provides a Fake
// implementation the collector's own tests drive.
package pageset

import (
    "sync/atomic"

    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/remset"
)

// Space identifies which heap space a page belongs to.
type Space int

const (
    SpaceNew Space = iota
    SpaceOld
    SpaceMap
    SpaceCode
    SpaceLargeObject
    SpaceSharedOld
)

// Flag is one bit of a page's boolean flag set (data model, "Page").
type Flag uint32

const (
    FlagEvacuationCandidate Flag = 1 << iota
    FlagNeverEvacuate
    FlagPinned
    FlagNewToOldPromotion
    FlagNewToNewPromotion
    FlagCompactionAborted
    FlagExecutable
    FlagSkipRecording // "no-record list": slots on this page are never remembered
    FlagLargeObject   // page holds exactly one object spanning the whole area
)

// Page is a fixed-size, page-aligned region holding many objects of one
// space, per the data model.
type Page struct {
    ID    uint64
    Space Space

    AreaStart objmodel.Address
    AreaEnd   objmodel.Address

    NumObjects uint32
    Bitmap     *Bitmap

    liveBytes      int64 // atomic
    allocatedBytes int64 // atomic
    flags          uint32 // atomic, bitwise-or of Flag

    RememberedSets remset.Sets

    // MapWords holds the header word for every object slot on this page,
    // indexed the same as Bitmap: either a map pointer or, mid-evacuation, a
    // forwarding address (objmodel.MapWord).
    MapWords []objmodel.MapWord
}

func NewPage(id uint64, space Space, areaStart, areaEnd objmodel.Address, numObjects uint32) *Page {
    return &Page{
        ID:         id,
        Space:      space,
        AreaStart:  areaStart,
        AreaEnd:    areaEnd,
        NumObjects: numObjects,
        Bitmap:     NewBitmap(numObjects),
        MapWords:   make([]objmodel.MapWord, numObjects),
    }
}

func (p *Page) Contains(addr objmodel.Address) bool {
    return addr >= p.AreaStart && addr < p.AreaEnd
}

// LiveBytes reads the live-byte counter (data model invariant 4).
func (p *Page) LiveBytes() int64 { return atomic.LoadInt64(&p.liveBytes) }

func (p *Page) AddLiveBytes(delta int64) {
    atomic.AddInt64(&p.liveBytes, delta)
}

func (p *Page) SetLiveBytes(v int64) {
    atomic.StoreInt64(&p.liveBytes, v)
}

func (p *Page) AllocatedBytes() int64 { return atomic.LoadInt64(&p.allocatedBytes) }

func (p *Page) SetAllocatedBytes(v int64) {
    atomic.StoreInt64(&p.allocatedBytes, v)
}

// SetFlag / ClearFlag / HasFlag are CAS-based so concurrent workers can flip
// per-page bits (e.g. FlagCompactionAborted) without a lock.
func (p *Page) SetFlag(f Flag) {
    for {
        old := atomic.LoadUint32(&p.flags)
        next := old | uint32(f)
        if atomic.CompareAndSwapUint32(&p.flags, old, next) {
            return
        }
    }
}

func (p *Page) ClearFlag(f Flag) {
    for {
        old := atomic.LoadUint32(&p.flags)
        next := old &^ uint32(f)
        if atomic.CompareAndSwapUint32(&p.flags, old, next) {
            return
        }
    }
}

func (p *Page) HasFlag(f Flag) bool {
    return atomic.LoadUint32(&p.flags)&uint32(f) != 0
}

// FragmentationRatio is (area size - allocated bytes) / area size, the
// quantity the compaction candidate selector scores pages by.
func (p *Page) FragmentationRatio() float64 {
    size := int64(p.AreaEnd - p.AreaStart)
    if size <= 0 {
        return 0
    }
    free := size - p.AllocatedBytes()
    if free < 0 {
        free = 0
    }
    return float64(free) / float64(size)
}

// ObjectIndex converts an address inside this page to a bitmap/MapWords
// index, assuming the minimum two-word object granularity the data model
// requires (invariant: object size >= 2 tagged words so a Black pattern
// can't collide with a later object's leading bit).
func (p *Page) ObjectIndex(addr objmodel.Address, wordSize uint32) uint32 {
    return uint32(addr-p.AreaStart) / wordSize
}

// Iterator abstracts "pages_of(space)" from the external interface: an
// ordered, repeatable view over a space's pages.
type Iterator interface {
    Pages(space Space) []*Page
}

// Service is the full page/chunk collaborator contract (spec section 6).
type Service interface {
    Iterator
    AllocateNextPage(space Space) *Page
    ReleasePage(p *Page)
}

// Allocator is the raw-allocation collaborator (spec section 6): bump
// allocation with a per-thread linear buffer, plus a concurrent path for the
// shared-space promotion of internalizable strings.
type Allocator interface {
    AllocateRaw(space Space, size uintptr, alignment uintptr) (objmodel.Address, bool)
}

// Sweeper is the lazy sweeper collaborator, invoked as a black box once
// evacuation hands it non-evacuated pages (spec section 6).
type Sweeper interface {
    AddPage(space Space, p *Page, mode int)
    StartSweeping()
    EnsureCompleted()
    // EnsurePageIsSwept lets the main thread cooperatively promote a single
    // page's concurrent sweep to completion. Whether this is required for
    // correctness or purely a latency optimization is an open question
    // inherited from the source design (design notes, first open question);
    // no package in this module calls it.
    EnsurePageIsSwept(p *Page)
    SweepingInProgress() bool
}
