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
    "github.com/markcompact/mcgc/internal/fatal"
    "github.com/markcompact/mcgc/internal/gclog"
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/remset"
)

// PageMode is one of the four evacuation strategies a candidate page picks
// (spec 4.6, "Page modes").
type PageMode int

const (
    ObjectsOldToOld PageMode = iota
    ObjectsNewToOld
    PageNewToOld
    PageNewToNew
)

// AbortInfo records why and where a page's evacuation was abandoned (spec
// 4.6, "Abort semantics").
type AbortInfo struct {
    Page          *pageset.Page
    FailedAddress objmodel.Address
}

// touchedDest records the first address a source page's migration wrote to
// on one destination page. An abort removes that page's remembered-set
// entries from this offset to the end of the page; it does not touch the
// source page's own remembered sets and re-records no slots.
type touchedDest struct {
    page       *pageset.Page
    startBytes objmodel.Address
}

// Migrator copies Black objects off evacuation-candidate pages, matching
// the ancestor's approach to bulk graph transformation (graph.go builds a
// new adjacency representation from an old one in one pass); here the "new
// representation" is the destination page's objects and remembered sets.
type Migrator struct {
    hv              mark.HeapView
    sweeper         pageset.Sweeper
    observers       []MigrationObserver
    crashOnAbort    bool
    log             *gclog.Logger
    ephemeronRemset *remset.EphemeronRememberedSet
    liveColor       objmodel.Color
}

func NewMigrator(hv mark.HeapView, sweeper pageset.Sweeper, crashOnAbort bool, log *gclog.Logger) *Migrator {
    if log == nil {
        log = gclog.Default
    }
    return &Migrator{hv: hv, sweeper: sweeper, crashOnAbort: crashOnAbort, log: log, liveColor: objmodel.Black}
}

func (m *Migrator) AddObserver(o MigrationObserver) {
    m.observers = append(m.observers, o)
}

// SetLiveColor overrides which mark color MigrateObjects treats as "copy
// this object": Black for the full collector's terminal color, Grey for
// the young generation's (mark.Driver.SetTerminalColor picks the same
// color on the marking side).
func (m *Migrator) SetLiveColor(c objmodel.Color) {
    m.liveColor = c
}

// SetEphemeronRememberedSet attaches the dedicated ephemeron remembered set
// used when an ephemeron's key still lives in the nursery post-copy.
func (m *Migrator) SetEphemeronRememberedSet(s *remset.EphemeronRememberedSet) {
    m.ephemeronRemset = s
}

// MigrateObjects copies every object on page whose mark bit is the live
// color (Black unless SetLiveColor changed it) into destSpace via
// alloc, classifying each copied object's outgoing slots into the
// destination page's remembered sets. On allocation failure it aborts the
// page (spec 4.6, kObjectsOldToOld / kObjectsNewToOld).
func (m *Migrator) MigrateObjects(page *pageset.Page, destSpace pageset.Space, alloc *Allocator) *AbortInfo {
    wordSize := m.hv.WordSize()
    var touched []touchedDest

    for i := uint32(0); i < page.NumObjects; i++ {
        if page.Bitmap.Get(i) != m.liveColor {
            continue
        }
        srcAddr := page.AreaStart + objmodel.Address(i)*objmodel.Address(wordSize)
        desc := m.hv.DescriptorAt(srcAddr)
        if desc == nil {
            continue
        }
        size := desc.Size()

        destAddr, ok := alloc.AllocateRaw(destSpace, size, uintptr(wordSize))
        if !ok {
            info := &AbortInfo{Page: page, FailedAddress: srcAddr}
            m.abort(page, touched)
            if m.crashOnAbort {
                fatal.OOM("evacuation allocation failed for %v on page %d and crash_on_aborted_evacuation is set", srcAddr, page.ID)
            }
            return info
        }

        destPage := m.hv.PageAt(destAddr)
        destIndex := destPage.ObjectIndex(destAddr, wordSize)

        touched = m.recordTouch(touched, destPage, destAddr)

        originalMapWord := page.MapWords[i]
        page.MapWords[i] = objmodel.Forwarding(destAddr)
        destPage.MapWords[destIndex] = originalMapWord
        destPage.Bitmap.TransitionToBlack(destIndex)
        destPage.AddLiveBytes(int64(size))
        page.AddLiveBytes(-int64(size))

        for _, obs := range m.observers {
            obs.OnMigrate(srcAddr, destAddr, size)
        }

        rec := &migratedSlotVisitor{m: m, ownerAddr: destAddr, ownerPage: destPage}
        desc.VisitSlots(destAddr, rec)
    }
    return nil
}

// recordTouch appends a new touchedDest entry the first time this
// migration writes to destPage, capturing the byte offset the successfully
// copied prefix started at.
func (m *Migrator) recordTouch(touched []touchedDest, destPage *pageset.Page, destAddr objmodel.Address) []touchedDest {
    for _, t := range touched {
        if t.page == destPage {
            return touched
        }
    }
    return append(touched, touchedDest{page: destPage, startBytes: destAddr})
}

// abort undoes a partially copied page: forwarding addresses installed so
// far are rolled back to the original map word, each destination page's
// remembered-set entries from its first copied offset to the page end are
// dropped,
// live bytes are recomputed from the (still-Black, still-resident) bitmap,
// and the page is flagged for sweeping in place rather than release.
func (m *Migrator) abort(page *pageset.Page, touched []touchedDest) {
    wordSize := m.hv.WordSize()
    var liveBytes int64
    for i := uint32(0); i < page.NumObjects; i++ {
        mw := page.MapWords[i]
        if dest, ok := mw.ForwardedTo(); ok {
            destPage := m.hv.PageAt(dest)
            if destPage != nil {
                destIndex := destPage.ObjectIndex(dest, wordSize)
                page.MapWords[i] = destPage.MapWords[destIndex]
                destPage.Bitmap.MarkWhite(destIndex)
            }
        }
        if page.Bitmap.Get(i) == m.liveColor {
            if desc := m.hv.DescriptorAt(page.AreaStart + objmodel.Address(i)*objmodel.Address(wordSize)); desc != nil {
                liveBytes += int64(desc.Size())
            }
        }
    }
    page.SetLiveBytes(liveBytes)
    page.SetFlag(pageset.FlagCompactionAborted)
    page.ClearFlag(pageset.FlagEvacuationCandidate)

    for _, t := range touched {
        removeRangeAllClasses(t.page, uint32(t.startBytes-t.page.AreaStart), t.page.NumObjects*wordSize)
    }

    if m.sweeper != nil {
        m.sweeper.AddPage(page.Space, page, 0)
    }
    m.log.Warn("evacuation aborted for page %d, %d bytes recomputed live", page.ID, liveBytes)
}
