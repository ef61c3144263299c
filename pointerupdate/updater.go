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
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/remset"
    "github.com/markcompact/mcgc/roots"
)

// InvalidatedSlotsFilter reports whether a recorded slot is still live,
// i.e. wasn't freed since it was recorded (spec 4.7 step 2, "filter through
// the chunk's invalidated-slots filter").
type InvalidatedSlotsFilter interface {
    IsValid(page *pageset.Page, offset uint32) bool
}

// AlwaysValid is the default filter for hosts that don't track invalidation
// (e.g. this collector's tests, which never free a slot mid-cycle).
type AlwaysValid struct{}

func (AlwaysValid) IsValid(*pageset.Page, uint32) bool { return true }

// Updater rewrites forwarding-tagged slots discovered via roots and
// remembered sets.
type Updater struct {
    hv      mark.HeapView
    storage SlotStorage
}

func NewUpdater(hv mark.HeapView, storage SlotStorage) *Updater {
    return &Updater{hv: hv, storage: storage}
}

// Forwarded reports the address addr's object has been forwarded to, or
// (addr, false) if its map word is still a plain map pointer or it isn't on
// any known page.
func (u *Updater) Forwarded(addr objmodel.Address) (objmodel.Address, bool) {
    page := u.hv.PageAt(addr)
    if page == nil {
        return addr, false
    }
    index := page.ObjectIndex(addr, u.hv.WordSize())
    if dest, ok := page.MapWords[index].ForwardedTo(); ok {
        return dest, true
    }
    return addr, false
}

// UpdateRoots walks roots, storing the forwarded address back into any root
// that exposes a Rewrite slot (spec 4.7 step 1).
func (u *Updater) UpdateRoots(it roots.Iterator, skip roots.SkipSet, includeClients bool) {
    visitor := roots.VisitorFunc(func(r roots.Root) {
        if forwarded, ok := u.Forwarded(r.Address); ok && r.Rewrite != nil {
            r.Rewrite(forwarded)
        }
    })
    if includeClients {
        it.IterateRootsIncludingClients(visitor, skip)
    } else {
        it.IterateRoots(visitor, skip)
    }
}

// UpdateChunk drains page's remembered sets under its mutex (spec 4.7 step
// 2): each recorded slot is filtered, then either rewritten and kept or
// dropped per the OLD_TO_NEW keep/drop rules (step 3) or the one-shot
// OLD_TO_OLD/OLD_TO_CODE/OLD_TO_SHARED rule (once a compaction candidate's
// target is forwarded, there is nothing left to re-record).
func (u *Updater) UpdateChunk(page *pageset.Page, filter InvalidatedSlotsFilter) {
    if !page.RememberedSets.HasAny() {
        return
    }
    page.RememberedSets.Lock()
    defer page.RememberedSets.Unlock()

    for _, class := range []remset.Class{remset.OldToNew, remset.OldToOld, remset.OldToCode, remset.OldToShared} {
        set := page.RememberedSets.SlotSetFor(class)
        pending := append([]uint32(nil), set.Offsets()...)
        set.Clear()
        for _, offset := range pending {
            if !filter.IsValid(page, offset) {
                continue
            }
            if u.updateSlot(page, offset, class) {
                set.Insert(offset)
            }
        }
    }

    typed := page.RememberedSets.TypedSlotSetFor(remset.OldToCode)
    pendingTyped := append([]remset.TypedSlot(nil), typed.Slots()...)
    typed.Clear()
    for _, ts := range pendingTyped {
        if !filter.IsValid(page, ts.Offset) {
            continue
        }
        if u.updateSlot(page, ts.Offset, remset.OldToCode) {
            typed.Insert(ts.Kind, ts.Offset)
        }
    }
}

// updateSlot rewrites the address stored at (page, offset) if its target
// has been forwarded, and reports whether the slot should remain recorded.
func (u *Updater) updateSlot(page *pageset.Page, offset uint32, class remset.Class) bool {
    target := u.storage.LoadSlot(page, offset)
    if target == objmodel.NullAddress {
        return false
    }
    targetPage := u.hv.PageAt(target)
    if targetPage == nil {
        return true // foreign/embedder pointer; nothing this phase can resolve
    }

    if forwarded, ok := u.Forwarded(target); ok {
        u.storage.StoreSlot(page, offset, forwarded)
        if class != remset.OldToNew {
            // A compaction candidate's object has moved once; the slot no
            // longer crosses into a to-be-released page.
            return false
        }
        newTargetPage := u.hv.PageAt(forwarded)
        return newTargetPage != nil && newTargetPage.Space == pageset.SpaceNew
    }

    if class != remset.OldToNew {
        return true
    }
    if targetPage.HasFlag(pageset.FlagNewToNewPromotion) {
        color := targetPage.Bitmap.Get(targetPage.ObjectIndex(target, u.hv.WordSize()))
        return color == objmodel.Black || color == objmodel.Grey
    }
    return true
}

// RekeyEphemerons re-keys every entry in set whose owning table has been
// forwarded (spec 4.7 step 6).
func (u *Updater) RekeyEphemerons(set *remset.EphemeronRememberedSet) {
    for _, entry := range set.Entries() {
        if forwarded, ok := u.Forwarded(entry.Table); ok {
            set.Rekey(entry.Table, forwarded)
        }
    }
}
