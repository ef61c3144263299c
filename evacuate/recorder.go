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
    "github.com/markcompact/mcgc/mark"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/remset"
)

// migratedSlotVisitor is the RecordMigratedSlotVisitor of spec 4.6: as the
// freshly copied destination object is walked, each interior pointer is
// classified into the destination page's remembered sets exactly the way
// mark.RecordSlotIfCrossing classifies a slot during marking -- evacuation
// reuses that same classifier rather than duplicating its boundary rules.
type migratedSlotVisitor struct {
    m         *Migrator
    ownerAddr objmodel.Address
    ownerPage *pageset.Page
}

func (v *migratedSlotVisitor) record(slot objmodel.Slot, target objmodel.Address) {
    if target == objmodel.NullAddress {
        return
    }
    targetPage := v.m.hv.PageAt(target)
    mark.RecordSlotIfCrossing(v.ownerPage, slot, targetPage)
}

func (v *migratedSlotVisitor) VisitStrongPointer(_ objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    v.record(slot, target)
}
func (v *migratedSlotVisitor) VisitWeakPointer(_ objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    v.record(slot, target)
}
func (v *migratedSlotVisitor) VisitCodeTarget(_ objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    v.record(slot, target)
}
func (v *migratedSlotVisitor) VisitEmbeddedPointer(_ objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    v.record(slot, target)
}
func (v *migratedSlotVisitor) VisitMapPointer(_ objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    v.record(slot, target)
}
func (v *migratedSlotVisitor) VisitEphemeron(owner, key, value objmodel.Address) {
    // Ephemerons with young keys route to the dedicated ephemeron
    // remembered set (spec 4.6); the collector-level orchestrator owns that
    // set and re-keys it once the table's own forwarding is known, so the
    // evacuator only needs to record it here if the caller wired one in.
    if v.m.ephemeronRemset != nil && v.m.hv.PageAt(key) != nil && v.m.hv.PageAt(key).Space == pageset.SpaceNew {
        v.m.ephemeronRemset.Insert(owner, 0)
    }
}

// removeRangeAllClasses drops [lo, hi) from every untyped remembered-set
// class on page, plus the typed OLD_TO_CODE set, since the slots of objects
// copied there before an abort could have been classified into any of them.
func removeRangeAllClasses(page *pageset.Page, lo, hi uint32) {
    for _, class := range []remset.Class{remset.OldToNew, remset.OldToOld, remset.OldToCode, remset.OldToShared} {
        page.RememberedSets.SlotSetFor(class).RemoveRange(lo, hi)
    }
    page.RememberedSets.TypedSlotSetFor(remset.OldToCode).RemoveRange(lo, hi)
}
