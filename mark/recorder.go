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
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/remset"
    "github.com/markcompact/mcgc/worklist"
)

// RecordSlotIfCrossing appends `ownerAddr`'s slot to the appropriate
// remembered set on ownerPage when it crosses a boundary the pointer-update
// phase must later revisit -- spec 4.2: "Marking a slot on a page that is
// not on the no-record list records the slot into the appropriate
// remembered set." Skipped entirely for pages flagged FlagSkipRecording
// (invariant 3's "is on a page flagged skip-recording" exception).
func RecordSlotIfCrossing(ownerPage *pageset.Page, slot objmodel.Slot, targetPage *pageset.Page) {
    if ownerPage == nil || targetPage == nil {
        return
    }
    if ownerPage.HasFlag(pageset.FlagSkipRecording) {
        return
    }

    switch {
    case targetPage.Space == pageset.SpaceNew && ownerPage.Space != pageset.SpaceNew:
        ownerPage.RememberedSets.SlotSetFor(remset.OldToNew).Insert(slot.Offset)
    case targetPage.HasFlag(pageset.FlagEvacuationCandidate):
        if targetPage.HasFlag(pageset.FlagExecutable) {
            if kind, ok := typedSlotKindFor(slot.Kind); ok {
                ownerPage.RememberedSets.TypedSlotSetFor(remset.OldToCode).Insert(kind, slot.Offset)
            } else {
                ownerPage.RememberedSets.SlotSetFor(remset.OldToCode).Insert(slot.Offset)
            }
        } else {
            ownerPage.RememberedSets.SlotSetFor(remset.OldToOld).Insert(slot.Offset)
        }
    case targetPage.Space == pageset.SpaceSharedOld && ownerPage.Space != pageset.SpaceSharedOld:
        ownerPage.RememberedSets.SlotSetFor(remset.OldToShared).Insert(slot.Offset)
    }
}

// typedSlotKindFor maps a slot's semantic kind to the code-relocation typed
// slot variant it corresponds to once it's known to point at an
// evacuation-candidate code page (spec 4.7 step 2, "a relocation-info
// helper that handles each slot-type variant"). Slot kinds with no
// relocation encoding of their own -- an ordinary tagged-pointer field that
// happens to hold a reference into code space -- have no typed variant and
// stay in the untyped OLD_TO_CODE set.
func typedSlotKindFor(kind objmodel.SlotKind) (remset.TypedSlotKind, bool) {
    switch kind {
    case objmodel.SlotCodeTarget:
        return remset.TypedCodeEntry, true
    case objmodel.SlotEmbeddedPointer:
        return remset.TypedEmbeddedObjectFull, true
    default:
        return 0, false
    }
}

// slotVisitor implements objmodel.SlotVisitor on behalf of the marking
// driver: strong/code/embedded/map slots grey their target and record a
// remembered-set entry when the reference crosses a boundary; weak slots are
// deferred to the clearing pipeline instead of being greyed directly.
type slotVisitor struct {
    d *Driver
    w *Worker
}

func (sv *slotVisitor) greyAndPush(owner objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    ownerPage, _, _ := ObjectIndex(sv.d.hv, owner)
    targetPage, index, ok := ObjectIndex(sv.d.hv, target)
    if !ok {
        return
    }
    RecordSlotIfCrossing(ownerPage, slot, targetPage)
    if targetPage.Bitmap.TransitionToGrey(index) {
        sv.w.locals.Marking.Push(target)
    }
}

func (sv *slotVisitor) VisitStrongPointer(owner objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    sv.greyAndPush(owner, slot, target)
}

func (sv *slotVisitor) VisitWeakPointer(owner objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    if target == objmodel.NullAddress {
        return
    }
    sv.d.worklists.WeakReferences.Push(owner)
}

func (sv *slotVisitor) VisitCodeTarget(owner objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    sv.greyAndPush(owner, slot, target)
}

func (sv *slotVisitor) VisitEmbeddedPointer(owner objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    sv.greyAndPush(owner, slot, target)
}

func (sv *slotVisitor) VisitMapPointer(owner objmodel.Address, slot objmodel.Slot, target objmodel.Address) {
    sv.greyAndPush(owner, slot, target)
}

func (sv *slotVisitor) VisitEphemeron(owner, key, value objmodel.Address) {
    sv.w.locals.DiscoveredEphemerons.Push(worklist.Ephemeron{Key: key, Value: value})
}
