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
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/remset"
    "github.com/markcompact/mcgc/roots"
)

const wordSize = 16

type fakeHV struct {
    fake *pageset.Fake
}

func (h *fakeHV) PageAt(addr objmodel.Address) *pageset.Page { return h.fake.PageAt(addr) }
func (h *fakeHV) DescriptorAt(objmodel.Address) objmodel.Descriptor { return nil }
func (h *fakeHV) WordSize() uint32                                  { return wordSize }

func TestUpdateRootsRewritesForwardedAddress(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake}
    src := fake.AllocateNextPage(pageset.SpaceOld)
    dest := fake.AllocateNextPage(pageset.SpaceOld)

    obj := src.AreaStart
    destAddr := dest.AreaStart
    src.MapWords[0] = objmodel.Forwarding(destAddr)

    var rewritten objmodel.Address
    root := roots.Root{Kind: roots.KindGlobalHandle, Address: obj, Rewrite: func(a objmodel.Address) { rewritten = a }}
    static := &roots.Static{Own: []roots.Root{root}}

    updater := NewUpdater(hv, NewFakeStorage())
    updater.UpdateRoots(static, nil, false)

    require.Equal(t, destAddr, rewritten)
}

func TestUpdateChunkDropsOldToOldAfterForwarding(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake}
    owner := fake.AllocateNextPage(pageset.SpaceOld)
    candidate := fake.AllocateNextPage(pageset.SpaceOld)
    dest := fake.AllocateNextPage(pageset.SpaceOld)

    candidate.MapWords[0] = objmodel.Forwarding(dest.AreaStart)

    storage := NewFakeStorage()
    storage.StoreSlot(owner, 8, candidate.AreaStart)
    owner.RememberedSets.SlotSetFor(remset.OldToOld).Insert(8)

    updater := NewUpdater(hv, storage)
    updater.UpdateChunk(owner, AlwaysValid{})

    require.Equal(t, dest.AreaStart, storage.LoadSlot(owner, 8))
    require.Equal(t, 0, owner.RememberedSets.SlotSetFor(remset.OldToOld).Len())
}

func TestUpdateChunkKeepsOldToNewWhenStillInNewSpace(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake}
    owner := fake.AllocateNextPage(pageset.SpaceOld)
    young := fake.AllocateNextPage(pageset.SpaceNew)

    storage := NewFakeStorage()
    storage.StoreSlot(owner, 16, young.AreaStart)
    owner.RememberedSets.SlotSetFor(remset.OldToNew).Insert(16)

    updater := NewUpdater(hv, storage)
    updater.UpdateChunk(owner, AlwaysValid{})

    require.Equal(t, 1, owner.RememberedSets.SlotSetFor(remset.OldToNew).Len())
}

func TestUpdateChunkRewritesTypedCodeSlotAndDropsAfterForwarding(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake}
    owner := fake.AllocateNextPage(pageset.SpaceOld)
    candidate := fake.AllocateNextPage(pageset.SpaceOld)
    candidate.SetFlag(pageset.FlagExecutable)
    dest := fake.AllocateNextPage(pageset.SpaceOld)

    candidate.MapWords[0] = objmodel.Forwarding(dest.AreaStart)

    storage := NewFakeStorage()
    storage.StoreSlot(owner, 24, candidate.AreaStart)
    owner.RememberedSets.TypedSlotSetFor(remset.OldToCode).Insert(remset.TypedCodeEntry, 24)

    updater := NewUpdater(hv, storage)
    updater.UpdateChunk(owner, AlwaysValid{})

    require.Equal(t, dest.AreaStart, storage.LoadSlot(owner, 24))
    require.Empty(t, owner.RememberedSets.TypedSlotSetFor(remset.OldToCode).Slots())
}

func TestRekeyEphemeronsFollowsForwarding(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake}
    table := fake.AllocateNextPage(pageset.SpaceOld)
    dest := fake.AllocateNextPage(pageset.SpaceOld)
    table.MapWords[0] = objmodel.Forwarding(dest.AreaStart)

    set := remset.NewEphemeronRememberedSet()
    set.Insert(table.AreaStart, 3)

    updater := NewUpdater(hv, NewFakeStorage())
    updater.RekeyEphemerons(set)

    entries := set.Entries()
    require.Len(t, entries, 1)
    require.Equal(t, dest.AreaStart, entries[0].Table)
    require.Equal(t, uint32(3), entries[0].Index)
}
