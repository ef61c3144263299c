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
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
)

const testWordSize = 16

type stubDescriptor struct {
    kind objmodel.Kind
    size uintptr
}

func (d stubDescriptor) Kind() objmodel.Kind { return d.kind }
func (d stubDescriptor) Size() uintptr       { return d.size }
func (d stubDescriptor) VisitSlots(objmodel.Address, objmodel.SlotVisitor) {}

// testHeap is a minimal mark.HeapView backed by pageset.Fake, letting
// evacuation tests exercise real page allocation across multiple pages.
type testHeap struct {
    fake        *pageset.Fake
    descriptors map[objmodel.Address]objmodel.Descriptor
}

func newTestHeap() *testHeap {
    return &testHeap{fake: pageset.NewFake(), descriptors: make(map[objmodel.Address]objmodel.Descriptor)}
}

func (h *testHeap) PageAt(addr objmodel.Address) *pageset.Page   { return h.fake.PageAt(addr) }
func (h *testHeap) DescriptorAt(addr objmodel.Address) objmodel.Descriptor {
    return h.descriptors[addr]
}
func (h *testHeap) WordSize() uint32 { return testWordSize }

func TestMigrateObjectsInstallsForwardingAndCopiesLiveBytes(t *testing.T) {
    heap := newTestHeap()
    src := heap.fake.AllocateNextPage(pageset.SpaceOld)
    // Mark the source page full so copies land on a fresh page instead of
    // on the objects' own addresses.
    src.SetAllocatedBytes(int64(src.AreaEnd - src.AreaStart))

    var addrs []objmodel.Address
	for i := uint32(0); i < 3; i++ {
        addr := src.AreaStart + objmodel.Address(i)*testWordSize
        heap.descriptors[addr] = stubDescriptor{kind: objmodel.KindPlain, size: testWordSize}
        src.Bitmap.TransitionToGrey(i)
        src.Bitmap.TransitionToBlack(i)
        src.AddLiveBytes(testWordSize)
        addrs = append(addrs, addr)
    }

    migrator := NewMigrator(heap, heap.fake, false, nil)
    alloc := NewAllocator(heap.fake)

    info := migrator.MigrateObjects(src, pageset.SpaceOld, alloc)
    require.Nil(t, info)

    for _, addr := range addrs {
        index := src.ObjectIndex(addr, testWordSize)
        mw := src.MapWords[index]
        dest, ok := mw.ForwardedTo()
        require.True(t, ok)
        destPage := heap.fake.PageAt(dest)
        require.NotNil(t, destPage)
        require.Equal(t, objmodel.Black, destPage.Bitmap.Get(destPage.ObjectIndex(dest, testWordSize)))
    }
}

func TestMigrateObjectsAbortsCleanlyOnAllocationFailure(t *testing.T) {
    heap := newTestHeap()
    src := heap.fake.AllocateNextPage(pageset.SpaceOld)

    for i := uint32(0); i < 2; i++ {
        addr := src.AreaStart + objmodel.Address(i)*testWordSize
        heap.descriptors[addr] = stubDescriptor{kind: objmodel.KindPlain, size: testWordSize}
        src.Bitmap.TransitionToGrey(i)
        src.Bitmap.TransitionToBlack(i)
        src.AddLiveBytes(testWordSize)
    }
    src.SetFlag(pageset.FlagEvacuationCandidate)

    migrator := NewMigrator(heap, heap.fake, false, nil)
    // Budget covers exactly one object's worth of allocation, forcing the
    // second copy to fail.
    alloc := NewBudgetedAllocator(heap.fake, testWordSize)

    info := migrator.MigrateObjects(src, pageset.SpaceOld, alloc)
    require.NotNil(t, info)

    require.True(t, src.HasFlag(pageset.FlagCompactionAborted))
    require.False(t, src.HasFlag(pageset.FlagEvacuationCandidate))

    for i := uint32(0); i < 2; i++ {
        require.False(t, src.MapWords[i].IsForwardingAddress())
    }
    require.Equal(t, int64(2*testWordSize), src.LiveBytes())
}
