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
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/roots"
    "github.com/markcompact/mcgc/worklist"
)

const fakeWordSize = 16

// fakeDescriptor is the smallest Descriptor that can express both a plain
// object's strong out-edges and an ephemeron hash table's key/value pairs.
type fakeDescriptor struct {
    kind      objmodel.Kind
    size      uintptr
    strong    []objmodel.Address
    ephemeron [][2]objmodel.Address // {key, value} pairs
}

func (d *fakeDescriptor) Kind() objmodel.Kind { return d.kind }
func (d *fakeDescriptor) Size() uintptr       { return d.size }

func (d *fakeDescriptor) VisitSlots(owner objmodel.Address, v objmodel.SlotVisitor) {
    for i, target := range d.strong {
        v.VisitStrongPointer(owner, objmodel.Slot{Offset: uint32(i) * fakeWordSize, Kind: objmodel.SlotStrong}, target)
    }
    for _, pair := range d.ephemeron {
        v.VisitEphemeron(owner, pair[0], pair[1])
    }
}

// fakeHeap is a single-page HeapView backing the marking driver's tests: a
// fixed slab of object slots addressed by index, with descriptors supplied
// per address by the test.
type fakeHeap struct {
    page        *pageset.Page
    descriptors map[objmodel.Address]objmodel.Descriptor
    next        uint32
}

// fakeHeapBase keeps the page clear of objmodel.NullAddress, which the
// marker treats as "no object".
const fakeHeapBase = 1 << 16

func newFakeHeap(numObjects uint32) *fakeHeap {
    areaEnd := objmodel.Address(fakeHeapBase + uint64(numObjects)*fakeWordSize)
    return &fakeHeap{
        page:        pageset.NewPage(1, pageset.SpaceOld, fakeHeapBase, areaEnd, numObjects),
        descriptors: make(map[objmodel.Address]objmodel.Descriptor),
    }
}

// alloc reserves the next object slot and registers its descriptor.
func (h *fakeHeap) alloc(d *fakeDescriptor) objmodel.Address {
    addr := objmodel.Address(fakeHeapBase + uint64(h.next)*fakeWordSize)
    h.next++
    h.descriptors[addr] = d
    return addr
}

func (h *fakeHeap) PageAt(addr objmodel.Address) *pageset.Page {
    if h.page.Contains(addr) {
        return h.page
    }
    return nil
}

func (h *fakeHeap) DescriptorAt(addr objmodel.Address) objmodel.Descriptor {
    return h.descriptors[addr]
}

func (h *fakeHeap) WordSize() uint32 { return fakeWordSize }

func (h *fakeHeap) colorOf(addr objmodel.Address) objmodel.Color {
    return h.page.Bitmap.Get(h.page.ObjectIndex(addr, fakeWordSize))
}

// TestMarkingReachesTransitiveStrongClosure mirrors a root pointing to A,
// with A pointing strongly to both B and C: after running the root visitor
// and draining the marking worklist, all three must end up Black.
func TestMarkingReachesTransitiveStrongClosure(t *testing.T) {
    heap := newFakeHeap(8)
    b := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize})
    c := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize})
    a := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize, strong: []objmodel.Address{b, c}})

    driver := NewDriver(heap, worklist.NewBundle(), 10, nil)
    worker := driver.NewWorker()

    rootSet := &roots.Static{Own: []roots.Root{{Kind: roots.KindGlobalHandle, Address: a}}}
    rootSet.IterateRoots(worker.RootVisitor(), nil)

    drained := worker.ProcessMarkingWorklist(0)
    require.True(t, drained)

    require.Equal(t, objmodel.Black, heap.colorOf(a))
    require.Equal(t, objmodel.Black, heap.colorOf(b))
    require.Equal(t, objmodel.Black, heap.colorOf(c))
}

// TestEphemeronFixpointOnlyMarksReachableKeys builds a table holding two
// pairs, (k1, v1) and (k2, v2); the root reaches k1 directly but neither v1
// nor k2/v2. After the fixpoint, only k1 and v1 should be Black.
func TestEphemeronFixpointOnlyMarksReachableKeys(t *testing.T) {
    heap := newFakeHeap(16)
    k1 := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize})
    v1 := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize})
    k2 := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize})
    v2 := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize})
    table := heap.alloc(&fakeDescriptor{
        kind:      objmodel.KindEphemeronHashTable,
        size:      fakeWordSize,
        ephemeron: [][2]objmodel.Address{{k1, v1}, {k2, v2}},
    })
    root := heap.alloc(&fakeDescriptor{kind: objmodel.KindPlain, size: fakeWordSize, strong: []objmodel.Address{k1, table}})

    driver := NewDriver(heap, worklist.NewBundle(), 10, nil)
    worker := driver.NewWorker()

    rootSet := &roots.Static{Own: []roots.Root{{Kind: roots.KindGlobalHandle, Address: root}}}
    rootSet.IterateRoots(worker.RootVisitor(), nil)
    worker.ProcessMarkingWorklist(0)

    worker.EphemeronFixpoint(10)

    require.Equal(t, objmodel.Black, heap.colorOf(root))
    require.Equal(t, objmodel.Black, heap.colorOf(k1))
    require.Equal(t, objmodel.Black, heap.colorOf(v1))
    require.Equal(t, objmodel.White, heap.colorOf(k2))
    require.Equal(t, objmodel.White, heap.colorOf(v2))
}

// TestFillersAreNeverVisited exercises the visitOne fast path: a filler's
// slots must never be dereferenced, since left-trim fillers carry no real
// layout.
func TestFillersAreNeverVisited(t *testing.T) {
    heap := newFakeHeap(4)
    filler := heap.alloc(&fakeDescriptor{kind: objmodel.KindFiller, size: fakeWordSize})

    driver := NewDriver(heap, worklist.NewBundle(), 10, nil)
    worker := driver.NewWorker()
    worker.MarkGreyIfWhite(filler)
    drained := worker.ProcessMarkingWorklist(0)

    require.True(t, drained)
    require.Equal(t, objmodel.Grey, heap.colorOf(filler))
}
