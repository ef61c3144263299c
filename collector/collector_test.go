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

package collector

import (
    "context"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/markcompact/mcgc/config"
    "github.com/markcompact/mcgc/internal/fatal"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/pointerupdate"
    "github.com/markcompact/mcgc/roots"
)

const wordSize = 16

type stubDescriptor struct {
    strong []objmodel.Address
}

func (d *stubDescriptor) Kind() objmodel.Kind { return objmodel.KindPlain }
func (d *stubDescriptor) Size() uintptr       { return wordSize }
func (d *stubDescriptor) VisitSlots(owner objmodel.Address, v objmodel.SlotVisitor) {
    for i, target := range d.strong {
        v.VisitStrongPointer(owner, objmodel.Slot{Offset: uint32(i) * wordSize, Kind: objmodel.SlotStrong}, target)
    }
}

type fakeHV struct {
    fake        *pageset.Fake
    descriptors map[objmodel.Address]objmodel.Descriptor
}

func (h *fakeHV) PageAt(addr objmodel.Address) *pageset.Page { return h.fake.PageAt(addr) }
func (h *fakeHV) DescriptorAt(addr objmodel.Address) objmodel.Descriptor {
    return h.descriptors[addr]
}
func (h *fakeHV) WordSize() uint32 { return wordSize }

func newTestCollector(hv *fakeHV, fake *pageset.Fake, flags config.Flags) *Collector {
    storage := pointerupdate.NewFakeStorage()
    return NewCollector(hv, fake, fake, fake, storage, flags, nil)
}

func TestPrepareSelectsCandidatesAndAdvancesState(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}

    old := fake.AllocateNextPage(pageset.SpaceOld)
    old.SetAllocatedBytes(int64(old.AreaEnd-old.AreaStart) / 10)

    c := newTestCollector(hv, fake, config.Default())
    require.Equal(t, StateIdle, c.State())

    c.Prepare(nil)
    require.Equal(t, StatePrepareGC, c.State())
    require.Contains(t, c.candidates, old)
    require.True(t, old.HasFlag(pageset.FlagEvacuationCandidate))
}

func TestPrepareSkipsPinnedAndLinearAllocationPages(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}

    pinned := fake.AllocateNextPage(pageset.SpaceOld)
    pinned.SetAllocatedBytes(int64(pinned.AreaEnd-pinned.AreaStart) / 10)
    pinned.SetFlag(pageset.FlagPinned)

    lab := fake.AllocateNextPage(pageset.SpaceOld)
    lab.SetAllocatedBytes(int64(lab.AreaEnd-lab.AreaStart) / 10)

    c := newTestCollector(hv, fake, config.Default())
    c.Prepare(lab)

    require.NotContains(t, c.candidates, pinned)
    require.NotContains(t, c.candidates, lab)
}

func TestRunFullCycleMarksEvacuatesAndUpdatesPointers(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}

    candidate := fake.AllocateNextPage(pageset.SpaceOld)
    survivor := candidate.AreaStart
    hv.descriptors[survivor] = &stubDescriptor{}
    candidate.SetAllocatedBytes(int64(candidate.AreaEnd - candidate.AreaStart))
    candidate.AddLiveBytes(wordSize)

    flags := config.Default()
    flags.StressCompaction = true

    c := newTestCollector(hv, fake, flags)
    static := &roots.Static{Own: []roots.Root{{Kind: roots.KindStack, Address: survivor}}}

    ctx := context.Background()
    require.NoError(t, c.RunFullCycle(ctx, static, nil, false, nil, 2, nil))
    require.Equal(t, StateIdle, c.State())
    require.Equal(t, uint64(1), c.Epoch())
}

func TestAbortCompactionClearsCandidatesWithoutAdvancingState(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}

    old := fake.AllocateNextPage(pageset.SpaceOld)
    old.SetAllocatedBytes(int64(old.AreaEnd-old.AreaStart) / 10)

    c := newTestCollector(hv, fake, config.Default())
    c.Prepare(nil)
    require.NotEmpty(t, c.candidates)

    c.AbortCompaction()
    require.Empty(t, c.candidates)
    require.False(t, old.HasFlag(pageset.FlagEvacuationCandidate))
    require.Equal(t, StatePrepareGC, c.State())
}

func TestMarkLiveObjectsPanicsOnWrongState(t *testing.T) {
    prev := fatal.CurrentMode
    fatal.CurrentMode = fatal.ModePanic
    defer func() { fatal.CurrentMode = prev }()

    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}
    c := newTestCollector(hv, fake, config.Default())

    static := &roots.Static{}
    require.Panics(t, func() {
        _ = c.MarkLiveObjects(context.Background(), static, nil, false, 1)
    })
}
