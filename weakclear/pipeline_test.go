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

package weakclear

import (
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/worklist"
)

const wordSize = 16

type fakeHV struct{ fake *pageset.Fake }

func (h *fakeHV) PageAt(addr objmodel.Address) *pageset.Page        { return h.fake.PageAt(addr) }
func (h *fakeHV) DescriptorAt(objmodel.Address) objmodel.Descriptor { return nil }
func (h *fakeHV) WordSize() uint32                                  { return wordSize }

type fakeFlusher struct {
    dead       map[objmodel.Address]bool
    flushed    []objmodel.Address
    baselineOK []objmodel.Address
}

func (f *fakeFlusher) IsBytecodeDead(sfi objmodel.Address) bool { return f.dead[sfi] }
func (f *fakeFlusher) FlushBytecode(sfi objmodel.Address)       { f.flushed = append(f.flushed, sfi) }
func (f *fakeFlusher) ResetDeadBaselineCode(sfi objmodel.Address) {
    f.baselineOK = append(f.baselineOK, sfi)
}

type fakeWeakList struct {
    objects   []objmodel.Address
    allocSite map[objmodel.Address]bool
    retained  map[objmodel.Address]bool
    zombie    map[objmodel.Address]bool
    dropped   map[objmodel.Address]bool
}

func newFakeWeakList(objects ...objmodel.Address) *fakeWeakList {
    return &fakeWeakList{
        objects:   objects,
        allocSite: map[objmodel.Address]bool{},
        retained:  map[objmodel.Address]bool{},
        zombie:    map[objmodel.Address]bool{},
        dropped:   map[objmodel.Address]bool{},
    }
}

func (l *fakeWeakList) Objects() []objmodel.Address             { return l.objects }
func (l *fakeWeakList) IsAllocationSite(a objmodel.Address) bool { return l.allocSite[a] }
func (l *fakeWeakList) Retain(a objmodel.Address, zombie bool) {
    l.retained[a] = true
    l.zombie[a] = zombie
}
func (l *fakeWeakList) Drop(a objmodel.Address) { l.dropped[a] = true }

type fakeSlotClearer struct{ owners []objmodel.Address }

func (c *fakeSlotClearer) ClearDeadWeakSlots(owner objmodel.Address, _ func(objmodel.Address) bool) {
    c.owners = append(c.owners, owner)
}

func newHeap() (*pageset.Fake, *fakeHV) {
    fake := pageset.NewFake()
    return fake, &fakeHV{fake: fake}
}

func TestFlushBytecodeReplacesOnlyDeadCandidates(t *testing.T) {
    _, hv := newHeap()
    wl := worklist.NewBundle()
    liveSFI := objmodel.Address(0x1000)
    deadSFI := objmodel.Address(0x2000)
    wl.FlushingCandidates.Push(liveSFI)
    wl.FlushingCandidates.Push(deadSFI)

    flusher := &fakeFlusher{dead: map[objmodel.Address]bool{deadSFI: true}}
    p := NewPipeline(hv, wl, Collaborators{})
    p.SetBytecodeFlusher(flusher)

    p.Run()

    require.ElementsMatch(t, []objmodel.Address{deadSFI}, flusher.flushed)
    require.ElementsMatch(t, []objmodel.Address{liveSFI, deadSFI}, flusher.baselineOK)
}

func TestRetainWeakListsAppliesBlackRetainReprieveDrop(t *testing.T) {
    fake, hv := newHeap()
    page := fake.AllocateNextPage(pageset.SpaceOld)

    black := page.AreaStart
    page.Bitmap.TransitionToGrey(page.ObjectIndex(black, wordSize))
    page.Bitmap.TransitionToBlack(page.ObjectIndex(black, wordSize))

    allocSite := page.AreaStart + wordSize
    dead := page.AreaStart + 2*wordSize

    list := newFakeWeakList(black, allocSite, dead)
    list.allocSite[allocSite] = true

    wl := worklist.NewBundle()
    p := NewPipeline(hv, wl, Collaborators{})
    p.AddWeakList(list)

    p.Run()

    require.True(t, list.retained[black])
    require.False(t, list.zombie[black])

    require.True(t, list.retained[allocSite])
    require.True(t, list.zombie[allocSite])
    require.Equal(t, objmodel.Black, page.Bitmap.Get(page.ObjectIndex(allocSite, wordSize)))

    require.True(t, list.dropped[dead])
}

func TestClearWeakSlotsDrainsAllThreeWorklists(t *testing.T) {
    _, hv := newHeap()
    wl := worklist.NewBundle()
    a, b, c := objmodel.Address(0x10), objmodel.Address(0x20), objmodel.Address(0x30)
    wl.WeakReferences.Push(a)
    wl.WeakCells.Push(b)
    wl.JSWeakRefs.Push(c)

    clearer := &fakeSlotClearer{}
    p := NewPipeline(hv, wl, Collaborators{})
    p.SetWeakSlotClearer(clearer)

    p.Run()

    require.ElementsMatch(t, []objmodel.Address{a, b, c}, clearer.owners)
}

func TestIsLiveTreatsUnknownAddressesAsLive(t *testing.T) {
    _, hv := newHeap()
    p := NewPipeline(hv, worklist.NewBundle(), Collaborators{})
    require.True(t, p.IsLive(objmodel.Address(0xdead)))
    require.False(t, p.IsLive(objmodel.NullAddress))
}
