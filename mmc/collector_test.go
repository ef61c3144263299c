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

package mmc

import (
    "context"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/markcompact/mcgc/evacuate"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/pointerupdate"
    "github.com/markcompact/mcgc/roots"
    "github.com/markcompact/mcgc/worklist"
)

func TestEvacuatorPlanPromotesAboveThresholdAndEvacuatesBelow(t *testing.T) {
    fake := pageset.NewFake()
    hot := fake.AllocateNextPage(pageset.SpaceNew)
    hot.SetAllocatedBytes(int64(hot.AreaEnd - hot.AreaStart))
    hot.AddLiveBytes(int64(hot.AreaEnd - hot.AreaStart))

    cold := fake.AllocateNextPage(pageset.SpaceNew)
    cold.AddLiveBytes(1)

    e := NewEvacuator(&fakeHV{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}, fake, fake, 0.5, nil)
    assignments := e.Plan([]*pageset.Page{hot, cold})

    require.Len(t, assignments, 2)
    require.Equal(t, evacuate.PageNewToOld, assignments[0].Mode)
    require.Equal(t, pageset.SpaceOld, assignments[0].Dest)
    require.Equal(t, evacuate.ObjectsNewToOld, assignments[1].Mode)
    require.Equal(t, pageset.SpaceOld, assignments[1].Dest)
}

func TestCollectorRunPromotesHotPageAndEvacuatesColdPage(t *testing.T) {
    fake := pageset.NewFake()
    hv := &fakeHV{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}

    hot := fake.AllocateNextPage(pageset.SpaceNew)
    root := hot.AreaStart
    hv.descriptors[root] = &stubDescriptor{}

    survivor := fake.AllocateNextPage(pageset.SpaceNew)
    liveRoot := survivor.AreaStart
    hv.descriptors[liveRoot] = &stubDescriptor{}

    wl := worklist.NewBundle()
    storage := pointerupdate.NewFakeStorage()
    collector := NewCollector(hv, fake, fake, fake, wl, storage, 0.5, 1000, nil)

    static := &roots.Static{Own: []roots.Root{
        {Kind: roots.KindStack, Address: root},
        {Kind: roots.KindStack, Address: liveRoot},
    }}

    hot.SetAllocatedBytes(int64(hot.AreaEnd - hot.AreaStart))
    hot.AddLiveBytes(int64(hot.AreaEnd - hot.AreaStart))
    survivor.SetAllocatedBytes(wordSize)

    require.NoError(t, collector.Run(context.Background(), static, nil))

    require.Equal(t, pageset.SpaceOld, hot.Space)
    require.Equal(t, pageset.SpaceNew, survivor.Space)
    require.Zero(t, survivor.LiveBytes())
    require.Equal(t, objmodel.Address(0), collector.AllocationTop)
}
