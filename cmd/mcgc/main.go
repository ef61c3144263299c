/*
    Copyright (c) 2012, 2013 by Jonathan Ross (jonross@alum.mit.edu)

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

// Command mcgc drives one full mark-compact cycle over a synthetic heap, the
// same "build an in-memory model, then run the algorithm over it and report
// what happened" shape as this collector's ancestor's histogram/query modes,
// applied here since a stop-the-world collector has no file format of its
// own to read -- only a live heap, which this command fabricates.
package main

import (
    "context"
    "flag"
    "log"
    "math/rand"
    "os"
    "runtime"

    "github.com/markcompact/mcgc/collector"
    "github.com/markcompact/mcgc/config"
    "github.com/markcompact/mcgc/internal/gclog"
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
    "github.com/markcompact/mcgc/pointerupdate"
    "github.com/markcompact/mcgc/roots"
)

const objectWordSize = 16

// linkedDescriptor is a fixed-size object holding zero or more strong
// pointers to other objects, the smallest layout that exercises the marking
// closure without needing a real embedding runtime's class metadata.
type linkedDescriptor struct {
    strong []objmodel.Address
}

func (d *linkedDescriptor) Kind() objmodel.Kind { return objmodel.KindPlain }
func (d *linkedDescriptor) Size() uintptr       { return objectWordSize }
func (d *linkedDescriptor) VisitSlots(owner objmodel.Address, v objmodel.SlotVisitor) {
    for i, target := range d.strong {
        v.VisitStrongPointer(owner, objmodel.Slot{Offset: uint32(i) * objectWordSize, Kind: objmodel.SlotStrong}, target)
    }
}

type heapView struct {
    fake        *pageset.Fake
    descriptors map[objmodel.Address]objmodel.Descriptor
}

func (h *heapView) PageAt(addr objmodel.Address) *pageset.Page { return h.fake.PageAt(addr) }
func (h *heapView) DescriptorAt(addr objmodel.Address) objmodel.Descriptor {
    return h.descriptors[addr]
}
func (h *heapView) WordSize() uint32 { return objectWordSize }

// buildSyntheticHeap fills space SpaceOld with numObjects fixed-size
// objects, wires a random subset of strong pointers between them (capped at
// fanOut per object), and returns the addresses of the objects chosen as GC
// roots.
func buildSyntheticHeap(hv *heapView, fake *pageset.Fake, numObjects, fanOut, numRoots int, rng *rand.Rand) []objmodel.Address {
    addrs := make([]objmodel.Address, numObjects)
    for i := 0; i < numObjects; i++ {
        addr, ok := fake.AllocateRaw(pageset.SpaceOld, objectWordSize, objectWordSize)
        if !ok {
            log.Fatalf("synthetic allocation failed at object %d", i)
        }
        addrs[i] = addr
        hv.descriptors[addr] = &linkedDescriptor{}
    }

    for _, addr := range addrs {
        desc := hv.descriptors[addr].(*linkedDescriptor)
        n := rng.Intn(fanOut + 1)
        for j := 0; j < n; j++ {
            desc.strong = append(desc.strong, addrs[rng.Intn(numObjects)])
        }
    }

    var rootAddrs []objmodel.Address
    for i := 0; i < numRoots && i < numObjects; i++ {
        rootAddrs = append(rootAddrs, addrs[rng.Intn(numObjects)])
    }
    return rootAddrs
}

func main() {
    runtime.GOMAXPROCS(runtime.NumCPU())

    numObjects := flag.Int("objects", 4000, "number of synthetic objects to allocate before collecting")
    fanOut := flag.Int("fanout", 2, "max outgoing strong pointers per synthetic object")
    numRoots := flag.Int("roots", 8, "number of synthetic objects registered as GC roots")
    seed := flag.Int64("seed", 1, "random seed for the synthetic object graph")
    workers := flag.Int("workers", 4, "worker pool size for marking, evacuation, and pointer update")
    stress := flag.Bool("stress-compaction", true, "force every page of each compacted space into the evacuation candidate list")
    verbose := flag.Bool("v", false, "enable debug-level collector logging")
    flag.Parse()

    log := gclog.New(gclog.LevelInfo)
    if *verbose {
        log = gclog.New(gclog.LevelDebug)
    }

    fake := pageset.NewFake()
    hv := &heapView{fake: fake, descriptors: map[objmodel.Address]objmodel.Descriptor{}}
    rng := rand.New(rand.NewSource(*seed))

    rootAddrs := buildSyntheticHeap(hv, fake, *numObjects, *fanOut, *numRoots, rng)
    var rootList []roots.Root
    for _, addr := range rootAddrs {
        rootList = append(rootList, roots.Root{Kind: roots.KindStack, Address: addr})
    }
    static := &roots.Static{Own: rootList}

    flags := config.Default()
    flags.StressCompaction = *stress

    storage := pointerupdate.NewFakeStorage()
    c := collector.NewCollector(hv, fake, fake, fake, storage, flags, log)

    pagesBefore := len(fake.Pages(pageset.SpaceOld))
    if err := c.RunFullCycle(context.Background(), static, nil, false, nil, *workers, nil); err != nil {
        log.Warn("collection failed: %v", err)
        os.Exit(1)
    }
    pagesAfter := len(fake.Pages(pageset.SpaceOld))
    freed := len(fake.Freed())

    log.Info("synthetic cycle complete: objects=%d roots=%d workers=%d", *numObjects, len(rootList), *workers)
    log.Info("old space pages: %d before, %d after, %d released", pagesBefore, pagesAfter, freed)
    log.Info("epoch=%d", c.Epoch())
}
