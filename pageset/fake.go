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

package pageset

import (
    "sync"

    "github.com/markcompact/mcgc/objmodel"
)

// Fake is an in-memory Service + Allocator + Sweeper used by this
// collector's own test suite. It keeps pages sharded by space, the same
// "index by the thing you'll look up most" idea as this collector's
// ancestor's ObjectMap, just without the 36-bit heap-id sharding that model
// needed for a multi-gigabyte hprof file.
type Fake struct {
    mu      sync.Mutex
    pages   map[Space][]*Page
    nextID  uint64
    nextTop map[Space]objmodel.Address
    swept   map[*Page]bool
    freed   []*Page
}

func NewFake() *Fake {
    return &Fake{
        pages:   make(map[Space][]*Page),
        nextTop: make(map[Space]objmodel.Address),
        swept:   make(map[*Page]bool),
    }
}

// InstallPage installs a caller-constructed page directly, for tests that
// want to control layout precisely.
func (f *Fake) InstallPage(space Space, p *Page) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.pages[space] = append(f.pages[space], p)
}

// PageAt scans every space for the page containing addr, the lookup
// mark.HeapView and evacuate.Migrator need and which a real chunk table
// would answer in O(1) via an address-to-chunk index.
func (f *Fake) PageAt(addr objmodel.Address) *Page {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, pages := range f.pages {
        for _, p := range pages {
            if p.Contains(addr) {
                return p
            }
        }
    }
    return nil
}

func (f *Fake) Pages(space Space) []*Page {
    f.mu.Lock()
    defer f.mu.Unlock()
    out := make([]*Page, len(f.pages[space]))
    copy(out, f.pages[space])
    return out
}

const fakePageBytes = 1 << 16 // 64 KiB synthetic pages, small enough for table tests

// Page n (its ID) covers [n*fakePageBytes, (n+1)*fakePageBytes), so pages of
// different spaces never overlap and no page contains objmodel.NullAddress.

func (f *Fake) AllocateNextPage(space Space) *Page {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.nextID++
    start := objmodel.Address(f.nextID) * fakePageBytes
    end := start + fakePageBytes
    f.nextTop[space] = end
    p := NewPage(f.nextID, space, start, end, fakePageBytes/16)
    f.pages[space] = append(f.pages[space], p)
    return p
}

func (f *Fake) ReleasePage(p *Page) {
    f.mu.Lock()
    defer f.mu.Unlock()
    list := f.pages[p.Space]
    for i, q := range list {
        if q == p {
            f.pages[p.Space] = append(list[:i], list[i+1:]...)
            break
        }
    }
    f.freed = append(f.freed, p)
}

func (f *Fake) Freed() []*Page {
    f.mu.Lock()
    defer f.mu.Unlock()
    out := make([]*Page, len(f.freed))
    copy(out, f.freed)
    return out
}

// AllocateRaw bump-allocates from the tail of the target page's area,
// simulating the linear allocation buffer described in the external
// allocator contract.
func (f *Fake) AllocateRaw(space Space, size uintptr, alignment uintptr) (objmodel.Address, bool) {
    f.mu.Lock()
    defer f.mu.Unlock()
    pages := f.pages[space]
    for i := len(pages) - 1; i >= 0; i-- {
        p := pages[i]
        used := objmodel.Address(p.AllocatedBytes())
        addr := p.AreaStart + used
        if addr+objmodel.Address(size) > p.AreaEnd {
            continue
        }
        p.SetAllocatedBytes(int64(used) + int64(size))
        return addr, true
    }
    // No room on an existing page; make one and retry once.
    p := f.allocatePageLocked(space)
    addr := p.AreaStart
    p.SetAllocatedBytes(int64(size))
    return addr, true
}

func (f *Fake) allocatePageLocked(space Space) *Page {
    f.nextID++
    start := objmodel.Address(f.nextID) * fakePageBytes
    end := start + fakePageBytes
    f.nextTop[space] = end
    p := NewPage(f.nextID, space, start, end, fakePageBytes/16)
    f.pages[space] = append(f.pages[space], p)
    return p
}

// Sweeper interface: the fake completes synchronously, since there is no
// real background sweeper thread in tests.
func (f *Fake) AddPage(space Space, p *Page, mode int) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.swept[p] = false
}

func (f *Fake) StartSweeping() {
    f.mu.Lock()
    defer f.mu.Unlock()
    for p := range f.swept {
        f.swept[p] = true
    }
}

func (f *Fake) EnsureCompleted() {
    f.StartSweeping()
}

func (f *Fake) EnsurePageIsSwept(p *Page) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.swept[p] = true
}

func (f *Fake) SweepingInProgress() bool {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, done := range f.swept {
        if !done {
            return true
        }
    }
    return false
}
