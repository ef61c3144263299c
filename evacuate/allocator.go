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

// Package evacuate implements the parallel copying evacuator (spec section
// 4.6): per-worker EvacuationAllocators, RecordMigratedSlotVisitor-style
// slot classification on the copied destination, and the abort/recovery
// path for allocation failure mid-page.
package evacuate

import "github.com/markcompact/mcgc/pageset"
import "github.com/markcompact/mcgc/objmodel"

// Allocator is one worker's EvacuationAllocator: a thin wrapper over the
// shared pageset.Allocator that additionally supports an artificial byte
// budget, the seam this collector's tests use to force the allocation
// failure spec 4.6's abort path requires -- a real allocator instead fails
// when backing memory is exhausted.
type Allocator struct {
    backing pageset.Allocator
    budget  int64
    used    int64
}

// NewAllocator builds an Allocator with no artificial limit; it fails only
// when the backing allocator itself does.
func NewAllocator(backing pageset.Allocator) *Allocator {
    return &Allocator{backing: backing, budget: -1}
}

// NewBudgetedAllocator caps total bytes this allocator will ever hand out,
// after which AllocateRaw reports failure regardless of the backing
// allocator's own capacity.
func NewBudgetedAllocator(backing pageset.Allocator, budget int64) *Allocator {
    return &Allocator{backing: backing, budget: budget}
}

func (a *Allocator) AllocateRaw(space pageset.Space, size, alignment uintptr) (objmodel.Address, bool) {
    if a.budget >= 0 && a.used+int64(size) > a.budget {
        return objmodel.NullAddress, false
    }
    addr, ok := a.backing.AllocateRaw(space, size, alignment)
    if !ok {
        return objmodel.NullAddress, false
    }
    a.used += int64(size)
    return addr, true
}

// Finalize flushes any thread-local linear-allocation buffer back to the
// owning space (spec 5, "every allocator handed to a worker is finalized on
// join"). The backing pageset.Allocator this collector models has no such
// buffer of its own -- Fake bump-allocates directly under its mutex -- so
// there is nothing to flush; a real paged allocator would return unused
// bytes from its bump pointer here.
func (a *Allocator) Finalize() {}
