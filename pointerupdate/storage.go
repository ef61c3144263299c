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

// Package pointerupdate rewrites every slot that could reference a moved
// object once copying completes (spec section 4.7): roots, per-chunk
// remembered sets, the ephemeron remembered set, and (conceptually) the
// external string table.
package pointerupdate

import (
    "sync"

    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
)

// SlotStorage is the raw-memory collaborator pointer update needs to read
// and rewrite the address stored at a (page, byte offset) slot. The design
// notes re-architect the source's raw pointers into "chunks addressed by
// index" with slot sets yielding (chunk, offset) pairs; SlotStorage is the
// other half of that model, the thing that actually holds the bytes at an
// offset. Real hosts back this with the page's object bytes; this
// collector's tests back it with FakeStorage.
type SlotStorage interface {
    LoadSlot(page *pageset.Page, offset uint32) objmodel.Address
    StoreSlot(page *pageset.Page, offset uint32, addr objmodel.Address)
}

// FakeStorage is an in-memory SlotStorage keyed by (page, offset), the same
// shape as pageset.Fake: a map standing in for real backing memory.
type FakeStorage struct {
    mu   sync.Mutex
    data map[fakeStorageKey]objmodel.Address
}

type fakeStorageKey struct {
    page   *pageset.Page
    offset uint32
}

func NewFakeStorage() *FakeStorage {
    return &FakeStorage{data: make(map[fakeStorageKey]objmodel.Address)}
}

func (f *FakeStorage) LoadSlot(page *pageset.Page, offset uint32) objmodel.Address {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.data[fakeStorageKey{page, offset}]
}

func (f *FakeStorage) StoreSlot(page *pageset.Page, offset uint32, addr objmodel.Address) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.data[fakeStorageKey{page, offset}] = addr
}
