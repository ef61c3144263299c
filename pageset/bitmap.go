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

package pageset

import (
    "sync/atomic"

    "github.com/markcompact/mcgc/internal/fatal"
    "github.com/markcompact/mcgc/objmodel"
)

// Bitmap is a no-frills, no-bounds-checked bit store, the same shape as this
// collector's ancestor's BitSet, except each object occupies a pair of
// adjacent bits so the tri-color state fits directly in the mark bitmap
// (spec data model, "Mark-bit pair").
//
// Bits are addressed by object index (the tagged-word offset of the object
// within its page, divided by the minimum object granularity), not by raw
// byte offset.
type Bitmap struct {
    words []uint64
}

// NewBitmap allocates a bitmap wide enough for numObjects mark-bit pairs.
func NewBitmap(numObjects uint32) *Bitmap {
    // 2 bits per object, 64 bits per word.
    words := (uint64(numObjects)*2 + 63) / 64
    if words == 0 {
        words = 1
    }
    return &Bitmap{words: make([]uint64, words)}
}

func (b *Bitmap) wordAndShift(index uint32) (int, uint) {
    bitPos := uint64(index) * 2
    return int(bitPos / 64), uint(bitPos % 64)
}

// Get returns the color at the given object index.
func (b *Bitmap) Get(index uint32) objmodel.Color {
    w, s := b.wordAndShift(index)
    bits := (b.words[w] >> s) & 0x3
    return objmodel.Color(bits)
}

// set writes a color without any transition validation; used internally and
// by Clear.
func (b *Bitmap) set(index uint32, c objmodel.Color) {
    w, s := b.wordAndShift(index)
    b.words[w] &^= 0x3 << s
    b.words[w] |= uint64(c) << s
}

// MarkWhite clears an object's mark bits back to White, e.g. when a page is
// recycled for reuse after sweeping.
func (b *Bitmap) MarkWhite(index uint32) {
    b.set(index, objmodel.White)
}

// TransitionToGrey moves a White object to Grey using a relaxed
// compare-and-swap, matching the concurrency model's "relaxed atomics for
// mark-bit CAS (White->Grey)". Returns true if this call performed the
// transition (i.e. the object was White and is now the caller's to push to
// a worklist); false if another marker already grabbed it.
func (b *Bitmap) TransitionToGrey(index uint32) bool {
    w, s := b.wordAndShift(index)
    for {
        old := atomic.LoadUint64(&b.words[w])
        cur := objmodel.Color((old >> s) & 0x3)
        if cur.IsCorrupt() {
            fatal.Invariant("bitmap word %d shift %d holds the impossible 01 pattern", w, s)
        }
        if cur != objmodel.White {
            return false
        }
        next := (old &^ (0x3 << s)) | (uint64(objmodel.Grey) << s)
        if atomic.CompareAndSwapUint64(&b.words[w], old, next) {
            return true
        }
    }
}

// TransitionToBlack moves a Grey object to Black; the marking driver calls
// this once an object's body has been fully visited.
func (b *Bitmap) TransitionToBlack(index uint32) {
    w, s := b.wordAndShift(index)
    for {
        old := atomic.LoadUint64(&b.words[w])
        next := (old &^ (0x3 << s)) | (uint64(objmodel.Black) << s)
        if atomic.CompareAndSwapUint64(&b.words[w], old, next) {
            return
        }
    }
}

// CheckNoCorruption walks every pair and fires fatal.Invariant if the
// impossible 01 pattern appears anywhere (invariant 5, 3.5 in the data
// model). Intended to run under a debug build's VerifyMarking step.
func (b *Bitmap) CheckNoCorruption(numObjects uint32) {
    for i := uint32(0); i < numObjects; i++ {
        if b.Get(i).IsCorrupt() {
            fatal.Invariant("bitmap entry %d holds the impossible 01 pattern", i)
        }
    }
}

// Iterate calls f for every object index with the given color, ascending.
func (b *Bitmap) Iterate(numObjects uint32, color objmodel.Color, f func(index uint32)) {
    for i := uint32(0); i < numObjects; i++ {
        if b.Get(i) == color {
            f(i)
        }
    }
}

// CountBlack returns how many entries hold Black, used to cross-check a
// page's live-byte counter against invariant 4 in tests.
func (b *Bitmap) CountBlack(numObjects uint32) int {
    n := 0
    b.Iterate(numObjects, objmodel.Black, func(uint32) { n++ })
    return n
}
