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

// Package worklist is the marker's and clearers' shared MPMC queue
// infrastructure (spec section 4.1). It generalizes this collector's
// ancestor's RefBag -- which batched (from, to) pairs into growable slices
// per producer, then merged them under a WaitGroup -- into a per-worker
// local buffer that batches pushes and only touches the shared global pool
// on Publish, amortizing atomic/lock costs the same way RefBag amortized
// append costs.
package worklist

import "sync"

// localBufferSize is how many items a worker accumulates before it becomes
// worth publishing to the global pool; chosen to keep the global pool's
// lock contention low without holding items so long a barrier stalls.
const localBufferSize = 256

// Global is the shared, lock-protected pool one or more Local buffers
// publish batches into and drain batches from.
type Global[T any] struct {
    mu      sync.Mutex
    batches [][]T
}

func NewGlobal[T any]() *Global[T] {
    return &Global[T]{}
}

// Push appends a single item directly to the global pool, bypassing any
// local buffering. Used by callers that don't own a persistent Local for a
// worklist they touch only occasionally (e.g. recording a weak-reference
// owner from inside another worklist's drain loop).
func (g *Global[T]) Push(item T) {
    g.publish([]T{item})
}

func (g *Global[T]) publish(batch []T) {
    if len(batch) == 0 {
        return
    }
    g.mu.Lock()
    g.batches = append(g.batches, batch)
    g.mu.Unlock()
}

// take removes and returns one batch, or nil if the pool is empty.
func (g *Global[T]) take() []T {
    g.mu.Lock()
    defer g.mu.Unlock()
    n := len(g.batches)
    if n == 0 {
        return nil
    }
    batch := g.batches[n-1]
    g.batches = g.batches[:n-1]
    return batch
}

func (g *Global[T]) IsEmpty() bool {
    g.mu.Lock()
    defer g.mu.Unlock()
    return len(g.batches) == 0
}

// Local is a per-worker view onto a Global worklist: push/pop hit only the
// local buffer until it's exhausted or explicitly published, exactly the
// "amortize atomic costs and preserve per-thread cache locality" contract
// from spec 4.1.
type Local[T any] struct {
    global *Global[T]
    buf    []T
    // onHold stashes an item that must be re-processed after a context
    // switch (spec 4.1: "an on-hold stash, used when a visited object must
    // be re-processed"). Every Local has it; no package in this module
    // calls Hold.
    onHold []T
}

func NewLocal[T any](g *Global[T]) *Local[T] {
    return &Local[T]{global: g, buf: make([]T, 0, localBufferSize)}
}

func (l *Local[T]) Push(item T) {
    l.buf = append(l.buf, item)
    if len(l.buf) >= localBufferSize {
        l.Publish()
    }
}

// Pop returns false if both the local buffer and the global pool are empty
// (the caller should then check sibling workers' locals via the driver's
// barrier logic, not this type -- Local has no visibility into siblings).
func (l *Local[T]) Pop() (T, bool) {
    var zero T
    if n := len(l.buf); n > 0 {
        item := l.buf[n-1]
        l.buf = l.buf[:n-1]
        return item, true
    }
    if batch := l.global.take(); batch != nil {
        l.buf = append(l.buf, batch...)
        return l.Pop()
    }
    return zero, false
}

// Publish flushes the local buffer to the global pool.
func (l *Local[T]) Publish() {
    if len(l.buf) == 0 {
        return
    }
    batch := l.buf
    l.buf = make([]T, 0, localBufferSize)
    l.global.publish(batch)
}

func (l *Local[T]) IsEmptyLocal() bool {
    return len(l.buf) == 0
}

func (l *Local[T]) IsEmptyLocalAndGlobal() bool {
    return l.IsEmptyLocal() && l.global.IsEmpty()
}

// Swap exchanges this local's contents with another local's, used by the
// ephemeron fixpoint to swap `next_ephemerons` into `current_ephemerons`
// (spec 4.2 step 1).
func (l *Local[T]) Swap(other *Local[T]) {
    l.buf, other.buf = other.buf, l.buf
}

// Hold stashes an item for later re-processing without publishing it, and
// Unhold drains the stash back onto the local buffer.
func (l *Local[T]) Hold(item T) {
    l.onHold = append(l.onHold, item)
}

func (l *Local[T]) Unhold() {
    if len(l.onHold) == 0 {
        return
    }
    l.buf = append(l.buf, l.onHold...)
    l.onHold = l.onHold[:0]
}
