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

// Package remset implements the per-page remembered sets: slot sets and
// typed slot sets keyed by remembered-set class. Adapted from this
// collector's ancestor's compact adjacency-array graph representation
// (graph.go's edgeSet), which stores many nodes' edge lists as one merged
// slice indexed by per-node offsets -- the same trick works for "many
// objects' recorded slots on one page, one slice per page."
package remset

import (
    "sync"

    "github.com/markcompact/mcgc/objmodel"
)

// Class is the source->target classification of a remembered slot (data
// model, "Remembered sets").
type Class int

const (
    OldToNew Class = iota
    OldToOld
    OldToCode
    OldToShared
)

func (c Class) String() string {
    switch c {
    case OldToNew:
        return "OLD_TO_NEW"
    case OldToOld:
        return "OLD_TO_OLD"
    case OldToCode:
        return "OLD_TO_CODE"
    case OldToShared:
        return "OLD_TO_SHARED"
    default:
        return "UNKNOWN"
    }
}

// SlotSet stores untyped tagged slots by byte offset within a page, appended
// as they're recorded. Unlike the ancestor's edgeSet (built once from a
// complete edge list) this set is mutated incrementally by concurrent
// markers, so it is a plain growable slice guarded by the caller's per-chunk
// mutex -- workers write to disjoint pages' sets without contention.
type SlotSet struct {
    offsets []uint32
}

func NewSlotSet() *SlotSet {
    return &SlotSet{offsets: make([]uint32, 0, 64)}
}

// Insert records a slot offset. Non-atomic: callers on the marking path
// write only to their own chunk's sets (disjoint pages per worker); callers
// during pointer update hold the chunk mutex.
func (s *SlotSet) Insert(offset uint32) {
    s.offsets = append(s.offsets, offset)
}

// Len reports how many slots are recorded, including duplicates -- a slot
// may be recorded more than once and pointer update tolerates re-visiting it.
func (s *SlotSet) Len() int { return len(s.offsets) }

// Offsets exposes the recorded offsets for iteration by the pointer-update
// phase. The returned slice must not be retained past the caller's use of
// the chunk mutex.
func (s *SlotSet) Offsets() []uint32 { return s.offsets }

// RemoveRange drops every recorded offset in [lo, hi). An evacuation abort
// uses it on the destination pages it copied objects to; nothing is
// re-recorded afterwards.
func (s *SlotSet) RemoveRange(lo, hi uint32) {
    kept := s.offsets[:0]
    for _, off := range s.offsets {
        if off < lo || off >= hi {
            kept = append(kept, off)
        }
    }
    s.offsets = kept
}

// Clear empties the set, e.g. after a chunk has been fully released.
func (s *SlotSet) Clear() { s.offsets = s.offsets[:0] }

// TypedSlotKind distinguishes the code-relocation slot variants a typed
// slot set can hold.
type TypedSlotKind int

const (
    TypedCodeEntry TypedSlotKind = iota
    TypedEmbeddedObjectFull
    TypedEmbeddedObjectCompressed
    TypedEmbeddedObjectData
    TypedConstPoolEntry
    TypedConstPoolCodeEntry
)

// TypedSlot is one entry in a typed slot set: a (kind, offset) pair covering
// embedded objects, code targets, and constant-pool entries in a code page.
type TypedSlot struct {
    Kind   TypedSlotKind
    Offset uint32
}

// TypedSlotSet is the code-page analogue of SlotSet.
type TypedSlotSet struct {
    slots []TypedSlot
}

func NewTypedSlotSet() *TypedSlotSet {
    return &TypedSlotSet{slots: make([]TypedSlot, 0, 16)}
}

func (t *TypedSlotSet) Insert(kind TypedSlotKind, offset uint32) {
    t.slots = append(t.slots, TypedSlot{Kind: kind, Offset: offset})
}

func (t *TypedSlotSet) Slots() []TypedSlot { return t.slots }

// RemoveRange drops every recorded slot whose offset falls in [lo, hi), the
// typed-set analogue of SlotSet.RemoveRange used by the same evacuation
// abort path.
func (t *TypedSlotSet) RemoveRange(lo, hi uint32) {
    kept := t.slots[:0]
    for _, s := range t.slots {
        if s.Offset < lo || s.Offset >= hi {
            kept = append(kept, s)
        }
    }
    t.slots = kept
}

func (t *TypedSlotSet) Clear() { t.slots = t.slots[:0] }

// Sets bundles the four remembered-set classes plus the code-page typed
// slot set for one page. A zero value is ready to use; sets are created
// lazily so pages that never accumulate cross-boundary slots pay nothing.
type Sets struct {
    mu       sync.Mutex
    untyped  map[Class]*SlotSet
    typed    map[Class]*TypedSlotSet
}

// SlotSetFor returns (creating if needed) the untyped slot set for a class.
// Callers that only read during pointer update should hold Lock/Unlock
// around the whole per-chunk walk, per the concurrency model.
func (s *Sets) SlotSetFor(c Class) *SlotSet {
    if s.untyped == nil {
        s.untyped = make(map[Class]*SlotSet)
    }
    if s.untyped[c] == nil {
        s.untyped[c] = NewSlotSet()
    }
    return s.untyped[c]
}

// TypedSlotSetFor is the typed-slot-set analogue, used for OldToCode.
func (s *Sets) TypedSlotSetFor(c Class) *TypedSlotSet {
    if s.typed == nil {
        s.typed = make(map[Class]*TypedSlotSet)
    }
    if s.typed[c] == nil {
        s.typed[c] = NewTypedSlotSet()
    }
    return s.typed[c]
}

// HasAny reports whether any of OLD_TO_NEW, OLD_TO_OLD, OLD_TO_CODE,
// OLD_TO_SHARED is non-empty, gating whether pointer update needs to touch
// this page's chunk mutex at all (spec 4.7 step 2).
func (s *Sets) HasAny() bool {
    for _, c := range []Class{OldToNew, OldToOld, OldToCode, OldToShared} {
        if s.untyped != nil && s.untyped[c] != nil && s.untyped[c].Len() > 0 {
            return true
        }
        if s.typed != nil && s.typed[c] != nil && len(s.typed[c].Slots()) > 0 {
            return true
        }
    }
    return false
}

func (s *Sets) Lock()   { s.mu.Lock() }
func (s *Sets) Unlock() { s.mu.Unlock() }

// EphemeronKey identifies one recorded (table, index) pair in the dedicated
// ephemeron remembered set used when an ephemeron's key lives in the
// nursery (spec 4.6, "Slot recording").
type EphemeronKey struct {
    Table objmodel.Address
    Index uint32
}

// EphemeronRememberedSet maps a hash-table object + slot index to nothing
// (it's a set), letting the pointer-update phase re-key entries when the
// owning table itself gets forwarded (spec 4.7 step 6).
type EphemeronRememberedSet struct {
    mu      sync.Mutex
    entries map[EphemeronKey]struct{}
}

func NewEphemeronRememberedSet() *EphemeronRememberedSet {
    return &EphemeronRememberedSet{entries: make(map[EphemeronKey]struct{})}
}

func (e *EphemeronRememberedSet) Insert(table objmodel.Address, index uint32) {
    e.mu.Lock()
    defer e.mu.Unlock()
    e.entries[EphemeronKey{Table: table, Index: index}] = struct{}{}
}

// Rekey moves every entry recorded against `from` to `to`, used when `from`
// has been forwarded to `to` during evacuation.
func (e *EphemeronRememberedSet) Rekey(from, to objmodel.Address) {
    e.mu.Lock()
    defer e.mu.Unlock()
    for k := range e.entries {
        if k.Table == from {
            delete(e.entries, k)
            e.entries[EphemeronKey{Table: to, Index: k.Index}] = struct{}{}
        }
    }
}

// Drop removes one entry, used when the ephemeron's key has left the
// nursery (spec 4.7 step 6, "indices whose key left the nursery are
// dropped").
func (e *EphemeronRememberedSet) Drop(table objmodel.Address, index uint32) {
    e.mu.Lock()
    defer e.mu.Unlock()
    delete(e.entries, EphemeronKey{Table: table, Index: index})
}

// Entries returns a snapshot of the recorded (table, index) pairs.
func (e *EphemeronRememberedSet) Entries() []EphemeronKey {
    e.mu.Lock()
    defer e.mu.Unlock()
    out := make([]EphemeronKey, 0, len(e.entries))
    for k := range e.entries {
        out = append(out, k)
    }
    return out
}
