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

// Package objmodel is the shared vocabulary the rest of the collector talks:
// heap addresses, the tri-color marking states, the map-word / forwarding-tag
// union, and the visitor capability set that lets the marker and the evacuator
// walk an object's slots without knowing its concrete layout.
package objmodel

// Address identifies a location in the managed heap: either the start of an
// object, or a slot inside one. The paged memory allocator that owns the
// backing bytes is an external collaborator; the collector only ever
// compares, offsets, and dereferences addresses through that collaborator's
// pageset.Service.
type Address uint64

const NullAddress Address = 0

// Color is the two-bit mark state described in the data model: 00 White
// (unmarked), 10 Grey (discovered, body unvisited), 11 Black (fully
// processed). 01 is the impossible pattern and exists here only so the
// bitmap package has a name for the corruption it must never observe.
type Color uint8

const (
    White    Color = 0 // 00
    corrupt  Color = 1 // 01 -- never valid, reserved so it has a name
    Grey     Color = 2 // 10
    Black    Color = 3 // 11
)

func (c Color) String() string {
    switch c {
    case White:
        return "White"
    case Grey:
        return "Grey"
    case Black:
        return "Black"
    default:
        return "Corrupt(01)"
    }
}

// IsCorrupt reports the impossible 01 pattern, i.e. invariant 5 in the
// specification's data model has been violated.
func (c Color) IsCorrupt() bool { return c == corrupt }

// SlotKind is the semantic kind of a single interior pointer, mirroring the
// set of slot kinds a map's visitor descriptor enumerates.
type SlotKind int

const (
    SlotStrong SlotKind = iota
    SlotWeak
    SlotCodeTarget
    SlotEmbeddedPointer
    SlotMapPointer
    SlotEphemeronKey
    SlotEphemeronValue
)

// Kind classifies an object for the purposes of the marking visitor
// descriptor dispatch (spec 4.2: "apply the map's visitor descriptor, which
// enumerates slots of each semantic kind").
type Kind int

const (
    KindFiller Kind = iota // a left-trim pseudo-object; never blackened, never visited
    KindPlain               // an ordinary object with only strong/weak slots
    KindEphemeronHashTable  // holds (key, value) pairs subject to the ephemeron rule
    KindTransitionArray
    KindDescriptorArray
    KindCode
    KindJSWeakRef
    KindWeakCell
    KindString
    KindExternalString
)

// Slot is one interior pointer location, tagged with what kind of reference
// it holds. Offset is relative to the owning object's Address.
type Slot struct {
    Offset uint32
    Kind   SlotKind
}

// SlotVisitor is the capability set an object's layout hands the marking
// and evacuation drivers: one callback per semantic slot kind, per the
// design notes' "capability set" recommendation over a virtual base class.
type SlotVisitor interface {
    VisitStrongPointer(owner Address, slot Slot, target Address)
    VisitWeakPointer(owner Address, slot Slot, target Address)
    VisitCodeTarget(owner Address, slot Slot, target Address)
    VisitEmbeddedPointer(owner Address, slot Slot, target Address)
    VisitMapPointer(owner Address, slot Slot, target Address)
    VisitEphemeron(owner Address, key, value Address)
}

// Descriptor is the read-only shape of an object: how big it is and how to
// walk its slots. Concrete descriptors are supplied by the embedding
// runtime (the deserializer and the allocator own real object layouts); the
// collector only consumes this interface.
type Descriptor interface {
    Kind() Kind
    Size() uintptr
    VisitSlots(owner Address, v SlotVisitor)
}

// MapWord is the header word overload described in the design notes: either
// a map pointer (the object's live layout) or, during evacuation, a
// forwarding address. The tag bit distinguishes the two at every read.
type MapWord struct {
    forwarding bool
    payload    Address
}

func MapPointer(mapAddr Address) MapWord {
    return MapWord{forwarding: false, payload: mapAddr}
}

func Forwarding(dest Address) MapWord {
    return MapWord{forwarding: true, payload: dest}
}

func (w MapWord) IsForwardingAddress() bool { return w.forwarding }

// ForwardedTo returns the destination address and true if this map word is a
// forwarding tag; otherwise it returns (0, false).
func (w MapWord) ForwardedTo() (Address, bool) {
    if !w.forwarding {
        return NullAddress, false
    }
    return w.payload, true
}

// MapAddress returns the map pointer and true if this is not a forwarding
// word; otherwise (0, false).
func (w MapWord) MapAddress() (Address, bool) {
    if w.forwarding {
        return NullAddress, false
    }
    return w.payload, true
}
