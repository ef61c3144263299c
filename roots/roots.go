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

// Package roots enumerates the strong root set the marking driver seeds its
// closure from. Adapted from this collector's ancestor's GCRoots type, which
// held a flat list of native root ids and a "live" bit per object computed by
// walking out-edges from each root; here the walk itself belongs to package
// mark, and this package is left with what its name says: the roots.
package roots

import "github.com/markcompact/mcgc/objmodel"

// Kind classifies where a root came from, mirroring spec 4.2's root list:
// global handles, thread stacks, per-isolate well-known objects, the
// top-of-stack optimized frame (plus its deopt literals), and -- in shared
// GC mode -- each client isolate's top frame.
type Kind int

const (
    KindGlobalHandle Kind = iota
    KindStack
    KindWellKnown
    KindOptimizedFrame
    KindClientTopFrame
)

// Root is one strong root the collector must trace.
type Root struct {
    Kind    Kind
    Address objmodel.Address
    // DeoptLiterals holds a running optimized frame's deoptimization
    // literals, populated only when Kind == KindOptimizedFrame (spec 4.4
    // step 3: "run a custom body visitor over running code on the top
    // optimized frame so its deoptimization literals are retained").
    DeoptLiterals []objmodel.Address
    // Rewrite, if set, lets the pointer-update phase store a forwarded
    // address back into the slot this root came from (spec 4.7 step 1:
    // "for each slot whose referent's map word is a forwarding tag, store
    // the forwarded address"). Root iterators over a fixed snapshot (like
    // Static) have nowhere to write back and leave this nil.
    Rewrite func(objmodel.Address)
}

// SkipSet names roots (by Kind) the current cycle should not enumerate, the
// "configurable skip-set" from spec 4.2.
type SkipSet map[Kind]bool

func (s SkipSet) Skips(k Kind) bool {
    return s != nil && s[k]
}

// Visitor receives each enumerated root. It mirrors the design notes'
// {VisitRootPointers} capability rather than a general SlotVisitor, since
// roots are not slots inside an object.
type Visitor interface {
    VisitRootPointer(r Root)
}

// VisitorFunc adapts a plain function to Visitor.
type VisitorFunc func(Root)

func (f VisitorFunc) VisitRootPointer(r Root) { f(r) }

// Iterator is the external collaborator contract from spec section 6:
// iterate_roots / iterate_roots_including_clients.
type Iterator interface {
    IterateRoots(v Visitor, skip SkipSet)
    IterateRootsIncludingClients(v Visitor, skip SkipSet)
}

// Static is a fixed-list Iterator used by tests and by embedding runtimes
// that have already resolved their root set into a flat slice before
// calling into the collector.
type Static struct {
    Own     []Root
    Clients []Root
}

func (s *Static) IterateRoots(v Visitor, skip SkipSet) {
    for _, r := range s.Own {
        if !skip.Skips(r.Kind) {
            v.VisitRootPointer(r)
        }
    }
}

func (s *Static) IterateRootsIncludingClients(v Visitor, skip SkipSet) {
    s.IterateRoots(v, skip)
    for _, r := range s.Clients {
        if !skip.Skips(r.Kind) {
            v.VisitRootPointer(r)
        }
    }
}
