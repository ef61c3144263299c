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

package worklist

import "github.com/markcompact/mcgc/objmodel"

// Ephemeron is a (key, value) pair pending the fixpoint rule.
type Ephemeron struct {
    Key   objmodel.Address
    Value objmodel.Address
}

// Bundle is the full set of worklists the marking driver and the clearing
// pipeline share, matching the list enumerated in the data model: main
// marking; wrapper (embedder) objects; current/discovered/next ephemerons;
// weak references; weak cells; JS weak refs; transition arrays; ephemeron
// hash tables; code/baseline-flushing candidates; flushed JS functions.
//
// Global pools are created eagerly; Local views are created per worker by
// NewLocals.
type Bundle struct {
    Marking             *Global[objmodel.Address]
    Wrapper              *Global[objmodel.Address]
    CurrentEphemerons     *Global[Ephemeron]
    DiscoveredEphemerons  *Global[Ephemeron]
    NextEphemerons        *Global[Ephemeron]
    WeakReferences        *Global[objmodel.Address]
    WeakCells             *Global[objmodel.Address]
    JSWeakRefs            *Global[objmodel.Address]
    TransitionArrays      *Global[objmodel.Address]
    EphemeronHashTables   *Global[objmodel.Address]
    FlushingCandidates    *Global[objmodel.Address]
    FlushedJSFunctions    *Global[objmodel.Address]
}

func NewBundle() *Bundle {
    return &Bundle{
        Marking:              NewGlobal[objmodel.Address](),
        Wrapper:              NewGlobal[objmodel.Address](),
        CurrentEphemerons:    NewGlobal[Ephemeron](),
        DiscoveredEphemerons: NewGlobal[Ephemeron](),
        NextEphemerons:       NewGlobal[Ephemeron](),
        WeakReferences:       NewGlobal[objmodel.Address](),
        WeakCells:            NewGlobal[objmodel.Address](),
        JSWeakRefs:           NewGlobal[objmodel.Address](),
        TransitionArrays:     NewGlobal[objmodel.Address](),
        EphemeronHashTables:  NewGlobal[objmodel.Address](),
        FlushingCandidates:   NewGlobal[objmodel.Address](),
        FlushedJSFunctions:   NewGlobal[objmodel.Address](),
    }
}

// Locals is one worker's per-worklist local buffers.
type Locals struct {
    Marking             *Local[objmodel.Address]
    Wrapper             *Local[objmodel.Address]
    CurrentEphemerons    *Local[Ephemeron]
    DiscoveredEphemerons *Local[Ephemeron]
    NextEphemerons       *Local[Ephemeron]
}

func (b *Bundle) NewLocals() *Locals {
    return &Locals{
        Marking:              NewLocal(b.Marking),
        Wrapper:              NewLocal(b.Wrapper),
        CurrentEphemerons:    NewLocal(b.CurrentEphemerons),
        DiscoveredEphemerons: NewLocal(b.DiscoveredEphemerons),
        NextEphemerons:       NewLocal(b.NextEphemerons),
    }
}

// PublishAll flushes every local buffer to its global pool -- called at
// every pipeline barrier per spec 4.1.
func (l *Locals) PublishAll() {
    l.Marking.Publish()
    l.Wrapper.Publish()
    l.CurrentEphemerons.Publish()
    l.DiscoveredEphemerons.Publish()
    l.NextEphemerons.Publish()
}

func (l *Locals) IsEmptyLocalAndGlobal() bool {
    return l.Marking.IsEmptyLocalAndGlobal() &&
        l.Wrapper.IsEmptyLocalAndGlobal() &&
        l.CurrentEphemerons.IsEmptyLocalAndGlobal() &&
        l.DiscoveredEphemerons.IsEmptyLocalAndGlobal() &&
        l.NextEphemerons.IsEmptyLocalAndGlobal()
}
