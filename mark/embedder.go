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

package mark

import (
    "time"

    "github.com/markcompact/mcgc/objmodel"
)

// Tracer is the embedder heap tracer collaborator from spec section 6:
// objects wrapping foreign references are routed to the wrapper worklist,
// and the driver hands its queue to the embedder each round, reading back
// any new interior roots it discovered.
type Tracer interface {
    PrepareForTrace()
    TracePrologue()
    EnterFinalPause()
    // Trace hands the wrapper queue to the embedder and returns any new
    // roots the embedder discovered while tracing, honoring deadline.
    Trace(deadline time.Time, wrappers []objmodel.Address) (newRoots []objmodel.Address)
    IsRemoteTracingDone() bool
}

// NoopTracer is used when no embedder is attached; IsRemoteTracingDone is
// immediately true so the driver never blocks on it.
type NoopTracer struct{}

func (NoopTracer) PrepareForTrace()                                          {}
func (NoopTracer) TracePrologue()                                            {}
func (NoopTracer) EnterFinalPause()                                          {}
func (NoopTracer) Trace(time.Time, []objmodel.Address) []objmodel.Address    { return nil }
func (NoopTracer) IsRemoteTracingDone() bool                                 { return true }

// RunEmbedderTracing hands the wrapper worklist to tracer repeatedly,
// greying any new roots it reports, until the embedder signals it has no
// more remote work (spec 4.2, "Marking is not complete until the embedder
// reports IsRemoteTracingDone()").
func (w *Worker) RunEmbedderTracing(tracer Tracer, deadline time.Time) {
    if tracer == nil {
        tracer = NoopTracer{}
    }
    for {
        var wrappers []objmodel.Address
        for {
            addr, ok := w.locals.Wrapper.Pop()
            if !ok {
                break
            }
            wrappers = append(wrappers, addr)
        }

        newRoots := tracer.Trace(deadline, wrappers)
        for _, r := range newRoots {
            w.MarkGreyIfWhite(r)
        }
        w.ProcessMarkingWorklist(0)

        if tracer.IsRemoteTracingDone() && w.locals.Wrapper.IsEmptyLocalAndGlobal() {
            return
        }
    }
}
