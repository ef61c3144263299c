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
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/worklist"
)

// keyColor reports the color of an ephemeron key, used to decide whether its
// value must be greyed.
func (w *Worker) keyColor(addr objmodel.Address) objmodel.Color {
    page, index, ok := ObjectIndex(w.driver.hv, addr)
    if !ok {
        return objmodel.White
    }
    return page.Bitmap.Get(index)
}

// runEphemeronRound drains CurrentEphemerons once, per spec 4.2 step 2:
// "if key is Black/Grey then Grey the value; else if value is White,
// re-enqueue to next_ephemerons." Returns whether anything was marked.
func (w *Worker) runEphemeronRound() bool {
    markedAny := false
    for {
        e, ok := w.locals.CurrentEphemerons.Pop()
        if !ok {
            break
        }
        color := w.keyColor(e.Key)
        if color == objmodel.Black || color == objmodel.Grey {
            page, index, ok := ObjectIndex(w.driver.hv, e.Value)
            if ok && page.Bitmap.TransitionToGrey(index) {
                w.locals.Marking.Push(e.Value)
                markedAny = true
            }
        } else if w.keyColor(e.Value) == objmodel.White {
            w.locals.NextEphemerons.Push(e)
        }
    }
    return markedAny
}

// EphemeronFixpoint runs the fixpoint iteration described in spec 4.2:
// swap next into current, drain current, drain the main worklist (which
// appends newly discovered ephemerons to discovered), drain discovered, and
// repeat while anything was marked, bounded by maxIterations. On exceeding
// the bound it falls back to the linear algorithm.
func (w *Worker) EphemeronFixpoint(maxIterations int) {
    iterations := 0
    for {
        iterations++
        if maxIterations > 0 && iterations > maxIterations {
            w.driver.log.Warn("ephemeron fixpoint exceeded %d iterations, falling back to linear algorithm", maxIterations)
            w.linearEphemeronFallback()
            return
        }

        w.locals.CurrentEphemerons.Swap(w.locals.NextEphemerons)
        markedInRound := w.runEphemeronRound()

        drained := w.ProcessMarkingWorklist(0)
        _ = drained // main worklist fully drains; discovered ephemerons accumulate as a side effect

        for {
            e, ok := w.locals.DiscoveredEphemerons.Pop()
            if !ok {
                break
            }
            w.locals.CurrentEphemerons.Push(e)
        }
        markedInDiscovered := w.runEphemeronRound()

        if !markedInRound && !markedInDiscovered {
            return
        }
    }
}

// linearEphemeronFallback implements spec 4.2's overflow path: build a
// multimap key -> values from every still-pending ephemeron, then visit
// pending ephemerons once, eagerly marking every value whose key is
// (already, or now) reachable. This trades the fixpoint's incrementality for
// a bound on total work.
func (w *Worker) linearEphemeronFallback() {
    pending := make(map[objmodel.Address][]objmodel.Address)
    drain := func(l *worklistLocalEphemerons) {
        for {
            e, ok := l.pop()
            if !ok {
                break
            }
            pending[e.Key] = append(pending[e.Key], e.Value)
        }
    }
    drain(&worklistLocalEphemerons{w.locals.CurrentEphemerons})
    drain(&worklistLocalEphemerons{w.locals.NextEphemerons})
    drain(&worklistLocalEphemerons{w.locals.DiscoveredEphemerons})

    for key, values := range pending {
        if w.keyColor(key) != objmodel.Black && w.keyColor(key) != objmodel.Grey {
            continue
        }
        for _, v := range values {
            page, index, ok := ObjectIndex(w.driver.hv, v)
            if ok && page.Bitmap.TransitionToGrey(index) {
                w.locals.Marking.Push(v)
            }
        }
    }
    w.ProcessMarkingWorklist(0)
}

// worklistLocalEphemerons is a tiny adapter so linearEphemeronFallback can
// drain any of the three ephemeron locals with one loop body.
type worklistLocalEphemerons struct {
    l *worklist.Local[worklist.Ephemeron]
}

func (a *worklistLocalEphemerons) pop() (worklist.Ephemeron, bool) { return a.l.Pop() }
