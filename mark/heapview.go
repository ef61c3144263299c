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

// Package mark implements the marking driver: grey-to-black transitive
// closure, the ephemeron fixpoint (with its linear fallback), and embedder
// wrapper tracing (spec section 4.2).
package mark

import (
    "github.com/markcompact/mcgc/objmodel"
    "github.com/markcompact/mcgc/pageset"
)

// HeapView is everything the marking driver needs from the external
// page/chunk service and the embedding runtime's object layouts, bundled
// into one seam so Driver doesn't depend on pageset.Service directly.
type HeapView interface {
    PageAt(addr objmodel.Address) *pageset.Page
    DescriptorAt(addr objmodel.Address) objmodel.Descriptor
    WordSize() uint32
}

// ObjectIndex resolves an address to its bitmap/MapWords index on its page,
// or ok=false if the address isn't covered by any known page (e.g. a null
// or foreign pointer the embedder tracer will resolve itself).
func ObjectIndex(hv HeapView, addr objmodel.Address) (page *pageset.Page, index uint32, ok bool) {
    if addr == objmodel.NullAddress {
        return nil, 0, false
    }
    p := hv.PageAt(addr)
    if p == nil {
        return nil, 0, false
    }
    return p, p.ObjectIndex(addr, hv.WordSize()), true
}
