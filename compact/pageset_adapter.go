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

package compact

import "github.com/markcompact/mcgc/pageset"

// PageAdapter wraps a *pageset.Page so it satisfies the Page interface
// Select needs, keeping this package's generic sort/scoring logic free of a
// pageset import beyond this one seam.
type PageAdapter struct {
    *pageset.Page
    // LinearAllocationArea marks the page currently backing bump allocation
    // for its space; pageset.Page carries no such bit itself since only the
    // allocator knows which page is "current".
    LinearAllocationArea bool
}

func (a PageAdapter) AllocatedBytesForCompaction() int64 { return a.Page.AllocatedBytes() }
func (a PageAdapter) AreaBytesForCompaction() int64 {
    return int64(a.Page.AreaEnd - a.Page.AreaStart)
}
func (a PageAdapter) Pinned() bool               { return a.Page.HasFlag(pageset.FlagPinned) }
func (a PageAdapter) NeverEvacuate() bool        { return a.Page.HasFlag(pageset.FlagNeverEvacuate) }
func (a PageAdapter) IsLinearAllocationArea() bool { return a.LinearAllocationArea }

// AdaptPages wraps a page slice for Select, marking the given page (if any)
// as the current linear allocation area.
func AdaptPages(pages []*pageset.Page, linearAllocationArea *pageset.Page) []PageAdapter {
    out := make([]PageAdapter, len(pages))
    for i, p := range pages {
        out[i] = PageAdapter{Page: p, LinearAllocationArea: p == linearAllocationArea}
    }
    return out
}

// MarkCandidates flags every selected page FlagEvacuationCandidate, the
// step the marking driver's slot recorder consults (mark.RecordSlotIfCrossing).
func MarkCandidates(selected []PageAdapter) []*pageset.Page {
    out := make([]*pageset.Page, len(selected))
    for i, a := range selected {
        a.Page.SetFlag(pageset.FlagEvacuationCandidate)
        out[i] = a.Page
    }
    return out
}
