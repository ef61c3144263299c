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

package collector

import "github.com/markcompact/mcgc/pageset"

// compactionPage adapts *pageset.Page to compact.Page, the narrow interface
// compact.Select scores against. linearAllocationPage identifies whichever
// page currently backs the space's bump-pointer allocator, if any; that
// page is never a compaction candidate (spec 4.3, "never select the page
// backing the active linear allocation area").
type compactionPage struct {
    p                    *pageset.Page
    linearAllocationPage *pageset.Page
}

func (c compactionPage) AllocatedBytesForCompaction() int64 { return c.p.AllocatedBytes() }

func (c compactionPage) AreaBytesForCompaction() int64 {
    return int64(c.p.AreaEnd - c.p.AreaStart)
}

func (c compactionPage) Pinned() bool { return c.p.HasFlag(pageset.FlagPinned) }

func (c compactionPage) NeverEvacuate() bool { return c.p.HasFlag(pageset.FlagNeverEvacuate) }

func (c compactionPage) IsLinearAllocationArea() bool {
    return c.linearAllocationPage != nil && c.p == c.linearAllocationPage
}
