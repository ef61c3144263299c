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

package evacuate

import "github.com/markcompact/mcgc/pageset"

// PromotePageWhole flips a nursery page's ownership to space without
// copying a single object -- kPageNewToOld/kPageNewToNew, the "cheap whole
// page promotion" path taken when a page's live bytes exceed the
// PagePromotionThreshold (spec 4.6, 4.8).
func PromotePageWhole(page *pageset.Page, target pageset.Space) {
    page.Space = target
    if target == pageset.SpaceOld {
        page.SetFlag(pageset.FlagNewToOldPromotion)
    } else {
        page.SetFlag(pageset.FlagNewToNewPromotion)
    }
}

// ShouldPromoteWhole reports whether page's live-byte fraction clears
// threshold, the page_promotion_threshold config flag's gate.
func ShouldPromoteWhole(page *pageset.Page, threshold float64) bool {
    size := int64(page.AreaEnd - page.AreaStart)
    if size <= 0 {
        return false
    }
    return float64(page.LiveBytes())/float64(size) >= threshold
}
