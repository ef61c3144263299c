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

import (
    "testing"

    "github.com/stretchr/testify/require"
)

type fakePage struct {
    allocated, area          int64
    pinned, neverEvac, linear bool
}

func (p fakePage) AllocatedBytesForCompaction() int64 { return p.allocated }
func (p fakePage) AreaBytesForCompaction() int64      { return p.area }
func (p fakePage) Pinned() bool                       { return p.pinned }
func (p fakePage) NeverEvacuate() bool                { return p.neverEvac }
func (p fakePage) IsLinearAllocationArea() bool       { return p.linear }

func TestSelectSkipsPinnedNeverEvacuateAndLinearArea(t *testing.T) {
    pages := []fakePage{
        {allocated: 100, area: 1000, pinned: true},
        {allocated: 100, area: 1000, neverEvac: true},
        {allocated: 100, area: 1000, linear: true},
        {allocated: 100, area: 1000},
    }
    got := Select(pages, Params{Mode: ModeMemoryReducing})
    require.Len(t, got, 1)
    require.Equal(t, int64(100), got[0].allocated)
}

func TestSelectRequiresFragmentationFloor(t *testing.T) {
    pages := []fakePage{
        {allocated: 900, area: 1000}, // 10% free, below the 20% floor
        {allocated: 500, area: 1000}, // 50% free
    }
    got := Select(pages, Params{Mode: ModeMemoryReducing})
    require.Len(t, got, 1)
    require.Equal(t, int64(500), got[0].allocated)
}

func TestSelectSortsAscendingAndRespectsByteQuota(t *testing.T) {
    const quota = memoryReducingByteQuota
    pages := []fakePage{
        {allocated: quota / 2, area: quota},
        {allocated: quota, area: 2 * quota},
        {allocated: quota / 4, area: quota},
    }
    got := Select(pages, Params{Mode: ModeMemoryReducing})
    require.NotEmpty(t, got)
    // The smallest-allocated page comes first regardless of input order.
    require.Equal(t, int64(quota/4), got[0].allocated)
}

func TestSelectClearsListWhenNothingQualifies(t *testing.T) {
    pages := []fakePage{
        {allocated: 950, area: 1000},
    }
    got := Select(pages, Params{Mode: ModeMemoryReducing})
    require.Empty(t, got)
}

func TestSelectAdaptiveModeUsesMeasuredSpeed(t *testing.T) {
    pages := []fakePage{
        {allocated: 700, area: 1000}, // 30% fragmentation
    }
    got := Select(pages, Params{
        Mode:                    ModeAdaptive,
        MeasuredCompactionSpeed: 3000, // bytes/ms, fast enough to clamp to the 20% floor
        PageSizeBytes:           1000,
    })
    require.Len(t, got, 1)
}

func TestSelectTestModeForcedReturnsEverything(t *testing.T) {
    pages := []fakePage{
        {allocated: 999, area: 1000},
        {allocated: 0, area: 1000, pinned: true},
    }
    got := Select(pages, Params{Test: TestModeForced})
    require.Len(t, got, 2)
}

func TestSelectTestModeEveryOther(t *testing.T) {
    pages := []fakePage{{area: 1}, {area: 2}, {area: 3}, {area: 4}}
    got := Select(pages, Params{Test: TestModeEveryOther, TestEveryOtherStart: 0})
    require.Len(t, got, 2)
    require.Equal(t, int64(1), got[0].area)
    require.Equal(t, int64(3), got[1].area)
}
