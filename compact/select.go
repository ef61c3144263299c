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

// Package compact selects which pages a GC cycle will evacuate (spec section
// 4.3). Scoring and sorting candidates by allocated bytes is this
// collector's ancestor's classCounts sort.Interface idiom, adapted from
// counting live instances per class to scoring live pages per space.
package compact

import (
    "math/rand"
    "sort"
)

// sampleRand backs the stress_compaction_random test-only selection mode;
// a fixed seed is fine since this path only runs under an explicit fuzzer flag.
var sampleRand = rand.New(rand.NewSource(1))

// Mode picks the fragmentation-quota policy used to size the candidate list.
type Mode int

const (
    ModeMemoryReducing Mode = iota
    ModeAdaptive
)

// TestMode overrides normal scoring with a fixed test-only selection
// strategy (spec 4.3, "Test-only modes may force a fixed set, a random
// sample, or every other page").
type TestMode int

const (
    TestModeNone TestMode = iota
    TestModeForced
    TestModeRandom
    TestModeEveryOther
)

const (
    memoryReducingFragmentationFloor = 0.20
    memoryReducingByteQuota          = 8 << 20 // within the spec's 6-12 MiB band
    adaptiveByteQuota                = 4 << 20
    adaptiveFragmentationFloor       = 0.20
)

// Page is the minimal view of a pageset.Page the selector needs; kept
// narrow so this package doesn't import pageset and can be exercised with
// plain literals in tests.
type Page interface {
    AllocatedBytesForCompaction() int64
    AreaBytesForCompaction() int64
    Pinned() bool
    NeverEvacuate() bool
    IsLinearAllocationArea() bool
}

// candidate pairs a page with its fragmentation ratio and its allocated
// bytes; allocated bytes are the sort key.
type candidate struct {
    page        Page
    fragmentation float64
    allocated     int64
}

type byAllocatedAscending []candidate

func (c byAllocatedAscending) Len() int      { return len(c) }
func (c byAllocatedAscending) Swap(i, j int) { c[i], c[j] = c[j], c[i] }
func (c byAllocatedAscending) Less(i, j int) bool {
    return c[i].allocated < c[j].allocated
}

// Params configures one selection pass, matching config.Flags' knobs plus
// the adaptively-measured compaction speed the caller has tracked.
type Params struct {
    Mode Mode
    // MeasuredCompactionSpeed is bytes/ms observed in prior cycles; used
    // only in ModeAdaptive to derive the target fragmentation so that one
    // page's worth of evacuation takes roughly 0.5ms.
    MeasuredCompactionSpeed float64
    PageSizeBytes           int64
    Test                    TestMode
    // TestEveryOtherStart offsets the every-other-page test selection.
    TestEveryOtherStart int
}

// targetFragmentation derives the adaptive-mode floor from measured
// compaction speed: fragmentation such that evacuating one page's live
// bytes costs about 0.5ms, clamped to the 20% floor.
func targetFragmentation(speedBytesPerMs float64, pageSizeBytes int64) float64 {
    if speedBytesPerMs <= 0 || pageSizeBytes <= 0 {
        return adaptiveFragmentationFloor
    }
    bytesIn05ms := speedBytesPerMs * 0.5
    frag := 1.0 - bytesIn05ms/float64(pageSizeBytes)
    if frag < adaptiveFragmentationFloor {
        return adaptiveFragmentationFloor
    }
    return frag
}

// Select scores pages and returns the evacuation candidate list (spec 4.3).
// The list is empty only when no page passes the eligibility and
// fragmentation checks. Select does not predict how many pages evacuation
// would release: a non-empty selection is returned even when its live bytes
// would fill as many pages as it frees.
func Select[P Page](pages []P, params Params) []P {
    switch params.Test {
    case TestModeForced:
        return pages
    case TestModeRandom:
        return randomSample(pages)
    case TestModeEveryOther:
        return everyOther(pages, params.TestEveryOtherStart)
    }

    fragFloor := memoryReducingFragmentationFloor
    quota := int64(memoryReducingByteQuota)
    if params.Mode == ModeAdaptive {
        fragFloor = targetFragmentation(params.MeasuredCompactionSpeed, params.PageSizeBytes)
        quota = adaptiveByteQuota
    }

    var eligible []candidate
    for _, p := range pages {
        if !eligiblePage(p) {
            continue
        }
        area := p.AreaBytesForCompaction()
        if area <= 0 {
            continue
        }
        allocated := p.AllocatedBytesForCompaction()
        frag := float64(area-allocated) / float64(area)
        if frag < fragFloor {
            continue
        }
        eligible = append(eligible, candidate{page: p, fragmentation: frag, allocated: allocated})
    }

    sort.Sort(byAllocatedAscending(eligible))

    var chosen []P
    var totalAllocated int64
    for _, c := range eligible {
        if totalAllocated+c.allocated > quota && len(chosen) > 0 {
            break
        }
        chosen = append(chosen, c.page.(P))
        totalAllocated += c.allocated
    }

    if len(chosen) == 0 {
        return nil
    }
    return chosen
}

func eligiblePage(p Page) bool {
    if p.Pinned() || p.NeverEvacuate() || p.IsLinearAllocationArea() {
        return false
    }
    return true
}

// randomSample keeps each page with 50% probability, the stress_compaction_random
// test flag from spec 6.
func randomSample[P Page](pages []P) []P {
    var out []P
    for _, p := range pages {
        if sampleRand.Intn(2) == 0 {
            out = append(out, p)
        }
    }
    return out
}

// everyOther returns pages at even offsets from start, the "every other
// page" fuzzer mode.
func everyOther[P Page](pages []P, start int) []P {
    var out []P
    for i := start; i < len(pages); i += 2 {
        out = append(out, pages[i])
    }
    return out
}
