/*
    Copyright (c) 2012, 2013 by Jonathan Ross (jonross@alum.mit.edu)

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

// Package config holds the collector's recognized options, the same flat
// options-struct shape this collector's ancestor used for its own CLI
// (an Options struct populated once from flag.FlagSet, then passed by
// value/reference into the work).
package config

// Flags mirrors every configuration flag named in this collector's
// specification, section 6.
type Flags struct {
    // Master switch for compaction.
    Compact bool

    // Per-space compaction gates.
    CompactCodeSpace         bool
    CompactMaps              bool
    CompactWithStack         bool
    CompactCodeSpaceWithStack bool

    // Test/fuzzer modes.
    CompactOnEveryFullGC             bool
    StressCompaction                 bool
    StressCompactionRandom           bool
    ManualEvacuationCandidatesSelection bool

    // Disables compaction when memory reduction is desired.
    GCExperimentLessCompaction bool

    // Parallelism toggles.
    ParallelCompaction    bool
    ParallelMarking       bool
    ConcurrentMarking     bool
    ConcurrentSweeping    bool
    ConcurrentSparkplug   bool
    ParallelPointerUpdate bool

    // Cap before the ephemeron fixpoint gives up and falls back to the
    // linear algorithm.
    EphemeronFixpointIterations int

    // Young-generation variant.
    MinorMC              bool
    MinorMCSweeping      bool
    MinorMCTraceFragmentation bool

    // Code-flushing gates.
    FlushBytecode    bool
    FlushBaselineCode bool

    // Whole-page promotion.
    PagePromotion          bool
    PagePromotionThreshold float64

    // Escalate an aborted evacuation to fatal instead of sweeping the page.
    CrashOnAbortedEvacuation bool

    // Diagnostic-only trace flags; no package in this module reads them.
    TraceEvacuation     bool
    TracePointerUpdates bool
    TraceFragmentation  bool
    TraceCompaction     bool
}

// Default returns the flag set this collector uses absent any explicit
// configuration: compaction and parallelism on, adaptive fragmentation,
// nothing traced.
func Default() Flags {
    return Flags{
        Compact:                     true,
        CompactCodeSpace:            false,
        CompactMaps:                 true,
        CompactWithStack:            false,
        CompactCodeSpaceWithStack:   false,
        ParallelCompaction:          true,
        ParallelMarking:             true,
        ConcurrentMarking:           false,
        ConcurrentSweeping:          true,
        ParallelPointerUpdate:       true,
        EphemeronFixpointIterations: 10,
        MinorMC:                     false,
        MinorMCSweeping:             true,
        FlushBytecode:               true,
        FlushBaselineCode:           true,
        PagePromotion:               true,
        PagePromotionThreshold:      0.5,
    }
}
