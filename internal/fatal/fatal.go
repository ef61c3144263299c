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

// Package fatal draws the line the spec insists on between conditions the
// collector recovers from locally and conditions that end the process: nursery
// promotion out-of-memory, sweeper non-completion, and bitmap corruption are
// fatal; everything else is a value the caller absorbs.
package fatal

import (
    "fmt"
    "os"
)

// Mode controls what OOM/Invariant do on trip. Production wants os.Exit;
// tests want a panic they can recover and assert on.
type Mode int

const (
    ModeExit Mode = iota
    ModePanic
)

var CurrentMode = ModeExit

// Error is the payload of a panic raised in ModePanic, so tests can type-assert
// on recover() instead of parsing a string.
type Error struct {
    Kind string
    Msg  string
}

func (e *Error) Error() string {
    return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func trip(kind, format string, args ...interface{}) {
    msg := fmt.Sprintf(format, args...)
    switch CurrentMode {
    case ModePanic:
        panic(&Error{Kind: kind, Msg: msg})
    default:
        fmt.Fprintf(os.Stderr, "FATAL %s: %s\n", kind, msg)
        os.Exit(3)
    }
}

// OOM reports an unrecoverable allocation failure, e.g. failing to promote a
// live young object during a minor cycle. The nursery must be fully evacuated;
// there is no local recovery, so this always ends the process (or the test).
func OOM(format string, args ...interface{}) {
    trip("FatalProcessOutOfMemory", format, args...)
}

// Invariant reports a broken structural invariant (e.g. the impossible 01
// bitmap pattern). In debug builds this is a CHECK failure; callers should
// gate calls to Invariant behind their own debug flag so release builds pay
// nothing for the check.
func Invariant(format string, args ...interface{}) {
    trip("CorruptInvariant", format, args...)
}
