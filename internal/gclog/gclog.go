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

// Package gclog is a thin, leveled wrapper around the standard logger, in the
// same spirit as the scattered log.Printf calls this collector's ancestor used
// for heap diagnostics.
package gclog

import (
    "log"
    "os"
)

type Level int

const (
    LevelWarn Level = iota
    LevelInfo
    LevelDebug
)

// Logger gates Debug/Info output behind an explicit level: Info and Debug
// lines are emitted only when the level admits them, while Warn is always
// emitted.
type Logger struct {
    level Level
    out   *log.Logger
}

func New(level Level) *Logger {
    return &Logger{level: level, out: log.New(os.Stderr, "gc: ", log.Lmicroseconds)}
}

func (l *Logger) Warn(format string, args ...interface{}) {
    l.out.Printf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
    if l.level >= LevelInfo {
        l.out.Printf(format, args...)
    }
}

func (l *Logger) Debug(format string, args ...interface{}) {
    if l.level >= LevelDebug {
        l.out.Printf(format, args...)
    }
}

// Default is used by packages that don't carry an explicit Logger reference,
// e.g. package-level helpers invoked from tests.
var Default = New(LevelWarn)
