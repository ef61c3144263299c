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

import "github.com/markcompact/mcgc/objmodel"

// MigrationObserver is invoked on every successful object copy (spec 4.6,
// "Migration observers (profiling, young-gen color transfer) are invoked on
// each copy when attached").
type MigrationObserver interface {
    OnMigrate(source, dest objmodel.Address, size uintptr)
}

// MigrationObserverFunc adapts a plain function to MigrationObserver.
type MigrationObserverFunc func(source, dest objmodel.Address, size uintptr)

func (f MigrationObserverFunc) OnMigrate(source, dest objmodel.Address, size uintptr) {
    f(source, dest, size)
}
