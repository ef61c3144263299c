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

package pageset

import (
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/markcompact/mcgc/objmodel"
)

func TestBitmapWhiteGreyBlack(t *testing.T) {
    bm := NewBitmap(64)
    require.Equal(t, objmodel.White, bm.Get(10))

    require.True(t, bm.TransitionToGrey(10))
    require.Equal(t, objmodel.Grey, bm.Get(10))

    // Second attempt to grey an already-grey object must fail: the CAS
    // only succeeds out of White.
    require.False(t, bm.TransitionToGrey(10))

    bm.TransitionToBlack(10)
    require.Equal(t, objmodel.Black, bm.Get(10))
}

func TestBitmapNoCorruptionOnFreshAlloc(t *testing.T) {
    bm := NewBitmap(1000)
    for i := uint32(0); i < 1000; i++ {
        require.False(t, bm.Get(i).IsCorrupt())
    }
    bm.CheckNoCorruption(1000) // must not fatal
}

func TestBitmapCountBlack(t *testing.T) {
    bm := NewBitmap(8)
    for _, i := range []uint32{0, 2, 5} {
        bm.TransitionToGrey(i)
        bm.TransitionToBlack(i)
    }
    require.Equal(t, 3, bm.CountBlack(8))
}
