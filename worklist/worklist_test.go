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

package worklist

import (
    "sync"
    "testing"

    "github.com/stretchr/testify/require"
)

func TestLocalPushPopStaysLocalBelowThreshold(t *testing.T) {
    g := NewGlobal[int]()
    l := NewLocal(g)
    l.Push(1)
    l.Push(2)
    require.True(t, g.IsEmpty(), "small pushes should not touch the global pool")
    v, ok := l.Pop()
    require.True(t, ok)
    require.Equal(t, 2, v)
}

func TestPublishDrain(t *testing.T) {
    g := NewGlobal[int]()
    producer := NewLocal(g)
    for i := 0; i < 10; i++ {
        producer.Push(i)
    }
    producer.Publish()
    require.False(t, g.IsEmpty())

    consumer := NewLocal(g)
    seen := map[int]bool{}
    for {
        v, ok := consumer.Pop()
        if !ok {
			break
        }
        seen[v] = true
    }
    require.Len(t, seen, 10)
    require.True(t, consumer.IsEmptyLocalAndGlobal())
}

func TestMultiProducerMultiConsumer(t *testing.T) {
    g := NewGlobal[int]()
    const n = 5000

    var wg sync.WaitGroup
    wg.Add(4)
    for p := 0; p < 4; p++ {
        go func(base int) {
            defer wg.Done()
            l := NewLocal(g)
            for i := 0; i < n/4; i++ {
                l.Push(base*n + i)
            }
            l.Publish()
        }(p)
    }
    wg.Wait()

    var mu sync.Mutex
    total := 0
    var cwg sync.WaitGroup
    cwg.Add(4)
    for c := 0; c < 4; c++ {
        go func() {
            defer cwg.Done()
            l := NewLocal(g)
            count := 0
            for {
                _, ok := l.Pop()
                if !ok {
                    break
                }
                count++
            }
            mu.Lock()
            total += count
            mu.Unlock()
        }()
    }
    cwg.Wait()
    require.Equal(t, n, total)
}

func TestSwapForEphemeronRounds(t *testing.T) {
    gCur := NewGlobal[Ephemeron]()
    gNext := NewGlobal[Ephemeron]()
    cur := NewLocal(gCur)
    next := NewLocal(gNext)

    next.Push(Ephemeron{Key: 1, Value: 2})
    cur.Swap(next)

    v, ok := cur.Pop()
    require.True(t, ok)
	require.Equal(t, Ephemeron{Key: 1, Value: 2}, v)
    require.True(t, next.IsEmptyLocal())
}

func TestOnHoldStash(t *testing.T) {
    g := NewGlobal[int]()
    l := NewLocal(g)
    l.Hold(42)
    require.True(t, l.IsEmptyLocal())
    l.Unhold()
    v, ok := l.Pop()
    require.True(t, ok)
    require.Equal(t, 42, v)
}
