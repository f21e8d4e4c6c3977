// The MIT License
//
// Copyright (c) 2020 Temporal Technologies Inc.  All rights reserved.
//
// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAleaSameSeedSameSequence(t *testing.T) {
	a := newAlea([]byte{1, 2, 3, 4})
	b := newAlea([]byte{1, 2, 3, 4})
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Float64(), b.Float64(), "diverged at step %d", i)
	}
}

func TestAleaDifferentSeedsDiverge(t *testing.T) {
	a := newAlea([]byte{1, 2, 3, 4})
	b := newAlea([]byte{4, 3, 2, 1})
	same := true
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			same = false
			break
		}
	}
	assert.False(t, same, "different seeds should produce different sequences")
}

func TestAleaValuesInUnitInterval(t *testing.T) {
	a := newAlea([]byte("seed"))
	for i := 0; i < 1000; i++ {
		v := a.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestAleaSnapshotRestore(t *testing.T) {
	a := newAlea([]byte("snapshot-seed"))
	for i := 0; i < 17; i++ {
		a.Float64()
	}
	restored := restoreAlea(a.snapshot())
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), restored.Float64(), "restored generator diverged at step %d", i)
	}
}

func TestNowReturnsActivationTime(t *testing.T) {
	ws := createTestState()
	ts := time.Date(2020, 5, 4, 3, 2, 1, 0, time.UTC)
	ws.now = ts
	var observed time.Time
	d := newDispatcher(ws, func(ctx Context) {
		observed = Now(ctx)
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.Equal(t, ts, observed)
}

func TestRandomDelegatesToSeededGenerator(t *testing.T) {
	ws := createTestState()
	ws.random = newAlea([]byte("fixed"))
	want := newAlea([]byte("fixed")).Float64()
	var observed float64
	d := newDispatcher(ws, func(ctx Context) {
		observed = Random(ctx)
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.Equal(t, want, observed)
}

func TestWeakStructuresAreForbidden(t *testing.T) {
	for name, construct := range map[string]func(Context) interface{}{
		"WeakMap": NewWeakMap,
		"WeakSet": NewWeakSet,
		"WeakRef": NewWeakRef,
	} {
		t.Run(name, func(t *testing.T) {
			d := newDispatcher(createTestState(), func(ctx Context) {
				construct(ctx)
			})
			err := d.ExecuteUntilAllBlocked()
			require.Error(t, err)
			require.IsType(t, (*DeterminismViolationError)(nil), err)
		})
	}
}
