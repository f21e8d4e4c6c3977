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
	"math"
	"time"
)

// alea is a small seeded PRNG whose full state is four float64 values, which
// keeps replay snapshots compact. The generator and its seeding hash follow
// Baagoe's alea construction.
type alea struct {
	s0, s1, s2, c float64
}

// mash is the seeding hash used by alea. It folds bytes into a uint32-ranged
// accumulator carried as a float64.
type mash struct {
	n float64
}

func newMash() *mash {
	return &mash{n: 0xefc8249d}
}

func (m *mash) mash(data []byte) float64 {
	for _, b := range data {
		m.n += float64(b)
		h := 0.02519603282416938 * m.n
		m.n = float64(uint32(h))
		h -= m.n
		h *= m.n
		m.n = float64(uint32(h))
		h -= m.n
		m.n += h * 4294967296
	}
	return float64(uint32(m.n)) * 2.3283064365386963e-10 // 2^-32
}

func newAlea(seed []byte) *alea {
	a := &alea{c: 1}
	m := newMash()
	blank := []byte(" ")
	a.s0 = m.mash(blank)
	a.s1 = m.mash(blank)
	a.s2 = m.mash(blank)

	a.s0 -= m.mash(seed)
	if a.s0 < 0 {
		a.s0++
	}
	a.s1 -= m.mash(seed)
	if a.s1 < 0 {
		a.s1++
	}
	a.s2 -= m.mash(seed)
	if a.s2 < 0 {
		a.s2++
	}
	return a
}

// restoreAlea reconstructs a generator from a snapshot taken with snapshot().
func restoreAlea(state [4]float64) *alea {
	return &alea{s0: state[0], s1: state[1], s2: state[2], c: state[3]}
}

// Float64 returns the next value in [0, 1).
func (a *alea) Float64() float64 {
	t := 2091639*a.s0 + a.c*2.3283064365386963e-10
	a.s0 = a.s1
	a.s1 = a.s2
	a.c = math.Trunc(t)
	a.s2 = t - a.c
	return a.s2
}

// snapshot captures the full generator state.
func (a *alea) snapshot() [4]float64 {
	return [4]float64{a.s0, a.s1, a.s2, a.c}
}

// Now returns the current workflow time. It only advances when an activation
// carries a timestamp; workflow code must never observe the host clock.
func Now(ctx Context) time.Time {
	return ctx.state().now
}

// Random returns the next value of the run's seeded generator in [0, 1).
// Two runs initialized with the same randomness seed observe the same sequence.
func Random(ctx Context) float64 {
	return ctx.state().random.Float64()
}

// IsReplaying returns whether the current activation replays recorded history.
// Do not branch workflow logic on it; use Patched for versioning.
func IsReplaying(ctx Context) bool {
	return ctx.state().info.IsReplaying
}

// GetInfo returns the identity record of the current run.
func GetInfo(ctx Context) *WorkflowInfo {
	return ctx.state().info
}

// NewWeakMap fails with a determinism violation. Structures that observe
// garbage collection cannot be used in workflow code because collection timing
// differs between original execution and replay.
func NewWeakMap(_ Context) interface{} {
	panic(newDeterminismViolationError("WeakMap cannot be used in workflow code"))
}

// NewWeakSet fails with a determinism violation. See NewWeakMap.
func NewWeakSet(_ Context) interface{} {
	panic(newDeterminismViolationError("WeakSet cannot be used in workflow code"))
}

// NewWeakRef fails with a determinism violation. See NewWeakMap.
func NewWeakRef(_ Context) interface{} {
	panic(newDeterminismViolationError("WeakRef cannot be used in workflow code"))
}
