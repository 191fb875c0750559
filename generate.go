// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: August 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sortbench

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"sortbench/plugin/capi"
)

// tunables is the resolved set of distribution parameters for one run.
type tunables struct {
	partialPct   int
	dupValues    int
	zipfS        float64
	runsAlpha    float64
	staggerBlock int
}

// typeOps carries the per-element-type hooks the generic generator needs:
// a full-range uniform draw, an index cast for pattern distributions, and the
// clamped gaussian/exponential draws. extra holds type-specific builtins
// (the radix sort for integer types); capiSlot selects the plugin ABI entry
// point for the type, -1 when plugins cannot serve it.
type typeOps[T cmp.Ordered] struct {
	rand     func(*rand.Rand) T
	fromInt  func(int64) T
	gauss    func(*rand.Rand) T
	exp      func(*rand.Rand) T
	extra    []Algorithm[T]
	capiSlot int
}

// Largest float64 values strictly below 2^63 and 2^64; safe clamp bounds for
// float-to-integer conversions.
var (
	maxI64F = math.Nextafter(float64(math.MaxInt64), 0)
	maxU64F = math.Nextafter(float64(math.MaxUint64), 0)
)

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func i32Ops() typeOps[int32] {
	return typeOps[int32]{
		capiSlot: capi.SlotI32,
		rand:     func(r *rand.Rand) int32 { return int32(r.Uint32()) },
		fromInt:  func(v int64) int32 { return int32(v) },
		// mean 0, stddev = range/8, clamped to the representable range
		gauss: func(r *rand.Rand) int32 {
			return int32(clampF(r.NormFloat64()*(1<<29), math.MinInt32, math.MaxInt32))
		},
		exp: func(r *rand.Rand) int32 {
			return int32(clampF(r.ExpFloat64()*(math.MaxInt32/8.0), 0, math.MaxInt32))
		},
		extra: []Algorithm[int32]{{Name: "radix_sort_lsd", Fn: radixI32}},
	}
}

func u32Ops() typeOps[uint32] {
	return typeOps[uint32]{
		capiSlot: capi.SlotU32,
		rand:     func(r *rand.Rand) uint32 { return r.Uint32() },
		fromInt:  func(v int64) uint32 { return uint32(v) },
		gauss: func(r *rand.Rand) uint32 {
			return uint32(clampF(r.NormFloat64()*(1<<29)+(1<<31), 0, math.MaxUint32))
		},
		exp: func(r *rand.Rand) uint32 {
			return uint32(clampF(r.ExpFloat64()*(math.MaxUint32/8.0), 0, math.MaxUint32))
		},
		extra: []Algorithm[uint32]{{Name: "radix_sort_lsd", Fn: radixU32}},
	}
}

func i64Ops() typeOps[int64] {
	return typeOps[int64]{
		capiSlot: capi.SlotI64,
		rand:     func(r *rand.Rand) int64 { return int64(r.Uint64()) },
		fromInt:  func(v int64) int64 { return v },
		gauss: func(r *rand.Rand) int64 {
			return int64(clampF(r.NormFloat64()*(1<<61), -maxI64F, maxI64F))
		},
		exp: func(r *rand.Rand) int64 {
			return int64(clampF(r.ExpFloat64()*(maxI64F/8.0), 0, maxI64F))
		},
		extra: []Algorithm[int64]{{Name: "radix_sort_lsd", Fn: radixI64}},
	}
}

func u64Ops() typeOps[uint64] {
	return typeOps[uint64]{
		capiSlot: capi.SlotU64,
		rand:     func(r *rand.Rand) uint64 { return r.Uint64() },
		fromInt:  func(v int64) uint64 { return uint64(v) },
		gauss: func(r *rand.Rand) uint64 {
			return uint64(clampF(r.NormFloat64()*(1<<61)+float64(math.MaxUint64)/2, 0, maxU64F))
		},
		exp: func(r *rand.Rand) uint64 {
			return uint64(clampF(r.ExpFloat64()*(maxU64F/8.0), 0, maxU64F))
		},
		extra: []Algorithm[uint64]{{Name: "radix_sort_lsd", Fn: radixU64}},
	}
}

func f32Ops() typeOps[float32] {
	return typeOps[float32]{
		capiSlot: capi.SlotF32,
		rand:     func(r *rand.Rand) float32 { return float32(r.Float64()) },
		fromInt:  func(v int64) float32 { return float32(v) },
		gauss:    func(r *rand.Rand) float32 { return float32(r.NormFloat64()) },
		exp:      func(r *rand.Rand) float32 { return float32(r.ExpFloat64()) },
	}
}

func f64Ops() typeOps[float64] {
	return typeOps[float64]{
		capiSlot: capi.SlotF64,
		rand:     func(r *rand.Rand) float64 { return r.Float64() },
		fromInt:  func(v int64) float64 { return float64(v) },
		gauss:    func(r *rand.Rand) float64 { return r.NormFloat64() },
		exp:      func(r *rand.Rand) float64 { return r.ExpFloat64() },
	}
}

// String inputs reuse the numeric stream through an order-preserving
// fixed-width key encoding, so every distribution is defined for str.
func strOps() typeOps[string] {
	u := u64Ops()
	return typeOps[string]{
		capiSlot: -1,
		rand:     func(r *rand.Rand) string { return toKey(u.rand(r) / keyDivisor) },
		fromInt:  func(v int64) string { return toKey(uint64(v)) },
		gauss:    func(r *rand.Rand) string { return toKey(u.gauss(r) / keyDivisor) },
		exp:      func(r *rand.Rand) string { return toKey(u.exp(r) / keyDivisor) },
	}
}

const keyWidth = 12

// keyDivisor compresses full-range 64-bit draws into the 26^12 key space
// while preserving order: floor(MaxUint64/keyDivisor) < 26^12.
const keyDivisor = 194

// toKey maps a value below 26^12 to a 12-character lowercase key whose
// lexicographic order matches the numeric order of the input.
func toKey(v uint64) string {
	var b [keyWidth]byte
	for i := keyWidth - 1; i >= 0; i-- {
		b[i] = 'a' + byte(v%26)
		v /= 26
	}
	return string(b[:])
}

// makeData builds the input array for one run. Pattern distributions derive
// values from indices; stochastic ones draw from the seeded PRNG. The result
// is a pure function of (r's seed, n, d, tn).
func makeData[T cmp.Ordered](r *rand.Rand, n int, d Dist, tn tunables, ops typeOps[T]) []T {
	v := make([]T, n)
	switch d {
	case DistRandom:
		for i := range v {
			v[i] = ops.rand(r)
		}
	case DistPartial:
		for i := range v {
			v[i] = ops.fromInt(int64(i))
		}
		swaps := n * tn.partialPct / 100
		for s := 0; s < swaps; s++ {
			i, j := r.IntN(n), r.IntN(n)
			v[i], v[j] = v[j], v[i]
		}
	case DistDups:
		k := int64(tn.dupValues)
		for i := range v {
			v[i] = ops.fromInt(r.Int64N(k))
		}
	case DistReverse:
		for i := range v {
			v[i] = ops.fromInt(int64(n - 1 - i))
		}
	case DistSorted:
		for i := range v {
			v[i] = ops.fromInt(int64(i))
		}
	case DistSaw:
		period := int64(min(n, 1024))
		for i := range v {
			v[i] = ops.fromInt(int64(i) % period)
		}
	case DistRuns:
		for i := range v {
			v[i] = ops.rand(r)
		}
		sortBlocks(v, min(n, 2048))
	case DistGauss:
		for i := range v {
			v[i] = ops.gauss(r)
		}
	case DistExp:
		for i := range v {
			v[i] = ops.exp(r)
		}
	case DistZipf:
		z := newZipfTable(tn.dupValues, tn.zipfS)
		for i := range v {
			v[i] = ops.fromInt(z.index(r.Float64()))
		}
	case DistOrganPipe:
		for i := range v {
			v[i] = ops.fromInt(int64(min(i, n-1-i)))
		}
	case DistStaggered:
		b := int64(tn.staggerBlock)
		for i := range v {
			v[i] = ops.fromInt((int64(i)*b + int64(i)) % int64(n))
		}
	case DistRunsHT:
		for i := range v {
			v[i] = ops.rand(r)
		}
		sortHeavyTailRuns(v, r, tn.runsAlpha)
	}
	return v
}

func sortBlocks[T cmp.Ordered](v []T, block int) {
	for lo := 0; lo < len(v); lo += block {
		slices.Sort(v[lo:min(lo+block, len(v))])
	}
}

// sortHeavyTailRuns sorts consecutive runs whose lengths follow a Pareto
// tail, L = 16 * u^(-1/alpha): most runs stay short while a few grow very
// long. Smaller alpha means a heavier tail.
func sortHeavyTailRuns[T cmp.Ordered](v []T, r *rand.Rand, alpha float64) {
	const baseRun = 16
	for lo := 0; lo < len(v); {
		u := r.Float64()
		if u < 1e-12 {
			u = 1e-12
		}
		lf := baseRun * math.Pow(u, -1.0/alpha)
		if lf > float64(len(v)-lo) {
			lf = float64(len(v) - lo)
		}
		l := max(int(lf), 1)
		slices.Sort(v[lo : lo+l])
		lo += l
	}
}

// zipfTable draws indices in [0, k) with probability proportional to
// 1/(i+1)^s via a normalized cumulative table and binary search.
type zipfTable struct {
	cum []float64
}

func newZipfTable(k int, s float64) zipfTable {
	cum := make([]float64, k)
	total := 0.0
	for i := 0; i < k; i++ {
		total += 1.0 / math.Pow(float64(i+1), s)
		cum[i] = total
	}
	for i := range cum {
		cum[i] /= total
	}
	return zipfTable{cum: cum}
}

func (z zipfTable) index(u float64) int64 {
	i := sort.SearchFloat64s(z.cum, u)
	if i >= len(z.cum) {
		i = len(z.cum) - 1
	}
	return int64(i)
}
