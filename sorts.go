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
	"slices"
	"sort"
)

// Built-in sort implementations. All sort in place and are deliberately
// straightforward: the point is measuring them, not being clever. std_sort
// and std_stable_sort delegate to the runtime's sorts and act as baselines.

func stdSort[T cmp.Ordered](v []T) {
	slices.Sort(v)
}

func stdStableSort[T cmp.Ordered](v []T) {
	sort.SliceStable(v, func(i, j int) bool { return v[i] < v[j] })
}

func insertionSort[T cmp.Ordered](v []T) {
	for i := 1; i < len(v); i++ {
		t := v[i]
		j := i
		for ; j > 0 && v[j-1] > t; j-- {
			v[j] = v[j-1]
		}
		v[j] = t
	}
}

func selectionSort[T cmp.Ordered](v []T) {
	for i := 0; i < len(v)-1; i++ {
		lo := i
		for j := i + 1; j < len(v); j++ {
			if v[j] < v[lo] {
				lo = j
			}
		}
		v[i], v[lo] = v[lo], v[i]
	}
}

func bubbleSort[T cmp.Ordered](v []T) {
	for end := len(v); end > 1; end-- {
		swapped := false
		for j := 1; j < end; j++ {
			if v[j-1] > v[j] {
				v[j-1], v[j] = v[j], v[j-1]
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

func combSort[T cmp.Ordered](v []T) {
	gap := len(v)
	swapped := true
	for gap > 1 || swapped {
		// shrink factor 1.3
		gap = gap * 10 / 13
		if gap < 1 {
			gap = 1
		}
		swapped = false
		for i := 0; i+gap < len(v); i++ {
			if v[i] > v[i+gap] {
				v[i], v[i+gap] = v[i+gap], v[i]
				swapped = true
			}
		}
	}
}

// ciuraGaps are the experimentally derived Shell sort gaps; beyond 701 the
// sequence continues geometrically with ratio 2.25.
var ciuraGaps = []int{1, 4, 10, 23, 57, 132, 301, 701}

func shellSort[T cmp.Ordered](v []T) {
	gaps := ciuraGaps
	for g := gaps[len(gaps)-1] * 9 / 4; g < len(v); g = g * 9 / 4 {
		gaps = append(gaps, g)
	}
	for k := len(gaps) - 1; k >= 0; k-- {
		gap := gaps[k]
		for i := gap; i < len(v); i++ {
			t := v[i]
			j := i
			for ; j >= gap && v[j-gap] > t; j -= gap {
				v[j] = v[j-gap]
			}
			v[j] = t
		}
	}
}

func heapSort[T cmp.Ordered](v []T) {
	n := len(v)
	for i := n/2 - 1; i >= 0; i-- {
		siftDown(v, i, n)
	}
	for end := n - 1; end > 0; end-- {
		v[0], v[end] = v[end], v[0]
		siftDown(v, 0, end)
	}
}

func siftDown[T cmp.Ordered](v []T, root, hi int) {
	for {
		child := 2*root + 1
		if child >= hi {
			return
		}
		if child+1 < hi && v[child] < v[child+1] {
			child++
		}
		if v[root] >= v[child] {
			return
		}
		v[root], v[child] = v[child], v[root]
		root = child
	}
}

const mergeCutoff = 32

// mergeSortOpt is a top-down stable merge sort with an insertion-sort cutoff
// for small subarrays, a skip when the halves are already ordered, and a
// single half-size scratch buffer.
func mergeSortOpt[T cmp.Ordered](v []T) {
	if len(v) < 2 {
		return
	}
	mergeSortRec(v, make([]T, len(v)/2+1))
}

func mergeSortRec[T cmp.Ordered](v, buf []T) {
	if len(v) <= mergeCutoff {
		insertionSort(v)
		return
	}
	mid := len(v) / 2
	mergeSortRec(v[:mid], buf)
	mergeSortRec(v[mid:], buf)
	if v[mid-1] <= v[mid] {
		return
	}
	mergeHalves(v, mid, buf)
}

// mergeHalves merges v[:mid] and v[mid:] in place using buf (len >= mid) as
// scratch for the left half. Ties take the left element, keeping the sort
// stable.
func mergeHalves[T cmp.Ordered](v []T, mid int, buf []T) {
	left := buf[:mid]
	copy(left, v[:mid])
	i, j, k := 0, mid, 0
	for i < mid && j < len(v) {
		if v[j] < left[i] {
			v[k] = v[j]
			j++
		} else {
			v[k] = left[i]
			i++
		}
		k++
	}
	for i < mid {
		v[k] = left[i]
		i++
		k++
	}
}

const timMinRun = 32

// timSort is the bottom-up variant: insertion-sort minrun-sized chunks,
// then merge neighbors at doubling widths. Galloping is omitted.
func timSort[T cmp.Ordered](v []T) {
	n := len(v)
	for lo := 0; lo < n; lo += timMinRun {
		insertionSort(v[lo:min(lo+timMinRun, n)])
	}
	if n <= timMinRun {
		return
	}
	// The left half of a merge is width elements, which can exceed n/2 on
	// the last level, so scratch must cover the full array.
	buf := make([]T, n)
	for width := timMinRun; width < n; width *= 2 {
		for lo := 0; lo+width < n; lo += 2 * width {
			hi := min(lo+2*width, n)
			if v[lo+width-1] <= v[lo+width] {
				continue
			}
			mergeHalves(v[lo:hi], width, buf)
		}
	}
}

const (
	hybridCutoff   = 64
	threeWayCutoff = 16
)

// quicksortHybrid is a Hoare-partition quicksort with median-of-three pivot
// selection and an insertion-sort cutoff. It recurses into the smaller
// partition and loops on the larger, bounding stack depth at O(log n).
func quicksortHybrid[T cmp.Ordered](v []T) {
	for len(v) > hybridCutoff {
		j := hoarePartition(v)
		if j+1 < len(v)-(j+1) {
			quicksortHybrid(v[:j+1])
			v = v[j+1:]
		} else {
			quicksortHybrid(v[j+1:])
			v = v[:j+1]
		}
	}
	insertionSort(v)
}

// hoarePartition orders v around the median of first, middle, and last,
// returning j such that v[:j+1] <= pivot <= v[j+1:].
func hoarePartition[T cmp.Ordered](v []T) int {
	mid := len(v) / 2
	medianOfThree(v, 0, mid, len(v)-1)
	p := v[mid]
	i, j := -1, len(v)
	for {
		for {
			i++
			if v[i] >= p {
				break
			}
		}
		for {
			j--
			if v[j] <= p {
				break
			}
		}
		if i >= j {
			return j
		}
		v[i], v[j] = v[j], v[i]
	}
}

func medianOfThree[T cmp.Ordered](v []T, a, b, c int) {
	if v[b] < v[a] {
		v[a], v[b] = v[b], v[a]
	}
	if v[c] < v[b] {
		v[b], v[c] = v[c], v[b]
		if v[b] < v[a] {
			v[a], v[b] = v[b], v[a]
		}
	}
}

// quicksort3Way partitions into <, ==, and > bands (Dutch national flag),
// which collapses duplicate-heavy inputs in linear time.
func quicksort3Way[T cmp.Ordered](v []T) {
	for len(v) > threeWayCutoff {
		p := medianOfThreeValue(v)
		lt, i, gt := 0, 0, len(v)
		for i < gt {
			switch {
			case v[i] < p:
				v[i], v[lt] = v[lt], v[i]
				lt++
				i++
			case v[i] > p:
				gt--
				v[i], v[gt] = v[gt], v[i]
			default:
				i++
			}
		}
		if lt < len(v)-gt {
			quicksort3Way(v[:lt])
			v = v[gt:]
		} else {
			quicksort3Way(v[gt:])
			v = v[:lt]
		}
	}
	insertionSort(v)
}

func medianOfThreeValue[T cmp.Ordered](v []T) T {
	a, b, c := v[0], v[len(v)/2], v[len(v)-1]
	if b < a {
		a, b = b, a
	}
	if c < b {
		b = c
		if b < a {
			b = a
		}
	}
	return b
}

// ---- radix (integer element types only) ----

func radixI32(v []int32) {
	keys := make([]uint32, len(v))
	for i, x := range v {
		keys[i] = uint32(x) ^ 1<<31
	}
	radixPasses32(keys)
	for i, k := range keys {
		v[i] = int32(k ^ 1<<31)
	}
}

func radixU32(v []uint32) {
	radixPasses32(v)
}

func radixI64(v []int64) {
	keys := make([]uint64, len(v))
	for i, x := range v {
		keys[i] = uint64(x) ^ 1<<63
	}
	radixPasses64(keys)
	for i, k := range keys {
		v[i] = int64(k ^ 1<<63)
	}
}

func radixU64(v []uint64) {
	radixPasses64(v)
}

// radixPasses32 is an LSD byte-at-a-time counting sort. Four passes is an
// even number, so the sorted data ends up back in the caller's slice.
func radixPasses32(v []uint32) {
	buf := make([]uint32, len(v))
	var count [256]int
	for shift := 0; shift < 32; shift += 8 {
		clear(count[:])
		for _, x := range v {
			count[(x>>shift)&0xFF]++
		}
		pos := 0
		for i, c := range count {
			count[i] = pos
			pos += c
		}
		for _, x := range v {
			buf[count[(x>>shift)&0xFF]] = x
			count[(x>>shift)&0xFF]++
		}
		v, buf = buf, v
	}
}

func radixPasses64(v []uint64) {
	buf := make([]uint64, len(v))
	var count [256]int
	for shift := 0; shift < 64; shift += 8 {
		clear(count[:])
		for _, x := range v {
			count[(x>>shift)&0xFF]++
		}
		pos := 0
		for i, c := range count {
			count[i] = pos
			pos += c
		}
		for _, x := range v {
			buf[count[(x>>shift)&0xFF]] = x
			count[(x>>shift)&0xFF]++
		}
		v, buf = buf, v
	}
}
