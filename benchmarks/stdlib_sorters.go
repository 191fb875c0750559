package benchmarks

import (
	"math/rand"
	"slices"
	"sort"
)

// referenceSorter is a standard-library competitor for the comparison
// benchmarks: same input, no registry or stats machinery around it.
type referenceSorter struct {
	name string
	fn   func([]int32)
}

var referenceSorters = []referenceSorter{
	{"slices_sort", func(v []int32) { slices.Sort(v) }},
	{"sort_slice", func(v []int32) {
		sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	}},
	{"sort_slice_stable", func(v []int32) {
		sort.SliceStable(v, func(i, j int) bool { return v[i] < v[j] })
	}},
}

func randomInt32s(n int, seed int64) []int32 {
	r := rand.New(rand.NewSource(seed))
	v := make([]int32, n)
	for i := range v {
		v[i] = int32(r.Uint32())
	}
	return v
}
