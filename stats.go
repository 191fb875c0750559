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
	"math"
	"slices"
)

// TimingStats summarizes the timed passes of one algorithm, in milliseconds.
type TimingStats struct {
	MedianMS float64 `json:"median_ms"`
	MeanMS   float64 `json:"mean_ms"`
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
	StddevMS float64 `json:"stddev_ms"`
}

// computeStats reduces the samples. The median of an even count is the mean
// of the two middle values; stddev is the population form and zero for fewer
// than two samples.
func computeStats(samples []float64) TimingStats {
	if len(samples) == 0 {
		return TimingStats{}
	}
	s := slices.Clone(samples)
	slices.Sort(s)
	n := len(s)
	st := TimingStats{MinMS: s[0], MaxMS: s[n-1]}
	if n%2 == 1 {
		st.MedianMS = s[n/2]
	} else {
		st.MedianMS = (s[n/2-1] + s[n/2]) / 2
	}
	sum := 0.0
	for _, x := range s {
		sum += x
	}
	st.MeanMS = sum / float64(n)
	if n >= 2 {
		ss := 0.0
		for _, x := range s {
			d := x - st.MeanMS
			ss += d * d
		}
		st.StddevMS = math.Sqrt(ss / float64(n))
	}
	return st
}
