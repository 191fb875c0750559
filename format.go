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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
)

func (t ElemType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (d Dist) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalJSON flattens the timing stats into the row object and emits the
// speedup column only when a baseline matched.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	type row struct {
		Algo     string   `json:"algo"`
		N        int      `json:"N"`
		Dist     Dist     `json:"dist"`
		MedianMS float64  `json:"median_ms"`
		MeanMS   float64  `json:"mean_ms"`
		MinMS    float64  `json:"min_ms"`
		MaxMS    float64  `json:"max_ms"`
		StddevMS float64  `json:"stddev_ms"`
		Speedup  *float64 `json:"speedup_vs_baseline,omitempty"`
	}
	out := row{
		Algo:     r.Algo,
		N:        r.N,
		Dist:     r.Dist,
		MedianMS: r.Stats.MedianMS,
		MeanMS:   r.Stats.MeanMS,
		MinMS:    r.Stats.MinMS,
		MaxMS:    r.Stats.MaxMS,
		StddevMS: r.Stats.StddevMS,
	}
	if r.HasSpeedup {
		out.Speedup = &r.SpeedupVsBaseline
	}
	return json.Marshal(out)
}

// ToJSON renders the whole result as one JSON document.
func (r *RunResult) ToJSON(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}

// ToJSONL renders one row object per line.
func (r *RunResult) ToJSONL() ([]byte, error) {
	var b bytes.Buffer
	for _, row := range r.Rows {
		line, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

// ToCSV renders one line per row with timings fixed to three decimals,
// preceded by a header unless withHeader is false. The speedup column
// appears only when a baseline matched.
func (r *RunResult) ToCSV(withHeader bool) string {
	speedup := false
	for _, row := range r.Rows {
		if row.HasSpeedup {
			speedup = true
			break
		}
	}
	var b strings.Builder
	if withHeader {
		b.WriteString("algo,N,dist,median_ms,mean_ms,min_ms,max_ms,stddev_ms")
		if speedup {
			b.WriteString(",speedup_vs_baseline")
		}
		b.WriteByte('\n')
	}
	for _, row := range r.Rows {
		b.WriteString(row.Algo)
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(row.N))
		b.WriteByte(',')
		b.WriteString(row.Dist.String())
		for _, v := range []float64{row.Stats.MedianMS, row.Stats.MeanMS, row.Stats.MinMS, row.Stats.MaxMS, row.Stats.StddevMS} {
			b.WriteByte(',')
			b.WriteString(fixed3(v))
		}
		if speedup {
			b.WriteByte(',')
			b.WriteString(fixed3(row.SpeedupVsBaseline))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ToTable renders an aligned human-readable table with a run header line.
func (r *RunResult) ToTable() string {
	speedup := false
	for _, row := range r.Rows {
		if row.HasSpeedup {
			speedup = true
			break
		}
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "n=%d dist=%s type=%s\n", r.N, r.Dist, r.Type)
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	if speedup {
		fmt.Fprintln(w, "algo\tmedian_ms\tmean_ms\tmin_ms\tmax_ms\tstddev_ms\tspeedup")
	} else {
		fmt.Fprintln(w, "algo\tmedian_ms\tmean_ms\tmin_ms\tmax_ms\tstddev_ms")
	}
	for _, row := range r.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s", row.Algo,
			fixed3(row.Stats.MedianMS), fixed3(row.Stats.MeanMS),
			fixed3(row.Stats.MinMS), fixed3(row.Stats.MaxMS), fixed3(row.Stats.StddevMS))
		if speedup {
			fmt.Fprintf(w, "\t%sx", fixed3(row.SpeedupVsBaseline))
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	return buf.String()
}

func fixed3(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
