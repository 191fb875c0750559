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
	"encoding/json"
	"strings"
	"testing"
)

func sampleResult(withSpeedup bool) *RunResult {
	rows := []ResultRow{
		{
			Algo:  "std_sort",
			N:     10,
			Dist:  DistRandom,
			Stats: TimingStats{MedianMS: 1.5, MeanMS: 1.5, MinMS: 1.25, MaxMS: 1.75, StddevMS: 0.25},
		},
		{
			Algo:  "heap_sort",
			N:     10,
			Dist:  DistRandom,
			Stats: TimingStats{MedianMS: 3, MeanMS: 3, MinMS: 3, MaxMS: 3, StddevMS: 0},
		},
	}
	if withSpeedup {
		rows[0].SpeedupVsBaseline = 1
		rows[0].HasSpeedup = true
		rows[1].SpeedupVsBaseline = 0.5
		rows[1].HasSpeedup = true
	}
	return &RunResult{N: 10, Dist: DistRandom, Type: I32, Rows: rows}
}

// TestResultRowJSON pins the flat row encoding: stats inline, fixed key
// order, speedup only when a baseline matched.
func TestResultRowJSON(t *testing.T) {
	t.Run("WithoutSpeedup", func(t *testing.T) {
		b, err := json.Marshal(sampleResult(false).Rows[0])
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		want := `{"algo":"std_sort","N":10,"dist":"random","median_ms":1.5,"mean_ms":1.5,"min_ms":1.25,"max_ms":1.75,"stddev_ms":0.25}`
		if string(b) != want {
			t.Errorf("row JSON = %s\nwant       %s", b, want)
		}
	})

	t.Run("WithSpeedup", func(t *testing.T) {
		b, err := json.Marshal(sampleResult(true).Rows[1])
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if !strings.Contains(string(b), `"speedup_vs_baseline":0.5`) {
			t.Errorf("row JSON missing speedup: %s", b)
		}
	})
}

// TestToJSON covers the top-level document: n, dist, and type rendered as
// strings, rows nested, warnings omitted when empty.
func TestToJSON(t *testing.T) {
	b, err := sampleResult(false).ToJSON(false)
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["n"] != float64(10) || doc["dist"] != "random" || doc["type"] != "i32" {
		t.Errorf("header fields = %v/%v/%v", doc["n"], doc["dist"], doc["type"])
	}
	if _, ok := doc["warnings"]; ok {
		t.Error("empty warnings serialized")
	}
	rows, ok := doc["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %v", doc["rows"])
	}
}

// TestToJSONL emits exactly one object per row.
func TestToJSONL(t *testing.T) {
	b, err := sampleResult(true).ToJSONL()
	if err != nil {
		t.Fatalf("ToJSONL failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for i, line := range lines {
		var doc map[string]any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		if doc["algo"] == "" {
			t.Errorf("line %d missing algo", i)
		}
	}
}

// TestToCSV pins the header, the three-decimal columns, and the conditional
// speedup column.
func TestToCSV(t *testing.T) {
	t.Run("WithoutSpeedup", func(t *testing.T) {
		got := sampleResult(false).ToCSV(true)
		want := "algo,N,dist,median_ms,mean_ms,min_ms,max_ms,stddev_ms\n" +
			"std_sort,10,random,1.500,1.500,1.250,1.750,0.250\n" +
			"heap_sort,10,random,3.000,3.000,3.000,3.000,0.000\n"
		if got != want {
			t.Errorf("csv =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("WithSpeedup", func(t *testing.T) {
		got := sampleResult(true).ToCSV(true)
		want := "algo,N,dist,median_ms,mean_ms,min_ms,max_ms,stddev_ms,speedup_vs_baseline\n" +
			"std_sort,10,random,1.500,1.500,1.250,1.750,0.250,1.000\n" +
			"heap_sort,10,random,3.000,3.000,3.000,3.000,0.000,0.500\n"
		if got != want {
			t.Errorf("csv =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("NoHeader", func(t *testing.T) {
		got := sampleResult(false).ToCSV(false)
		want := "std_sort,10,random,1.500,1.500,1.250,1.750,0.250\n" +
			"heap_sort,10,random,3.000,3.000,3.000,3.000,0.000\n"
		if got != want {
			t.Errorf("csv =\n%s\nwant\n%s", got, want)
		}
	})
}

// TestToTable spot-checks the human-readable rendering: run header line,
// column header, and the x-suffixed speedup.
func TestToTable(t *testing.T) {
	out := sampleResult(true).ToTable()
	if !strings.HasPrefix(out, "n=10 dist=random type=i32\n") {
		t.Errorf("missing run header: %q", out)
	}
	if !strings.Contains(out, "median_ms") || !strings.Contains(out, "speedup") {
		t.Errorf("missing column headers: %q", out)
	}
	if !strings.Contains(out, "0.500x") {
		t.Errorf("missing speedup cell: %q", out)
	}
	if sorted := sampleResult(false).ToTable(); strings.Contains(sorted, "speedup") {
		t.Errorf("speedup column present without baseline: %q", sorted)
	}
}
