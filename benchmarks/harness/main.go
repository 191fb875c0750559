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

// The sweep harness runs the engine across a geometric ladder of input
// sizes and streams one CSV document, so scaling behavior across algorithms
// can be plotted or diffed from a single invocation.
//
// Usage:
//
//	go run ./benchmarks/harness -start 1000 -end 1000000 -dist zipf \
//	    -algo std_sort,timsort,quicksort_hybrid -baseline std_sort > sweep.csv
//
// Sizes double from -start and always end exactly at -end. Progress and
// warnings go to stderr; only CSV goes to stdout. With -pprof set, a
// net/http/pprof server runs for profiling long sweeps.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sortbench"
)

func main() {
	var (
		start    = flag.Int("start", 1_000, "first input size of the ladder")
		end      = flag.Int("end", 1_000_000, "last input size of the ladder")
		distName = flag.String("dist", "random", "input distribution")
		typeName = flag.String("type", "i32", "element type")
		algos    = flag.String("algo", "std_sort,heap_sort,timsort,quicksort_hybrid", "comma-separated algorithms")
		repeats  = flag.Int("repeat", 3, "timed repetitions per algorithm and size")
		seed     = flag.Uint64("seed", sortbench.DefaultSeed, "generator seed")
		baseline = flag.String("baseline", "", "baseline algorithm for the speedup column")
		pprofOn  = flag.String("pprof", "", "serve net/http/pprof on this address (empty = off)")
	)
	flag.Parse()

	dist, ok := sortbench.ParseDist(*distName)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -dist: %s\n", *distName)
		os.Exit(1)
	}
	elemType, ok := sortbench.ParseElemType(*typeName)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -type: %s\n", *typeName)
		os.Exit(1)
	}

	if *pprofOn != "" {
		go func() {
			if err := http.ListenAndServe(*pprofOn, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof: %v\n", err)
			}
		}()
	}

	cfg := sortbench.DefaultConfig()
	cfg.Dist = dist
	cfg.Type = elemType
	cfg.Repeats = *repeats
	cfg.Seed = *seed
	cfg.Baseline = *baseline
	if *algos != "" {
		cfg.Algos = strings.Split(*algos, ",")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runSweep(ctx, cfg, sweepSizes(*start, *end), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// sweepSizes builds the ladder: doubling from start, always ending exactly
// at end. start == end yields a single size.
func sweepSizes(start, end int) []int {
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}
	var sizes []int
	for cur := start; cur < end; cur <<= 1 {
		sizes = append(sizes, cur)
		if cur > math.MaxInt/2 {
			break
		}
	}
	if len(sizes) == 0 || sizes[len(sizes)-1] != end {
		sizes = append(sizes, end)
	}
	return sizes
}

// runSweep executes one engine invocation per size and streams a single CSV
// document to out: the header once, then every size's rows.
func runSweep(ctx context.Context, cfg sortbench.Config, sizes []int, out io.Writer) error {
	for i, n := range sizes {
		cfg.N = n
		began := time.Now()
		res, err := sortbench.Run(ctx, cfg)
		if err != nil {
			return fmt.Errorf("size %d: %w", n, err)
		}
		for _, w := range res.Warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
		if _, err := io.WriteString(out, res.ToCSV(i == 0)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "sweep: N=%d done in %s\n", n, time.Since(began).Truncate(time.Millisecond))
	}
	return nil
}
