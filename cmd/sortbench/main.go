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

// Command sortbench benchmarks sorting algorithms from the terminal: it
// generates one input array, times every selected algorithm over fresh
// copies of it, and prints the result rows as CSV (default), an aligned
// table, JSON, or JSONL.
//
//	sortbench --N 1e6 --dist zipf --type u64 --baseline std_sort
//	sortbench --N 500k --algo std_sort,timsort --format table
//	sortbench --list-algos --type f32
//
// The service's shell integration execs this binary with --format json and
// reads the rows field of the printed document, so the JSON shape here is
// load-bearing.
//
// Exit codes: 0 on success, 1 on a usage error, 2 on an engine failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"sortbench"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// stringList collects a repeatable flag into a slice.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	def := sortbench.DefaultConfig()

	fs := flag.NewFlagSet("sortbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		sizeExpr     = fs.String("N", strconv.Itoa(def.N), "input size: integer, scientific, or k/m/g suffix (1e6, 500k)")
		distName     = fs.String("dist", def.Dist.String(), "input distribution (see --list-dists)")
		typeName     = fs.String("type", def.Type.String(), "element type: i32|u32|i64|u64|f32|f64|str")
		algoList     = fs.String("algo", "", "comma-separated algorithm names to run (empty = all)")
		excludeList  = fs.String("exclude", "", "comma-separated algorithm names to drop")
		repeats      = fs.Int("repeat", def.Repeats, "timed repetitions per algorithm")
		warmup       = fs.Int("warmup", def.Warmup, "untimed warmup passes per algorithm")
		seed         = fs.Uint64("seed", def.Seed, "generator seed")
		threads      = fs.Int("threads", 0, "concurrent timing workers (0 = sequential)")
		assertSorted = fs.Bool("assert-sorted", false, "fail the run if any output is out of order")
		verify       = fs.Bool("verify", false, "compare every output against a reference sort")
		baseline     = fs.String("baseline", "", "algorithm whose median anchors the speedup column")
		format       = fs.String("format", "csv", "output format: csv|table|json|jsonl")
		outPath      = fs.String("out", "", "write output to this file instead of stdout")
		noHeader     = fs.Bool("no-header", false, "omit the CSV header row")
		pretty       = fs.Bool("pretty", false, "indent JSON output")
		listAlgos    = fs.Bool("list-algos", false, "print the algorithm names for --type and exit")
		listDists    = fs.Bool("list-dists", false, "print the distribution names and exit")
		showVersion  = fs.Bool("version", false, "print the engine version and exit")
	)
	var plugins stringList
	fs.Var(&plugins, "plugin", "plugin library path (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		return 1
	}

	if *showVersion {
		fmt.Fprintln(stdout, "sortbench "+sortbench.Version)
		return 0
	}

	if *listDists {
		for _, d := range sortbench.Dists() {
			fmt.Fprintln(stdout, d)
		}
		return 0
	}

	elemType, ok := sortbench.ParseElemType(*typeName)
	if !ok {
		fmt.Fprintf(stderr, "invalid --type: %s\n", *typeName)
		return 1
	}

	if *listAlgos {
		names, warns, err := sortbench.ListAlgorithms(elemType, plugins)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		for _, w := range warns {
			fmt.Fprintln(stderr, "warning:", w)
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}
		return 0
	}

	dist, ok := sortbench.ParseDist(*distName)
	if !ok {
		fmt.Fprintf(stderr, "invalid --dist: %s\n", *distName)
		return 1
	}
	switch *format {
	case "csv", "table", "json", "jsonl":
	default:
		fmt.Fprintf(stderr, "invalid --format: %s (want csv|table|json|jsonl)\n", *format)
		return 1
	}
	n, err := parseSizeExpr(*sizeExpr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg := def
	cfg.N = n
	cfg.Dist = dist
	cfg.Type = elemType
	cfg.Repeats = *repeats
	cfg.Warmup = *warmup
	cfg.Seed = *seed
	cfg.Threads = *threads
	cfg.AssertSorted = *assertSorted
	cfg.Verify = *verify
	cfg.Algos = splitNames(*algoList)
	cfg.Exclude = splitNames(*excludeList)
	cfg.Baseline = *baseline
	cfg.Plugins = plugins

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := sortbench.Run(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(stderr, "warning:", w)
	}

	var rendered []byte
	switch *format {
	case "csv":
		rendered = []byte(res.ToCSV(!*noHeader))
	case "table":
		rendered = []byte(res.ToTable())
	case "json":
		rendered, err = res.ToJSON(*pretty)
	case "jsonl":
		rendered, err = res.ToJSONL()
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if len(rendered) > 0 && rendered[len(rendered)-1] != '\n' {
		rendered = append(rendered, '\n')
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, rendered, 0o644); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		return 0
	}
	if _, err := stdout.Write(rendered); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	return 0
}

// parseSizeExpr reads an input size given as a plain integer, in scientific
// notation, or with a k/m/g decimal suffix.
func parseSizeExpr(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if s == "" {
		return 0, fmt.Errorf("invalid size expression: %q", s)
	}
	num, mul := s, 1.0
	switch strings.ToLower(s[len(s)-1:]) {
	case "k":
		num, mul = s[:len(s)-1], 1e3
	case "m":
		num, mul = s[:len(s)-1], 1e6
	case "g":
		num, mul = s[:len(s)-1], 1e9
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid size expression: %s", s)
	}
	return int(f * mul), nil
}

// splitNames turns a comma-separated flag value into a clean name list.
func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
