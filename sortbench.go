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

// Package sortbench is a deterministic sort-benchmarking engine. Given an
// element type, an input distribution, and a set of algorithm names, it
// generates one input array from a seeded PRNG, runs each selected algorithm
// over identical copies of it, and reports per-algorithm timing statistics.
//
// The engine is pure computation: it performs no I/O, takes a context only to
// honor cancellation between passes, and is deterministic in its generated
// data for a fixed (seed, config) pair. Timing figures naturally vary run to
// run.
package sortbench

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"strings"
	"time"
)

// DefaultSeed is the generator seed used when a caller does not supply one.
const DefaultSeed uint64 = 0x9E3779B97F4A7C15

// seedStream is the second PCG initialization word; the caller-visible seed
// selects the first.
const seedStream uint64 = 0xBF58476D1CE4E5B9

// ElemType identifies the value type of the array being sorted.
type ElemType int

const (
	I32 ElemType = iota
	U32
	I64
	U64
	F32
	F64
	Str
)

var elemTypeNames = [...]string{"i32", "u32", "i64", "u64", "f32", "f64", "str"}

func (t ElemType) String() string {
	if t < 0 || int(t) >= len(elemTypeNames) {
		return "unknown"
	}
	return elemTypeNames[t]
}

// ParseElemType maps a wire name like "i32" to its tag.
func ParseElemType(s string) (ElemType, bool) {
	for i, n := range elemTypeNames {
		if n == strings.ToLower(s) {
			return ElemType(i), true
		}
	}
	return 0, false
}

// ElemTypes returns every supported element type name, in tag order.
func ElemTypes() []string {
	return slices.Clone(elemTypeNames[:])
}

// Dist names a strategy for generating the input array.
type Dist int

const (
	DistRandom Dist = iota
	DistPartial
	DistDups
	DistReverse
	DistSorted
	DistSaw
	DistRuns
	DistGauss
	DistExp
	DistZipf
	DistOrganPipe
	DistStaggered
	DistRunsHT
)

var distNames = [...]string{
	"random", "partial", "dups", "reverse", "sorted", "saw", "runs",
	"gauss", "exp", "zipf", "organpipe", "staggered", "runs_ht",
}

// distAliases accepts the spellings older front-ends used.
var distAliases = map[string]Dist{
	"organ-pipe": DistOrganPipe,
	"organ_pipe": DistOrganPipe,
	"runs-ht":    DistRunsHT,
	"runsht":     DistRunsHT,
}

func (d Dist) String() string {
	if d < 0 || int(d) >= len(distNames) {
		return "unknown"
	}
	return distNames[d]
}

// ParseDist maps a wire name like "runs" to its tag.
func ParseDist(s string) (Dist, bool) {
	s = strings.ToLower(s)
	for i, n := range distNames {
		if n == s {
			return Dist(i), true
		}
	}
	if d, ok := distAliases[s]; ok {
		return d, true
	}
	return 0, false
}

// Dists returns every supported distribution name, in tag order.
func Dists() []string {
	return slices.Clone(distNames[:])
}

// Config describes one engine invocation.
//
// Zero-valued distribution tunables take the documented defaults; everything
// else is used as given. Algos empty selects the full registry for the
// element type, Exclude then removes names from whatever was selected;
// Baseline empty disables speedup computation.
type Config struct {
	N            int
	Dist         Dist
	Type         ElemType
	Repeats      int
	Warmup       int
	Seed         uint64
	Threads      int
	AssertSorted bool
	Verify       bool
	Algos        []string
	Exclude      []string
	Baseline     string
	Plugins      []string

	// Distribution tunables. Zero means default.
	PartialShufflePct int     // partial: percent of N random swaps (default 10)
	DupValues         int     // dups/zipf: distinct value count (default 100)
	ZipfS             float64 // zipf: power-law exponent (default 1.2)
	RunsAlpha         float64 // runs_ht: run-length tail exponent (default 1.5)
	StaggerBlock      int     // staggered: block size (default 32)
}

// DefaultConfig returns the configuration the CLI starts from.
func DefaultConfig() Config {
	return Config{
		N:       1_000_000,
		Dist:    DistRandom,
		Type:    I32,
		Repeats: 5,
		Warmup:  1,
		Seed:    DefaultSeed,
	}
}

func (c Config) normalized() Config {
	if c.PartialShufflePct <= 0 {
		c.PartialShufflePct = 10
	}
	if c.PartialShufflePct > 100 {
		c.PartialShufflePct = 100
	}
	if c.DupValues <= 0 {
		c.DupValues = 100
	}
	if c.ZipfS <= 0 {
		c.ZipfS = 1.2
	}
	if c.RunsAlpha <= 0 {
		c.RunsAlpha = 1.5
	}
	if c.StaggerBlock <= 0 {
		c.StaggerBlock = 32
	}
	return c
}

func (c Config) check() error {
	if c.N < 1 {
		return engineErrf(ErrInvalidConfig, "N must be >= 1")
	}
	if c.Repeats < 0 {
		return engineErrf(ErrInvalidConfig, "repeats must be >= 0")
	}
	if c.Warmup < 0 {
		return engineErrf(ErrInvalidConfig, "warmup must be >= 0")
	}
	return nil
}

// ErrorKind classifies engine failures for callers that map them to
// different surfaces.
type ErrorKind string

const (
	ErrInvalidConfig ErrorKind = "invalid-config"
	ErrSortAssertion ErrorKind = "sort-assertion"
	ErrPluginLoad    ErrorKind = "plugin-load"
	ErrInternal      ErrorKind = "internal"
)

// EngineError is a classified engine failure.
type EngineError struct {
	Kind ErrorKind
	Msg  string
}

func (e *EngineError) Error() string { return e.Msg }

func engineErrf(kind ErrorKind, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ResultRow is the outcome of benchmarking one algorithm.
type ResultRow struct {
	Algo  string
	N     int
	Dist  Dist
	Stats TimingStats

	// SpeedupVsBaseline is the baseline median divided by this row's median;
	// meaningful only when HasSpeedup is set (a baseline row matched the run).
	SpeedupVsBaseline float64
	HasSpeedup        bool
}

// RunResult carries the rows of one invocation plus non-fatal diagnostics
// (skipped plugins and the like) the caller may want to log.
type RunResult struct {
	N        int         `json:"n"`
	Dist     Dist        `json:"dist"`
	Type     ElemType    `json:"type"`
	Rows     []ResultRow `json:"rows"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Run executes one benchmark invocation. The generated input is a pure
// function of (cfg.Seed, cfg); repeated calls time the same data. Selected
// algorithms that are unknown produce no row rather than an error. The
// context is checked between passes, so cancellation surfaces as ctx.Err().
//
// Threads > 0 caps GOMAXPROCS for the duration of the call. The cap is
// process-wide, like the thread limits it mirrors, so concurrent runs in
// one process share whatever cap was set last.
func Run(ctx context.Context, cfg Config) (*RunResult, error) {
	cfg = cfg.normalized()
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if cfg.Threads > 0 {
		old := runtime.GOMAXPROCS(cfg.Threads)
		defer runtime.GOMAXPROCS(old)
	}
	switch cfg.Type {
	case I32:
		return runTyped(ctx, cfg, i32Ops())
	case U32:
		return runTyped(ctx, cfg, u32Ops())
	case I64:
		return runTyped(ctx, cfg, i64Ops())
	case U64:
		return runTyped(ctx, cfg, u64Ops())
	case F32:
		return runTyped(ctx, cfg, f32Ops())
	case F64:
		return runTyped(ctx, cfg, f64Ops())
	case Str:
		return runTyped(ctx, cfg, strOps())
	default:
		return nil, engineErrf(ErrInvalidConfig, "invalid type")
	}
}

func runTyped[T cmp.Ordered](ctx context.Context, cfg Config, ops typeOps[T]) (*RunResult, error) {
	algos, warns, err := selectAlgorithms(cfg, ops)
	if err != nil {
		return nil, err
	}
	r := rand.New(rand.NewPCG(cfg.Seed, seedStream))
	base := makeData(r, cfg.N, cfg.Dist, cfg.tunables(), ops)
	var ref []T
	if cfg.Verify {
		ref = slices.Clone(base)
		slices.Sort(ref)
	}
	res := &RunResult{N: cfg.N, Dist: cfg.Dist, Type: cfg.Type, Rows: []ResultRow{}, Warnings: warns}
	rows, err := benchSelected(ctx, cfg, algos, base, ref)
	if err != nil {
		return nil, err
	}
	res.Rows = rows
	applyBaseline(res.Rows, cfg.Baseline)
	return res, nil
}

// benchSelected times every algorithm against identical copies of base.
func benchSelected[T cmp.Ordered](ctx context.Context, cfg Config, algos []Algorithm[T], base, ref []T) ([]ResultRow, error) {
	rows := make([]ResultRow, 0, len(algos))
	for _, a := range algos {
		for w := 0; w < cfg.Warmup; w++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if _, err := timedPass(cfg, a, base, ref); err != nil {
				return nil, err
			}
		}
		passes := cfg.Repeats
		if passes < 1 {
			passes = 1
		}
		samples := make([]float64, 0, passes)
		for p := 0; p < passes; p++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ms, err := timedPass(cfg, a, base, ref)
			if err != nil {
				return nil, err
			}
			samples = append(samples, ms)
		}
		rows = append(rows, ResultRow{Algo: a.Name, N: cfg.N, Dist: cfg.Dist, Stats: computeStats(samples)})
	}
	return rows, nil
}

// timedPass clones the input, sorts the copy, and returns the elapsed wall
// time in milliseconds. Ordering and (when ref is non-nil) element-wise
// equality checks run outside the timed window.
func timedPass[T cmp.Ordered](cfg Config, a Algorithm[T], base, ref []T) (float64, error) {
	work := slices.Clone(base)
	start := time.Now()
	a.Fn(work)
	elapsed := time.Since(start)
	if cfg.AssertSorted && !slices.IsSorted(work) {
		return 0, engineErrf(ErrSortAssertion, "Assertion failed: output not sorted (algo=%s)", a.Name)
	}
	if ref != nil && !slices.Equal(work, ref) {
		return 0, engineErrf(ErrSortAssertion, "Verification failed: output differs from reference (algo=%s)", a.Name)
	}
	return float64(elapsed) / float64(time.Millisecond), nil
}

// applyBaseline fills speedup columns when the named baseline produced a row.
// Matching is case-insensitive, like selection.
func applyBaseline(rows []ResultRow, baseline string) {
	if baseline == "" {
		return
	}
	med, found := 0.0, false
	for _, r := range rows {
		if strings.EqualFold(r.Algo, baseline) {
			med, found = r.Stats.MedianMS, true
			break
		}
	}
	if !found {
		return
	}
	for i := range rows {
		rows[i].SpeedupVsBaseline = med / math.Max(1e-12, rows[i].Stats.MedianMS)
		rows[i].HasSpeedup = true
	}
}

func (c Config) tunables() tunables {
	return tunables{
		partialPct:   c.PartialShufflePct,
		dupValues:    c.DupValues,
		zipfS:        c.ZipfS,
		runsAlpha:    c.RunsAlpha,
		staggerBlock: c.StaggerBlock,
	}
}
