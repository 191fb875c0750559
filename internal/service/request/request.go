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

// Package request defines the benchmark request wire format, its
// validation against the configured caps, and the translation into an
// engine invocation. Validation and translation are separate steps:
// EngineCall assumes Validate has passed.
package request

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"sortbench"
)

// Request is the body of POST /run and POST /jobs. Unknown fields are
// ignored on decode. Seed and Baseline are pointers so an explicit zero
// value is distinguishable from absence.
type Request struct {
	N            int64    `json:"N"`
	Dist         string   `json:"dist"`
	Type         string   `json:"type"`
	Repeats      int      `json:"repeats,omitempty"`
	Warmup       int      `json:"warmup,omitempty"`
	Seed         *uint64  `json:"seed,omitempty"`
	Threads      int      `json:"threads,omitempty"`
	AssertSorted bool     `json:"assert_sorted,omitempty"`
	Verify       bool     `json:"verify,omitempty"`
	Baseline     *string  `json:"baseline,omitempty"`
	Algos        []string `json:"algos,omitempty"`
	Plugins      []string `json:"plugins,omitempty"`
	TimeoutMs    int      `json:"timeout_ms,omitempty"`

	// Distribution tunables; zero means engine default.
	PartialShufflePct int     `json:"partial_shuffle_pct,omitempty"`
	DupValues         int     `json:"dup_values,omitempty"`
	ZipfS             float64 `json:"zipf_s,omitempty"`
	RunsAlpha         float64 `json:"runs_alpha,omitempty"`
	StaggerBlock      int     `json:"stagger_block,omitempty"`
}

// Limits are the request caps the validator enforces.
type Limits struct {
	MaxN       int64
	MaxRepeats int
	MaxThreads int // 0 = uncapped
}

// Validate bounds-checks every numeric field and membership-checks the
// enumerated ones. It returns a single-line error suitable for the
// response body; no partially valid request propagates.
func (r *Request) Validate(lim Limits) error {
	if r.N <= 0 || r.N > lim.MaxN {
		return fmt.Errorf("N must be in [1,%d]", lim.MaxN)
	}
	if r.Repeats < 0 || r.Repeats > lim.MaxRepeats {
		return fmt.Errorf("repeats must be in [0,%d]", lim.MaxRepeats)
	}
	if _, ok := sortbench.ParseDist(r.Dist); !ok {
		return fmt.Errorf("invalid dist")
	}
	if _, ok := sortbench.ParseElemType(r.Type); !ok {
		return fmt.Errorf("invalid type")
	}
	if r.Warmup < 0 {
		return fmt.Errorf("warmup must be >= 0")
	}
	if r.Threads < 0 {
		return fmt.Errorf("threads must be >= 0")
	}
	if lim.MaxThreads > 0 && r.Threads > lim.MaxThreads {
		return fmt.Errorf("threads must be in [0,%d]", lim.MaxThreads)
	}
	if r.PartialShufflePct < 0 || r.DupValues < 0 || r.StaggerBlock < 0 {
		return fmt.Errorf("distribution tunables must be >= 0")
	}
	if r.ZipfS < 0 || r.RunsAlpha < 0 {
		return fmt.Errorf("distribution tunables must be >= 0")
	}
	return nil
}

// EngineCall translates a validated request into the engine invocation.
// The translation is total and deterministic: absent optional fields map
// to engine defaults.
func (r *Request) EngineCall() sortbench.Config {
	dist, _ := sortbench.ParseDist(r.Dist)
	typ, _ := sortbench.ParseElemType(r.Type)

	cfg := sortbench.Config{
		N:            int(r.N),
		Dist:         dist,
		Type:         typ,
		Repeats:      r.Repeats,
		Warmup:       r.Warmup,
		Seed:         sortbench.DefaultSeed,
		Threads:      r.Threads,
		AssertSorted: r.AssertSorted,
		Verify:       r.Verify,
		Algos:        r.Algos,
		Plugins:      r.Plugins,

		PartialShufflePct: r.PartialShufflePct,
		DupValues:         r.DupValues,
		ZipfS:             r.ZipfS,
		RunsAlpha:         r.RunsAlpha,
		StaggerBlock:      r.StaggerBlock,
	}
	if r.Seed != nil {
		cfg.Seed = *r.Seed
	}
	if r.Baseline != nil {
		cfg.Baseline = *r.Baseline
	}
	return cfg
}

// CacheKey derives the result-cache key from the canonical engine call,
// so two requests that run the same benchmark share a cache entry
// regardless of transport-level fields like timeout_ms.
func (r *Request) CacheKey() string {
	call := r.EngineCall()
	data, err := json.Marshal(call)
	if err != nil {
		// Config marshals cleanly; this path exists only for safety.
		data = []byte(fmt.Sprintf("%+v", call))
	}
	sum := sha256.Sum256(data)
	return "run:" + hex.EncodeToString(sum[:])
}
