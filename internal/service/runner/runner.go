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

// Package runner executes benchmark requests through one of two engine
// integration modes: in-process (the engine linked into this binary) or
// shell (exec of an external sortbench CLI). Both produce the same
// canonical bytes: the JSON array of result rows.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"sortbench"
	"sortbench/internal/service/config"
	"sortbench/internal/service/jobs"
	"sortbench/internal/service/request"
	"sortbench/internal/service/telemetry"
)

// InProcess invokes the linked engine directly. This is the default
// mode and the fallback when a configured binary is missing.
type InProcess struct{}

func NewInProcess() *InProcess { return &InProcess{} }

func (r *InProcess) Mode() string { return "in-process" }

func (r *InProcess) Run(ctx context.Context, req request.Request) (json.RawMessage, error) {
	start := time.Now()
	res, err := sortbench.Run(ctx, req.EngineCall())
	if err != nil {
		return nil, err
	}
	telemetry.RunDuration.WithLabelValues(r.Mode(), req.Dist, req.Type).
		Observe(time.Since(start).Seconds())
	out, err := json.Marshal(res.Rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return out, nil
}

// Shell invokes an external sortbench binary and extracts the rows
// array from its JSON output. The child is killed when ctx ends.
type Shell struct {
	bin string
	log *zap.Logger
}

func NewShell(bin string, log *zap.Logger) *Shell {
	return &Shell{bin: bin, log: log}
}

func (s *Shell) Mode() string { return "shell" }

func (s *Shell) Run(ctx context.Context, req request.Request) (json.RawMessage, error) {
	args := buildArgs(req)
	cmd := exec.CommandContext(ctx, s.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("sortbench failed: %s", msg)
		}
		return nil, fmt.Errorf("sortbench failed: %s", err)
	}
	telemetry.RunDuration.WithLabelValues(s.Mode(), req.Dist, req.Type).
		Observe(time.Since(start).Seconds())

	var out struct {
		Rows json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse sortbench output: %w", err)
	}
	if len(out.Rows) == 0 {
		return nil, fmt.Errorf("parse sortbench output: missing rows")
	}
	return out.Rows, nil
}

// buildArgs renders the canonical engine call as CLI flags. Fields the
// CLI has no flag for (the distribution tunables) are carried only by
// the in-process mode.
func buildArgs(req request.Request) []string {
	args := []string{
		"--N", strconv.FormatInt(req.N, 10),
		"--dist", req.Dist,
		"--type", req.Type,
		"--format", "json",
	}
	if req.Repeats > 0 {
		args = append(args, "--repeat", strconv.Itoa(req.Repeats))
	}
	if req.Warmup > 0 {
		args = append(args, "--warmup", strconv.Itoa(req.Warmup))
	}
	if req.Seed != nil {
		args = append(args, "--seed", strconv.FormatUint(*req.Seed, 10))
	}
	if len(req.Algos) > 0 {
		args = append(args, "--algo", strings.Join(req.Algos, ","))
	}
	if req.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(req.Threads))
	}
	if req.AssertSorted {
		args = append(args, "--assert-sorted")
	}
	if req.Verify {
		args = append(args, "--verify")
	}
	if req.Baseline != nil && *req.Baseline != "" {
		args = append(args, "--baseline", *req.Baseline)
	}
	for _, p := range req.Plugins {
		args = append(args, "--plugin", p)
	}
	return args
}

// Select picks the startup-fixed execution mode: shell when a binary is
// configured and resolvable, in-process otherwise.
func Select(cfg *config.Config, log *zap.Logger) jobs.Runner {
	if cfg.Bin != "" && !cfg.ForceInProcess {
		if _, err := exec.LookPath(cfg.Bin); err != nil {
			log.Warn("sortbench binary not found, using in-process engine",
				zap.String("bin", cfg.Bin), zap.Error(err))
			return NewInProcess()
		}
		return NewShell(cfg.Bin, log)
	}
	return NewInProcess()
}
