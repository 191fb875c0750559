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

// Package jobs implements the async job system: the job record and its
// lifecycle, the store contract shared by the in-memory and durable
// variants, the in-memory store itself, and the worker pool that drives
// leased jobs in durable mode.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"sortbench/internal/service/request"
)

// Status is a job lifecycle state. Transitions are monotonic:
// pending → running → {done, failed, canceled}; terminal states are
// sticky. A canceled-while-pending job skips running entirely.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Terminal reports whether the state admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCanceled
}

// Job is the externally visible job record. Result holds the raw engine
// rows for done jobs; Error is set for failed and canceled ones (and may
// be empty for canceled). Pointer timestamps keep absent fields out of
// the JSON instead of rendering zero times.
type Job struct {
	ID         string          `json:"id"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	DurationMs *int64          `json:"duration_ms,omitempty"`
}

// ErrNotFound is returned by store lookups for unknown job ids.
var ErrNotFound = errors.New("not found")

// Runner executes one engine invocation and returns the raw rows JSON.
// Both the in-process and the shell engine satisfy this.
type Runner interface {
	Run(ctx context.Context, req request.Request) (json.RawMessage, error)
	Mode() string
}

// Store is the contract shared by the in-memory and durable job stores.
// Cancel on a terminal job is a no-op; on an unknown id it returns
// ErrNotFound.
type Store interface {
	Enqueue(ctx context.Context, req request.Request) (string, error)
	Get(ctx context.Context, id string) (*Job, error)
	Cancel(ctx context.Context, id string) error
	ActiveCount(ctx context.Context) (int, error)
	CancelAll()
	Close() error
}

// CancelRegistry maps a leased job id to its cancel token while the job
// executes on this process. Entries live only for the duration of the
// lease, so no reference survives the run.
type CancelRegistry struct {
	mu sync.Mutex
	m  map[string]context.CancelFunc
}

// NewCancelRegistry returns an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{m: make(map[string]context.CancelFunc)}
}

// Register installs the cancel token for a job.
func (c *CancelRegistry) Register(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	c.m[id] = cancel
	c.mu.Unlock()
}

// Unregister removes the token without firing it.
func (c *CancelRegistry) Unregister(id string) {
	c.mu.Lock()
	delete(c.m, id)
	c.mu.Unlock()
}

// Cancel fires the token for id if one is registered and reports
// whether it was.
func (c *CancelRegistry) Cancel(id string) bool {
	c.mu.Lock()
	cancel, ok := c.m[id]
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll fires every registered token. Used on shutdown.
func (c *CancelRegistry) CancelAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.m))
	for _, fn := range c.m {
		cancels = append(cancels, fn)
	}
	c.mu.Unlock()
	for _, fn := range cancels {
		fn()
	}
}

// newMemoryID derives a time-based id for the in-memory store. Durable
// jobs use UUIDs instead; these ids only need uniqueness within one
// process lifetime.
func newMemoryID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// testDelay reads the per-invocation job delay hook. It exists so
// cancellation races are testable; outside tests the variable is unset
// and this returns zero.
func testDelay() time.Duration {
	v := os.Getenv("SB_TEST_JOB_DELAY_MS")
	if v == "" {
		return 0
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
