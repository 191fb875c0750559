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

package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sortbench/internal/service/request"
	"sortbench/internal/service/telemetry"
)

// memJob pairs the visible record with its cancel token. The per-record
// mutex prevents publication tears between the worker goroutine and
// polling readers; the map-level lock only guards membership.
type memJob struct {
	mu     sync.Mutex
	job    Job
	cancel context.CancelFunc
}

// MemoryStore runs each job on its own goroutine and keeps records in a
// map for the process lifetime. It is the default store when no
// database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*memJob

	runner  Runner
	timeout time.Duration
	log     *zap.Logger
}

// NewMemoryStore builds the in-memory store. Async runs execute under
// the server default timeout regardless of any request timeout_ms.
func NewMemoryStore(runner Runner, timeout time.Duration, log *zap.Logger) *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*memJob),
		runner:  runner,
		timeout: timeout,
		log:     log,
	}
}

// Enqueue records a pending job and starts its goroutine. The returned
// id is immediately pollable.
func (s *MemoryStore) Enqueue(_ context.Context, req request.Request) (string, error) {
	runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	rec := &memJob{
		job: Job{
			ID:        newMemoryID(),
			Status:    StatusPending,
			CreatedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}

	s.mu.Lock()
	s.jobs[rec.job.ID] = rec
	s.mu.Unlock()

	telemetry.JobsSubmitted.Inc()
	go s.execute(runCtx, rec, req)
	return rec.job.ID, nil
}

func (s *MemoryStore) execute(ctx context.Context, rec *memJob, req request.Request) {
	defer rec.cancel()

	rec.mu.Lock()
	if rec.job.Status != StatusPending {
		// canceled before the goroutine was scheduled
		rec.mu.Unlock()
		return
	}
	started := time.Now().UTC()
	rec.job.Status = StatusRunning
	rec.job.StartedAt = &started
	rec.mu.Unlock()

	telemetry.JobsRunning.Inc()
	defer telemetry.JobsRunning.Dec()

	if d := testDelay(); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}

	var out []byte
	var err error
	if ctx.Err() != nil {
		err = ctx.Err()
	} else {
		out, err = s.runner.Run(ctx, req)
	}

	finished := time.Now().UTC()
	rec.mu.Lock()
	rec.job.FinishedAt = &finished
	dur := finished.Sub(*rec.job.StartedAt).Milliseconds()
	rec.job.DurationMs = &dur
	switch {
	case err == nil:
		rec.job.Status = StatusDone
		rec.job.Result = out
	case ctx.Err() != nil:
		rec.job.Status = StatusCanceled
		rec.job.Error = ctx.Err().Error()
	default:
		rec.job.Status = StatusFailed
		rec.job.Error = err.Error()
	}
	result := string(rec.job.Status)
	rec.mu.Unlock()

	telemetry.JobsCompleted.WithLabelValues(result).Inc()
	telemetry.JobDuration.WithLabelValues(result).Observe(float64(dur) / 1000.0)
	if err != nil {
		s.log.Warn("job finished with error",
			zap.String("job_id", rec.job.ID),
			zap.String("status", result),
			zap.Error(err))
	}
}

// Get returns a snapshot of the record.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	rec, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	snap := rec.job
	rec.mu.Unlock()
	return &snap, nil
}

// Cancel fires the job's cancel token. A job still pending transitions
// straight to canceled; a terminal job is left untouched.
func (s *MemoryStore) Cancel(_ context.Context, id string) error {
	s.mu.RLock()
	rec, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	s.cancelRecord(rec)
	return nil
}

func (s *MemoryStore) cancelRecord(rec *memJob) {
	rec.mu.Lock()
	switch rec.job.Status {
	case StatusPending:
		now := time.Now().UTC()
		rec.job.Status = StatusCanceled
		rec.job.FinishedAt = &now
		rec.mu.Unlock()
		rec.cancel()
		telemetry.JobsCompleted.WithLabelValues(string(StatusCanceled)).Inc()
	case StatusRunning:
		rec.mu.Unlock()
		rec.cancel()
	default:
		rec.mu.Unlock()
	}
}

// ActiveCount is the number of records still pending or running.
func (s *MemoryStore) ActiveCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.jobs {
		rec.mu.Lock()
		if !rec.job.Status.Terminal() {
			n++
		}
		rec.mu.Unlock()
	}
	return n, nil
}

// CancelAll signals every non-terminal job. Used on shutdown.
func (s *MemoryStore) CancelAll() {
	s.mu.RLock()
	recs := make([]*memJob, 0, len(s.jobs))
	for _, rec := range s.jobs {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()
	for _, rec := range recs {
		s.cancelRecord(rec)
	}
}

// Close is a no-op; records live for the process lifetime.
func (s *MemoryStore) Close() error { return nil }
