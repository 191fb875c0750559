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
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sortbench/internal/service/request"
	"sortbench/internal/service/telemetry"
)

// leaseRetryDelay is how long an idle worker sleeps after finding no
// pending job.
const leaseRetryDelay = 100 * time.Millisecond

// Leased is one job handed to a worker: the row id and its decoded
// request.
type Leased struct {
	ID  string
	Req request.Request
}

// LeaseStore is the durable-store slice the pool depends on. Lease
// returns (nil, nil) when no pending job exists. Complete writes the
// terminal row; a nil context means the store applies its own default
// timeout.
type LeaseStore interface {
	Lease(ctx context.Context) (*Leased, error)
	Complete(ctx context.Context, id string, status Status, result json.RawMessage, errMsg string) error
	QueueDepth(ctx context.Context) (int, error)
}

// Pool drives leased jobs in durable mode: each worker loops sampling
// queue depth, leasing one pending job, running the engine under the
// default timeout and a registered cancel token, then writing the
// terminal row. Jobs are never retried; execution is at most once.
type Pool struct {
	store   LeaseStore
	runner  Runner
	reg     *CancelRegistry
	timeout time.Duration
	workers int
	log     *zap.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewPool builds a Pool with the given worker count.
func NewPool(store LeaseStore, runner Runner, reg *CancelRegistry, workers int, timeout time.Duration, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		store:    store,
		runner:   runner,
		reg:      reg,
		timeout:  timeout,
		workers:  workers,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("worker pool started", zap.Int("workers", p.workers))
}

// Stop terminates the workers and waits for in-flight jobs to write
// their terminal rows. Safe to call more than once.
func (p *Pool) Stop() {
	if !atomic.CompareAndSwapUint32(&p.stopped, 0, 1) {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		default:
		}
		ran, err := p.runOnce()
		if err != nil {
			p.log.Error("lease cycle failed", zap.Int("worker", n), zap.Error(err))
		}
		if !ran {
			select {
			case <-p.stopChan:
				return
			case <-time.After(leaseRetryDelay):
			}
		}
	}
}

// runOnce performs a single lease cycle: sample depth, lease, run,
// complete. It reports whether a job was executed. Split out so tests
// can drive the pool without timers.
func (p *Pool) runOnce() (bool, error) {
	if depth, err := p.store.QueueDepth(nil); err == nil {
		telemetry.QueueDepth.Set(float64(depth))
	}

	leased, err := p.store.Lease(nil)
	if err != nil {
		return false, err
	}
	if leased == nil {
		return false, nil
	}

	telemetry.WorkersBusy.Inc()
	telemetry.JobsRunning.Inc()
	defer telemetry.WorkersBusy.Dec()
	defer telemetry.JobsRunning.Dec()

	runCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
	p.reg.Register(leased.ID, cancel)
	defer func() {
		p.reg.Unregister(leased.ID)
		cancel()
	}()

	if d := testDelay(); d > 0 {
		select {
		case <-time.After(d):
		case <-runCtx.Done():
		}
	}

	start := time.Now()
	var out []byte
	var runErr error
	if runCtx.Err() != nil {
		runErr = runCtx.Err()
	} else {
		out, runErr = p.runner.Run(runCtx, leased.Req)
	}
	elapsed := time.Since(start)

	status := StatusDone
	errMsg := ""
	switch {
	case runErr == nil:
	case runCtx.Err() != nil:
		status = StatusCanceled
		errMsg = runCtx.Err().Error()
	default:
		status = StatusFailed
		errMsg = runErr.Error()
	}

	if err := p.store.Complete(nil, leased.ID, status, out, errMsg); err != nil {
		p.log.Error("terminal update failed",
			zap.String("job_id", leased.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return true, err
	}

	telemetry.JobsCompleted.WithLabelValues(string(status)).Inc()
	telemetry.JobDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
	if status != StatusDone {
		p.log.Warn("job finished with error",
			zap.String("job_id", leased.ID),
			zap.String("status", string(status)),
			zap.String("error", errMsg))
	}
	return true, nil
}
