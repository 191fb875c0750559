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

// Package persistence holds the durable side of the service: the
// Postgres job store with leased dispatch, schema migrations, the Redis
// result cache, client constructors, and the adapter factory.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sortbench/internal/service/jobs"
	"sortbench/internal/service/request"
)

// Leased dispatch (reference):
//
//   BEGIN;
//   SELECT id, request_json FROM jobs
//     WHERE status = 'pending'
//     ORDER BY created_at ASC
//     LIMIT 1
//     FOR UPDATE SKIP LOCKED;
//   UPDATE jobs SET status = 'running', started_at = now() WHERE id = $1;
//   COMMIT;
//
// SKIP LOCKED lets concurrent workers (and instances) lease distinct
// rows without contending; a crashed worker's row stays 'running' and
// is out of scope for automatic retry; execution is at most once.

// PGStore is the durable job store. It implements both the request-side
// Store contract and the worker-side LeaseStore contract.
type PGStore struct {
	db   *sql.DB
	reg  *jobs.CancelRegistry
	mode string
	log  *zap.Logger

	// Per-call timeout fallback if ctx has no deadline.
	defaultTimeout time.Duration
}

// NewPGStore wraps an open connection pool. The registry carries cancel
// tokens for jobs leased on this process; mode is recorded on enqueue
// for later inspection of rows.
func NewPGStore(db *sql.DB, reg *jobs.CancelRegistry, mode string, log *zap.Logger) *PGStore {
	return &PGStore{db: db, reg: reg, mode: mode, log: log, defaultTimeout: 10 * time.Second}
}

// bound applies the default timeout when the caller didn't bound the
// context. The returned cancel must always be called.
func (s *PGStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && s.defaultTimeout > 0 {
		return context.WithTimeout(ctx, s.defaultTimeout)
	}
	return ctx, func() {}
}

// Enqueue inserts a pending row and returns its id.
func (s *PGStore) Enqueue(ctx context.Context, req request.Request) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	id := uuid.NewString()
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	baseline := ""
	if req.Baseline != nil {
		baseline = *req.Baseline
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs(id, status, request_json, created_at, dist, elem_type, repeats, threads, baseline, algos, mode)
		 VALUES ($1, 'pending', $2, now(), $3, $4, $5, $6, $7, $8, $9)`,
		id, reqJSON, req.Dist, req.Type, req.Repeats, req.Threads, baseline,
		strings.Join(req.Algos, ","), s.mode)
	if err != nil {
		return "", fmt.Errorf("insert job(%s): %w", id, err)
	}
	return id, nil
}

// Get reads one job row.
func (s *PGStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		j          jobs.Job
		result     []byte
		errMsg     sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
		durationMs sql.NullInt64
	)
	j.ID = id
	err := s.db.QueryRowContext(ctx,
		`SELECT status, result_json, error, created_at, started_at, finished_at, duration_ms
		 FROM jobs WHERE id = $1`, id).
		Scan(&j.Status, &result, &errMsg, &j.CreatedAt, &startedAt, &finishedAt, &durationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job(%s): %w", id, err)
	}
	if len(result) > 0 {
		j.Result = json.RawMessage(result)
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		j.FinishedAt = &t
	}
	if durationMs.Valid {
		d := durationMs.Int64
		j.DurationMs = &d
	}
	return &j, nil
}

// Cancel fires the local token when the job is leased on this process
// and flips the row to canceled when it is still pending. Terminal rows
// are left untouched; an unknown id is ErrNotFound.
func (s *PGStore) Cancel(ctx context.Context, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	leasedHere := s.reg.Cancel(id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'canceled', finished_at = now()
		 WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("cancel job(%s): %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if leasedHere {
		return nil
	}

	var found int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE id = $1`, id).Scan(&found); err != nil {
		return fmt.Errorf("check job(%s): %w", id, err)
	}
	if found == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

// ActiveCount is the aggregate over pending and running rows, across
// every instance sharing the table.
func (s *PGStore) ActiveCount(ctx context.Context) (int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status IN ('pending', 'running')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}

// CancelAll fires every cancel token leased on this process. Pending
// rows are deliberately left alone so another instance can lease them.
func (s *PGStore) CancelAll() {
	s.reg.CancelAll()
}

// Close releases the connection pool.
func (s *PGStore) Close() error { return s.db.Close() }

// Lease claims the oldest pending job with the SKIP LOCKED pattern and
// moves it to running. Returns (nil, nil) when no pending row exists.
func (s *PGStore) Lease(ctx context.Context) (*jobs.Leased, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id string
	var reqJSON []byte
	err = tx.QueryRowContext(ctx,
		`SELECT id, request_json FROM jobs
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`).Scan(&id, &reqJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lease select: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', started_at = now() WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("lease update(%s): %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	var req request.Request
	if err := json.Unmarshal(reqJSON, &req); err != nil {
		// The row is unrunnable; fail it so the worker moves on.
		s.log.Error("leased job has invalid request_json",
			zap.String("job_id", id), zap.Error(err))
		msg := fmt.Sprintf("invalid request_json: %s", err)
		if cerr := s.Complete(ctx, id, jobs.StatusFailed, nil, msg); cerr != nil {
			return nil, fmt.Errorf("fail corrupt job(%s): %w", id, cerr)
		}
		return nil, nil
	}
	return &jobs.Leased{ID: id, Req: req}, nil
}

// Complete writes the terminal row for a leased job. duration_ms is
// computed in SQL from started_at so it matches the stored timestamps
// exactly. The running-status guard keeps terminal states sticky.
func (s *PGStore) Complete(ctx context.Context, id string, status jobs.Status, result json.RawMessage, errMsg string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET
			status = $2,
			result_json = $3,
			error = NULLIF($4, ''),
			finished_at = now(),
			duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::BIGINT
		 WHERE id = $1 AND status = 'running'`,
		id, string(status), []byte(result), errMsg)
	if err != nil {
		return fmt.Errorf("complete job(%s): %w", id, err)
	}
	return nil
}

// QueueDepth counts pending rows for the worker-pool gauge.
func (s *PGStore) QueueDepth(ctx context.Context) (int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}
