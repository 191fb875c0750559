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

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"sortbench/internal/service/jobs"
)

// StoreOptions carries everything a store variant may need; each
// adapter picks the fields that apply to it.
type StoreOptions struct {
	// memory
	Runner  jobs.Runner
	Timeout time.Duration

	// postgres
	DatabaseURL string
	DBMaxConns  int
	Registry    *jobs.CancelRegistry
	Mode        string

	Log *zap.Logger
}

// BuildStore constructs the job store for a string selector. Supported
// adapters:
//   - "memory": goroutine-per-job map store (default)
//   - "postgres": durable table with leased dispatch; opens the pool,
//     pings it, and applies migrations
//
// The second return value is non-nil only for the durable adapter; the
// caller hands it to the worker pool.
func BuildStore(adapter string, opts StoreOptions) (jobs.Store, *PGStore, error) {
	switch adapter {
	case "", "memory":
		return jobs.NewMemoryStore(opts.Runner, opts.Timeout, opts.Log), nil, nil
	case "postgres":
		db, err := sql.Open("postgres", opts.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if opts.DBMaxConns > 0 {
			db.SetMaxOpenConns(opts.DBMaxConns)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		if err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pg := NewPGStore(db, opts.Registry, opts.Mode, opts.Log)
		return pg, pg, nil
	default:
		return nil, nil, fmt.Errorf("unknown job store adapter: %s", adapter)
	}
}

// BuildCache constructs the opt-in sync-run result cache. An empty
// address disables caching and returns nil.
func BuildCache(addr string, ttl time.Duration, log *zap.Logger) *ResultCache {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return NewResultCache(NewGoRedisClient(addr), ttl, log)
}
