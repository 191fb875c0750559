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

// Package main provides the entry point for the sortbench API service.
//
// This binary is responsible for orchestrating the whole service:
// 1. Parsing the environment configuration and constructing the logger.
// 2. Selecting the engine execution mode (in-process or shell).
// 3. Building the job store (in-memory, or Postgres with migrations) and,
//    in durable mode, starting the worker pool.
// 4. Starting the rate limiter and the API server.
// 5. Managing graceful shutdown: cancel outstanding jobs, stop the
//    workers, and drain the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sortbench/internal/service/api"
	"sortbench/internal/service/auth"
	"sortbench/internal/service/config"
	"sortbench/internal/service/jobs"
	"sortbench/internal/service/persistence"
	"sortbench/internal/service/ratelimit"
	"sortbench/internal/service/runner"
	"sortbench/internal/service/telemetry"
)

func main() {
	// 1. Parse the environment configuration. Errors here predate the
	// structured logger, so they go through the stdlib one.
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	logger := telemetry.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	// 2. Select the engine execution mode. This is fixed for the process
	// lifetime and reported in /limits.
	run := runner.Select(cfg, logger)

	// 3. Build the job store. With DATABASE_URL set this opens the pool,
	// applies migrations, and returns the leaseable store.
	reg := jobs.NewCancelRegistry()
	adapter := "memory"
	if cfg.Durable() {
		adapter = "postgres"
	}
	store, leaseStore, err := persistence.BuildStore(adapter, persistence.StoreOptions{
		Runner:      run,
		Timeout:     cfg.Timeout,
		DatabaseURL: cfg.DatabaseURL,
		DBMaxConns:  cfg.DBMaxConns,
		Registry:    reg,
		Mode:        run.Mode(),
		Log:         logger,
	})
	if err != nil {
		logger.Fatal("job store init failed", zap.String("adapter", adapter), zap.Error(err))
	}

	// 4. In durable mode, start the worker pool that leases pending rows.
	var pool *jobs.Pool
	if leaseStore != nil {
		pool = jobs.NewPool(leaseStore, run, reg, cfg.Workers, cfg.Timeout, logger)
		pool.Start()
	}

	// 5. Optional sync-run result cache.
	cache := persistence.BuildCache(cfg.RedisAddr, cfg.CacheTTL, logger)
	if cache != nil {
		logger.Info("result cache enabled", zap.String("redis", cfg.RedisAddr))
	}

	// 6. Auth keys and the per-client rate limiter.
	keys := auth.NewKeyset(cfg.APIKeys)
	if keys.Enabled() {
		logger.Info("api key auth enabled", zap.Int("keys", len(cfg.APIKeys)))
	}
	limiter := ratelimit.New(float64(cfg.RateLimitR), cfg.RateLimitB, cfg.TrustXFF)
	limiter.Start()

	// 7. Create the API server and start it in a separate goroutine so
	// this one is free to wait for signals.
	apiServer := api.NewServer(cfg, store, run, keys, limiter, cache, logger)
	go func() {
		if err := apiServer.ListenAndServe(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.String("addr", cfg.Addr()), zap.Error(err))
		}
	}()

	// 8. Wait for an OS signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	// 9. Broadcast cancel to every non-terminal job, then stop the
	// workers and the limiter sweeper. Pending rows in durable mode stay
	// pending for the next instance.
	store.CancelAll()
	if pool != nil {
		pool.Stop()
	}
	limiter.Stop()

	// 10. Drain the HTTP server with a bounded grace period.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("store close failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
