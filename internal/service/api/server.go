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

// Package api implements the public-facing HTTP server of the benchmark
// service. It routes requests through the metrics, rate-limit, and auth
// middleware, and translates between the wire shapes and the job store,
// runner, and engine collaborators.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"sortbench/internal/service/auth"
	"sortbench/internal/service/config"
	"sortbench/internal/service/jobs"
	"sortbench/internal/service/persistence"
	"sortbench/internal/service/ratelimit"
	"sortbench/internal/service/request"
	"sortbench/internal/service/telemetry"
)

// maxBodyBytes caps every request body read.
const maxBodyBytes = 1 << 20 // 1 MiB

// Server handles the HTTP requests of the benchmark service. It is
// configured with the job store, the engine runner, and the middleware
// collaborators; the cache may be nil (caching disabled).
type Server struct {
	cfg     *config.Config
	store   jobs.Store
	runner  jobs.Runner
	keys    *auth.Keyset
	limiter *ratelimit.Limiter
	cache   *persistence.ResultCache
	log     *zap.Logger

	lim request.Limits

	// admitMu serializes the job admission check against the enqueue, so
	// concurrent submits cannot overshoot MaxJobs within this instance.
	admitMu sync.Mutex

	httpServer *http.Server
}

// NewServer creates and configures a new API server.
func NewServer(cfg *config.Config, store jobs.Store, runner jobs.Runner,
	keys *auth.Keyset, limiter *ratelimit.Limiter,
	cache *persistence.ResultCache, log *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		runner:  runner,
		keys:    keys,
		limiter: limiter,
		cache:   cache,
		log:     log,
		lim: request.Limits{
			MaxN:       cfg.MaxN,
			MaxRepeats: cfg.MaxRepeats,
			MaxThreads: cfg.MaxThreads,
		},
	}
}

// RegisterRoutes sets up the HTTP routes for the server on the given
// ServeMux. The probe routes skip every middleware; benchmark routes are
// wrapped outer to inner as metrics → rate limit → auth.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.HandleFunc("/meta", s.instrument("/meta", s.handleMeta))
	mux.HandleFunc("/limits", s.instrument("/limits", s.handleLimits))
	mux.HandleFunc("/run", s.instrument("/run", s.rateLimited(s.handleRun)))
	mux.HandleFunc("/jobs", s.instrument("/jobs", s.rateLimited(s.authed(s.handleJobs))))
	mux.HandleFunc("/jobs/", s.instrument("/jobs/{id}", s.rateLimited(s.authed(s.handleJobByID))))
}

// ListenAndServe starts the HTTP server on the specified address. The
// write timeout leaves slack above the sync-run deadline so a slow run
// is ended by its context, not by the connection.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: s.cfg.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("sortbench API listening",
		zap.String("addr", addr),
		zap.String("mode", s.runner.Mode()))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the HTTP server within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
