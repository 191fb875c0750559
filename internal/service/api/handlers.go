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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sortbench"
	"sortbench/internal/service/jobs"
	"sortbench/internal/service/request"
)

// MetaResponse is the GET /meta payload.
type MetaResponse struct {
	Version string              `json:"version"`
	Types   []string            `json:"types"`
	Dists   []string            `json:"dists"`
	Algos   map[string][]string `json:"algos"` // by type
}

// LimitsResponse is the GET /limits payload: the effective caps and the
// startup-fixed mode, so clients can shape requests without probing.
type LimitsResponse struct {
	MaxN        int64  `json:"max_n"`
	MaxRepeats  int    `json:"max_repeats"`
	MaxThreads  int    `json:"max_threads"`
	MaxJobs     int    `json:"max_jobs"`
	TimeoutMs   int64  `json:"timeout_ms"`
	Workers     int    `json:"workers"`
	RatePerMin  int    `json:"rate_limit_per_min"`
	RateBurst   int    `json:"rate_limit_burst"`
	Mode        string `json:"mode"`
	Store       string `json:"store"`
	AuthEnabled bool   `json:"auth_enabled"`
}

// readyzDists is the distribution sample exercised by the readiness
// smoke run.
var readyzDists = []string{"random", "runs", "zipf"}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz answers ready only when discovery works, the engine
// completes a tiny run per sample distribution, and the store responds.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// 1. Algorithm discovery must work.
	if _, err := sortbench.Describe(nil); err != nil {
		http.Error(w, "not ready: "+err.Error(), http.StatusInternalServerError)
		return
	}
	// 2. A tiny smoke run per sample distribution.
	for _, dist := range readyzDists {
		_, err := s.runner.Run(ctx, request.Request{
			N: 64, Dist: dist, Type: "i32", Repeats: 1, Algos: []string{"std_sort"},
		})
		if err != nil {
			http.Error(w, "not ready: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	// 3. The job store must respond (in durable mode this is a DB probe).
	if _, err := s.store.ActiveCount(ctx); err != nil {
		http.Error(w, "not ready: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	// Optional plugin=path query can be repeated; discovery loads are
	// transient and do not persist across requests.
	plugins := r.URL.Query()["plugin"]
	meta, err := sortbench.Describe(plugins)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	for _, warn := range meta.Warnings {
		s.log.Warn("plugin discovery", zap.String("warning", warn))
	}
	writeJSON(w, http.StatusOK, MetaResponse{
		Version: meta.Version,
		Types:   meta.Types,
		Dists:   meta.Dists,
		Algos:   meta.Algorithms,
	})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	store := "memory"
	if s.cfg.Durable() {
		store = "postgres"
	}
	writeJSON(w, http.StatusOK, LimitsResponse{
		MaxN:        s.cfg.MaxN,
		MaxRepeats:  s.cfg.MaxRepeats,
		MaxThreads:  s.cfg.MaxThreads,
		MaxJobs:     s.cfg.MaxJobs,
		TimeoutMs:   s.cfg.Timeout.Milliseconds(),
		Workers:     s.cfg.Workers,
		RatePerMin:  s.cfg.RateLimitR,
		RateBurst:   s.cfg.RateLimitB,
		Mode:        s.runner.Mode(),
		Store:       store,
		AuthEnabled: s.keys.Enabled(),
	})
}

// handleRun executes one synchronous benchmark invocation.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// 1. Decode under the body cap. Unknown fields are ignored.
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req request.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}

	// 2. Validate against the configured caps.
	if err := req.Validate(s.lim); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}

	// 3. Serve from the result cache when one is configured. The key
	// covers the canonical engine call, so identical workloads hit.
	var key string
	if s.cache != nil {
		key = req.CacheKey()
		if rows := s.cache.Get(r.Context(), key); rows != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(rows)
			return
		}
	}

	// 4. Run under min(request timeout, server default).
	ctx, cancel := context.WithTimeout(r.Context(), s.runDeadline(&req))
	defer cancel()
	rows, err := s.runner.Run(ctx, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}

	// 5. Fill the cache and reply with the raw rows array.
	if s.cache != nil {
		s.cache.Put(r.Context(), key, rows)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rows)
}

// handleJobs submits an async run.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// 1. Decode and validate exactly like the sync path.
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req request.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := req.Validate(s.lim); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}

	// 2. Admission: cap the number of non-terminal jobs. The count and
	// the enqueue run under one lock so concurrent submits cannot both
	// pass at MaxJobs-1; with several instances on one database the cap
	// is enforced per instance.
	s.admitMu.Lock()
	active, err := s.store.ActiveCount(r.Context())
	if err != nil {
		s.admitMu.Unlock()
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if active >= s.cfg.MaxJobs {
		s.admitMu.Unlock()
		writeJSON(w, http.StatusTooManyRequests, errorResp{Error: "too many jobs"})
		return
	}

	// 3. Enqueue. The in-memory store starts the run immediately; the
	// durable store leaves the row pending for a worker lease.
	id, err := s.store.Enqueue(r.Context(), req)
	s.admitMu.Unlock()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

// handleJobByID dispatches GET /jobs/{id} and POST /jobs/{id}/cancel.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cancel") {
		s.handleCancelJob(w, r)
		return
	}
	if r.Method == http.MethodGet {
		s.handleGetJob(w, r)
		return
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing job id"})
		return
	}
	j, err := s.store.Get(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/cancel")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing job id"})
		return
	}
	err := s.store.Cancel(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	// Cancel of a terminal job still answers cancelled; clients poll for
	// the state that actually resulted.
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// runDeadline clamps a request-supplied timeout to the server default.
func (s *Server) runDeadline(req *request.Request) time.Duration {
	tout := s.cfg.Timeout
	if req.TimeoutMs > 0 {
		if d := time.Duration(req.TimeoutMs) * time.Millisecond; d < tout {
			tout = d
		}
	}
	return tout
}
