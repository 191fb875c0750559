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
	"net/http"
	"strconv"
	"time"

	"sortbench/internal/service/auth"
	"sortbench/internal/service/ratelimit"
	"sortbench/internal/service/telemetry"
)

// statusRecorder captures the status a handler writes so the request
// counter can label it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with the per-route request counter and
// duration histogram.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		telemetry.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		telemetry.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// rateLimited charges the client's token bucket and reports its state in
// the X-RateLimit-* headers; an empty bucket refuses with 429 and a
// Retry-After hint.
func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.limiter.ClientID(r)
		ok, retry := s.limiter.Admit(id)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.Burst()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(id)))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(retry)))
			writeJSON(w, http.StatusTooManyRequests, errorResp{Error: "too many requests"})
			return
		}
		h(w, r)
	}
}

// authed gates a route on the API-key set. With no keys configured the
// route is open.
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.keys.Enabled() {
			h(w, r)
			return
		}
		if !s.keys.Allow(auth.FromRequest(r)) {
			writeJSON(w, http.StatusUnauthorized, errorResp{Error: "unauthorized"})
			return
		}
		h(w, r)
	}
}
