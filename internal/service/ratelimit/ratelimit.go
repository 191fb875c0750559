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

// Package ratelimit shapes request ingress with one token bucket per
// client. Admission never blocks: a request is either admitted now or
// refused with a retry hint. Client identity is the remote address; the
// first X-Forwarded-For entry is honored only when explicitly trusted,
// otherwise the header is spoofable for free.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// sweepInterval is how often idle buckets are evicted; maxIdle is how
// long a client may be silent before its bucket (and its accumulated
// tokens) is forgotten.
const (
	sweepInterval = 5 * time.Minute
	maxIdle       = 10 * time.Minute
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter maps client identity to a token bucket. The map is guarded by
// a coarse mutex; each bucket serializes internally.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit    rate.Limit
	burst    int
	trustXFF bool

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// New builds a Limiter admitting perMinute requests per client with the
// given burst capacity.
func New(perMinute float64, burst int, trustXFF bool) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Limit(perMinute / 60.0),
		burst:    burst,
		trustXFF: trustXFF,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background eviction loop.
func (l *Limiter) Start() {
	l.wg.Add(1)
	go l.sweepLoop()
}

// Stop terminates the eviction loop. Safe to call more than once.
func (l *Limiter) Stop() {
	if !atomic.CompareAndSwapUint32(&l.stopped, 0, 1) {
		return
	}
	close(l.stopChan)
	l.wg.Wait()
}

func (l *Limiter) sweepLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now())
		case <-l.stopChan:
			return
		}
	}
}

// sweep evicts buckets idle past maxIdle and returns how many were
// removed. Split out so tests can drive it without the ticker.
func (l *Limiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > maxIdle {
			delete(l.buckets, id)
			evicted++
		}
	}
	return evicted
}

// ClientID resolves the identity a request is billed to.
func (l *Limiter) ClientID(r *http.Request) string {
	if l.trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i >= 0 {
				xff = xff[:i]
			}
			if ip := strings.TrimSpace(xff); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Admit charges one token to the client. On refusal the returned
// duration is the wait until a token would be available, for the
// Retry-After header. Never blocks.
func (l *Limiter) Admit(clientID string) (bool, time.Duration) {
	b := l.bucket(clientID)
	res := b.lim.Reserve()
	if !res.OK() {
		// burst 0: no request can ever be served
		return false, time.Second
	}
	if d := res.Delay(); d > 0 {
		res.Cancel()
		return false, d
	}
	return true, 0
}

// Burst is the per-client bucket capacity, for the X-RateLimit-Limit
// header.
func (l *Limiter) Burst() int { return l.burst }

// Remaining reports the whole tokens currently available to the client,
// for the X-RateLimit-Remaining header. Never negative.
func (l *Limiter) Remaining(clientID string) int {
	t := int(l.bucket(clientID).lim.Tokens())
	if t < 0 {
		return 0
	}
	return t
}

func (l *Limiter) bucket(id string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[id] = b
	}
	b.lastSeen = time.Now()
	return b
}

// RetryAfterSeconds renders a refusal delay for the Retry-After header:
// whole seconds, rounded up, at least 1.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
