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
	"time"

	"go.uber.org/zap"

	"sortbench/internal/service/telemetry"
)

// RedisClient is the minimal command surface the result cache needs. A
// miss is (nil, nil), not an error. Keeping the interface this small
// lets tests inject a fake without a Redis server.
type RedisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ResultCache is the opt-in TTL cache for synchronous run results,
// keyed by the canonical engine call. Lookups and stores are both
// best-effort: a Redis failure degrades to running the engine, never to
// failing the request.
type ResultCache struct {
	client RedisClient
	ttl    time.Duration
	log    *zap.Logger
}

// NewResultCache wraps a client with the configured TTL.
func NewResultCache(client RedisClient, ttl time.Duration, log *zap.Logger) *ResultCache {
	return &ResultCache{client: client, ttl: ttl, log: log}
}

// Get returns the cached rows for key, or nil on miss or error.
func (c *ResultCache) Get(ctx context.Context, key string) []byte {
	val, err := c.client.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		telemetry.CacheMisses.Inc()
		return nil
	}
	if val == nil {
		telemetry.CacheMisses.Inc()
		return nil
	}
	telemetry.CacheHits.Inc()
	return val
}

// Put stores the rows under key for the cache TTL.
func (c *ResultCache) Put(ctx context.Context, key string, val []byte) {
	if err := c.client.Set(ctx, key, val, c.ttl); err != nil {
		c.log.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}
