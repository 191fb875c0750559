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

	redis "github.com/redis/go-redis/v9"
)

// GoRedisClient implements RedisClient on github.com/redis/go-redis/v9.
// Use NewGoRedisClient with an address like "127.0.0.1:6379".

type GoRedisClient struct{ c *redis.Client }

func NewGoRedisClient(addr string) *GoRedisClient {
	opt := &redis.Options{Addr: addr}
	return &GoRedisClient{c: redis.NewClient(opt)}
}

// Get maps the redis.Nil miss sentinel to (nil, nil).
func (g *GoRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := g.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (g *GoRedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.c.Set(ctx, key, value, ttl).Err()
}
