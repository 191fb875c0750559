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

// Package config reads the service configuration from the environment.
// Every variable is optional; unset or malformed values fall back to the
// documented default so a bare `sortbench-api` always starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the effective service configuration after defaults.
type Config struct {
	Port       int
	MaxN       int64
	MaxRepeats int
	MaxThreads int // 0 = uncapped
	MaxJobs    int
	Timeout    time.Duration // per-run default and cap
	Workers    int

	RateLimitR int // admitted requests per minute, per client
	RateLimitB int // burst capacity
	TrustXFF   bool

	LogLevel string
	LogFile  string

	APIKeys []string

	DatabaseURL string
	DBMaxConns  int

	RedisAddr string
	CacheTTL  time.Duration

	// Engine selection. Bin switches to shell mode; ForceInProcess is the
	// legacy SORTBENCH_CGO=1 toggle and wins over Bin.
	Bin            string
	ForceInProcess bool
}

// FromEnv builds a Config from the process environment. The only error
// path is an unreadable API_KEYS_FILE; everything else silently defaults.
func FromEnv() (*Config, error) {
	c := &Config{
		Port:       getenvInt("PORT", 8080),
		MaxN:       int64(getenvInt("MAX_N", 10_000_000)),
		MaxRepeats: getenvInt("MAX_REPEATS", 50),
		MaxThreads: getenvInt("MAX_THREADS", 0),
		MaxJobs:    getenvInt("MAX_JOBS", 4),
		Timeout:    time.Duration(getenvInt("TIMEOUT_MS", 120_000)) * time.Millisecond,
		Workers:    getenvInt("WORKERS", 4),

		RateLimitR: getenvInt("RATE_LIMIT_R", 120),
		RateLimitB: getenvInt("RATE_LIMIT_B", 30),
		TrustXFF:   os.Getenv("TRUST_XFF") == "1",

		LogLevel: getenv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getenvInt("DB_MAX_CONNS", 8),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		CacheTTL:  time.Duration(getenvInt("CACHE_TTL_MS", 60_000)) * time.Millisecond,

		Bin:            os.Getenv("SORTBENCH_BIN"),
		ForceInProcess: os.Getenv("SORTBENCH_CGO") == "1",
	}

	keys, err := loadKeys(os.Getenv("API_KEYS"), os.Getenv("API_KEYS_FILE"))
	if err != nil {
		return nil, err
	}
	c.APIKeys = keys
	return c, nil
}

// Durable reports whether the durable (Postgres) job store is configured.
func (c *Config) Durable() bool { return c.DatabaseURL != "" }

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// loadKeys merges the comma-separated inline list with the one-per-line
// file. Blank entries are dropped; order is preserved, inline first.
func loadKeys(inline, file string) ([]string, error) {
	var keys []string
	for _, k := range strings.Split(inline, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read API_KEYS_FILE: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				keys = append(keys, line)
			}
		}
	}
	return keys, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
