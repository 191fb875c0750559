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

// Package auth implements the API-key gate for protected routes. Keys are
// opaque strings; membership is the whole check. With no keys configured
// the gate is open, which keeps keyless deployments working unchanged.
package auth

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync/atomic"
)

type digest = [sha256.Size]byte

// Keyset is the current set of accepted API keys, held as SHA-256
// digests. The presented key is digested before the lookup, so the
// comparison cost never depends on how many bytes match a real key,
// and the raw key material is not retained. The set is replaced
// wholesale, never mutated, so readers take a lock-free snapshot.
type Keyset struct {
	v atomic.Value // map[digest]struct{}
}

// NewKeyset builds a Keyset from the configured key list.
func NewKeyset(keys []string) *Keyset {
	k := &Keyset{}
	k.Replace(keys)
	return k
}

// Replace swaps the accepted key set atomically.
func (k *Keyset) Replace(keys []string) {
	m := make(map[digest]struct{}, len(keys))
	for _, key := range keys {
		if key != "" {
			m[sha256.Sum256([]byte(key))] = struct{}{}
		}
	}
	k.v.Store(m)
}

// Enabled reports whether any key is configured. Protected routes only
// enforce auth when this is true.
func (k *Keyset) Enabled() bool {
	return len(k.v.Load().(map[digest]struct{})) > 0
}

// Allow reports whether the presented key is a member of the current set.
func (k *Keyset) Allow(key string) bool {
	if key == "" {
		return false
	}
	_, ok := k.v.Load().(map[digest]struct{})[sha256.Sum256([]byte(key))]
	return ok
}

// FromRequest extracts the presented key: X-API-Key wins, then a Bearer
// token. Empty means no credential was presented.
func FromRequest(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
