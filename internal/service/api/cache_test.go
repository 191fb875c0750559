package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"sortbench/internal/service/auth"
	"sortbench/internal/service/config"
	"sortbench/internal/service/jobs"
	"sortbench/internal/service/persistence"
	"sortbench/internal/service/ratelimit"
	"sortbench/internal/service/request"
)

// countingRunner returns canned rows and counts engine invocations, so
// cache hits are observable.
type countingRunner struct {
	rows json.RawMessage
	runs atomic.Int32
}

func (c *countingRunner) Run(ctx context.Context, req request.Request) (json.RawMessage, error) {
	c.runs.Add(1)
	return c.rows, nil
}
func (c *countingRunner) Mode() string { return "in-process" }

// TestServer_Run_CacheRoundTrip verifies identical workloads are served
// from the result cache and that timeout_ms does not split cache keys.
func TestServer_Run_CacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	log := zap.NewNop()
	run := &countingRunner{rows: json.RawMessage(`[{"algo":"std_sort","median_ms":1.5}]`)}
	cfg := &config.Config{
		MaxN: 10_000_000, MaxRepeats: 50, MaxJobs: 4,
		Timeout: 2 * time.Minute, RateLimitR: 6000, RateLimitB: 1000,
		RedisAddr: mr.Addr(), CacheTTL: time.Minute,
	}
	store := jobs.NewMemoryStore(run, cfg.Timeout, log)
	t.Cleanup(store.CancelAll)
	cache := persistence.BuildCache(cfg.RedisAddr, cfg.CacheTTL, log)

	srv := NewServer(cfg, store, run, auth.NewKeyset(nil),
		ratelimit.New(6000, 1000, false), cache, log)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	post := func(req request.Request) []byte {
		resp := postJSON(t, ts.URL+"/run", req)
		if resp.StatusCode != 200 {
			t.Fatalf("want 200, got %d", resp.StatusCode)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return b
	}

	base := request.Request{N: 256, Dist: "runs", Type: "i32", Repeats: 1, Algos: []string{"std_sort"}}

	first := post(base)
	if n := run.runs.Load(); n != 1 {
		t.Fatalf("expected 1 engine run, got %d", n)
	}

	// Identical workload: served from the cache.
	second := post(base)
	if n := run.runs.Load(); n != 1 {
		t.Fatalf("expected cache hit, engine ran %d times", n)
	}
	if string(first) != string(second) {
		t.Fatalf("cached bytes differ:\n%s\n%s", first, second)
	}

	// timeout_ms is not part of the workload identity.
	withTimeout := base
	withTimeout.TimeoutMs = 5000
	post(withTimeout)
	if n := run.runs.Load(); n != 1 {
		t.Fatalf("timeout_ms must not split the cache key, engine ran %d times", n)
	}

	// A different workload misses.
	bigger := base
	bigger.N = 512
	post(bigger)
	if n := run.runs.Load(); n != 2 {
		t.Fatalf("expected a miss for a new workload, engine ran %d times", n)
	}
}
