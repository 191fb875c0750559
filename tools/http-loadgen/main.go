// http-loadgen is a small, dependency-free HTTP load generator for the
// sortbench service. It reuses HTTP connections (keep-alive), fans requests
// out over concurrent workers, and reports throughput, a status breakdown,
// and latency percentiles, so rate limits and admission caps can be probed
// without external tooling.
//
// Modes:
//   - run:  POST /run with one benchmark request body per call (synchronous)
//   - jobs: POST /jobs to enqueue asynchronous jobs (requires an API key
//     when the server has auth enabled; completed jobs are not polled)
//
// Usage examples:
//
//	http-loadgen -base=http://127.0.0.1:8080 -mode=run -size=10000 -n=2000 -c=16
//	http-loadgen -base=http://127.0.0.1:8080 -mode=jobs -api_key=k1 -n=200 -c=4
//
// Notes:
//   - The benchmark body is built once from -size/-dist/-type/-algo/-repeat
//     and shared by every request, so the server-side cache (when enabled)
//     is hit after the first call; vary -seed_per_req to defeat it.
//   - Prints a multi-line summary; the last line is machine-readable.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modeRun  modeType = "run"
	modeJobs modeType = "jobs"
)

type counters struct {
	ok       atomic.Int64 // 2xx
	rated    atomic.Int64 // 429
	rejected atomic.Int64 // any other HTTP status
	failed   atomic.Int64 // transport errors
}

func main() {
	var (
		base   = flag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host")
		modeS  = flag.String("mode", string(modeRun), "Mode: run|jobs")
		apiKey = flag.String("api_key", "", "API key sent as X-API-Key (jobs mode)")
		N      = flag.Int("n", 2000, "Total requests to send")
		conc   = flag.Int("c", 8, "Number of concurrent workers")

		// Benchmark request body
		size       = flag.Int("size", 10000, "Input size (N) in the benchmark body")
		dist       = flag.String("dist", "random", "Distribution in the benchmark body")
		elemType   = flag.String("type", "i32", "Element type in the benchmark body")
		algos      = flag.String("algo", "std_sort", "Comma-separated algorithms in the benchmark body")
		repeats    = flag.Int("repeat", 1, "Repeats in the benchmark body")
		seedPerReq = flag.Bool("seed_per_req", false, "Give every request a distinct seed (defeats the result cache)")

		// Timeouts & transport tuning
		timeout    = flag.Duration("timeout", 60*time.Second, "Overall timeout for the loadgen run")
		reqTimeout = flag.Duration("req_timeout", 30*time.Second, "Per-request timeout")
		connIdle   = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle    = flag.Int("max_idle", 256, "Max idle connections total")
		maxIdlePer = flag.Int("max_idle_per_host", 256, "Max idle connections per host")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeRun && m != modeJobs {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want run|jobs)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	path := "/run"
	if m == modeJobs {
		path = "/jobs"
	}
	fullURL := strings.TrimRight(*base, "/") + path

	body := map[string]any{
		"N":       *size,
		"dist":    *dist,
		"type":    *elemType,
		"repeats": *repeats,
	}
	if *algos != "" {
		body["algos"] = strings.Split(*algos, ",")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode body: %v\n", err)
		os.Exit(2)
	}

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: *reqTimeout}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		cts       counters
		seq       atomic.Int64
		latMu     sync.Mutex
		latencies []time.Duration
	)

	worker := func(count int) {
		local := make([]time.Duration, 0, count)
		for i := 0; i < count; i++ {
			if ctx.Err() != nil {
				break
			}
			reqBody := payload
			if *seedPerReq {
				// Re-encode with a unique seed so no two requests share a
				// cache key.
				var perReq map[string]any
				_ = json.Unmarshal(payload, &perReq)
				perReq["seed"] = seq.Add(1)
				reqBody, _ = json.Marshal(perReq)
			}
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			if *apiKey != "" {
				req.Header.Set("X-API-Key", *apiKey)
			}
			start := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				cts.failed.Add(1)
				time.Sleep(200 * time.Microsecond)
				continue
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			local = append(local, time.Since(start))
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				cts.ok.Add(1)
			case resp.StatusCode == http.StatusTooManyRequests:
				cts.rated.Add(1)
			default:
				cts.rejected.Add(1)
			}
		}
		latMu.Lock()
		latencies = append(latencies, local...)
		latMu.Unlock()
	}

	start := time.Now()
	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(n int) {
			defer wg.Done()
			worker(n)
		}(count)
	}
	wg.Wait()
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}

	slices.Sort(latencies)
	p50, p95, p99 := percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99)
	thr := float64(*N) / elapsed.Seconds()

	fmt.Printf("LoadGen: mode=%s n=%d c=%d Duration=%s Throughput=%.0f req/s\n",
		m, *N, *conc, elapsed.Truncate(time.Millisecond), thr)
	fmt.Printf("Status: 2xx=%d 429=%d other=%d transport_errors=%d\n",
		cts.ok.Load(), cts.rated.Load(), cts.rejected.Load(), cts.failed.Load())
	fmt.Printf("Latency p50: %s  p95: %s  p99: %s\n", p50, p95, p99)
	fmt.Printf("Summary: mode=%s n=%d c=%d duration_ns=%d ok=%d rated=%d other=%d failed=%d p50_ns=%d p95_ns=%d p99_ns=%d\n",
		m, *N, *conc, elapsed.Nanoseconds(), cts.ok.Load(), cts.rated.Load(), cts.rejected.Load(), cts.failed.Load(),
		int64(p50), int64(p95), int64(p99))
}

// percentile reads the q-th percentile from an ascending sample set.
func percentile(sorted []time.Duration, q int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[(len(sorted)-1)*q/100]
}
