package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"sortbench"
	"sortbench/internal/service/auth"
	"sortbench/internal/service/config"
	"sortbench/internal/service/jobs"
	"sortbench/internal/service/ratelimit"
	"sortbench/internal/service/request"
	"sortbench/internal/service/runner"
)

// newTestServer stands up the full route stack over the in-memory store
// and the in-process engine. mutate tweaks the config before wiring.
func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Port:       8080,
		MaxN:       10_000_000,
		MaxRepeats: 50,
		MaxJobs:    4,
		Timeout:    2 * time.Minute,
		Workers:    4,
		RateLimitR: 6000,
		RateLimitB: 1000,
	}
	if mutate != nil {
		mutate(cfg)
	}
	log := zap.NewNop()
	run := runner.NewInProcess()
	store := jobs.NewMemoryStore(run, cfg.Timeout, log)
	t.Cleanup(store.CancelAll)

	srv := NewServer(cfg, store, run, auth.NewKeyset(cfg.APIKeys),
		ratelimit.New(float64(cfg.RateLimitR), cfg.RateLimitB, cfg.TrustXFF), nil, log)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var e errorResp
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	resp.Body.Close()
	return e.Error
}

// pollJob polls GET /jobs/{id} until the record is terminal.
func pollJob(t *testing.T, base, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/jobs/" + id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("get job want 200, got %d", resp.StatusCode)
		}
		var j jobs.Job
		if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return jobs.Job{}
}

// TestServer_Healthz_Readyz covers the probe routes.
func TestServer_Healthz_Readyz(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != "ok" {
		t.Fatalf("healthz want 200 ok, got %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != "ready" {
		t.Fatalf("readyz want 200 ready, got %d %q", resp.StatusCode, body)
	}
}

// TestServer_Meta verifies the discovery payload: all types, all dists,
// per-type algorithm lists with radix only on integer types.
func TestServer_Meta(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/meta")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta MetaResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if meta.Version != sortbench.Version {
		t.Fatalf("expected version %q, got %q", sortbench.Version, meta.Version)
	}
	if len(meta.Types) != 7 {
		t.Fatalf("expected 7 types, got %v", meta.Types)
	}
	if len(meta.Dists) != 13 {
		t.Fatalf("expected 13 dists, got %v", meta.Dists)
	}
	has := func(names []string, want string) bool {
		for _, n := range names {
			if n == want {
				return true
			}
		}
		return false
	}
	if !has(meta.Algos["i32"], "std_sort") || !has(meta.Algos["i32"], "radix_sort_lsd") {
		t.Fatalf("i32 algos incomplete: %v", meta.Algos["i32"])
	}
	if has(meta.Algos["f32"], "radix_sort_lsd") {
		t.Fatalf("radix must not be offered for f32: %v", meta.Algos["f32"])
	}
}

// TestServer_Limits verifies the effective caps payload.
func TestServer_Limits(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/limits")
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	var lim LimitsResponse
	if err := json.NewDecoder(resp.Body).Decode(&lim); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if lim.MaxN != 10_000_000 || lim.MaxRepeats != 50 || lim.MaxJobs != 4 {
		t.Fatalf("unexpected caps: %+v", lim)
	}
	if lim.TimeoutMs != 120000 {
		t.Fatalf("expected timeout_ms 120000, got %d", lim.TimeoutMs)
	}
	if lim.Mode != "in-process" || lim.Store != "memory" || lim.AuthEnabled {
		t.Fatalf("unexpected mode/store/auth: %+v", lim)
	}
}

// TestServer_Run_Small runs a real tiny benchmark synchronously and
// checks the body is a JSON array with one row per selected algorithm.
func TestServer_Run_Small(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/run", request.Request{
		N: 256, Dist: "runs", Type: "i32", Repeats: 1,
		Algos: []string{"std_sort"}, AssertSorted: true,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d: %s", resp.StatusCode, decodeError(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("want application/json, got %q", ct)
	}
	var rows []struct {
		Algo     string  `json:"algo"`
		N        int     `json:"N"`
		MedianMS float64 `json:"median_ms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("body is not a rows array: %v", err)
	}
	resp.Body.Close()
	if len(rows) != 1 || rows[0].Algo != "std_sort" || rows[0].N != 256 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

// TestServer_Run_ValidationMessages verifies the exact 400 messages for
// each out-of-bounds field.
func TestServer_Run_ValidationMessages(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := []struct {
		req  request.Request
		want string
	}{
		{request.Request{N: 0, Dist: "runs", Type: "i32"}, "N must be in [1,10000000]"},
		{request.Request{N: 10_000_001, Dist: "runs", Type: "i32"}, "N must be in [1,10000000]"},
		{request.Request{N: 16, Dist: "runs", Type: "i32", Repeats: 51}, "repeats must be in [0,50]"},
		{request.Request{N: 16, Dist: "bogus", Type: "i32"}, "invalid dist"},
		{request.Request{N: 16, Dist: "runs", Type: "i128"}, "invalid type"},
	}
	for _, c := range cases {
		resp := postJSON(t, ts.URL+"/run", c.req)
		if resp.StatusCode != 400 {
			t.Fatalf("want 400 for %+v, got %d", c.req, resp.StatusCode)
		}
		if got := decodeError(t, resp); got != c.want {
			t.Fatalf("want %q, got %q", c.want, got)
		}
	}
}

// TestServer_Run_InvalidJSON verifies malformed bodies are rejected with
// a diagnostic prefix.
func TestServer_Run_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/run", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp); !strings.HasPrefix(got, "invalid JSON: ") {
		t.Fatalf("want invalid JSON prefix, got %q", got)
	}
}

// TestServer_Run_BodyTooLarge verifies the 1 MiB body cap.
func TestServer_Run_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/run", request.Request{
		N: 16, Dist: "runs", Type: "i32",
		Plugins: []string{strings.Repeat("x", (1<<20)+4096)},
	})
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// TestServer_Run_DeadlineClamp verifies a request timeout below the
// sort's runtime produces a 500, not a hung request.
func TestServer_Run_DeadlineClamp(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/run", request.Request{
		N: 2_000_000, Dist: "random", Type: "i64", Repeats: 3,
		Algos: []string{"std_sort"}, TimeoutMs: 1,
	})
	if resp.StatusCode != 500 {
		t.Fatalf("want 500, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp); !strings.Contains(got, "deadline") {
		t.Fatalf("expected a deadline error, got %q", got)
	}
}

// TestServer_Jobs_SubmitPollResult covers the async happy path: 202 with
// an id, polling to done, a rows-array result, and stable terminal reads.
func TestServer_Jobs_SubmitPollResult(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/jobs", request.Request{
		N: 256, Dist: "runs", Type: "i32", Repeats: 1, Algos: []string{"std_sort"},
	})
	if resp.StatusCode != 202 {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	id := got["job_id"]
	if id == "" {
		t.Fatal("empty job_id")
	}

	j := pollJob(t, ts.URL, id)
	if j.Status != jobs.StatusDone {
		t.Fatalf("expected done, got %s (%s)", j.Status, j.Error)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(j.Result, &rows); err != nil || len(rows) != 1 {
		t.Fatalf("result is not a one-row array: %v %s", err, j.Result)
	}
	if j.StartedAt == nil || j.FinishedAt == nil || j.DurationMs == nil {
		t.Fatalf("terminal record incomplete: %+v", j)
	}

	// Terminal reads are stable byte for byte.
	read := func() []byte {
		r, err := http.Get(ts.URL + "/jobs/" + id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		b, _ := io.ReadAll(r.Body)
		r.Body.Close()
		return b
	}
	if a, b := read(), read(); !bytes.Equal(a, b) {
		t.Fatalf("terminal reads differ:\n%s\n%s", a, b)
	}

	// Unknown ids are a 404 with the canonical body.
	r404, err := http.Get(ts.URL + "/jobs/definitely-not-a-job")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	if r404.StatusCode != 404 {
		t.Fatalf("want 404, got %d", r404.StatusCode)
	}
	if got := decodeError(t, r404); got != "not found" {
		t.Fatalf("want not found, got %q", got)
	}
}

// TestServer_Jobs_Cap verifies admission control: with MaxJobs=1 a
// second submit while the first is active is refused with 429.
func TestServer_Jobs_Cap(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.MaxJobs = 1 })
	t.Setenv("SB_TEST_JOB_DELAY_MS", "200")

	body := request.Request{N: 50000, Dist: "runs", Type: "i32", Repeats: 1, Algos: []string{"std_sort"}}
	resp1 := postJSON(t, ts.URL+"/jobs", body)
	if resp1.StatusCode != 202 {
		t.Fatalf("want 202, got %d", resp1.StatusCode)
	}
	resp1.Body.Close()

	resp2 := postJSON(t, ts.URL+"/jobs", body)
	if resp2.StatusCode != 429 {
		t.Fatalf("want 429, got %d", resp2.StatusCode)
	}
	if got := decodeError(t, resp2); got != "too many jobs" {
		t.Fatalf("want too many jobs, got %q", got)
	}
}

// TestServer_Jobs_CapConcurrentSubmits races several submits against a
// cap of one: exactly one may be admitted, however the count-then-insert
// interleaves.
func TestServer_Jobs_CapConcurrentSubmits(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.MaxJobs = 1 })
	t.Setenv("SB_TEST_JOB_DELAY_MS", "300")

	body := request.Request{N: 64, Dist: "runs", Type: "i32", Repeats: 1, Algos: []string{"std_sort"}}
	const submits = 8
	var accepted, refused atomic.Int32
	var wg sync.WaitGroup
	wg.Add(submits)
	for i := 0; i < submits; i++ {
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Errorf("encode: %v", err)
				return
			}
			resp, err := http.Post(ts.URL+"/jobs", "application/json", &buf)
			if err != nil {
				t.Errorf("post /jobs: %v", err)
				return
			}
			switch resp.StatusCode {
			case 202:
				accepted.Add(1)
			case 429:
				refused.Add(1)
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 || refused.Load() != submits-1 {
		t.Fatalf("accepted/refused = %d/%d, want 1/%d", accepted.Load(), refused.Load(), submits-1)
	}
}

// TestServer_Jobs_CancelRace submits a delayed job, cancels it before
// the engine starts, and polls until the canceled state is observed.
func TestServer_Jobs_CancelRace(t *testing.T) {
	ts := newTestServer(t, nil)
	t.Setenv("SB_TEST_JOB_DELAY_MS", "300")

	resp := postJSON(t, ts.URL+"/jobs", request.Request{
		N: 80000, Dist: "runs", Type: "i32", Repeats: 1, Algos: []string{"std_sort"},
	})
	if resp.StatusCode != 202 {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	id := got["job_id"]

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/jobs/"+id+"/cancel", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if resp2.StatusCode != 200 {
		t.Fatalf("cancel want 200, got %d", resp2.StatusCode)
	}
	var status map[string]string
	if err := json.NewDecoder(resp2.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if status["status"] != "cancelled" {
		t.Fatalf("want cancelled, got %q", status["status"])
	}

	if j := pollJob(t, ts.URL, id); j.Status != jobs.StatusCanceled {
		t.Fatalf("expected canceled, got %s", j.Status)
	}
}

// TestServer_Jobs_CancelTerminalKeepsResult verifies canceling a done
// job answers 200 without disturbing the stored result.
func TestServer_Jobs_CancelTerminalKeepsResult(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/jobs", request.Request{
		N: 128, Dist: "sorted", Type: "i32", Repeats: 1, Algos: []string{"std_sort"},
	})
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	id := got["job_id"]
	if j := pollJob(t, ts.URL, id); j.Status != jobs.StatusDone {
		t.Fatalf("expected done, got %s", j.Status)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/jobs/"+id+"/cancel", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if resp2.StatusCode != 200 {
		t.Fatalf("cancel want 200, got %d", resp2.StatusCode)
	}
	resp2.Body.Close()

	if j := pollJob(t, ts.URL, id); j.Status != jobs.StatusDone || j.Result == nil {
		t.Fatalf("terminal job disturbed by cancel: %+v", j)
	}
}

// TestServer_Jobs_Auth verifies the key gate on the /jobs routes and
// that /run stays open.
func TestServer_Jobs_Auth(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.APIKeys = []string{"secret-key"} })

	body := request.Request{N: 128, Dist: "runs", Type: "i32", Repeats: 1, Algos: []string{"std_sort"}}

	// No key: refused.
	resp := postJSON(t, ts.URL+"/jobs", body)
	if resp.StatusCode != 401 {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp); got != "unauthorized" {
		t.Fatalf("want unauthorized, got %q", got)
	}

	// X-API-Key header: accepted.
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/jobs", &buf)
	req.Header.Set("X-API-Key", "secret-key")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post with key: %v", err)
	}
	if resp2.StatusCode != 202 {
		t.Fatalf("want 202, got %d", resp2.StatusCode)
	}
	var got map[string]string
	_ = json.NewDecoder(resp2.Body).Decode(&got)
	resp2.Body.Close()

	// Bearer form works for polling.
	req3, _ := http.NewRequest(http.MethodGet, ts.URL+"/jobs/"+got["job_id"], nil)
	req3.Header.Set("Authorization", "Bearer secret-key")
	resp3, err := http.DefaultClient.Do(req3)
	if err != nil {
		t.Fatalf("get with bearer: %v", err)
	}
	if resp3.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp3.StatusCode)
	}
	resp3.Body.Close()

	// The sync route is not key-gated.
	resp4 := postJSON(t, ts.URL+"/run", body)
	if resp4.StatusCode != 200 {
		t.Fatalf("run should be open, got %d", resp4.StatusCode)
	}
	resp4.Body.Close()
}

// TestServer_RateLimit verifies the 429 with Retry-After once the burst
// is consumed.
func TestServer_RateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitR = 1
		cfg.RateLimitB = 2
	})

	body := request.Request{N: 64, Dist: "runs", Type: "i32", Repeats: 1, Algos: []string{"std_sort"}}
	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/run", body)
		if resp.StatusCode != 200 {
			t.Fatalf("burst request %d want 200, got %d", i+1, resp.StatusCode)
		}
		if got := resp.Header.Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("want X-RateLimit-Limit=2, got %q", got)
		}
		want := strconv.Itoa(1 - i)
		if got := resp.Header.Get("X-RateLimit-Remaining"); got != want {
			t.Fatalf("request %d: want X-RateLimit-Remaining=%s, got %q", i+1, want, got)
		}
		resp.Body.Close()
	}

	resp := postJSON(t, ts.URL+"/run", body)
	if resp.StatusCode != 429 {
		t.Fatalf("want 429, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("want X-RateLimit-Remaining=0 on refusal, got %q", got)
	}
	retry, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Fatalf("want Retry-After >= 1, got %q", resp.Header.Get("Retry-After"))
	}
	if got := decodeError(t, resp); got != "too many requests" {
		t.Fatalf("want too many requests, got %q", got)
	}
}

// TestServer_MethodNotAllowed covers the 405 gates on the job routes.
func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/jobs")
	if err != nil {
		t.Fatalf("get /jobs: %v", err)
	}
	if resp.StatusCode != 405 {
		t.Fatalf("GET /jobs want 405, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/jobs/some-id", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp2.StatusCode != 405 {
		t.Fatalf("DELETE want 405, got %d", resp2.StatusCode)
	}
	resp2.Body.Close()
}

// TestServer_Meta_BadPlugin verifies a nonexistent plugin path degrades
// to a warning and the discovery payload still arrives.
func TestServer_Meta_BadPlugin(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/meta?plugin=" + fmt.Sprintf("/no/such/lib-%d.so", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var meta MetaResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(meta.Algos["i32"]) == 0 {
		t.Fatalf("builtin algos must survive a bad plugin: %+v", meta.Algos)
	}
}
