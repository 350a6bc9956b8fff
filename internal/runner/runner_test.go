package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/crankstore/internal/metrics"
	"github.com/torosent/crankstore/internal/runner"
)

// fakeRequester simulates a storage operation with fixed latency.
type fakeRequester struct {
	op        string
	latency   time.Duration
	bytes     int64
	calls     *int64
	failEvery int64 // if >0, every failEvery-th call fails
}

func (f *fakeRequester) Do(ctx context.Context, worker int) runner.Sample {
	n := atomic.AddInt64(f.calls, 1)
	op := f.op
	if op == "" {
		op = "write"
	}
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return runner.Sample{Op: op, Err: ctx.Err()}
		}
	}
	if f.failEvery > 0 && n%f.failEvery == 0 {
		return runner.Sample{Op: op, Elapsed: f.latency, Err: errors.New("boom")}
	}
	return runner.Sample{Op: op, Elapsed: f.latency, Bytes: f.bytes}
}

func mustRunner(t *testing.T, opt runner.Options) *runner.Runner {
	t.Helper()
	r, err := runner.New(opt)
	if err != nil {
		t.Fatalf("runner.New() error = %v", err)
	}
	return r
}

func mustRun(t *testing.T, r *runner.Runner) runner.Result {
	t.Helper()
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

// TestRunnerRespectsTotalOps ensures the total limit stops execution.
func TestRunnerRespectsTotalOps(t *testing.T) {
	var calls int64
	r := mustRunner(t, runner.Options{
		Workers:   4,
		TotalOps:  25,
		Requester: &fakeRequester{latency: time.Millisecond, bytes: 100, calls: &calls},
	})
	res := mustRun(t, r)
	if res.Total != 25 {
		t.Fatalf("expected total 25, got %d", res.Total)
	}
	if calls != 25 {
		t.Fatalf("expected requester called 25 times, got %d", calls)
	}
	if len(res.Summary) != 1 {
		t.Fatalf("expected one summary entry, got %d", len(res.Summary))
	}
	s := res.Summary[0]
	if s.Name != "write-success" || s.SampleCount != 25 || s.ByteCount != 2500 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.WorkerCount < 1 || s.WorkerCount > 4 {
		t.Errorf("WorkerCount = %d", s.WorkerCount)
	}
	if res.RunID == "" {
		t.Error("expected a generated run ID")
	}
	if res.Percentiles["write-success"].Count != 25 {
		t.Errorf("percentile count = %d", res.Percentiles["write-success"].Count)
	}
}

// TestRunnerHonorsDuration ensures the duration cap stops even if total not reached.
func TestRunnerHonorsDuration(t *testing.T) {
	var calls int64
	r := mustRunner(t, runner.Options{
		Workers:   10,
		Duration:  50 * time.Millisecond,
		Requester: &fakeRequester{latency: 5 * time.Millisecond, calls: &calls},
	})
	start := time.Now()
	res := mustRun(t, r)
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if res.Duration <= 0 {
		t.Fatalf("result duration not recorded")
	}
	if res.Total <= 0 {
		t.Fatalf("expected some operations executed")
	}
	if res.Errors != 0 {
		t.Errorf("operations cut off by the deadline must not count as errors, got %d", res.Errors)
	}
}

// TestRateLimiterCapsThroughput ensures the rate limiter restricts ops/s.
func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	rateLimit := 100
	duration := 100 * time.Millisecond
	r := mustRunner(t, runner.Options{
		Workers:        20,
		Duration:       duration,
		RatePerSecond:  rateLimit,
		Requester:      &fakeRequester{calls: &calls},
		LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	})
	res := mustRun(t, r)
	maxExpected := int(float64(rateLimit) * (float64(duration) / float64(time.Second)) * 1.20) // 20% slack
	if int(res.Total) > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", res.Total, maxExpected)
	}
	if calls < res.Total {
		t.Fatalf("calls mismatch: %d < %d", calls, res.Total)
	}
}

func TestRunnerPublishesWindows(t *testing.T) {
	var calls int64
	var mu sync.Mutex
	var reports []runner.WindowReport
	registry := metrics.NewRegistry()

	r := mustRunner(t, runner.Options{
		Workers:   3,
		Duration:  120 * time.Millisecond,
		Window:    30 * time.Millisecond,
		Registry:  registry,
		Requester: &fakeRequester{op: "read", latency: time.Millisecond, bytes: 10, calls: &calls},
		OnWindow: func(w runner.WindowReport) {
			mu.Lock()
			reports = append(reports, w)
			mu.Unlock()
		},
	})
	res := mustRun(t, r)

	mu.Lock()
	defer mu.Unlock()
	if len(reports) < 2 {
		t.Fatalf("expected several windows, got %d", len(reports))
	}
	if res.Windows != len(reports) {
		t.Errorf("Windows = %d, reports = %d", res.Windows, len(reports))
	}
	var windowSamples int64
	for i, w := range reports {
		if i > 0 && w.Seq <= reports[i-1].Seq {
			t.Errorf("windows out of order: %d after %d", w.Seq, reports[i-1].Seq)
		}
		if !w.End.After(w.Start) {
			t.Errorf("window %d has no length", w.Seq)
		}
		for _, m := range w.Metrics {
			windowSamples += m.SampleCount
		}
	}
	if windowSamples != res.Total {
		t.Errorf("window samples %d != run total %d", windowSamples, res.Total)
	}

	live, err := registry.Get(metrics.Type{Op: "read", Sample: metrics.SampleSuccess})
	if err != nil {
		t.Fatalf("registry.Get() error = %v", err)
	}
	if live.SampleCount <= 0 || live.Throughput <= 0 {
		t.Errorf("live metrics not populated: %+v", live)
	}
}

func TestRunnerRecordsFailures(t *testing.T) {
	var calls int64
	r := mustRunner(t, runner.Options{
		Workers:   2,
		TotalOps:  40,
		Requester: &fakeRequester{op: "delete", calls: &calls, failEvery: 4},
		ErrorKind: func(error) string { return "503 Service Unavailable" },
	})
	res := mustRun(t, r)
	if res.Errors != 10 {
		t.Errorf("Errors = %d, want 10", res.Errors)
	}
	s := res.Summary[0]
	if s.TotalSampleCount != 40 || s.SampleCount != 30 {
		t.Errorf("summary counts = %d/%d, want 30/40", s.SampleCount, s.TotalSampleCount)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("Failures = %+v", res.Failures)
	}
	if f := res.Failures[0]; f.Op != "delete" || f.Kind != "503 Service Unavailable" || f.Count != 10 {
		t.Errorf("failure bucket = %+v", f)
	}
}

func TestRunnerRejectsBadOptions(t *testing.T) {
	if _, err := runner.New(runner.Options{}); err == nil {
		t.Error("expected error without requester")
	}
	var calls int64
	_, err := runner.New(runner.Options{
		Requester:     &fakeRequester{calls: &calls},
		LatencyBounds: []time.Duration{time.Second, time.Millisecond},
	})
	if err == nil {
		t.Error("expected error for decreasing latency bounds")
	}
}

func TestRunnerEndsWithLoadPatterns(t *testing.T) {
	var calls int64
	r := mustRunner(t, runner.Options{
		Workers: 2,
		LoadPatterns: []runner.LoadPattern{
			{Name: "warmup", Type: runner.LoadPatternTypeRamp, FromRPS: 20, ToRPS: 100, Duration: 200 * time.Millisecond},
			{Name: "steady", Type: runner.LoadPatternTypeStep, Steps: []runner.LoadStep{{RPS: 50, Duration: 200 * time.Millisecond}}},
		},
		Requester: &fakeRequester{calls: &calls},
	})

	res := mustRun(t, r)
	if res.Duration < 350*time.Millisecond || res.Duration > 5*time.Second {
		t.Errorf("duration = %s, want the run to stop shortly after 400ms of patterns", res.Duration)
	}
	if res.Total == 0 {
		t.Fatal("no operations ran")
	}
	// Burst of the peak rate plus the integrated schedule, with slack for timer granularity.
	if res.Total > 100+60+20 {
		t.Errorf("total = %d, pacing was not applied", res.Total)
	}
	if res.Errors != 0 {
		t.Errorf("errors = %d, want 0", res.Errors)
	}
}
