package output

import (
	"testing"
	"time"

	"github.com/torosent/crankstore/internal/metrics"
	"github.com/torosent/crankstore/internal/runner"
)

var testBounds = metrics.ExponentialBounds(time.Millisecond, 2, 10)

func convertSamples(t *testing.T, op string, latency time.Duration, successes, failures int, bytes int64, window time.Duration) metrics.Metrics {
	t.Helper()
	mark, err := metrics.NewMark(metrics.Type{Op: op, Sample: metrics.SampleSuccess}, 0, testBounds)
	if err != nil {
		t.Fatalf("NewMark() error: %v", err)
	}
	for i := 0; i < successes; i++ {
		mark.RecordSuccess(latency, bytes)
	}
	for i := 0; i < failures; i++ {
		mark.RecordFailure()
	}
	m, err := metrics.Convert(mark, window)
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	return m
}

func sampleResult(t *testing.T) runner.Result {
	t.Helper()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	read := convertSamples(t, "read", 3*time.Millisecond, 9, 1, 4096, 2*time.Second)
	write := convertSamples(t, "write", 10*time.Millisecond, 5, 0, 4096, 2*time.Second)
	return runner.Result{
		RunID:    "01HRUNID",
		Stage:    "main",
		Start:    start,
		End:      start.Add(2 * time.Second),
		Duration: 2 * time.Second,
		Total:    15,
		Errors:   1,
		Windows:  2,
		Summary:  []metrics.Metrics{read, write},
		Percentiles: map[string]metrics.Percentiles{
			"read-success": {Count: 9, P50Ms: 3, P90Ms: 3, P99Ms: 3.1, MaxMs: 3.2},
		},
		Failures: []metrics.FailureBucket{{Op: "read", Kind: "404 Not Found", Count: 1}},
	}
}
