package output

import (
	"sync"
	"time"

	"github.com/torosent/crankstore/internal/metrics"
	"github.com/torosent/crankstore/internal/runner"
)

// HistoryPoint is the success-only view of one window across operation types.
type HistoryPoint struct {
	Stage      string  `json:"stage"`
	Seq        int     `json:"seq"`
	Offset     float64 `json:"offset_s"`
	Throughput float64 `json:"throughput"`
	Bandwidth  float64 `json:"bandwidth"`
	Failures   int64   `json:"failures"`
	AvgMs      float64 `json:"avg_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P99Ms      float64 `json:"p99_ms"`
}

// History collects window reports for the HTML charts. Record is meant to be
// passed as runner.Options.OnWindow and may be shared across stages.
type History struct {
	mu     sync.Mutex
	origin time.Time
	points []HistoryPoint
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Record appends one window.
func (h *History) Record(rep runner.WindowReport) {
	point := HistoryPoint{Stage: rep.Stage, Seq: rep.Seq}

	var (
		samples  int64
		weighted float64
		latency  metrics.HistogramSnapshot
		seeded   bool
	)
	for _, m := range rep.Metrics {
		if m.SampleType != metrics.SampleSuccess {
			continue
		}
		point.Throughput += m.Throughput
		point.Bandwidth += m.Bandwidth
		point.Failures += m.FailureCount()
		samples += m.SampleCount
		weighted += m.AvgResTime * float64(m.SampleCount)
		if !seeded {
			latency, seeded = m.Latency, true
			continue
		}
		if merged, err := latency.Merge(m.Latency); err == nil {
			latency = merged
		}
	}
	if samples > 0 {
		point.AvgMs = weighted / float64(samples)
	}
	if seeded {
		point.P50Ms = float64(latency.Percentile(50)) / float64(time.Millisecond)
		point.P99Ms = float64(latency.Percentile(99)) / float64(time.Millisecond)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.origin.IsZero() {
		h.origin = rep.Start
	}
	point.Offset = rep.End.Sub(h.origin).Seconds()
	h.points = append(h.points, point)
}

// Points returns a copy of the collected points in arrival order.
func (h *History) Points() []HistoryPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryPoint, len(h.points))
	copy(out, h.points)
	return out
}
