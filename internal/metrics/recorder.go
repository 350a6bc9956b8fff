package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Percentiles summarises a latency distribution at full resolution.
type Percentiles struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"-"`
	Max   time.Duration `json:"-"`
	P50   time.Duration `json:"-"`
	P90   time.Duration `json:"-"`
	P99   time.Duration `json:"-"`

	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	P50Ms float64 `json:"p50_ms"`
	P90Ms float64 `json:"p90_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Recorder tracks response times with an HDR histogram for precise run-level
// percentiles. Like Mark it has a single writer; recorders from different
// workers are merged after they have been handed off.
type Recorder struct {
	hist *hdrhistogram.Histogram
}

// NewRecorder tracks latencies from 1µs up to 60s with 3 significant figures.
func NewRecorder() *Recorder {
	return &Recorder{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

// Record adds one response time, clamped to the trackable range.
func (r *Recorder) Record(latency time.Duration) {
	us := latency.Microseconds()
	if us < r.hist.LowestTrackableValue() {
		us = r.hist.LowestTrackableValue()
	}
	if us > r.hist.HighestTrackableValue() {
		us = r.hist.HighestTrackableValue()
	}
	_ = r.hist.RecordValue(us)
}

// Merge folds other into r. other is left unchanged.
func (r *Recorder) Merge(other *Recorder) {
	if other == nil {
		return
	}
	r.hist.Merge(other.hist)
}

// Percentiles computes the current summary.
func (r *Recorder) Percentiles() Percentiles {
	p := Percentiles{Count: r.hist.TotalCount()}
	if p.Count == 0 {
		return p
	}
	p.Min = time.Duration(r.hist.Min()) * time.Microsecond
	p.Max = time.Duration(r.hist.Max()) * time.Microsecond
	p.P50 = time.Duration(r.hist.ValueAtQuantile(50)) * time.Microsecond
	p.P90 = time.Duration(r.hist.ValueAtQuantile(90)) * time.Microsecond
	p.P99 = time.Duration(r.hist.ValueAtQuantile(99)) * time.Microsecond
	p.MinMs = durationMs(p.Min)
	p.MaxMs = durationMs(p.Max)
	p.P50Ms = durationMs(p.P50)
	p.P90Ms = durationMs(p.P90)
	p.P99Ms = durationMs(p.P99)
	return p
}
