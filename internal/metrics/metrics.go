package metrics

import (
	"fmt"
	"time"
)

// Metrics is a derived performance snapshot for one Type. It is produced by
// Convert or Combine and is never mutated afterwards; newer values replace it.
type Metrics struct {
	Name       string `json:"name"`
	OpType     string `json:"op_type"`
	SampleType string `json:"sample_type"`

	SampleCount      int64 `json:"sample_count"`
	TotalSampleCount int64 `json:"total_sample_count"`
	ByteCount        int64 `json:"byte_count"`
	WorkerCount      int   `json:"worker_count"`

	AvgResTime float64 `json:"avg_res_time"` // milliseconds
	Throughput float64 `json:"throughput"`   // operations per second
	Bandwidth  float64 `json:"bandwidth"`    // bytes per second

	Latency HistogramSnapshot `json:"latency"`
}

// Type returns the structured identity of m.
func (m Metrics) Type() Type {
	return Type{Op: m.OpType, Sample: m.SampleType}
}

// Clone returns a field-by-field copy with its own histogram storage.
func (m Metrics) Clone() Metrics {
	return Metrics{
		Name:             m.Name,
		OpType:           m.OpType,
		SampleType:       m.SampleType,
		SampleCount:      m.SampleCount,
		TotalSampleCount: m.TotalSampleCount,
		ByteCount:        m.ByteCount,
		WorkerCount:      m.WorkerCount,
		AvgResTime:       m.AvgResTime,
		Throughput:       m.Throughput,
		Bandwidth:        m.Bandwidth,
		Latency:          m.Latency.clone(),
	}
}

// FailureCount is the number of attempted operations that did not succeed.
func (m Metrics) FailureCount() int64 {
	return m.TotalSampleCount - m.SampleCount
}

// FailureRate is FailureCount over TotalSampleCount, 0 when nothing was attempted.
func (m Metrics) FailureRate() float64 {
	if m.TotalSampleCount == 0 {
		return 0
	}
	return float64(m.FailureCount()) / float64(m.TotalSampleCount)
}

// Convert derives Metrics from a finalized Mark observed over window.
func Convert(mark *Mark, window time.Duration) (Metrics, error) {
	if window <= 0 {
		return Metrics{}, fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}
	seconds := window.Seconds()
	out := Metrics{
		Name:             mark.typ.Name(),
		OpType:           mark.typ.Op,
		SampleType:       mark.typ.Sample,
		SampleCount:      mark.sampleCount,
		TotalSampleCount: mark.totalSampleCount,
		ByteCount:        mark.byteCount,
		WorkerCount:      1,
		Throughput:       float64(mark.sampleCount) / seconds,
		Bandwidth:        float64(mark.byteCount) / seconds,
		Latency:          mark.latency.Snapshot(),
	}
	if mark.sampleCount > 0 {
		out.AvgResTime = durationMs(mark.rtSum) / float64(mark.sampleCount)
	}
	return out, nil
}
