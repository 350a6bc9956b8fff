package metrics

import "time"

// Mark accumulates raw samples for one worker and one Type during a window.
//
// A Mark has exactly one writer: the worker that created it. It carries no
// lock. Ownership moves to a reader only through an explicit handoff (the
// runner sends finalized Marks over a channel) after which the worker must not
// touch it again.
type Mark struct {
	typ    Type
	worker int

	sampleCount      int64
	totalSampleCount int64
	rtSum            time.Duration
	byteCount        int64
	latency          *Histogram
}

// NewMark creates an empty Mark whose latency histogram uses bounds
// (DefaultLatencyBounds when empty).
func NewMark(typ Type, worker int, bounds []time.Duration) (*Mark, error) {
	h, err := NewHistogram(bounds)
	if err != nil {
		return nil, err
	}
	return &Mark{typ: typ, worker: worker, latency: h}, nil
}

// RecordSuccess records a completed operation.
func (m *Mark) RecordSuccess(responseTime time.Duration, bytes int64) {
	if responseTime < 0 {
		responseTime = 0
	}
	if bytes < 0 {
		bytes = 0
	}
	m.sampleCount++
	m.totalSampleCount++
	m.rtSum += responseTime
	m.byteCount += bytes
	m.latency.Record(responseTime)
}

// RecordFailure records an attempted operation that did not succeed.
func (m *Mark) RecordFailure() {
	m.totalSampleCount++
}

func (m *Mark) Type() Type                 { return m.typ }
func (m *Mark) Worker() int                { return m.worker }
func (m *Mark) SampleCount() int64         { return m.sampleCount }
func (m *Mark) TotalSampleCount() int64    { return m.totalSampleCount }
func (m *Mark) RtSum() time.Duration       { return m.rtSum }
func (m *Mark) ByteCount() int64           { return m.byteCount }
func (m *Mark) Latency() HistogramSnapshot { return m.latency.Snapshot() }
