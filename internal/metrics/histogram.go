package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DefaultLatencyBounds covers 100µs up to roughly 52s in powers of two.
var DefaultLatencyBounds = ExponentialBounds(100*time.Microsecond, 2, 20)

// ExponentialBounds returns count upper bounds starting at start, each factor
// times the previous one.
func ExponentialBounds(start time.Duration, factor float64, count int) []time.Duration {
	if start <= 0 || factor <= 1 || count < 1 {
		return nil
	}
	bounds := make([]time.Duration, count)
	next := float64(start)
	for i := range bounds {
		bounds[i] = time.Duration(next)
		next *= factor
	}
	return bounds
}

// Histogram is a bucketed latency distribution. Each bucket counts the
// observations whose latency is at most its upper bound and above the previous
// bound; one trailing overflow bucket takes everything above the last bound.
//
// A Histogram is owned by a single writer and is not safe for concurrent use.
// Readers work on a HistogramSnapshot.
type Histogram struct {
	bounds []time.Duration
	counts []int64
	total  int64
}

// NewHistogram creates a histogram with the given bucket upper bounds, which
// must be strictly increasing. A nil or empty slice selects DefaultLatencyBounds.
func NewHistogram(bounds []time.Duration) (*Histogram, error) {
	if len(bounds) == 0 {
		bounds = DefaultLatencyBounds
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return nil, fmt.Errorf("histogram bounds must be strictly increasing: %s at index %d follows %s", bounds[i], i, bounds[i-1])
		}
	}
	owned := make([]time.Duration, len(bounds))
	copy(owned, bounds)
	return &Histogram{
		bounds: owned,
		counts: make([]int64, len(owned)+1),
	}, nil
}

// Record adds one observation.
func (h *Histogram) Record(latency time.Duration) {
	idx := sort.Search(len(h.bounds), func(i int) bool { return h.bounds[i] >= latency })
	h.counts[idx]++
	h.total++
}

// Count returns the number of recorded observations.
func (h *Histogram) Count() int64 {
	return h.total
}

// Snapshot returns an immutable copy decoupled from further recording.
func (h *Histogram) Snapshot() HistogramSnapshot {
	counts := make([]int64, len(h.counts))
	copy(counts, h.counts)
	// bounds are never written after construction, so the snapshot can share them.
	return HistogramSnapshot{bounds: h.bounds, counts: counts, total: h.total}
}

// Bucket is one row of a histogram: the number of observations at or below
// UpperBound. The overflow bucket reports Overflow=true and a zero UpperBound.
type Bucket struct {
	UpperBound time.Duration
	Overflow   bool
	Count      int64
}

// HistogramSnapshot is a read-only histogram value. Its backing slices are never
// modified once created; accessors return copies.
type HistogramSnapshot struct {
	bounds []time.Duration
	counts []int64
	total  int64
}

// Count returns the total number of observations.
func (s HistogramSnapshot) Count() int64 {
	return s.total
}

// Bounds returns a copy of the bucket upper bounds.
func (s HistogramSnapshot) Bounds() []time.Duration {
	out := make([]time.Duration, len(s.bounds))
	copy(out, s.bounds)
	return out
}

// Counts returns a copy of the bucket counts, overflow bucket last.
func (s HistogramSnapshot) Counts() []int64 {
	out := make([]int64, len(s.counts))
	copy(out, s.counts)
	return out
}

// Buckets returns the histogram rows in bound order.
func (s HistogramSnapshot) Buckets() []Bucket {
	if len(s.counts) == 0 {
		return nil
	}
	rows := make([]Bucket, len(s.counts))
	for i, c := range s.counts {
		if i < len(s.bounds) {
			rows[i] = Bucket{UpperBound: s.bounds[i], Count: c}
		} else {
			rows[i] = Bucket{Overflow: true, Count: c}
		}
	}
	return rows
}

// Compatible reports whether both snapshots use the same ordered bounds.
func (s HistogramSnapshot) Compatible(other HistogramSnapshot) bool {
	if len(s.bounds) != len(other.bounds) {
		return false
	}
	for i := range s.bounds {
		if s.bounds[i] != other.bounds[i] {
			return false
		}
	}
	return true
}

// Merge returns a new snapshot whose counts are the element-wise sum of both
// inputs. Both snapshots must share the same bucket bounds.
func (s HistogramSnapshot) Merge(other HistogramSnapshot) (HistogramSnapshot, error) {
	if !s.Compatible(other) {
		return HistogramSnapshot{}, fmt.Errorf("%w: %d bounds vs %d bounds", ErrIncompatibleHistogram, len(s.bounds), len(other.bounds))
	}
	counts := make([]int64, len(s.counts))
	for i := range counts {
		counts[i] = s.counts[i] + other.counts[i]
	}
	return HistogramSnapshot{bounds: s.bounds, counts: counts, total: s.total + other.total}, nil
}

// Percentile estimates the latency at quantile q (0-100) as the upper bound of
// the bucket containing it. Observations in the overflow bucket report the
// last bound.
func (s HistogramSnapshot) Percentile(q float64) time.Duration {
	if s.total == 0 || len(s.bounds) == 0 {
		return 0
	}
	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	rank := int64(float64(s.total)*q/100 + 0.5)
	if rank < 1 {
		rank = 1
	}
	var seen int64
	for i, c := range s.counts {
		seen += c
		if seen >= rank {
			if i < len(s.bounds) {
				return s.bounds[i]
			}
			break
		}
	}
	return s.bounds[len(s.bounds)-1]
}

func (s HistogramSnapshot) clone() HistogramSnapshot {
	return HistogramSnapshot{bounds: s.Bounds(), counts: s.Counts(), total: s.total}
}

type bucketJSON struct {
	UpperBoundMs float64 `json:"le_ms,omitempty"`
	Overflow     bool    `json:"overflow,omitempty"`
	Count        int64   `json:"count"`
}

type histogramJSON struct {
	Count   int64        `json:"count"`
	Buckets []bucketJSON `json:"buckets"`
}

// MarshalJSON renders the snapshot with bounds in milliseconds.
func (s HistogramSnapshot) MarshalJSON() ([]byte, error) {
	out := histogramJSON{Count: s.total, Buckets: make([]bucketJSON, 0, len(s.counts))}
	for _, b := range s.Buckets() {
		out.Buckets = append(out.Buckets, bucketJSON{
			UpperBoundMs: durationMs(b.UpperBound),
			Overflow:     b.Overflow,
			Count:        b.Count,
		})
	}
	return json.Marshal(out)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
