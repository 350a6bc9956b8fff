package metrics

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestNewHistogramValidatesBounds(t *testing.T) {
	tests := []struct {
		name    string
		bounds  []time.Duration
		wantErr bool
		wantLen int
	}{
		{name: "default", bounds: nil, wantLen: len(DefaultLatencyBounds)},
		{name: "increasing", bounds: []time.Duration{ms(1), ms(2), ms(5)}, wantLen: 3},
		{name: "duplicate", bounds: []time.Duration{ms(1), ms(1)}, wantErr: true},
		{name: "decreasing", bounds: []time.Duration{ms(5), ms(2)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHistogram(tt.bounds)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(h.Snapshot().Bounds()); got != tt.wantLen {
				t.Errorf("bounds len = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestHistogramRecordBuckets(t *testing.T) {
	h, err := NewHistogram([]time.Duration{ms(1), ms(10), ms(100)})
	if err != nil {
		t.Fatalf("NewHistogram: %v", err)
	}
	for _, d := range []time.Duration{0, ms(1), ms(2), ms(10), ms(50), ms(100), ms(101), time.Hour} {
		h.Record(d)
	}
	want := []int64{2, 2, 2, 2}
	got := h.Snapshot().Counts()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}
	if h.Count() != 8 {
		t.Errorf("Count() = %d, want 8", h.Count())
	}
}

func TestHistogramSnapshotIsDecoupled(t *testing.T) {
	h, _ := NewHistogram([]time.Duration{ms(1), ms(10)})
	h.Record(ms(5))
	snap := h.Snapshot()
	h.Record(ms(5))
	h.Record(ms(50))

	if snap.Count() != 1 {
		t.Errorf("snapshot count changed to %d", snap.Count())
	}
	if !reflect.DeepEqual(snap.Counts(), []int64{0, 1, 0}) {
		t.Errorf("snapshot counts changed: %v", snap.Counts())
	}
}

func TestHistogramMerge(t *testing.T) {
	bounds := []time.Duration{ms(1), ms(10), ms(100)}
	a, _ := NewHistogram(bounds)
	b, _ := NewHistogram(bounds)
	a.Record(ms(1))
	a.Record(ms(20))
	b.Record(ms(20))
	b.Record(ms(5))
	b.Record(time.Minute)

	merged, err := a.Snapshot().Merge(b.Snapshot())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if want := []int64{1, 1, 2, 1}; !reflect.DeepEqual(merged.Counts(), want) {
		t.Errorf("merged counts = %v, want %v", merged.Counts(), want)
	}
	if merged.Count() != 5 {
		t.Errorf("merged total = %d, want 5", merged.Count())
	}
	if a.Count() != 2 || b.Count() != 3 {
		t.Error("merge must not modify its inputs")
	}
}

func TestHistogramMergeIncompatible(t *testing.T) {
	a, _ := NewHistogram([]time.Duration{ms(1), ms(10)})
	b, _ := NewHistogram([]time.Duration{ms(1), ms(20)})
	c, _ := NewHistogram([]time.Duration{ms(1)})

	if _, err := a.Snapshot().Merge(b.Snapshot()); !errors.Is(err, ErrIncompatibleHistogram) {
		t.Errorf("different bounds: got %v, want ErrIncompatibleHistogram", err)
	}
	if _, err := a.Snapshot().Merge(c.Snapshot()); !errors.Is(err, ErrIncompatibleHistogram) {
		t.Errorf("different length: got %v, want ErrIncompatibleHistogram", err)
	}
}

func TestHistogramPercentile(t *testing.T) {
	h, _ := NewHistogram([]time.Duration{ms(1), ms(10), ms(100)})
	if got := h.Snapshot().Percentile(50); got != 0 {
		t.Errorf("empty percentile = %v, want 0", got)
	}
	for i := 0; i < 90; i++ {
		h.Record(ms(1))
	}
	for i := 0; i < 9; i++ {
		h.Record(ms(50))
	}
	h.Record(time.Minute)

	snap := h.Snapshot()
	tests := []struct {
		q    float64
		want time.Duration
	}{
		{q: 50, want: ms(1)},
		{q: 90, want: ms(1)},
		{q: 95, want: ms(100)},
		{q: 100, want: ms(100)},
	}
	for _, tt := range tests {
		if got := snap.Percentile(tt.q); got != tt.want {
			t.Errorf("Percentile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestHistogramSnapshotJSON(t *testing.T) {
	h, _ := NewHistogram([]time.Duration{ms(1), ms(2)})
	h.Record(ms(2))
	h.Record(time.Second)

	data, err := json.Marshal(h.Snapshot())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		Count   int64 `json:"count"`
		Buckets []struct {
			LeMs     float64 `json:"le_ms"`
			Overflow bool    `json:"overflow"`
			Count    int64   `json:"count"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Count != 2 || len(decoded.Buckets) != 3 {
		t.Fatalf("unexpected payload: %s", data)
	}
	if decoded.Buckets[1].LeMs != 2 || decoded.Buckets[1].Count != 1 {
		t.Errorf("bucket 1 = %+v", decoded.Buckets[1])
	}
	if !decoded.Buckets[2].Overflow || decoded.Buckets[2].Count != 1 {
		t.Errorf("overflow bucket = %+v", decoded.Buckets[2])
	}
}

func TestExponentialBounds(t *testing.T) {
	got := ExponentialBounds(ms(1), 2, 4)
	want := []time.Duration{ms(1), ms(2), ms(4), ms(8)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExponentialBounds = %v, want %v", got, want)
	}
	if ExponentialBounds(0, 2, 4) != nil {
		t.Error("expected nil for zero start")
	}
}
