package runner

import (
	"testing"
	"time"

	"github.com/torosent/crankstore/internal/metrics"
)

func TestWindowRotateChain(t *testing.T) {
	t0 := time.Unix(1000, 0)
	w0 := newWindow(0, t0)
	w1 := w0.rotate(t0.Add(time.Second))

	select {
	case <-w0.done:
	default:
		t.Fatal("rotated window not closed")
	}
	if w0.next != w1 || w1.seq != 1 || !w1.start.Equal(w0.end) {
		t.Fatalf("bad chain: %+v -> %+v", w0, w1)
	}
	if got := w0.length(t0.Add(time.Hour)); got != time.Second {
		t.Errorf("closed window length = %s", got)
	}
	if got := w1.length(t0.Add(1500 * time.Millisecond)); got != 500*time.Millisecond {
		t.Errorf("open window length = %s", got)
	}
}

func TestRotatorWithoutInterval(t *testing.T) {
	first := newWindow(0, time.Now())
	r := startRotator(first, 0, time.Now)
	if n := r.Stop(); n != 0 {
		t.Fatalf("rotations = %d, want 0", n)
	}
	select {
	case <-first.done:
		t.Fatal("window closed without rotation")
	default:
	}
}

func TestRotatorRotates(t *testing.T) {
	first := newWindow(0, time.Now())
	r := startRotator(first, 5*time.Millisecond, time.Now)
	<-first.done
	n := r.Stop()
	if n < 1 {
		t.Fatalf("rotations = %d", n)
	}
	w := first
	for i := 0; i < n; i++ {
		if w.next == nil {
			t.Fatalf("window %d has no successor", w.seq)
		}
		w = w.next
	}
	if w.seq != n {
		t.Errorf("last seq = %d, want %d", w.seq, n)
	}
}

func markWith(t *testing.T, op string, worker int, samples int, elapsed time.Duration) *metrics.Mark {
	t.Helper()
	m, err := metrics.NewMark(metrics.Type{Op: op, Sample: metrics.SampleSuccess}, worker, nil)
	if err != nil {
		t.Fatalf("NewMark() error = %v", err)
	}
	for i := 0; i < samples; i++ {
		m.RecordSuccess(elapsed, 100)
	}
	return m
}

func TestAggregatorPublishesClosedWindows(t *testing.T) {
	var reports []WindowReport
	opt := Options{Workers: 2, OnWindow: func(w WindowReport) { reports = append(reports, w) }}
	opt.normalize()
	agg := newAggregator(opt)

	t0 := time.Unix(1000, 0)
	w0 := newWindow(0, t0)
	w1 := w0.rotate(t0.Add(time.Second))

	agg.accept(handoff{worker: 0, win: w0, marks: []*metrics.Mark{markWith(t, "read", 0, 10, 2*time.Millisecond)}})
	if len(reports) != 0 {
		t.Fatal("published before every worker reported")
	}
	agg.accept(handoff{worker: 1, win: w0, marks: []*metrics.Mark{markWith(t, "read", 1, 30, 4*time.Millisecond)}})
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	m := reports[0].Metrics[0]
	if m.SampleCount != 40 || m.WorkerCount != 2 || m.Throughput != 40 {
		t.Errorf("combined = %+v", m)
	}
	if m.AvgResTime != 3.5 {
		t.Errorf("AvgResTime = %v, want 3.5", m.AvgResTime)
	}
	if _, err := opt.Registry.GetByName("read-success"); err != nil {
		t.Errorf("registry missing window: %v", err)
	}

	// Both workers finish in the open window; it is published by flush.
	agg.accept(handoff{worker: 0, win: w1, final: true, marks: []*metrics.Mark{markWith(t, "read", 0, 5, time.Millisecond)}})
	agg.accept(handoff{worker: 1, win: w1, final: true})
	if len(reports) != 1 {
		t.Fatal("open window published before flush")
	}
	agg.flush(t0.Add(1500 * time.Millisecond))
	if len(reports) != 2 {
		t.Fatalf("reports = %d after flush, want 2", len(reports))
	}
	if got := reports[1].Metrics[0].Throughput; got != 10 {
		t.Errorf("flushed throughput = %v, want 10", got)
	}
	if agg.windows != 2 {
		t.Errorf("windows = %d", agg.windows)
	}
}
