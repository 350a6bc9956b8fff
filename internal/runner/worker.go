package runner

import (
	"context"
	"time"

	"github.com/torosent/crankstore/internal/metrics"
)

// handoff transfers ownership of a worker's finalized Marks to the
// aggregation goroutine. The worker never touches them after the send.
type handoff struct {
	worker int
	win    *window
	marks  []*metrics.Mark

	// set on the worker's last handoff only
	final    bool
	totals   []*metrics.Mark
	latency  map[metrics.Type]*metrics.Recorder
	failures metrics.FailureCounts
	ops      int64
	errors   int64
}

// markSet holds one Mark per Type for a single worker.
type markSet struct {
	worker int
	bounds []time.Duration
	marks  map[metrics.Type]*metrics.Mark
	order  []metrics.Type
}

func newMarkSet(worker int, bounds []time.Duration) *markSet {
	return &markSet{worker: worker, bounds: bounds, marks: make(map[metrics.Type]*metrics.Mark)}
}

func (s *markSet) get(typ metrics.Type) *metrics.Mark {
	m, ok := s.marks[typ]
	if !ok {
		// bounds are validated before workers start
		m, _ = metrics.NewMark(typ, s.worker, s.bounds)
		s.marks[typ] = m
		s.order = append(s.order, typ)
	}
	return m
}

func (s *markSet) list() []*metrics.Mark {
	out := make([]*metrics.Mark, 0, len(s.order))
	for _, typ := range s.order {
		out = append(out, s.marks[typ])
	}
	return out
}

type worker struct {
	id        int
	req       Requester
	bounds    []time.Duration
	errorKind func(error) string
	handoffs  chan<- handoff

	window   *markSet
	totals   *markSet
	latency  map[metrics.Type]*metrics.Recorder
	failures metrics.FailureCounts
	ops      int64
	errors   int64
}

func newWorker(id int, opt Options, handoffs chan<- handoff) *worker {
	return &worker{
		id:        id,
		req:       opt.Requester,
		bounds:    opt.LatencyBounds,
		errorKind: opt.ErrorKind,
		handoffs:  handoffs,
		window:    newMarkSet(id, opt.LatencyBounds),
		totals:    newMarkSet(id, opt.LatencyBounds),
		latency:   make(map[metrics.Type]*metrics.Recorder),
		failures:  metrics.FailureCounts{},
	}
}

func (w *worker) record(s Sample) {
	typ := metrics.Type{Op: s.Op, Sample: metrics.SampleSuccess}
	w.ops++
	if s.Err != nil {
		w.errors++
		w.window.get(typ).RecordFailure()
		w.totals.get(typ).RecordFailure()
		w.failures.Add(s.Op, w.errorKind(s.Err))
		return
	}
	w.window.get(typ).RecordSuccess(s.Elapsed, s.Bytes)
	w.totals.get(typ).RecordSuccess(s.Elapsed, s.Bytes)
	rec, ok := w.latency[typ]
	if !ok {
		rec = metrics.NewRecorder()
		w.latency[typ] = rec
	}
	rec.Record(s.Elapsed)
}

func (w *worker) rotate(win *window) {
	w.handoffs <- handoff{worker: w.id, win: win, marks: w.window.list()}
	w.window = newMarkSet(w.id, w.bounds)
}

func (w *worker) finish(win *window) {
	w.handoffs <- handoff{
		worker:   w.id,
		win:      win,
		marks:    w.window.list(),
		final:    true,
		totals:   w.totals.list(),
		latency:  w.latency,
		failures: w.failures,
		ops:      w.ops,
		errors:   w.errors,
	}
	w.window, w.totals, w.latency, w.failures = nil, nil, nil, nil
}

// run executes permits until the permit channel closes, handing off the
// window Marks each time the current window closes.
func (w *worker) run(ctx context.Context, win *window, permits <-chan struct{}) {
	for {
		select {
		case <-win.done:
			w.rotate(win)
			win = win.next
			continue
		default:
		}

		select {
		case <-win.done:
			w.rotate(win)
			win = win.next
		case _, ok := <-permits:
			if !ok {
				w.finish(win)
				return
			}
			sample := w.req.Do(ctx, w.id)
			if ctx.Err() != nil {
				// operations cut off by the end of the run are not samples
				if sample.Err == nil {
					w.record(sample)
				}
				w.finish(win)
				return
			}
			w.record(sample)
		}
	}
}
