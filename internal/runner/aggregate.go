package runner

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/torosent/crankstore/internal/metrics"
)

type pendingWindow struct {
	win      *window
	reported int
	closed   bool
	marks    []*metrics.Mark
}

// aggregator consumes handoffs on a single goroutine. It owns every Mark it
// receives, so no locking is needed beyond the channel.
type aggregator struct {
	opt      Options
	workers  int
	pending  map[int]*pendingWindow
	windows  int
	totals   []*metrics.Mark
	latency  map[metrics.Type]*metrics.Recorder
	failures metrics.FailureCounts
	ops      int64
	errors   int64
}

func newAggregator(opt Options) *aggregator {
	return &aggregator{
		opt:      opt,
		workers:  opt.Workers,
		pending:  make(map[int]*pendingWindow),
		latency:  make(map[metrics.Type]*metrics.Recorder),
		failures: metrics.FailureCounts{},
	}
}

func (a *aggregator) run(handoffs <-chan handoff) {
	for h := range handoffs {
		a.accept(h)
	}
}

func (a *aggregator) accept(h handoff) {
	p, ok := a.pending[h.win.seq]
	if !ok {
		p = &pendingWindow{win: h.win}
		a.pending[h.win.seq] = p
	}
	p.reported++
	p.marks = append(p.marks, h.marks...)
	// A rotation handoff proves the window was closed, and its end published,
	// before the send. Final handoffs may come from a still-open window.
	if !h.final {
		p.closed = true
	}

	if h.final {
		a.totals = append(a.totals, h.totals...)
		for typ, rec := range h.latency {
			if dst, ok := a.latency[typ]; ok {
				dst.Merge(rec)
			} else {
				a.latency[typ] = rec
			}
		}
		a.failures.Merge(h.failures)
		a.ops += h.ops
		a.errors += h.errors
	}

	if p.closed && p.reported == a.workers {
		delete(a.pending, h.win.seq)
		a.publish(p, p.win.end)
	}
}

// publish converts and combines one window and stores the result.
func (a *aggregator) publish(p *pendingWindow, runEnd time.Time) {
	length := p.win.length(runEnd)
	if len(p.marks) == 0 {
		return
	}
	if length <= 0 {
		log.Debug().Str("stage", a.opt.Stage).Int("window", p.win.seq).Msg("Skipping empty window")
		return
	}
	converted := make([]metrics.Metrics, 0, len(p.marks))
	for _, m := range p.marks {
		c, err := metrics.Convert(m, length)
		if err != nil {
			log.Warn().Err(err).Int("window", p.win.seq).Msg("Window conversion failed")
			return
		}
		converted = append(converted, c)
	}
	combined, err := metrics.CombineByType(converted)
	if err != nil {
		log.Warn().Err(err).Int("window", p.win.seq).Msg("Window aggregation failed")
		return
	}
	for _, m := range combined {
		if _, _, err := a.opt.Registry.Upsert(m.Type(), m); err != nil {
			log.Warn().Err(err).Int("window", p.win.seq).Msg("Registry update failed")
		}
	}
	a.windows++
	log.Debug().
		Str("stage", a.opt.Stage).
		Int("window", p.win.seq).
		Dur("length", length).
		Int("types", len(combined)).
		Msg("Window rotated")
	if a.opt.OnWindow != nil {
		a.opt.OnWindow(WindowReport{
			Stage:   a.opt.Stage,
			Seq:     p.win.seq,
			Start:   p.win.start,
			End:     p.win.start.Add(length),
			Metrics: combined,
		})
	}
}

// flush publishes windows that not every worker reported, in order, cutting
// the last one at runEnd.
func (a *aggregator) flush(runEnd time.Time) {
	seqs := make([]int, 0, len(a.pending))
	for seq := range a.pending {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	for _, seq := range seqs {
		a.publish(a.pending[seq], runEnd)
		delete(a.pending, seq)
	}
}

// summary converts run totals over the whole run and combines them per Type.
func (a *aggregator) summary(runLength time.Duration) ([]metrics.Metrics, map[string]metrics.Percentiles, error) {
	if len(a.totals) == 0 || runLength <= 0 {
		return nil, nil, nil
	}
	converted := make([]metrics.Metrics, 0, len(a.totals))
	for _, m := range a.totals {
		c, err := metrics.Convert(m, runLength)
		if err != nil {
			return nil, nil, err
		}
		converted = append(converted, c)
	}
	combined, err := metrics.CombineByType(converted)
	if err != nil {
		return nil, nil, err
	}
	percentiles := make(map[string]metrics.Percentiles, len(a.latency))
	for typ, rec := range a.latency {
		percentiles[typ.Name()] = rec.Percentiles()
	}
	return combined, percentiles, nil
}
