package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/torosent/crankstore/internal/metrics"
)

// Result captures the outcome of one run.
type Result struct {
	RunID    string
	Stage    string
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Total    int64 // operations executed
	Errors   int64 // operations that failed
	Windows  int   // windows published to the registry

	// Summary holds one Metrics per Type computed over the whole run.
	Summary []metrics.Metrics
	// Percentiles are keyed by Type name.
	Percentiles map[string]metrics.Percentiles
	Failures    []metrics.FailureBucket
}

// Runner coordinates concurrent execution with rate limiting and windowed
// metrics aggregation.
type Runner struct {
	opt     Options
	plan    *patternPlan
	arrival arrivalController
	now     func() time.Time
}

// patternTick is how often a shaped run re-targets its rate.
const patternTick = 100 * time.Millisecond

// New validates opt and creates a Runner.
func New(opt Options) (*Runner, error) {
	opt.normalize()
	if opt.Requester == nil {
		return nil, fmt.Errorf("runner: requester is required")
	}
	if _, err := metrics.NewHistogram(opt.LatencyBounds); err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	if opt.RunID == "" {
		opt.RunID = ulid.Make().String()
	}
	plan := compilePatternPlan(opt.LoadPatterns)
	return &Runner{opt: opt, plan: plan, arrival: newArrivalController(opt, plan), now: time.Now}, nil
}

// Registry returns the registry that receives window metrics.
func (r *Runner) Registry() *metrics.Registry {
	return r.opt.Registry
}

func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := r.now()
	var scheduled int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}
	if r.plan != nil {
		patternCtx, patternCancel := context.WithCancel(ctx)
		ctx = patternCtx
		defer patternCancel()
		go r.runPatternController(patternCtx, patternCancel, start)
	}

	log.Info().
		Str("run_id", r.opt.RunID).
		Str("stage", r.opt.Stage).
		Int("workers", r.opt.Workers).
		Int("total", r.opt.TotalOps).
		Dur("duration", r.opt.Duration).
		Int("rate", r.opt.RatePerSecond).
		Dur("pattern_duration", r.plan.totalDuration()).
		Msg("Run starting")

	permits := make(chan struct{}, r.opt.Workers)

	// Scheduler: serializes rate limiting to avoid burst overshoot across workers.
	go func() {
		defer close(permits)
		for {
			if ctx.Err() != nil {
				return
			}
			current := atomic.LoadInt64(&scheduled)
			if r.opt.TotalOps > 0 && current >= int64(r.opt.TotalOps) {
				return
			}
			if r.arrival != nil {
				if err := r.arrival.Wait(ctx); err != nil {
					return
				}
			}
			// Increment before releasing the permit so workers only execute allocated slots.
			atomic.AddInt64(&scheduled, 1)
			select {
			case permits <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	handoffs := make(chan handoff, r.opt.Workers*2)
	agg := newAggregator(r.opt)
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		agg.run(handoffs)
	}()

	first := newWindow(0, start)
	rot := startRotator(first, r.opt.Window, r.now)

	var wg sync.WaitGroup
	wg.Add(r.opt.Workers)
	for i := 0; i < r.opt.Workers; i++ {
		w := newWorker(i, r.opt, handoffs)
		go func() {
			defer wg.Done()
			w.run(ctx, first, permits)
		}()
	}
	wg.Wait()
	end := r.now()
	rot.Stop()
	close(handoffs)
	<-aggDone

	agg.flush(end)
	runLength := end.Sub(start)
	summary, percentiles, err := agg.summary(runLength)
	if err != nil {
		return Result{}, fmt.Errorf("runner: summarize %s: %w", r.opt.Stage, err)
	}

	res := Result{
		RunID:       r.opt.RunID,
		Stage:       r.opt.Stage,
		Start:       start,
		End:         end,
		Duration:    runLength,
		Total:       agg.ops,
		Errors:      agg.errors,
		Windows:     agg.windows,
		Summary:     summary,
		Percentiles: percentiles,
		Failures:    metrics.FlattenFailures(agg.failures),
	}
	log.Info().
		Str("run_id", res.RunID).
		Str("stage", res.Stage).
		Int64("total", res.Total).
		Int64("errors", res.Errors).
		Dur("elapsed", res.Duration).
		Int("windows", res.Windows).
		Msg("Run finished")
	return res, nil
}

// runPatternController re-targets the arrival rate along the plan and ends the
// run by calling cancel once the plan is over.
func (r *Runner) runPatternController(ctx context.Context, cancel context.CancelFunc, start time.Time) {
	defer cancel()

	ticker := time.NewTicker(patternTick)
	defer ticker.Stop()

	current := r.plan.segmentAt(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := r.now().Sub(start)
			rps, ok := r.plan.rateAt(elapsed)
			if !ok {
				log.Debug().Str("stage", r.opt.Stage).Dur("elapsed", elapsed).Msg("Load patterns complete")
				return
			}
			r.arrival.SetRate(rps)
			if name := r.plan.segmentAt(elapsed); name != current {
				current = name
				log.Debug().Str("stage", r.opt.Stage).Str("pattern", name).Float64("rate", rps).Msg("Load pattern changed")
			}
		}
	}
}
