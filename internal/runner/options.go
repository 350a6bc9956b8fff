package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/crankstore/internal/metrics"
)

// Sample is the outcome of one timed storage operation.
type Sample struct {
	Op      string        // operation type, e.g. "read"
	Elapsed time.Duration // response time of the final attempt
	Bytes   int64         // bytes transferred on success
	Err     error         // nil on success
}

// Requester executes one operation for a worker and reports its outcome.
// worker is stable for the lifetime of the goroutine calling Do, so
// implementations may keep unsynchronized per-worker state indexed by it.
type Requester interface {
	Do(ctx context.Context, worker int) Sample
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, worker int) Sample

func (f RequesterFunc) Do(ctx context.Context, worker int) Sample { return f(ctx, worker) }

// Attempt runs one already chosen operation. It may be called more than once
// when the operation is retried.
type Attempt func(ctx context.Context) Sample

// Planner is implemented by requesters that choose what to run (operation,
// container, object) separately from running it. Middleware plans once per
// permit and repeats only the Attempt, so a retry hits the same object.
type Planner interface {
	Plan(ctx context.Context, worker int) Attempt
}

// planOf returns the Attempt req would run next for worker. Requesters that
// are not Planners are treated as stateless: every call to Do is equivalent.
func planOf(ctx context.Context, req Requester, worker int) Attempt {
	if p, ok := req.(Planner); ok {
		return p.Plan(ctx, worker)
	}
	return func(ctx context.Context) Sample { return req.Do(ctx, worker) }
}

// ArrivalModel selects how operations are spaced in time when rate limited.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// LoadPatternType selects how a LoadPattern shapes the operation rate.
type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"  // linear from FromRPS to ToRPS
	LoadPatternTypeStep  LoadPatternType = "step"  // a fixed rate per step
	LoadPatternTypeSpike LoadPatternType = "spike" // RPS held for Duration
)

// LoadPattern is one segment of a shaped run. Patterns run back to back; a
// rate of 0 means unpaced.
type LoadPattern struct {
	Name     string
	Type     LoadPatternType
	FromRPS  int
	ToRPS    int
	Duration time.Duration
	Steps    []LoadStep
	RPS      int
}

// LoadStep is one plateau of a step pattern.
type LoadStep struct {
	RPS      int
	Duration time.Duration
}

// WindowReport is the combined view of one sampling window.
type WindowReport struct {
	Stage   string
	Seq     int
	Start   time.Time
	End     time.Time
	Metrics []metrics.Metrics
}

// Options configure the Runner.
type Options struct {
	Stage         string        // label for this run, e.g. "main" or "prepare"
	RunID         string        // generated when empty
	Workers       int           // number of worker goroutines
	TotalOps      int           // total operations to execute (0 means unlimited until duration/end)
	Duration      time.Duration // overall time limit (0 means no duration cap)
	RatePerSecond int           // operations per second pacing (0 means unlimited)
	Arrival       ArrivalModel
	Requester     Requester // operation executor (required)

	// LoadPatterns replace the fixed RatePerSecond with a rate that changes
	// over time. The run ends with the last pattern unless Duration or
	// TotalOps stop it earlier.
	LoadPatterns []LoadPattern

	// Window is the sampling window length. 0 reports a single window
	// covering the whole run.
	Window        time.Duration
	LatencyBounds []time.Duration

	// Registry receives the combined Metrics of every window. A private
	// registry is used when nil.
	Registry *metrics.Registry
	// OnWindow is called from the aggregation goroutine after each window.
	OnWindow func(WindowReport)
	// ErrorKind labels failed samples for the failure breakdown.
	ErrorKind func(error) string

	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	PoissonSampler func() float64              // optional injection for tests
	RandomSeed     int64
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.TotalOps < 0 {
		o.TotalOps = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Window < 0 {
		o.Window = 0
	}
	if o.Arrival == "" {
		o.Arrival = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.Stage == "" {
		o.Stage = "main"
	}
	if o.Registry == nil {
		o.Registry = metrics.NewRegistry()
	}
	if o.ErrorKind == nil {
		o.ErrorKind = func(error) string { return "error" }
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
