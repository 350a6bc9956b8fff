package runner

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// arrivalController paces the scheduler. SetRate may be called from another
// goroutine while Wait blocks; a rate of 0 removes pacing.
type arrivalController interface {
	Wait(ctx context.Context) error
	SetRate(rps float64)
}

// newArrivalController returns nil when the run is neither rate limited nor
// shaped by a plan.
func newArrivalController(opt Options, plan *patternPlan) arrivalController {
	if opt.RatePerSecond <= 0 && plan == nil {
		return nil
	}
	initial := float64(opt.RatePerSecond)
	if plan != nil {
		initial, _ = plan.rateAt(0)
	}

	switch opt.Arrival {
	case ArrivalModelPoisson:
		sampler := opt.PoissonSampler
		if sampler == nil {
			seeded := rand.New(rand.NewSource(opt.RandomSeed))
			sampler = seeded.ExpFloat64
		}
		ctrl := &poissonArrival{sample: sampler}
		ctrl.SetRate(initial)
		return ctrl
	default:
		if plan == nil {
			return &uniformArrival{limiter: opt.LimiterFactory(opt.RatePerSecond)}
		}
		ctrl := &uniformArrival{limiter: opt.LimiterFactory(plan.maxBurst())}
		ctrl.SetRate(initial)
		return ctrl
	}
}

// uniformArrival delegates pacing to a rate.Limiter (uniform spacing).
type uniformArrival struct {
	limiter *rate.Limiter
}

func (u *uniformArrival) Wait(ctx context.Context) error {
	if u == nil || u.limiter == nil {
		return nil
	}
	return u.limiter.Wait(ctx)
}

func (u *uniformArrival) SetRate(rps float64) {
	if u == nil || u.limiter == nil {
		return
	}
	if rps <= 0 {
		u.limiter.SetLimit(rate.Inf)
		return
	}
	u.limiter.SetLimit(rate.Limit(rps))
	u.limiter.SetBurst(max(int(math.Ceil(rps)), 1))
}

// poissonArrival samples exponential inter-arrival times to approximate a
// Poisson process. Wait is only called by the scheduler goroutine.
type poissonArrival struct {
	mu     sync.Mutex
	rate   float64
	sample func() float64
}

func (p *poissonArrival) Wait(ctx context.Context) error {
	delay := p.nextDelay()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *poissonArrival) SetRate(rps float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.rate = math.Max(rps, 0)
	p.mu.Unlock()
}

func (p *poissonArrival) nextDelay() time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rate <= 0 || p.sample == nil {
		return 0
	}
	delay := float64(time.Second) * p.sample() / p.rate
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}
