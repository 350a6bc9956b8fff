package runner

import (
	"context"
	"testing"
	"time"
)

func TestPoissonArrivalNextDelayUsesSampler(t *testing.T) {
	ctrl := &poissonArrival{rate: 200, sample: func() float64 { return 1 }}
	delay := ctrl.nextDelay()
	expected := time.Second / 200
	if delay != expected {
		t.Fatalf("expected delay %s, got %s", expected, delay)
	}
}

func TestPoissonArrivalWaitCancelledContext(t *testing.T) {
	ctrl := &poissonArrival{rate: 0.000001, sample: func() float64 { return 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Wait(ctx); err == nil {
		t.Fatalf("expected context error when cancelled")
	}
}

func TestNewArrivalController(t *testing.T) {
	tests := []struct {
		name string
		opt  Options
		want string
	}{
		{name: "unlimited", opt: Options{}, want: "none"},
		{name: "uniform", opt: Options{RatePerSecond: 10}, want: "uniform"},
		{name: "poisson", opt: Options{RatePerSecond: 10, Arrival: ArrivalModelPoisson}, want: "poisson"},
		{name: "shaped without base rate", opt: Options{LoadPatterns: []LoadPattern{
			{Type: LoadPatternTypeRamp, FromRPS: 1, ToRPS: 10, Duration: time.Second},
		}}, want: "uniform"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := tt.opt
			opt.normalize()
			got := "none"
			switch newArrivalController(opt, compilePatternPlan(opt.LoadPatterns)).(type) {
			case *uniformArrival:
				got = "uniform"
			case *poissonArrival:
				got = "poisson"
			}
			if got != tt.want {
				t.Errorf("controller = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUniformArrivalSetRate(t *testing.T) {
	opt := Options{LoadPatterns: []LoadPattern{{Type: LoadPatternTypeSpike, RPS: 40, Duration: time.Second}}}
	opt.normalize()
	ctrl := newArrivalController(opt, compilePatternPlan(opt.LoadPatterns)).(*uniformArrival)

	if got := ctrl.limiter.Limit(); got != 40 {
		t.Errorf("initial limit = %v, want 40 from the first pattern", got)
	}
	ctrl.SetRate(2.5)
	if ctrl.limiter.Limit() != 2.5 || ctrl.limiter.Burst() != 3 {
		t.Errorf("limit/burst = %v/%d, want 2.5/3", ctrl.limiter.Limit(), ctrl.limiter.Burst())
	}
	ctrl.SetRate(0)
	if err := ctrl.Wait(context.Background()); err != nil {
		t.Errorf("Wait() at rate 0 error = %v", err)
	}
}

func TestPoissonArrivalSetRate(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }}
	ctrl.SetRate(50)
	if got := ctrl.nextDelay(); got != 20*time.Millisecond {
		t.Errorf("delay at 50/s = %s, want 20ms", got)
	}
	ctrl.SetRate(-1)
	if got := ctrl.nextDelay(); got != 0 {
		t.Errorf("delay at negative rate = %s, want 0", got)
	}
}
