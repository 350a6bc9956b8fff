package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FailureLogger logs failed operations.
type FailureLogger interface {
	LogFailure(s Sample)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// ExponentialBackoff returns a DelayFunc doubling base per attempt up to max.
func ExponentialBackoff(base, max time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		d := base
		for i := 1; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
		return d
	}
}

// retryRequester wraps a Requester with retry logic.
type retryRequester struct {
	inner  Requester
	policy RetryPolicy
}

// WithRetry wraps a Requester with retry capability. The operation is planned
// once and only its Attempt is repeated. Only the outcome of the last attempt
// is returned, so only it is recorded.
func WithRetry(req Requester, policy RetryPolicy) Requester {
	if policy.MaxAttempts <= 1 {
		return req // no retries needed
	}
	return &retryRequester{
		inner:  req,
		policy: policy,
	}
}

func (r *retryRequester) Do(ctx context.Context, worker int) Sample {
	return r.Plan(ctx, worker)(ctx)
}

func (r *retryRequester) Plan(ctx context.Context, worker int) Attempt {
	attempt := planOf(ctx, r.inner, worker)
	return func(ctx context.Context) Sample { return r.retry(ctx, attempt) }
}

func (r *retryRequester) retry(ctx context.Context, attempt Attempt) Sample {
	var last Sample
	for n := 1; n <= r.policy.MaxAttempts; n++ {
		last = attempt(ctx)
		if last.Err == nil || ctx.Err() != nil {
			return last
		}

		// Don't delay after the last attempt.
		if n < r.policy.MaxAttempts {
			if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(last.Err) {
				return last
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(n, last.Err)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return last
				}
			}
		}
	}
	return last
}

// loggingRequester wraps a Requester with failure logging.
type loggingRequester struct {
	inner  Requester
	logger FailureLogger
}

// WithLogging wraps a Requester to log failures.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return &loggingRequester{
		inner:  req,
		logger: logger,
	}
}

func (l *loggingRequester) Do(ctx context.Context, worker int) Sample {
	return l.Plan(ctx, worker)(ctx)
}

// Plan logs every failed attempt, including ones a retry later recovers.
func (l *loggingRequester) Plan(ctx context.Context, worker int) Attempt {
	attempt := planOf(ctx, l.inner, worker)
	return func(ctx context.Context) Sample {
		s := attempt(ctx)
		if s.Err != nil {
			l.logger.LogFailure(s)
		}
		return s
	}
}

// ZerologFailureLogger writes failed operations at debug level.
type ZerologFailureLogger struct {
	Logger zerolog.Logger
	Kind   func(error) string
}

func (z ZerologFailureLogger) LogFailure(s Sample) {
	ev := z.Logger.Debug().Err(s.Err).Str("op", s.Op).Dur("elapsed", s.Elapsed)
	if z.Kind != nil {
		ev = ev.Str("kind", z.Kind(s.Err))
	}
	ev.Msg("Operation failed")
}
