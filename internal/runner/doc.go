// Package runner drives concurrent storage operations and turns their
// outcomes into windowed metrics.
//
// The runner package orchestrates execution with support for:
//   - Configurable worker counts
//   - Rate limiting (operations per second)
//   - Duration-based and count-based termination
//   - Multiple arrival models (uniform, Poisson)
//   - Fixed-length sampling windows
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Workers:       16,
//		Duration:      time.Minute,
//		RatePerSecond: 500,
//		Window:        5 * time.Second,
//		Requester:     requester,
//	})
//	res, err := r.Run(ctx)
//
// # Requester Interface
//
// The [Requester] interface defines what a worker executes:
//
//	type Requester interface {
//		Do(ctx context.Context, worker int) Sample
//	}
//
// # Windows
//
// Every worker owns one Mark per operation type for the current window and
// records into it without locks. When a window closes each worker hands its
// Marks over a channel to a single aggregation goroutine, which converts them
// with the window length, combines them per type and upserts the result into
// [Options.Registry]. Run totals are kept alongside and summarized over the
// whole run when it ends.
//
// # Middleware
//
//   - [WithLogging]: Log operation failures
//   - [WithRetry]: Automatic retry with backoff
//
// Requesters that pick a random or next item per call should also implement
// [Planner]. Middleware then plans once per permit and retries the returned
// [Attempt], so a retry repeats the same operation on the same object.
package runner
