// Package metrics turns raw operation samples into windowed performance metrics.
//
// Workers accumulate samples in a [Mark], one per worker and [Type]. A Mark has
// a single writer and no locking; at the end of a window the worker hands it
// off (the runner sends it over a channel) and starts a fresh one.
//
//	mark, _ := metrics.NewMark(metrics.Type{Op: "write", Sample: metrics.SampleSuccess}, workerID, nil)
//	mark.RecordSuccess(elapsed, bytes)
//	mark.RecordFailure()
//
// # Conversion
//
// [Convert] derives an immutable [Metrics] value from a handed-off Mark and the
// window length it covered:
//
//	m, err := metrics.Convert(mark, time.Second)
//
// Average response time is in milliseconds, throughput in operations per
// second, bandwidth in bytes per second.
//
// # Aggregation
//
// [Combine] reduces same-type Metrics from different workers into one value.
// Counts and rates are summed and the average response time is weighted by
// sample count:
//
//	total, err := metrics.Combine([]metrics.Metrics{a, b, c})
//
// Latency histograms are merged bucket by bucket and must share bounds.
//
// # Registry
//
// [Registry] keeps the latest Metrics per Type for concurrent readers such as
// progress output and the HTTP status server. Values are replaced whole.
//
// # Percentiles
//
// [Recorder] tracks run-level latencies at HDR resolution for exact
// percentiles in the final report; the bucket histogram carried by Metrics is
// the mergeable, window-level view.
package metrics
