// Package workload turns a benchmark description into runner.Requesters that
// drive a storage.Storage.
//
// The main stage draws an operation from a weighted [Mix] and a container and
// object uniformly from the configured ranges. Preparation and teardown
// stages (init, prepare, cleanup, dispose) walk every container or object
// exactly once. Every operation is timed and reported as a runner.Sample whose
// Op names the operation type.
package workload
