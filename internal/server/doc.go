// Package server exposes the live metrics registry over HTTP while a
// benchmark runs: JSON snapshots under /api/metrics and a Prometheus scrape
// endpoint under /metrics.
package server
