package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/torosent/crankstore/internal/metrics"
)

const namespace = "crankstore"

// registryCollector exports the latest window of every type in a
// metrics.Registry as const metrics labelled by op and sample.
type registryCollector struct {
	registry *metrics.Registry

	throughput *prometheus.Desc
	bandwidth  *prometheus.Desc
	avgRes     *prometheus.Desc
	samples    *prometheus.Desc
	attempts   *prometheus.Desc
	bytes      *prometheus.Desc
	workers    *prometheus.Desc
	latency    *prometheus.Desc
}

func newRegistryCollector(registry *metrics.Registry) *registryCollector {
	labels := []string{"op", "sample"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "window", name), help, labels, nil)
	}
	return &registryCollector{
		registry:   registry,
		throughput: desc("throughput_ops", "Operations per second in the latest window."),
		bandwidth:  desc("bandwidth_bytes", "Bytes per second in the latest window."),
		avgRes:     desc("avg_response_ms", "Average response time in the latest window."),
		samples:    desc("samples", "Successful samples in the latest window."),
		attempts:   desc("attempts", "Attempted samples in the latest window."),
		bytes:      desc("bytes", "Bytes transferred in the latest window."),
		workers:    desc("workers", "Workers that contributed to the latest window."),
		latency:    desc("latency_seconds", "Response time distribution of the latest window."),
	}
}

func (c *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.throughput
	ch <- c.bandwidth
	ch <- c.avgRes
	ch <- c.samples
	ch <- c.attempts
	ch <- c.bytes
	ch <- c.workers
	ch <- c.latency
}

func (c *registryCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.registry.Snapshot() {
		op, sample := m.OpType, m.SampleType
		gauge := func(desc *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, op, sample)
		}
		gauge(c.throughput, m.Throughput)
		gauge(c.bandwidth, m.Bandwidth)
		gauge(c.avgRes, m.AvgResTime)
		gauge(c.samples, float64(m.SampleCount))
		gauge(c.attempts, float64(m.TotalSampleCount))
		gauge(c.bytes, float64(m.ByteCount))
		gauge(c.workers, float64(m.WorkerCount))

		if hist, ok := constHistogram(c.latency, m, op, sample); ok {
			ch <- hist
		}
	}
}

// constHistogram converts the window histogram into cumulative Prometheus
// buckets. The sum is reconstructed from the average response time.
func constHistogram(desc *prometheus.Desc, m metrics.Metrics, labels ...string) (prometheus.Metric, bool) {
	rows := m.Latency.Buckets()
	if len(rows) == 0 {
		return nil, false
	}
	buckets := make(map[float64]uint64, len(rows))
	var cumulative uint64
	for _, row := range rows {
		cumulative += uint64(row.Count)
		if row.Overflow {
			continue
		}
		buckets[row.UpperBound.Seconds()] = cumulative
	}
	sum := m.AvgResTime / 1000 * float64(m.SampleCount)
	hist, err := prometheus.NewConstHistogram(desc, uint64(m.Latency.Count()), sum, buckets, labels...)
	if err != nil {
		return nil, false
	}
	return hist, true
}
