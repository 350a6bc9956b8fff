package metrics

import (
	"fmt"
	"sort"
)

// Combine reduces same-Type Metrics from disjoint sets of workers observed over
// the same window into one Metrics.
//
// Counts, bytes and worker counts add up, rates add up, and the average
// response time is weighted by each input's sample count. Inputs that are
// themselves combined results may be passed as long as their worker sets do
// not overlap; WorkerCount would otherwise double count.
func Combine(list []Metrics) (Metrics, error) {
	if len(list) == 0 {
		return Metrics{}, ErrEmptyAggregation
	}
	typ := list[0].Type()
	out := Metrics{
		Name:       typ.Name(),
		OpType:     typ.Op,
		SampleType: typ.Sample,
		Latency:    list[0].Latency,
	}
	var weighted float64
	for i, m := range list {
		if m.Type() != typ {
			return Metrics{}, fmt.Errorf("%w: %s and %s", ErrMixedTypes, typ.Name(), m.Type().Name())
		}
		out.SampleCount += m.SampleCount
		out.TotalSampleCount += m.TotalSampleCount
		out.ByteCount += m.ByteCount
		out.WorkerCount += m.WorkerCount
		out.Throughput += m.Throughput
		out.Bandwidth += m.Bandwidth
		weighted += m.AvgResTime * float64(m.SampleCount)
		if i == 0 {
			continue
		}
		merged, err := out.Latency.Merge(m.Latency)
		if err != nil {
			return Metrics{}, fmt.Errorf("%w: %s input %d: %w", ErrInconsistentBucketing, typ.Name(), i, err)
		}
		out.Latency = merged
	}
	if out.SampleCount > 0 {
		out.AvgResTime = weighted / float64(out.SampleCount)
	}
	return out, nil
}

// CombineByType groups snapshots by Type and combines each group. The result
// is sorted by name.
func CombineByType(list []Metrics) ([]Metrics, error) {
	if len(list) == 0 {
		return nil, nil
	}
	groups := make(map[Type][]Metrics)
	for _, m := range list {
		groups[m.Type()] = append(groups[m.Type()], m)
	}
	out := make([]Metrics, 0, len(groups))
	for _, group := range groups {
		combined, err := Combine(group)
		if err != nil {
			return nil, err
		}
		out = append(out, combined)
	}
	sortByName(out)
	return out, nil
}

// CombineRegistries combines the current snapshots of several registries,
// e.g. one per driver, each covering its own workers.
func CombineRegistries(registries ...*Registry) ([]Metrics, error) {
	var all []Metrics
	for _, r := range registries {
		if r == nil {
			continue
		}
		all = append(all, r.Snapshot()...)
	}
	return CombineByType(all)
}

func sortByName(list []Metrics) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}
