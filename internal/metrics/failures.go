package metrics

import "sort"

// FailureBucket is the number of failed operations of one type with one
// failure kind (e.g. "timeout", "503 Service Unavailable").
type FailureBucket struct {
	Op    string
	Kind  string
	Count int64
}

// FailureCounts tracks failures per operation type and kind. Like Mark it is
// owned by a single worker until handed off.
type FailureCounts map[string]map[string]int64

// Add records one failure.
func (f FailureCounts) Add(op, kind string) {
	kinds, ok := f[op]
	if !ok {
		kinds = make(map[string]int64)
		f[op] = kinds
	}
	kinds[kind]++
}

// Merge adds every count of other into f.
func (f FailureCounts) Merge(other FailureCounts) {
	for op, kinds := range other {
		for kind, n := range kinds {
			dst, ok := f[op]
			if !ok {
				dst = make(map[string]int64)
				f[op] = dst
			}
			dst[kind] += n
		}
	}
}

// FlattenFailures converts nested failure counts into rows sorted by
// descending count, then by op and kind for stability.
func FlattenFailures(counts FailureCounts) []FailureBucket {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]FailureBucket, 0)
	for op, kinds := range counts {
		for kind, n := range kinds {
			rows = append(rows, FailureBucket{Op: op, Kind: kind, Count: n})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Op == rows[j].Op {
				return rows[i].Kind < rows[j].Kind
			}
			return rows[i].Op < rows[j].Op
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
