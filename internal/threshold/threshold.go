package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/crankstore/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // type name, e.g. "read-success"
	Aggregate string  // e.g. "p99", "avg", "throughput", "failure_rate"
	Operator  string  // e.g. "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Threshold expression as written, for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Input is the run summary thresholds are evaluated against.
type Input struct {
	Metrics     []metrics.Metrics
	Percentiles map[string]metrics.Percentiles // keyed by type name
}

// Evaluator evaluates thresholds against combined run metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided summary.
func (e *Evaluator) Evaluate(in Input) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	byName := make(map[string]metrics.Metrics, len(in.Metrics))
	for _, m := range in.Metrics {
		byName[m.Name] = m
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, byName, in.Percentiles))
	}
	return results
}

// AllPass reports whether every result passed.
func AllPass(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, byName map[string]metrics.Metrics, pct map[string]metrics.Percentiles) Result {
	m, ok := byName[t.Metric]
	if !ok {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: no samples for %s", t.Raw, t.Metric),
		}
	}
	p, hasPct := pct[t.Metric]
	actual, err := extractMetricValue(t.Aggregate, m, p, hasPct)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z0-9_]+-[a-z0-9_-]+):([a-z0-9_]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "read-success:p99 < 50"             (latency percentile in ms)
// - "write-success:avg < 20"            (average latency in ms)
// - "read-success:throughput > 1000"    (operations per second)
// - "read-success:bandwidth > 1048576"  (bytes per second)
// - "delete-success:failure_rate < 0.01"
// - "write-success:count >= 10000"      (successful operations)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: op-sample:aggregate operator value, e.g., 'read-success:p99 < 50')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	typ, err := metrics.ParseType(metric)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid metric %q: %w", metric, err)
	}

	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: %s)", aggregate, strings.Join(validAggregates, ", "))
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    typ.Name(),
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var validAggregates = []string{"avg", "min", "p50", "p90", "p99", "max", "throughput", "bandwidth", "count", "failures", "failure_rate"}

func isValidAggregate(aggregate string) bool {
	for _, v := range validAggregates {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

// extractMetricValue reads one aggregate. Latency percentiles come from the
// HDR summary when present and fall back to the bucket histogram.
func extractMetricValue(aggregate string, m metrics.Metrics, p metrics.Percentiles, hasPct bool) (float64, error) {
	switch aggregate {
	case "avg":
		return m.AvgResTime, nil
	case "min":
		if !hasPct {
			return 0, fmt.Errorf("min latency for %s needs run percentiles", m.Name)
		}
		return p.MinMs, nil
	case "p50":
		return percentileMs(m, p, hasPct, 50, p.P50Ms), nil
	case "p90":
		return percentileMs(m, p, hasPct, 90, p.P90Ms), nil
	case "p99":
		return percentileMs(m, p, hasPct, 99, p.P99Ms), nil
	case "max":
		if hasPct {
			return p.MaxMs, nil
		}
		return durationMs(m.Latency.Percentile(100)), nil
	case "throughput":
		return m.Throughput, nil
	case "bandwidth":
		return m.Bandwidth, nil
	case "count":
		return float64(m.SampleCount), nil
	case "failures":
		return float64(m.FailureCount()), nil
	case "failure_rate":
		return m.FailureRate(), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q", aggregate)
	}
}

func percentileMs(m metrics.Metrics, p metrics.Percentiles, hasPct bool, q float64, fromPct float64) float64 {
	if hasPct && p.Count > 0 {
		return fromPct
	}
	return durationMs(m.Latency.Percentile(q))
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
