package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/crankstore/internal/metrics"
	"github.com/torosent/crankstore/internal/runner"
	"github.com/torosent/crankstore/internal/threshold"
)

// Report is the machine-readable result of a benchmark run.
type Report struct {
	RunID       string            `json:"run_id"`
	Storage     string            `json:"storage,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Stages      []StageReport     `json:"stages"`
	Thresholds  *ThresholdSummary `json:"thresholds,omitempty"`
}

// StageReport summarises one runner invocation.
type StageReport struct {
	Stage       string                         `json:"stage"`
	Start       time.Time                      `json:"start"`
	End         time.Time                      `json:"end"`
	Duration    time.Duration                  `json:"-"`
	DurationMs  float64                        `json:"duration_ms"`
	Total       int64                          `json:"total"`
	Errors      int64                          `json:"errors"`
	Windows     int                            `json:"windows"`
	Summary     []metrics.Metrics              `json:"summary"`
	Percentiles map[string]metrics.Percentiles `json:"percentiles,omitempty"`
	Failures    []metrics.FailureBucket        `json:"failures,omitempty"`
}

// ThresholdSummary counts passing and failing thresholds.
type ThresholdSummary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Results []ThresholdResultJSON `json:"results"`
}

// ThresholdResultJSON is one evaluated threshold.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// NewReport builds a Report from stage results in execution order.
func NewReport(storage string, results []runner.Result, thresholdResults []threshold.Result) Report {
	rep := Report{
		Storage:     storage,
		GeneratedAt: time.Now().UTC(),
		Stages:      make([]StageReport, 0, len(results)),
		Thresholds:  summarizeThresholds(thresholdResults),
	}
	for _, res := range results {
		if rep.RunID == "" {
			rep.RunID = res.RunID
		}
		rep.Stages = append(rep.Stages, StageReport{
			Stage:       res.Stage,
			Start:       res.Start,
			End:         res.End,
			Duration:    res.Duration,
			DurationMs:  float64(res.Duration) / float64(time.Millisecond),
			Total:       res.Total,
			Errors:      res.Errors,
			Windows:     res.Windows,
			Summary:     res.Summary,
			Percentiles: res.Percentiles,
			Failures:    res.Failures,
		})
	}
	return rep
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, rep Report) {
	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", rep.RunID)
	if rep.Storage != "" {
		fmt.Fprintf(w, "Storage:           %s\n", rep.Storage)
	}
	for _, st := range rep.Stages {
		fmt.Fprintf(w, "\nStage %s:\n", st.Stage)
		fmt.Fprintf(w, "  Operations:      %d\n", st.Total)
		fmt.Fprintf(w, "  Failed:          %d\n", st.Errors)
		fmt.Fprintf(w, "  Duration:        %s\n", st.Duration.Round(time.Millisecond))
		fmt.Fprintf(w, "  Windows:         %d\n", st.Windows)
		if len(st.Summary) > 0 {
			fmt.Fprintln(w, "  Operation Breakdown:")
			for _, m := range st.Summary {
				fmt.Fprintf(
					w,
					"    - %s: ops=%d/%d, failures=%.1f%%, tput=%.2f/s, bw=%s/s, avg=%.2fms",
					m.Name,
					m.SampleCount,
					m.TotalSampleCount,
					m.FailureRate()*100,
					m.Throughput,
					formatBytes(m.Bandwidth),
					m.AvgResTime,
				)
				if p, ok := st.Percentiles[m.Name]; ok && p.Count > 0 {
					fmt.Fprintf(w, ", p50=%.2fms, p90=%.2fms, p99=%.2fms, max=%.2fms", p.P50Ms, p.P90Ms, p.P99Ms, p.MaxMs)
				}
				fmt.Fprintln(w)
			}
		}
		if len(st.Failures) > 0 {
			fmt.Fprintln(w, "  Failures:")
			writeFailureBuckets(w, st.Failures, "    ")
		}
	}

	if rep.Thresholds != nil {
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", rep.Thresholds.Passed, rep.Thresholds.Total)
		for _, r := range rep.Thresholds.Results {
			status := "PASS"
			if !r.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(w, "  [%s] %s (actual %.2f)\n", status, r.Threshold, r.Actual)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// AppendJSONReport appends rep as a single JSON line to path. Concurrent
// benchmark processes may share one file; writers serialize on path+".lock".
func AppendJSONReport(path string, rep Report) error {
	line, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	line = append(line, '\n')

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}

func writeFailureBuckets(w io.Writer, buckets []metrics.FailureBucket, indent string) {
	for _, b := range buckets {
		fmt.Fprintf(w, "%s%s %s: %d\n", indent, strings.ToUpper(b.Op), b.Kind, b.Count)
	}
}

func formatBytes(n float64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%.0fB", n)
	}
	div, exp := float64(unit), 0
	for v := n / unit; v >= unit && exp < 4; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", n/div, "KMGTP"[exp])
}
