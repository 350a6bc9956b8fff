package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/crankstore/internal/runner"
	"github.com/torosent/crankstore/internal/threshold"
)

func TestNewReport(t *testing.T) {
	res := sampleResult(t)
	results := []threshold.Result{
		{Threshold: threshold.Threshold{Raw: "read-success:p99 < 50", Metric: "read-success", Aggregate: "p99", Operator: "<", Value: 50}, Actual: 3.1, Pass: true},
		{Threshold: threshold.Threshold{Raw: "read-success:failures < 1", Metric: "read-success", Aggregate: "failures", Operator: "<", Value: 1}, Actual: 1, Pass: false},
	}

	rep := NewReport("memory", []runner.Result{res}, results)
	if rep.RunID != "01HRUNID" {
		t.Errorf("RunID = %q, want 01HRUNID", rep.RunID)
	}
	if len(rep.Stages) != 1 || rep.Stages[0].DurationMs != 2000 {
		t.Fatalf("Stages = %+v, want one stage of 2000ms", rep.Stages)
	}
	if rep.Thresholds == nil {
		t.Fatal("Thresholds summary missing")
	}
	if rep.Thresholds.Total != 2 || rep.Thresholds.Passed != 1 || rep.Thresholds.Failed != 1 {
		t.Errorf("Thresholds = %+v, want 2 total, 1 passed, 1 failed", rep.Thresholds)
	}

	if NewReport("memory", nil, nil).Thresholds != nil {
		t.Error("Thresholds should be nil without results")
	}
}

func TestPrintReportBasic(t *testing.T) {
	rep := NewReport("swift", []runner.Result{sampleResult(t)}, nil)

	var buf bytes.Buffer
	PrintReport(&buf, rep)

	output := buf.String()
	for _, want := range []string{
		"Run ID:            01HRUNID",
		"Storage:           swift",
		"Stage main:",
		"Operations:      15",
		"Failed:          1",
		"read-success: ops=9/10, failures=10.0%, tput=4.50/s, bw=18.0KiB/s, avg=3.00ms",
		"p99=3.10ms",
		"write-success: ops=5/5",
		"READ 404 Not Found: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "Thresholds") {
		t.Error("report should not print a thresholds section without thresholds")
	}
}

func TestPrintReportThresholds(t *testing.T) {
	rep := NewReport("memory", []runner.Result{sampleResult(t)}, []threshold.Result{
		{Threshold: threshold.Threshold{Raw: "write-success:avg < 5"}, Actual: 10, Pass: false},
	})

	var buf bytes.Buffer
	PrintReport(&buf, rep)

	output := buf.String()
	if !strings.Contains(output, "Thresholds (0/1 passed):") {
		t.Errorf("missing thresholds header:\n%s", output)
	}
	if !strings.Contains(output, "[FAIL] write-success:avg < 5 (actual 10.00)") {
		t.Errorf("missing failed threshold:\n%s", output)
	}
}

func TestPrintJSONReport(t *testing.T) {
	rep := NewReport("memory", []runner.Result{sampleResult(t)}, nil)

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, rep); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["run_id"] != "01HRUNID" {
		t.Errorf("run_id = %v, want 01HRUNID", decoded["run_id"])
	}
	stages, ok := decoded["stages"].([]any)
	if !ok || len(stages) != 1 {
		t.Fatalf("stages = %v, want one entry", decoded["stages"])
	}
	stage := stages[0].(map[string]any)
	summary := stage["summary"].([]any)
	first := summary[0].(map[string]any)
	if first["name"] != "read-success" || first["sample_count"] != float64(9) {
		t.Errorf("first summary entry = %v", first)
	}
	if _, ok := stage["percentiles"].(map[string]any)["read-success"]; !ok {
		t.Error("percentiles missing read-success")
	}
	if _, ok := decoded["thresholds"]; ok {
		t.Error("thresholds should be omitted when empty")
	}
}

func TestAppendJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	rep := NewReport("memory", []runner.Result{sampleResult(t)}, nil)

	for i := 0; i < 2; i++ {
		if err := AppendJSONReport(path, rep); err != nil {
			t.Fatalf("AppendJSONReport() error: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestAppendJSONReportBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "results.jsonl")
	if err := AppendJSONReport(path, Report{}); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{2048, "2.0KiB"},
		{1536 * 1024, "1.5MiB"},
		{3 * 1024 * 1024 * 1024, "3.0GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
