package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/torosent/crankstore/internal/runner"
	"github.com/torosent/crankstore/internal/threshold"
)

func TestGenerateHTMLReport(t *testing.T) {
	res := sampleResult(t)
	rep := NewReport("swift", []runner.Result{res}, []threshold.Result{
		{
			Threshold: threshold.Threshold{
				Raw:       "read-success:p99 < 100",
				Metric:    "read-success",
				Aggregate: "p99",
				Operator:  "<",
				Value:     100,
			},
			Actual: 3.1,
			Pass:   true,
		},
	})

	h := NewHistory()
	h.Record(runner.WindowReport{Stage: "main", Start: res.Start, End: res.Start.Add(time.Second), Metrics: res.Summary})

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, rep, h.Points()); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	requiredElements := []string{
		"<!DOCTYPE html>",
		"Crankstore Benchmark Report",
		"Storage: swift",
		"01HRUNID",
		"Stage: main",
		"read-success",
		"write-success",
		"9 / 10",
		"3.00 / 3.00 / 3.10 / 3.20 ms",
		"404 Not Found",
		"uPlot",
		"tput-chart",
		"latency-chart",
		"Thresholds (1/1 Passed)",
		"read-success:p99 &lt; 100",
	}
	for _, elem := range requiredElements {
		if !strings.Contains(html, elem) {
			t.Errorf("HTML missing required element: %s", elem)
		}
	}
}

func TestGenerateHTMLReport_NoHistory(t *testing.T) {
	rep := NewReport("memory", []runner.Result{sampleResult(t)}, nil)

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, rep, nil); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	if strings.Contains(html, "tput-chart") {
		t.Error("HTML should not contain charts without history")
	}
	if strings.Contains(html, "Thresholds (") {
		t.Error("HTML should not contain a thresholds section without thresholds")
	}
}

func TestGenerateHTMLReport_EmptyStage(t *testing.T) {
	rep := NewReport("memory", []runner.Result{{RunID: "r", Stage: "dispose"}}, nil)

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, rep, nil); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No operations recorded") {
		t.Error("HTML should note stages without operations")
	}
}

func TestGenerateHTMLReport_EscapesHTMLInData(t *testing.T) {
	rep := NewReport("<script>alert('xss')</script>", []runner.Result{sampleResult(t)}, nil)

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, rep, nil); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	if strings.Contains(html, "<script>alert('xss')</script>") {
		t.Errorf("HTML did not escape dangerous content")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Errorf("HTML did not properly escape content")
	}
}
