package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Report      Report
	History     []HistoryPoint
	HistoryJSON string
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, rep Report, history []HistoryPoint) error {
	// Convert history to JSON for embedding in HTML
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt: rep.GeneratedAt.Format(time.RFC3339),
		Report:      rep,
		History:     history,
		HistoryJSON: string(historyJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatBytes": formatBytes,
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"percentiles": func(st StageReport, name string) []float64 {
			p, ok := st.Percentiles[name]
			if !ok || p.Count == 0 {
				return nil
			}
			return []float64{p.P50Ms, p.P90Ms, p.P99Ms, p.MaxMs}
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Crankstore Benchmark Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>Crankstore Benchmark Report</h1>
            {{if .Report.Storage}}
            <div class="meta" style="margin-top: 5px;">Storage: {{.Report.Storage}}</div>
            {{end}}
            <div class="meta">Run: {{.Report.RunID}} | Generated: {{.GeneratedAt}}</div>
        </header>

        <div class="content">
            <!-- Stage Cards -->
            <div class="grid">
                {{range .Report.Stages}}
                <div class="card{{if .Errors}} error{{else}} success{{end}}">
                    <h3>{{.Stage}}</h3>
                    <div class="value">{{.Total}}</div>
                    <div class="subvalue">{{.Errors}} failed ({{formatPercent .Errors .Total}}%) in {{formatDuration .Duration}}</div>
                </div>
                {{end}}
            </div>

            <!-- Charts Section -->
            {{if .History}}
            <div class="section">
                <h2>Performance Over Time</h2>

                <div class="chart-container">
                    <h3>Operations Per Second</h3>
                    <div id="tput-chart" class="chart"></div>
                </div>

                <div class="chart-container">
                    <h3>Latency (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <!-- Thresholds -->
            {{if .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.Report.Thresholds.Passed}}/{{.Report.Thresholds.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Thresholds.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Operation Breakdown -->
            {{range $st := .Report.Stages}}
            <div class="section">
                <h2>Stage: {{$st.Stage}}</h2>
                {{if $st.Summary}}
                <table>
                    <thead>
                        <tr>
                            <th>Type</th>
                            <th>Operations</th>
                            <th>Throughput</th>
                            <th>Bandwidth</th>
                            <th>Avg</th>
                            <th>P50 / P90 / P99 / Max</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range $st.Summary}}
                        <tr>
                            <td><strong>{{.Name}}</strong></td>
                            <td>{{.SampleCount}} / {{.TotalSampleCount}}</td>
                            <td>{{formatFloat .Throughput}}/s</td>
                            <td>{{formatBytes .Bandwidth}}/s</td>
                            <td>{{formatFloat .AvgResTime}} ms</td>
                            <td>{{with percentiles $st .Name}}{{range $i, $v := .}}{{if $i}} / {{end}}{{formatFloat $v}}{{end}} ms{{else}}-{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
                {{else}}
                <div class="no-data">No operations recorded</div>
                {{end}}
                {{if $st.Failures}}
                <table style="margin-top: 20px;">
                    <thead>
                        <tr>
                            <th>Operation</th>
                            <th>Failure</th>
                            <th>Count</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range $st.Failures}}
                        <tr>
                            <td>{{.Op}}</td>
                            <td>{{.Kind}}</td>
                            <td>{{.Count}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
                {{end}}
            </div>
            {{end}}
        </div>
    </div>

    {{if .History}}
    <script>
        const historyJSON = {{.HistoryJSON}};
        const history = JSON.parse(historyJSON);

        if (history && history.length > 0) {
            const offsets = history.map(d => d.offset_s);

            new uPlot({
                title: "Operations Per Second",
                width: document.getElementById('tput-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    {
                        label: "ops/s",
                        stroke: "#667eea",
                        fill: "rgba(102, 126, 234, 0.1)",
                        width: 2
                    },
                    {
                        label: "failures",
                        stroke: "#ef4444",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Operations/sec" }
                ]
            }, [offsets, history.map(d => d.throughput), history.map(d => d.failures)], document.getElementById('tput-chart'));

            new uPlot({
                title: "Latency",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    {
                        label: "Avg",
                        stroke: "#667eea",
                        width: 2
                    },
                    {
                        label: "P50",
                        stroke: "#10b981",
                        width: 2
                    },
                    {
                        label: "P99",
                        stroke: "#ef4444",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Latency (ms)" }
                ]
            }, [offsets, history.map(d => d.avg_ms), history.map(d => d.p50_ms), history.map(d => d.p99_ms)], document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
