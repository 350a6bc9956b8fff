package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type Config struct {
	Storage  StorageConfig `mapstructure:"storage"`
	Workers  int           `mapstructure:"workers"`
	Rate     int           `mapstructure:"rate"`
	Duration time.Duration `mapstructure:"duration"`
	Total    int           `mapstructure:"total"`
	Window   time.Duration `mapstructure:"window"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  int           `mapstructure:"retries"`
	Arrival  ArrivalConfig `mapstructure:"arrival"`
	// LoadPatterns shape the main stage rate over time.
	LoadPatterns []LoadPattern   `mapstructure:"load_patterns"`
	Workload     WorkloadConfig  `mapstructure:"workload"`
	Histogram    HistogramConfig `mapstructure:"histogram"`
	Thresholds   []string        `mapstructure:"thresholds"`
	JSONOutput   bool            `mapstructure:"json_output"`
	OutputFile   string          `mapstructure:"output_file"`
	HTMLOutput   string          `mapstructure:"html_output"`
	Progress     bool            `mapstructure:"progress"`
	MetricsAddr  string          `mapstructure:"metrics_addr"`
	LogErrors    bool            `mapstructure:"log_errors"`
	Log          LogConfig       `mapstructure:"log"`
	Tracing      TracingConfig   `mapstructure:"tracing"`
	ConfigFile   string          `mapstructure:"-"`
}

type StorageConfig struct {
	Type   string            `mapstructure:"type"`
	Config map[string]string `mapstructure:"config"`
}

type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"
	LoadPatternTypeStep  LoadPatternType = "step"
	LoadPatternTypeSpike LoadPatternType = "spike"
)

type LoadPattern struct {
	Name     string          `mapstructure:"name"`
	Type     LoadPatternType `mapstructure:"type"`
	FromRPS  int             `mapstructure:"from_rps"`
	ToRPS    int             `mapstructure:"to_rps"`
	Duration time.Duration   `mapstructure:"duration"`
	Steps    []LoadStep      `mapstructure:"steps"`
	RPS      int             `mapstructure:"rps"`
}

type LoadStep struct {
	RPS      int           `mapstructure:"rps"`
	Duration time.Duration `mapstructure:"duration"`
}

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

type WorkloadConfig struct {
	Prefix     string         `mapstructure:"prefix"`
	Containers int            `mapstructure:"containers"`
	Objects    int            `mapstructure:"objects"`
	ObjectSize int64          `mapstructure:"object_size"`
	Mix        map[string]int `mapstructure:"mix"`
	Prepare    bool           `mapstructure:"prepare"` // write every object before the main stage
	Cleanup    bool           `mapstructure:"cleanup"` // delete objects and containers afterwards
	Seed       int64          `mapstructure:"seed"`
}

// HistogramConfig describes exponential latency bucket bounds.
type HistogramConfig struct {
	Start  time.Duration `mapstructure:"start"`
	Factor float64       `mapstructure:"factor"`
	Count  int           `mapstructure:"count"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector, e.g. localhost:4317
	Protocol    string  `mapstructure:"protocol"`     // "grpc" (default) or "http"
	Insecure    bool    `mapstructure:"insecure"`     // disable TLS to the collector
	SampleRate  float64 `mapstructure:"sample_rate"`  // 0..1
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME or crankstore
	Propagate   *bool   `mapstructure:"propagate"`    // inject trace headers into storage requests
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if !t.Enabled() {
		return false
	}
	return t.Propagate == nil || *t.Propagate
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if strings.TrimSpace(c.Storage.Type) == "" {
		issues = append(issues, "storage.type is required (use --help for usage information)")
	}

	if c.Rate > 10000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High rate limit configured (%d ops/s). Ensure you have authorization to load the storage system.", c.Rate))
	}
	if c.Workers > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High worker count configured (%d workers). Ensure you have authorization to load the storage system.", c.Workers))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Window < 0 {
		issues = append(issues, "window must be >= 0")
	}
	if c.Total == 0 && c.Duration == 0 && len(c.LoadPatterns) == 0 {
		issues = append(issues, "one of total, duration or load_patterns must be set")
	}
	if c.Progress && c.JSONOutput {
		issues = append(issues, "progress and json-output are mutually exclusive")
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateLoadPatterns(c.LoadPatterns)...)
	issues = append(issues, validateWorkloadConfig(c.Workload)...)
	issues = append(issues, validateHistogramConfig(c.Histogram)...)
	issues = append(issues, validateLogConfig(c.Log)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if c.Tracing.Enabled() && c.Tracing.Insecure {
		fmt.Fprintln(os.Stderr, "WARNING: tracing export TLS is DISABLED (insecure: true). Spans are sent in clear text.")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateLoadPatterns(patterns []LoadPattern) []string {
	var issues []string
	for idx, pattern := range patterns {
		label := fmt.Sprintf("load_patterns[%d]", idx)
		switch LoadPatternType(strings.ToLower(strings.TrimSpace(string(pattern.Type)))) {
		case "":
			issues = append(issues, label+": type is required")
		case LoadPatternTypeRamp:
			if pattern.Duration <= 0 {
				issues = append(issues, label+": duration must be > 0 for ramp")
			}
			if pattern.FromRPS < 0 || pattern.ToRPS < 0 {
				issues = append(issues, label+": from_rps and to_rps must be >= 0")
			}
		case LoadPatternTypeStep:
			if len(pattern.Steps) == 0 {
				issues = append(issues, label+": steps are required for step pattern")
			}
			for stepIdx, step := range pattern.Steps {
				if step.RPS < 0 {
					issues = append(issues, fmt.Sprintf("%s.steps[%d]: rps must be >= 0", label, stepIdx))
				}
				if step.Duration <= 0 {
					issues = append(issues, fmt.Sprintf("%s.steps[%d]: duration must be > 0", label, stepIdx))
				}
			}
		case LoadPatternTypeSpike:
			if pattern.RPS <= 0 {
				issues = append(issues, label+": rps must be > 0 for spike")
			}
			if pattern.Duration <= 0 {
				issues = append(issues, label+": duration must be > 0 for spike")
			}
		default:
			issues = append(issues, fmt.Sprintf("%s: unsupported type %q", label, pattern.Type))
		}
	}
	return issues
}

var mixOps = map[string]bool{"read": true, "write": true, "delete": true, "head": true, "update": true}

func validateWorkloadConfig(w WorkloadConfig) []string {
	var issues []string
	if w.Containers < 1 {
		issues = append(issues, "workload.containers must be >= 1")
	}
	if w.Objects < 1 {
		issues = append(issues, "workload.objects must be >= 1")
	}
	if w.ObjectSize < 0 {
		issues = append(issues, "workload.object_size must be >= 0")
	}
	total := 0
	for op, weight := range w.Mix {
		if !mixOps[strings.ToLower(op)] {
			issues = append(issues, fmt.Sprintf("workload.mix: unsupported operation %q", op))
		}
		if weight < 0 {
			issues = append(issues, fmt.Sprintf("workload.mix: weight for %s must be >= 0", op))
		}
		total += weight
	}
	if total <= 0 {
		issues = append(issues, "workload.mix: weights must sum to > 0")
	}
	return issues
}

func validateHistogramConfig(h HistogramConfig) []string {
	var issues []string
	if h.Start <= 0 {
		issues = append(issues, "histogram.start must be > 0")
	}
	if h.Factor <= 1 {
		issues = append(issues, "histogram.factor must be > 1")
	}
	if h.Count < 1 {
		issues = append(issues, "histogram.count must be >= 1")
	}
	return issues
}

func validateLogConfig(l LogConfig) []string {
	var issues []string
	switch strings.ToLower(l.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log.level %q is not supported", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log.format must be 'console' or 'json', got %q", l.Format))
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	if !t.Enabled() {
		return nil
	}
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be between 0.0 and 1.0")
	}
	return issues
}
