package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any file or flag is applied.
func Defaults() *Config {
	return &Config{
		Storage: StorageConfig{Type: "memory", Config: map[string]string{}},
		Workers: 1,
		Window:  5 * time.Second,
		Timeout: 30 * time.Second,
		Arrival: ArrivalConfig{Model: ArrivalModelUniform},
		Workload: WorkloadConfig{
			Prefix:     "bench",
			Containers: 1,
			Objects:    100,
			ObjectSize: 4096,
			Mix:        map[string]int{"read": 80, "write": 20},
			Prepare:    true,
			Seed:       1,
		},
		Histogram: HistogramConfig{Start: 500 * time.Microsecond, Factor: 2, Count: 20},
		Log:       LogConfig{Level: "info", Format: "console"},
		Tracing:   TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	return LoadFlags(cmd.Flags())
}

// LoadFlags builds a Config from an already parsed flag set registered with
// RegisterFlags.
func LoadFlags(flagSet *pflag.FlagSet) (*Config, error) {
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if cfg.Storage.Config == nil {
		cfg.Storage.Config = map[string]string{}
	}
	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "storage"); ok {
		if err := parseStorage(&cfg.Storage, raw); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"workers", "concurrency"}, &cfg.Workers},
		{[]string{"rate"}, &cfg.Rate},
		{[]string{"total"}, &cfg.Total},
		{[]string{"retries"}, &cfg.Retries},
	}
	for _, f := range ints {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"duration", &cfg.Duration},
		{"window", &cfg.Window},
		{"timeout", &cfg.Timeout},
	}
	for _, f := range durations {
		if raw, ok := lookupSetting(settings, f.key); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = dur
		}
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"progress"}, &cfg.Progress},
		{[]string{"logerrors", "log_errors", "log-errors"}, &cfg.LogErrors},
	}
	for _, f := range bools {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"outputfile", "output_file", "output-file"}, &cfg.OutputFile},
		{[]string{"htmloutput", "html_output", "html-output"}, &cfg.HTMLOutput},
		{[]string{"metricsaddr", "metrics_addr", "metrics-addr"}, &cfg.MetricsAddr},
	}
	for _, f := range strs {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "loadpatterns", "load_patterns", "load-patterns"); ok {
		patterns, err := parseLoadPatterns(raw)
		if err != nil {
			return fmt.Errorf("load_patterns: %w", err)
		}
		cfg.LoadPatterns = patterns
	}

	if raw, ok := lookupSetting(settings, "workload"); ok {
		if err := parseWorkload(&cfg.Workload, raw); err != nil {
			return fmt.Errorf("workload: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "histogram"); ok {
		if err := parseHistogram(&cfg.Histogram, raw); err != nil {
			return fmt.Errorf("histogram: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		list, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = list
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		if err := parseLog(&cfg.Log, raw); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracing(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseLoadPatterns(value interface{}) ([]LoadPattern, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	patterns := make([]LoadPattern, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		pattern, err := buildLoadPattern(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func buildLoadPattern(settings map[string]interface{}) (LoadPattern, error) {
	var pattern LoadPattern
	strs := []struct {
		key string
		set func(string)
	}{
		{"name", func(v string) { pattern.Name = v }},
		{"type", func(v string) { pattern.Type = LoadPatternType(strings.ToLower(v)) }},
	}
	for _, f := range strs {
		if raw, ok := lookupSetting(settings, f.key); ok {
			val, err := asString(raw)
			if err != nil {
				return LoadPattern{}, fmt.Errorf("%s: %w", f.key, err)
			}
			f.set(strings.TrimSpace(val))
		}
	}
	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"fromrps", "from_rps", "from-rps"}, &pattern.FromRPS},
		{[]string{"torps", "to_rps", "to-rps"}, &pattern.ToRPS},
		{[]string{"rps"}, &pattern.RPS},
	}
	for _, f := range ints {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return LoadPattern{}, fmt.Errorf("%s: %w", f.keys[1], err)
			}
			*f.dst = val
		}
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("duration: %w", err)
		}
		pattern.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "steps"); ok {
		steps, err := parseLoadSteps(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("steps: %w", err)
		}
		pattern.Steps = steps
	}
	return pattern, nil
}

func parseLoadSteps(value interface{}) ([]LoadStep, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	steps := make([]LoadStep, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var step LoadStep
		if raw, ok := lookupSetting(entry, "rps"); ok {
			if step.RPS, err = asInt(raw); err != nil {
				return nil, fmt.Errorf("index %d rps: %w", idx, err)
			}
		}
		if raw, ok := lookupSetting(entry, "duration"); ok {
			if step.Duration, err = asDuration(raw); err != nil {
				return nil, fmt.Errorf("index %d duration: %w", idx, err)
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStorage(dst *StorageConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok {
		dst.Type = strings.TrimSpace(s)
		return nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("type: %w", err)
		}
		dst.Type = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "config"); ok {
		var opts map[string]string
		if s, isString := raw.(string); isString {
			opts = parseKeyValues(s)
		} else {
			opts, err = asStringMap(raw)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
		}
		if dst.Config == nil {
			dst.Config = map[string]string{}
		}
		for k, v := range opts {
			dst.Config[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		if raw, ok := lookupSetting(entry, "model"); ok {
			val, err := asString(raw)
			if err != nil {
				return ArrivalConfig{}, fmt.Errorf("model: %w", err)
			}
			return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(val)))}, nil
		}
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
}

func parseWorkload(dst *WorkloadConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "prefix"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("prefix: %w", err)
		}
		dst.Prefix = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "containers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("containers: %w", err)
		}
		dst.Containers = val
	}
	if raw, ok := lookupSetting(entry, "objects"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("objects: %w", err)
		}
		dst.Objects = val
	}
	if raw, ok := lookupSetting(entry, "objectsize", "object_size", "object-size"); ok {
		val, err := asByteSize(raw)
		if err != nil {
			return fmt.Errorf("object_size: %w", err)
		}
		dst.ObjectSize = val
	}
	if raw, ok := lookupSetting(entry, "mix"); ok {
		mix, err := asWeights(raw)
		if err != nil {
			return fmt.Errorf("mix: %w", err)
		}
		dst.Mix = mix
	}
	if raw, ok := lookupSetting(entry, "prepare"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		dst.Prepare = val
	}
	if raw, ok := lookupSetting(entry, "cleanup"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		dst.Cleanup = val
	}
	if raw, ok := lookupSetting(entry, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		dst.Seed = int64(val)
	}
	return nil
}

func parseHistogram(dst *HistogramConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "start"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		dst.Start = dur
	}
	if raw, ok := lookupSetting(entry, "factor"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("factor: %w", err)
		}
		dst.Factor = val
	}
	if raw, ok := lookupSetting(entry, "count"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		dst.Count = val
	}
	return nil
}

func parseLog(dst *LogConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("level: %w", err)
		}
		dst.Level = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		dst.Format = strings.ToLower(strings.TrimSpace(val))
	}
	return nil
}

func parseTracing(dst *TracingConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		dst.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		dst.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		dst.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		dst.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		dst.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		dst.Propagate = &val
	}
	return nil
}
