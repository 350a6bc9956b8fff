package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crankstore",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Storage flags
	flags.String("storage", "memory", "Storage backend: none, memory, pebble or swift")
	flags.StringToString("storage-opt", nil, "Storage backend option in key=value form (repeatable)")

	// Load control flags
	flags.IntP("workers", "w", 1, "Number of concurrent workers")
	flags.IntP("rate", "r", 0, "Operations per second limit (0 means unlimited)")
	flags.DurationP("duration", "d", 0, "How long to run the main stage (e.g. 30s, 1m)")
	flags.IntP("total", "t", 0, "Total number of main stage operations (0 means unlimited)")
	flags.Duration("window", 5*time.Second, "Sampling window length (0 reports one window per stage)")
	flags.Duration("timeout", 30*time.Second, "Per-operation timeout")
	flags.Int("retries", 0, "Number of retries per operation on transient errors")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing operations (uniform or poisson)")

	// Workload flags
	flags.String("prefix", "bench", "Prefix for container and object names")
	flags.Int("containers", 1, "Number of containers")
	flags.Int("objects", 100, "Number of objects per container")
	flags.String("object-size", "4096", "Object size in bytes (accepts KiB, MiB, KB, MB suffixes)")
	flags.String("mix", "read=80,write=20", "Operation mix as op=weight pairs (read, write, delete, head, update)")
	flags.Bool("prepare", true, "Write every object before the main stage")
	flags.Bool("cleanup", false, "Delete objects and containers after the main stage")
	flags.Int64("seed", 1, "Seed for payloads and object selection")

	// Histogram flags
	flags.Duration("hist-start", 500*time.Microsecond, "Upper bound of the first latency bucket")
	flags.Float64("hist-factor", 2, "Growth factor between latency buckets")
	flags.Int("hist-count", 20, "Number of latency buckets")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.String("output-file", "", "Append the JSON report to this file")
	flags.String("html-output", "", "Write an HTML report to this file")
	flags.Bool("progress", false, "Print window metrics while running")
	flags.String("metrics-addr", "", "Serve live metrics on this address (e.g. :9090)")
	flags.Bool("log-errors", false, "Log each failed operation")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g. 'read-success:p99 < 50')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of operations to trace")
	flags.String("tracing-service-name", "", "Service name reported in spans")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("storage") {
		val, err := fs.GetString("storage")
		if err != nil {
			return err
		}
		cfg.Storage.Type = strings.TrimSpace(val)
	}
	if fs.Changed("storage-opt") {
		opts, err := fs.GetStringToString("storage-opt")
		if err != nil {
			return err
		}
		if cfg.Storage.Config == nil {
			cfg.Storage.Config = map[string]string{}
		}
		for k, v := range opts {
			cfg.Storage.Config[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}

	intFlags := map[string]*int{
		"workers":    &cfg.Workers,
		"rate":       &cfg.Rate,
		"total":      &cfg.Total,
		"retries":    &cfg.Retries,
		"containers": &cfg.Workload.Containers,
		"objects":    &cfg.Workload.Objects,
		"hist-count": &cfg.Histogram.Count,
	}
	for name, dst := range intFlags {
		if fs.Changed(name) {
			val, err := fs.GetInt(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	durationFlags := map[string]*time.Duration{
		"duration":   &cfg.Duration,
		"window":     &cfg.Window,
		"timeout":    &cfg.Timeout,
		"hist-start": &cfg.Histogram.Start,
	}
	for name, dst := range durationFlags {
		if fs.Changed(name) {
			val, err := fs.GetDuration(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	boolFlags := map[string]*bool{
		"prepare":          &cfg.Workload.Prepare,
		"cleanup":          &cfg.Workload.Cleanup,
		"json-output":      &cfg.JSONOutput,
		"progress":         &cfg.Progress,
		"log-errors":       &cfg.LogErrors,
		"tracing-insecure": &cfg.Tracing.Insecure,
	}
	for name, dst := range boolFlags {
		if fs.Changed(name) {
			val, err := fs.GetBool(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	stringFlags := map[string]*string{
		"prefix":               &cfg.Workload.Prefix,
		"output-file":          &cfg.OutputFile,
		"html-output":          &cfg.HTMLOutput,
		"metrics-addr":         &cfg.MetricsAddr,
		"log-level":            &cfg.Log.Level,
		"log-format":           &cfg.Log.Format,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	}
	for name, dst := range stringFlags {
		if fs.Changed(name) {
			val, err := fs.GetString(name)
			if err != nil {
				return err
			}
			*dst = strings.TrimSpace(val)
		}
	}

	floatFlags := map[string]*float64{
		"hist-factor":         &cfg.Histogram.Factor,
		"tracing-sample-rate": &cfg.Tracing.SampleRate,
	}
	for name, dst := range floatFlags {
		if fs.Changed(name) {
			val, err := fs.GetFloat64(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("object-size") {
		val, err := fs.GetString("object-size")
		if err != nil {
			return err
		}
		size, err := asByteSize(val)
		if err != nil {
			return fmt.Errorf("object-size: %w", err)
		}
		cfg.Workload.ObjectSize = size
	}
	if fs.Changed("mix") {
		val, err := fs.GetString("mix")
		if err != nil {
			return err
		}
		mix, err := asWeights(val)
		if err != nil {
			return fmt.Errorf("mix: %w", err)
		}
		cfg.Workload.Mix = mix
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Workload.Seed = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, val...)
	}
	return nil
}
