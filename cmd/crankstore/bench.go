package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/torosent/crankstore/internal/config"
	"github.com/torosent/crankstore/internal/logging"
	"github.com/torosent/crankstore/internal/metrics"
	"github.com/torosent/crankstore/internal/output"
	"github.com/torosent/crankstore/internal/runner"
	"github.com/torosent/crankstore/internal/server"
	"github.com/torosent/crankstore/internal/storage"
	"github.com/torosent/crankstore/internal/threshold"
	"github.com/torosent/crankstore/internal/tracing"
	"github.com/torosent/crankstore/internal/workload"
)

const (
	baseRetryDelay  = 100 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

// bench holds everything shared by the stages of one run.
type bench struct {
	cfg      *config.Config
	logger   zerolog.Logger
	runID    string
	wl       *workload.Workload
	registry *metrics.Registry
	history  *output.History
	progress *output.ProgressReporter
	bounds   []time.Duration
}

func execute(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: stderr})
	if err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	provider, err := tracing.Init(ctx, cfg.Tracing, tracing.AttrStorageKind.String(cfg.Storage.Type))
	if err != nil {
		return err
	}
	if provider.Enabled() {
		logger.Debug().Str("protocol", cfg.Tracing.Protocol).Msg("exporting storage spans")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	store, err := storage.New(storage.Kind(cfg.Storage.Type), storageConfig(cfg, provider.ShouldPropagate()))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing storage failed")
		}
	}()

	wl, err := workload.New(workloadConfig(cfg.Workload), store, provider.Tracer())
	if err != nil {
		return err
	}

	b := &bench{
		cfg:      cfg,
		logger:   logger,
		runID:    ulid.Make().String(),
		wl:       wl,
		registry: metrics.NewRegistry(),
		history:  output.NewHistory(),
		bounds:   metrics.ExponentialBounds(cfg.Histogram.Start, cfg.Histogram.Factor, cfg.Histogram.Count),
	}

	if cfg.MetricsAddr != "" {
		srv := server.New(cfg.MetricsAddr, b.registry, logger)
		if _, err := srv.Start(); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown failed")
			}
		}()
	}

	if cfg.Progress {
		interval := cfg.Window
		if interval <= 0 {
			interval = time.Second
		}
		b.progress = output.NewProgressReporter(b.registry, interval, stderr)
		b.progress.Start()
		defer func() {
			b.progress.Stop()
			fmt.Fprintln(stderr)
		}()
	}

	logger.Info().
		Str("run_id", b.runID).
		Str("storage", cfg.Storage.Type).
		Int("workers", cfg.Workers).
		Str("mix", wl.Mix().String()).
		Msg("Starting benchmark")

	results, mainResult, err := b.runStages(ctx)
	if err != nil {
		return err
	}

	var thresholdResults []threshold.Result
	if len(thresholds) > 0 {
		thresholdResults = threshold.NewEvaluator(thresholds).Evaluate(threshold.Input{
			Metrics:     mainResult.Summary,
			Percentiles: mainResult.Percentiles,
		})
	}

	rep := output.NewReport(cfg.Storage.Type, results, thresholdResults)
	if err := b.writeReports(rep, stdout); err != nil {
		return err
	}

	if len(thresholds) > 0 {
		if !threshold.AllPass(thresholdResults) {
			return errThresholdsFailed
		}
		return nil
	}
	if mainResult.Errors > 0 {
		return fmt.Errorf("%d operations failed", mainResult.Errors)
	}
	return nil
}

// runStages runs init, the optional prepare, the main stage and the optional
// cleanup and dispose in order. Teardown is skipped once ctx is cancelled.
func (b *bench) runStages(ctx context.Context) ([]runner.Result, runner.Result, error) {
	var results []runner.Result

	setup := []workload.Stage{b.wl.Init()}
	if b.cfg.Workload.Prepare {
		setup = append(setup, b.wl.Prepare())
	}
	for _, st := range setup {
		res, err := b.runStage(ctx, st.Name, st.Requester, st.Items, 0)
		if err != nil {
			return nil, runner.Result{}, err
		}
		results = append(results, res)
		if res.Errors > 0 {
			b.logger.Warn().Str("stage", st.Name).Int64("errors", res.Errors).Msg("Stage finished with failures")
		}
	}

	mainResult, err := b.runStage(ctx, "main", b.wl.Requester(b.cfg.Workers), b.cfg.Total, b.cfg.Duration)
	if err != nil {
		return nil, runner.Result{}, err
	}
	results = append(results, mainResult)

	if b.cfg.Workload.Cleanup {
		if ctx.Err() != nil {
			b.logger.Warn().Msg("Interrupted, skipping cleanup")
			return results, mainResult, nil
		}
		for _, st := range []workload.Stage{b.wl.Cleanup(), b.wl.Dispose()} {
			res, err := b.runStage(ctx, st.Name, st.Requester, st.Items, 0)
			if err != nil {
				return nil, runner.Result{}, err
			}
			results = append(results, res)
		}
	}
	return results, mainResult, nil
}

func (b *bench) runStage(ctx context.Context, stage string, req runner.Requester, total int, duration time.Duration) (runner.Result, error) {
	if b.progress != nil {
		ops := []string{stage}
		if stage == "main" {
			ops = b.wl.Mix().Ops()
		}
		b.progress.SetStage(stage, ops...)
	}

	var wrapped runner.Requester = req
	if b.cfg.LogErrors {
		wrapped = runner.WithLogging(wrapped, runner.ZerologFailureLogger{
			Logger: b.logger.With().Str("stage", stage).Logger(),
			Kind:   storage.ErrorKind,
		})
	}
	if b.cfg.Retries > 0 {
		wrapped = runner.WithRetry(wrapped, newRetryPolicy(b.cfg.Retries))
	}

	var patterns []runner.LoadPattern
	if stage == "main" {
		patterns = toRunnerLoadPatterns(b.cfg.LoadPatterns)
	}

	r, err := runner.New(runner.Options{
		Stage:         stage,
		RunID:         b.runID,
		Workers:       b.cfg.Workers,
		TotalOps:      total,
		Duration:      duration,
		RatePerSecond: b.cfg.Rate,
		Arrival:       runner.ArrivalModel(b.cfg.Arrival.Model),
		LoadPatterns:  patterns,
		Requester:     wrapped,
		Window:        b.cfg.Window,
		LatencyBounds: b.bounds,
		Registry:      b.registry,
		OnWindow:      b.history.Record,
		ErrorKind:     storage.ErrorKind,
		RandomSeed:    b.cfg.Workload.Seed,
	})
	if err != nil {
		return runner.Result{}, err
	}
	res, err := r.Run(ctx)
	if err != nil {
		return runner.Result{}, fmt.Errorf("stage %s: %w", stage, err)
	}
	return res, nil
}

func (b *bench) writeReports(rep output.Report, stdout io.Writer) error {
	if b.progress != nil {
		b.progress.Stop()
	}
	if b.cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, rep); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, rep)
	}

	if b.cfg.OutputFile != "" {
		if err := output.AppendJSONReport(b.cfg.OutputFile, rep); err != nil {
			return err
		}
	}
	if b.cfg.HTMLOutput != "" {
		f, err := os.Create(b.cfg.HTMLOutput)
		if err != nil {
			return fmt.Errorf("failed to create HTML report: %w", err)
		}
		if err := output.GenerateHTMLReport(f, rep, b.history.Points()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		b.logger.Info().Str("path", b.cfg.HTMLOutput).Msg("Wrote HTML report")
	}
	return nil
}

// storageConfig copies the backend settings and fills in the run-wide
// timeout and trace propagation unless the backend config sets them.
func storageConfig(cfg *config.Config, propagate bool) storage.Config {
	out := storage.Config{}
	for k, v := range cfg.Storage.Config {
		out[k] = v
	}
	if _, ok := out["timeout"]; !ok && cfg.Timeout > 0 {
		out["timeout"] = cfg.Timeout.String()
	}
	if _, ok := out["trace_propagation"]; !ok && propagate {
		out["trace_propagation"] = strconv.FormatBool(propagate)
	}
	return out
}

func workloadConfig(w config.WorkloadConfig) workload.Config {
	return workload.Config{
		Prefix:     w.Prefix,
		Containers: workload.Range{Min: 1, Max: w.Containers},
		Objects:    workload.Range{Min: 1, Max: w.Objects},
		ObjectSize: w.ObjectSize,
		Mix:        w.Mix,
		Seed:       w.Seed,
	}
}

func toRunnerLoadPatterns(patterns []config.LoadPattern) []runner.LoadPattern {
	if len(patterns) == 0 {
		return nil
	}
	out := make([]runner.LoadPattern, 0, len(patterns))
	for _, p := range patterns {
		lp := runner.LoadPattern{
			Name:     p.Name,
			Type:     runner.LoadPatternType(p.Type),
			FromRPS:  p.FromRPS,
			ToRPS:    p.ToRPS,
			Duration: p.Duration,
			RPS:      p.RPS,
		}
		for _, step := range p.Steps {
			lp.Steps = append(lp.Steps, runner.LoadStep{RPS: step.RPS, Duration: step.Duration})
		}
		out = append(out, lp)
	}
	return out
}

func newRetryPolicy(retries int) runner.RetryPolicy {
	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: storage.IsTransient,
		DelayFunc:   runner.ExponentialBackoff(baseRetryDelay, maxRetryDelay),
	}
}
