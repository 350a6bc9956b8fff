package output

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/torosent/crankstore/internal/metrics"
)

// ProgressReporter displays the most recent window of every operation type.
type ProgressReporter struct {
	registry *metrics.Registry
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	stage    atomic.Pointer[stageView]
}

type stageView struct {
	name string
	ops  map[string]bool // nil shows every op
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(registry *metrics.Registry, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	p := &ProgressReporter{
		registry: registry,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
	p.stage.Store(&stageView{})
	return p
}

// SetStage labels subsequent lines with the running stage and limits them to
// ops. Registry entries left by earlier stages are hidden that way.
func (p *ProgressReporter) SetStage(stage string, ops ...string) {
	view := &stageView{name: stage}
	if len(ops) > 0 {
		view.ops = make(map[string]bool, len(ops))
		for _, op := range ops {
			view.ops[op] = true
		}
	}
	p.stage.Store(view)
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			if line := progressLine(p.stage.Load(), p.registry.Snapshot()); line != "" {
				fmt.Fprint(p.writer, "\r"+line)
			}
		case <-p.done:
			return
		}
	}
}

// progressLine renders successful types only; their failure share comes from
// TotalSampleCount.
func progressLine(view *stageView, snapshot []metrics.Metrics) string {
	stage := view.name
	parts := make([]string, 0, len(snapshot)+1)
	if stage != "" {
		parts = append(parts, "Stage: "+stage)
	}
	for _, m := range snapshot {
		if m.SampleType != metrics.SampleSuccess {
			continue
		}
		if view.ops != nil && !view.ops[m.OpType] {
			continue
		}
		part := fmt.Sprintf("%s %.1f/s avg %.1fms", m.OpType, m.Throughput, m.AvgResTime)
		if m.FailureCount() > 0 {
			part += fmt.Sprintf(" (%.0f%% failed)", m.FailureRate()*100)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 || (stage != "" && len(parts) == 1) {
		return ""
	}
	return strings.Join(parts, " | ")
}
