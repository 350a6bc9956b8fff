package runner

import (
	"math"
	"time"
)

// patternPlan is the compiled rate schedule of a run: LoadPatterns flattened
// into consecutive segments with linear interpolation inside each.
type patternPlan struct {
	segments []patternSegment
	duration time.Duration
	maxRate  float64
}

type patternSegment struct {
	name     string
	start    time.Duration
	duration time.Duration
	fromRate float64
	toRate   float64
}

func compilePatternPlan(patterns []LoadPattern) *patternPlan {
	plan := &patternPlan{}
	for _, p := range patterns {
		switch p.Type {
		case LoadPatternTypeRamp:
			plan.add(p.Name, p.Duration, p.FromRPS, p.ToRPS)
		case LoadPatternTypeStep:
			for _, step := range p.Steps {
				plan.add(p.Name, step.Duration, step.RPS, step.RPS)
			}
		case LoadPatternTypeSpike:
			plan.add(p.Name, p.Duration, p.RPS, p.RPS)
		}
	}
	if len(plan.segments) == 0 {
		return nil
	}
	return plan
}

// add appends a segment after the current end. Empty segments are dropped.
func (p *patternPlan) add(name string, d time.Duration, from, to int) {
	if d <= 0 {
		return
	}
	seg := patternSegment{
		name:     name,
		start:    p.duration,
		duration: d,
		fromRate: math.Max(float64(from), 0),
		toRate:   math.Max(float64(to), 0),
	}
	p.segments = append(p.segments, seg)
	p.duration += d
	p.maxRate = math.Max(p.maxRate, math.Max(seg.fromRate, seg.toRate))
}

// rateAt returns the target rate elapsed into the run, and false once the
// plan is over.
func (p *patternPlan) rateAt(elapsed time.Duration) (float64, bool) {
	if p == nil {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range p.segments {
		if elapsed >= seg.start+seg.duration {
			continue
		}
		if seg.fromRate == seg.toRate {
			return seg.fromRate, true
		}
		progress := float64(elapsed-seg.start) / float64(seg.duration)
		return seg.fromRate + (seg.toRate-seg.fromRate)*progress, true
	}
	return 0, false
}

// segmentAt names the pattern active elapsed into the run.
func (p *patternPlan) segmentAt(elapsed time.Duration) string {
	if p == nil {
		return ""
	}
	for _, seg := range p.segments {
		if elapsed >= seg.start && elapsed < seg.start+seg.duration {
			return seg.name
		}
	}
	return ""
}

func (p *patternPlan) maxBurst() int {
	if p == nil {
		return 0
	}
	return max(int(math.Ceil(p.maxRate)), 1)
}

func (p *patternPlan) totalDuration() time.Duration {
	if p == nil {
		return 0
	}
	return p.duration
}
