package sched

import (
	"reflect"
	"testing"

	"github.com/embtrace/schedtrace/internal/trace"
)

// burstSamples builds a capture where channel ch is high for sample indices
// [from, to).
func burstSamples(n int, ch trace.Channel, from, to int) []trace.Sample {
	samples := make([]trace.Sample, n)
	for i := from; i < to && i < n; i++ {
		samples[i] |= ch.Bit()
	}
	return samples
}

func testTasks() []Task {
	return []Task{
		{Channel: 0, Name: "Red (t1)", GPIO: "GP16", Period: 0.4, Deadline: 0.2, WCET: 0.08},
		{Channel: 1, Name: "Yellow (t2)", GPIO: "GP17", Period: 0.8, Deadline: 0.4, WCET: 0.15},
	}
}

func TestAnalyze_EndToEnd(t *testing.T) {
	// 1000 samples at 1000 Hz; channel 0 runs 50ms starting at index 50,
	// channel 1 stays silent.
	samples := burstSamples(1000, 0, 50, 100)

	a := Analyze(samples, 1000, testTasks())

	if !almostEqual(a.Duration, 1.0) {
		t.Fatalf("expected duration 1.0s, got %f", a.Duration)
	}
	if !almostEqual(a.Utilization, 0.08/0.4+0.15/0.8) {
		t.Errorf("unexpected utilization: %f", a.Utilization)
	}
	if !a.Schedulable() {
		t.Error("expected schedulable task set")
	}

	red := a.Tasks[0]
	if len(red.Intervals) != 1 {
		t.Fatalf("expected 1 interval for channel 0, got %d", len(red.Intervals))
	}
	if !almostEqual(red.Intervals[0].Start, 0.05) || !almostEqual(red.Intervals[0].End, 0.1) {
		t.Errorf("expected interval (0.05, 0.1), got (%f, %f)", red.Intervals[0].Start, red.Intervals[0].End)
	}
	assertTimes(t, "releases", red.Releases, []float64{0.05, 0.45, 0.85})
	if len(red.Misses) != 0 {
		t.Errorf("expected no misses, got %v", red.Misses)
	}

	yellow := a.Tasks[1]
	if len(yellow.Edges) != 0 || len(yellow.Intervals) != 0 {
		t.Errorf("expected silent channel to stay empty, got %d edges, %d intervals", len(yellow.Edges), len(yellow.Intervals))
	}
	// No rise: model anchored to 0.0.
	if len(yellow.Releases) == 0 || yellow.Releases[0] != 0 {
		t.Errorf("expected phase-zero anchor for silent channel, got %v", yellow.Releases)
	}
}

func TestAnalyze_DetectsMiss(t *testing.T) {
	// Channel 0 rises at 0.05s and runs for 300ms, well past its 0.25s
	// deadline.
	samples := burstSamples(1000, 0, 50, 350)

	a := Analyze(samples, 1000, testTasks()[:1])

	red := a.Tasks[0]
	if len(red.Misses) == 0 {
		t.Fatal("expected a deadline miss")
	}
	if !almostEqual(red.Misses[0], 0.25) {
		t.Errorf("expected first miss at 0.25s, got %f", red.Misses[0])
	}
	if a.TotalMisses() != len(red.Misses) {
		t.Errorf("TotalMisses mismatch: %d vs %d", a.TotalMisses(), len(red.Misses))
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	samples := burstSamples(2000, 0, 37, 481)
	for i := 100; i < 900; i += 160 {
		for j := i; j < i+40; j++ {
			samples[j] |= trace.Channel(1).Bit()
		}
	}
	tasks := testTasks()

	first := Analyze(samples, 2000, tasks)
	second := Analyze(samples, 2000, tasks)

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical analyses for identical inputs")
	}
}

func TestAnalyze_EmptyCapture(t *testing.T) {
	a := Analyze(nil, 1000, testTasks())

	if a.Duration != 0 {
		t.Errorf("expected zero duration, got %f", a.Duration)
	}
	for _, ta := range a.Tasks {
		if len(ta.Edges) != 0 || len(ta.Intervals) != 0 || len(ta.Misses) != 0 {
			t.Errorf("task %q: expected empty results, got %d edges, %d intervals, %d misses",
				ta.Task.Name, len(ta.Edges), len(ta.Intervals), len(ta.Misses))
		}
	}
	// The utilization statistic is analytical and survives an empty capture.
	if !almostEqual(a.Utilization, 0.08/0.4+0.15/0.8) {
		t.Errorf("unexpected utilization: %f", a.Utilization)
	}
}
