package sched

import "github.com/embtrace/schedtrace/internal/trace"

// TaskAnalysis holds everything derived from the capture for one task.
type TaskAnalysis struct {
	Task      Task
	Edges     []trace.Edge
	Intervals []trace.Interval
	Releases  []float64
	Deadlines []float64
	Misses    []float64
}

// Analysis is the result of one full pipeline run over a capture. All fields
// are derived, read-only and recomputed fresh from the sample sequence.
type Analysis struct {
	SampleRate  float64        // Hz
	Duration    float64        // capture length in seconds
	Tasks       []TaskAnalysis // in task set order
	Utilization float64        // total U = sum of C/T
}

// Schedulable reports whether the analyzed task set passes the Liu-Layland
// bound for EDF.
func (a *Analysis) Schedulable() bool {
	return a.Utilization <= 1.0
}

// TotalMisses returns the number of deadline misses across all tasks.
func (a *Analysis) TotalMisses() int {
	var n int
	for _, t := range a.Tasks {
		n += len(t.Misses)
	}
	return n
}

// Analyze runs the whole pipeline once: samples to edges, edges to intervals,
// periodic model, miss detection. It is a pure function of its inputs; the
// same samples and task set always produce the same analysis, and degenerate
// input (an empty capture, a channel that never toggles) produces empty
// result collections rather than an error.
func Analyze(samples []trace.Sample, sampleRate float64, tasks []Task) *Analysis {
	channels := make([]trace.Channel, len(tasks))
	for i, t := range tasks {
		channels[i] = t.Channel
	}

	var duration float64
	if sampleRate > 0 {
		duration = float64(len(samples)) / sampleRate
	}

	edges := trace.ExtractEdges(samples, channels, sampleRate)

	a := Analysis{
		SampleRate:  sampleRate,
		Duration:    duration,
		Tasks:       make([]TaskAnalysis, 0, len(tasks)),
		Utilization: Utilization(tasks),
	}
	for _, t := range tasks {
		e := edges[t.Channel]
		intervals := trace.BuildIntervals(e, duration)
		deadlines := Deadlines(t, e, duration)

		a.Tasks = append(a.Tasks, TaskAnalysis{
			Task:      t,
			Edges:     e,
			Intervals: intervals,
			Releases:  Releases(t, e, duration),
			Deadlines: deadlines,
			Misses:    DetectMisses(intervals, deadlines),
		})
	}
	return &a
}
