package sched

import "github.com/embtrace/schedtrace/internal/trace"

// firstRelease returns the timestamp of the channel's first observed rise
// edge, or 0 when the channel never rose. Anchoring the periodic model to the
// observed phase instead of time zero compensates for unknown start-up
// latency, so deadline analysis stays valid for traces that begin mid-period.
func firstRelease(edges []trace.Edge) float64 {
	for _, e := range edges {
		if e.Kind == trace.Rise {
			return e.Time
		}
	}
	return 0
}

// Releases generates the theoretical job release times of a task across the
// capture window: firstRelease, then one release per period while the release
// still falls inside the capture. A task without a positive period has no
// periodic model and yields nothing.
func Releases(task Task, edges []trace.Edge, totalDuration float64) []float64 {
	if task.Period <= 0 {
		return nil
	}

	var releases []float64
	for t := firstRelease(edges); t <= totalDuration; t += task.Period {
		releases = append(releases, t)
	}
	return releases
}

// Deadlines generates the absolute deadlines, release + D for every release
// over an extended horizon of one extra period beyond the capture window, so
// a job released near the end of the capture still has its deadline checked
// even when the deadline itself falls after the nominal capture end.
func Deadlines(task Task, edges []trace.Edge, totalDuration float64) []float64 {
	if task.Period <= 0 {
		return nil
	}

	var deadlines []float64
	for t := firstRelease(edges); t < totalDuration+task.Period; t += task.Period {
		deadlines = append(deadlines, t+task.Deadline)
	}
	return deadlines
}
