package sched

import "github.com/embtrace/schedtrace/internal/trace"

// DetectMisses returns the subsequence of deadlines the task was still
// executing through. A deadline d is missed only under strict containment,
// Start < d < End: a job that finishes (or starts) exactly at its deadline is
// on time. The first matching interval wins, so each deadline is flagged at
// most once even if overlapping intervals exist.
func DetectMisses(intervals []trace.Interval, deadlines []float64) []float64 {
	var misses []float64
	for _, d := range deadlines {
		for _, iv := range intervals {
			if iv.Start < d && d < iv.End {
				misses = append(misses, d)
				break
			}
		}
	}
	return misses
}
