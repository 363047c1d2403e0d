package trace

// BuildIntervals pairs rise and fall edges into execution intervals. The scan
// keeps a cursor into the edge sequence: a rise at s is matched with the next
// fall at e, the interval [s, e) is emitted and the scan resumes after the
// matched fall, so every edge is visited at most once. A rise with no later
// fall means the signal was still high when the capture ended; the interval
// is closed at totalDuration. A fall with no preceding unmatched rise is
// skipped: spurious edges are expected at trace boundaries and must not
// abort the scan.
func BuildIntervals(edges []Edge, totalDuration float64) []Interval {
	var intervals []Interval

	i := 0
	for i < len(edges) {
		if edges[i].Kind != Rise {
			i++
			continue
		}

		start := edges[i].Time
		end := -1.0
		for j := i + 1; j < len(edges); j++ {
			if edges[j].Kind == Fall {
				end = edges[j].Time
				i = j + 1
				break
			}
		}
		if end < 0 {
			// Job still running when the trace ended.
			end = totalDuration
			i = len(edges)
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals
}
