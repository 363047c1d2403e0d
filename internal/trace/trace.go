// Package trace reconstructs per-channel execution intervals from a raw
// GPIO bitmask capture.
package trace

// Sample is one bitmask reading from the capture device. Bit k carries the
// logic level of channel k at the sampling instant.
type Sample uint32

// Channel identifies a monitored GPIO line by its bit index.
type Channel int

// Bit returns the mask selecting this channel in a Sample.
func (c Channel) Bit() Sample {
	return 1 << c
}

const (
	Rise EdgeKind = iota
	Fall
)

// EdgeKind is the direction of a signal transition.
type EdgeKind int

func (k EdgeKind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Fall:
		return "fall"
	default:
		return "unknown"
	}
}

// Edge is a single signal transition. Time is in seconds from the start of
// the capture and refers to the sample where the new level is first observed.
type Edge struct {
	Kind EdgeKind
	Time float64
}

// Interval is one contiguous span where a channel was high, Start < End.
// A job preempted mid-execution contributes one Interval per fragment.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns the length of the interval in seconds.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}
