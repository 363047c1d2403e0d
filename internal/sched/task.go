// Package sched aligns a periodic task model to a captured GPIO trace and
// checks the observed schedule for deadline violations.
package sched

import (
	"fmt"

	"github.com/embtrace/schedtrace/internal/trace"
)

// Task describes one periodic task in the analyzed set. Period and Deadline
// drive the theoretical release model. WCET is informational: it feeds the
// utilization statistic and is never verified against captured durations.
// 0 < Deadline <= Period is the expected configuration but is not enforced.
type Task struct {
	Channel  trace.Channel `yaml:"channel" json:"channel"`   // GPIO bit index in the capture
	Name     string        `yaml:"name" json:"name"`         // Display name, e.g. "Red (t1)"
	GPIO     string        `yaml:"gpio" json:"gpio"`         // Board pin label, metadata only
	Color    string        `yaml:"color" json:"color"`       // Chart color, "#rrggbb"
	Period   float64       `yaml:"period" json:"period"`     // T, seconds
	Deadline float64       `yaml:"deadline" json:"deadline"` // D, seconds relative to release
	WCET     float64       `yaml:"wcet" json:"wcet"`         // C, seconds
}

// Validate checks the fields a configuration file must provide.
func (t *Task) Validate() error {
	if t.Channel < 0 {
		return fmt.Errorf("sched.Task: channel must not be negative: %d", t.Channel)
	}
	if t.Name == "" {
		return fmt.Errorf("sched.Task: name is required (channel %d)", t.Channel)
	}
	if t.Period < 0 {
		return fmt.Errorf("sched.Task %q: period must not be negative: %f", t.Name, t.Period)
	}
	if t.Deadline < 0 {
		return fmt.Errorf("sched.Task %q: deadline must not be negative: %f", t.Name, t.Deadline)
	}
	if t.WCET < 0 {
		return fmt.Errorf("sched.Task %q: wcet must not be negative: %f", t.Name, t.WCET)
	}
	return nil
}

// Utilization returns the total CPU demand of the task set, the sum of C/T
// over all tasks. Tasks without a positive period contribute nothing.
func Utilization(tasks []Task) float64 {
	var u float64
	for _, t := range tasks {
		if t.Period > 0 {
			u += t.WCET / t.Period
		}
	}
	return u
}

// Schedulable reports whether the task set passes the Liu-Layland necessary
// condition for EDF, U <= 1. It is an analytical statistic computed from the
// configured task parameters, independent of anything captured.
func Schedulable(tasks []Task) bool {
	return Utilization(tasks) <= 1.0
}
