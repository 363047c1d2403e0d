// Package sigrok wraps the sigrok-cli logic analyzer frontend as a capture
// handler. Samples are read from its CSV output, one row of channel columns
// per sampling instant.
package sigrok

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/embtrace/schedtrace/internal/capture"
	"github.com/embtrace/schedtrace/internal/trace"
)

const (
	Runtime = "sigrok-cli"
	Device  = "sigrok"
)

// handler struct represents a sigrok-cli capture handler
type handler struct {
	binPath string
	args    []string
	index   int
}

// New creates a new sigrok-cli handler
func New(config *Config) (capture.Handler, error) {
	binPath, err := capture.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("error creating args: %w", err)
	}

	return &handler{binPath: binPath, args: args}, nil
}

// Cmd returns an exec.Cmd for the sigrok-cli handler
func (h *handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse parses one line of sigrok-cli CSV output into a bitmask sample.
// Comment lines (leading ';') are metadata and are skipped, except loss
// notices which are reported upstream. A row is either one column of 0/1 per
// channel, D0 first, or a single integer bitmask.
func (h *handler) Parse(line string, samples chan<- capture.Sample) error {
	if strings.HasPrefix(line, ";") {
		if loss := parseLossNotice(line); loss != nil {
			return loss
		}
		return nil // CSV header / metadata comment
	}

	var bits trace.Sample
	if strings.ContainsRune(line, ',') {
		cols := strings.Split(line, ",")
		for i, col := range cols {
			switch strings.TrimSpace(col) {
			case "0":
			case "1":
				bits |= 1 << i
			default:
				return fmt.Errorf("invalid channel column %d: %q", i, col)
			}
		}
	} else {
		v, err := strconv.ParseUint(line, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid sample line %q: %w", line, err)
		}
		bits = trace.Sample(v)
	}

	samples <- capture.Sample{Index: h.index, Bits: bits}
	h.index++
	return nil
}

func (h *handler) Device() string {
	return Device
}

// parseLossNotice recognizes acquisition trouble reported in metadata
// comments, e.g. "; Lost 12 samples." or "; 3 corrupted samples". The count
// is the first integer on the line; a notice without one still counts as a
// single affected sample.
func parseLossNotice(line string) *capture.SampleLossError {
	l := strings.ToLower(line)

	lost := strings.Contains(l, "lost") || strings.Contains(l, "dropped")
	corrupted := strings.Contains(l, "corrupt")
	if !lost && !corrupted {
		return nil
	}

	n := 1
	for _, field := range strings.Fields(l) {
		field = strings.Trim(field, ".,;")
		if v, err := strconv.Atoi(field); err == nil && v >= 0 {
			n = v
			break
		}
	}

	var e capture.SampleLossError
	if lost {
		e.Lost = n
	} else {
		e.Corrupted = n
	}
	return &e
}
