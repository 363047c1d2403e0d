// Package capture drives an external logic-analyzer process and streams the
// digital bitmask samples it produces.
package capture

import "github.com/embtrace/schedtrace/internal/trace"

// Sample is one raw reading from the capture device.
type Sample struct {
	Index int          // position in the capture, 0-based
	Bits  trace.Sample // bitmask of channel levels
}
