package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// SampleLossError reports device-side sample loss or corruption. The affected
// samples are gone before the trace ever reaches the analysis, so the device
// surfaces the loss as an operator warning and keeps collecting; it never
// interpolates and never tells the downstream pipeline which samples are
// missing.
type SampleLossError struct {
	Lost      int
	Corrupted int
}

func (e *SampleLossError) Error() string {
	return fmt.Sprintf("device reported %d lost and %d corrupted samples", e.Lost, e.Corrupted)
}

// Handler interface defines the methods required for handling a capture tool
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string, samples chan<- Sample) error
	Device() string
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(slog.String("device", d.handler.Device()), slog.String("deviceID", d.deviceID))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(d *Device) {
	return func(d *Device) {
		d.parseErrorsThreshold = threshold
	}
}

// Device runs an external capture tool and streams the samples it prints.
// One Device drives one tool process at a time; BeginSampling and Stop
// bracket a capture run.
type Device struct {
	deviceID string
	handler  Handler

	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(deviceID string, h Handler, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID:             deviceID,
		handler:              h,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// BeginSampling starts the capture tool and collects samples, sending them to
// the samples channel. The returned channel is closed once collection stops
// and carries the terminal error, if any.
func (d *Device) BeginSampling(ctx context.Context, samples chan<- Sample) (<-chan error, error) {
	if d.isSampling.Load() {
		return nil, fmt.Errorf("device is already running")
	}

	d.isSampling.Store(true)

	ctx, d.cancel = context.WithCancel(ctx)
	cmd := d.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.isSampling.Store(false)
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		d.isSampling.Store(false)
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		d.isSampling.Store(false)
		return nil, fmt.Errorf("error starting capture tool: %w", err)
	}

	// Buffered so the terminal error is delivered even when the consumer
	// stops the device without waiting on this channel.
	samplingStopped := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer close(samplingStopped)

		d.logger.Info("capture tool started")

		// Three producers: the sample parser, the stderr logger and the
		// process waiter. Collection ends when all three have reported.
		done := make(chan error, 3)

		go d.parseSamples(stdout, samples, done)
		go d.logStderr(stderr, done)
		go d.waitCmd(cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				d.cancel() // terminate the tool, unblock the other readers
				d.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		close(done)

		d.logger.Info("capture tool stopped")

		d.isSampling.Store(false)
		d.wg.Done()

		if len(errs) > 0 {
			samplingStopped <- errors.Join(errs...)
		}
	}()

	return samplingStopped, nil
}

// Stop terminates the capture tool and waits for collection to wind down.
// Stopping an idle device is a no-op.
func (d *Device) Stop() {
	if !d.isSampling.Load() {
		return
	}

	d.cancel()
	d.wg.Wait()
	d.isSampling.Store(false)
}

// IsSampling returns true if the device is running
func (d *Device) IsSampling() bool {
	return d.isSampling.Load()
}

// scanLines feeds non-blank trimmed lines from r into fn and reports the
// terminal pipe state on done. fn returning false aborts the scan early; the
// abort reason is fn's to deliver.
func scanLines(r io.Reader, fn func(line string) bool, done chan<- error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !fn(line) {
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: %w", ErrBrokenPipe, err)
		return
	}
	done <- nil
}

// parseSamples turns the tool's stdout into Sample values. Loss notices are
// logged and skipped; anything else the handler cannot parse counts towards
// the consecutive-error threshold.
func (d *Device) parseSamples(stdout io.Reader, samples chan<- Sample, done chan<- error) {
	var parseErrors uint8

	scanLines(stdout, func(line string) bool {
		err := d.handler.Parse(line, samples)
		if err == nil {
			parseErrors = 0
			return true
		}

		var loss *SampleLossError
		if errors.As(err, &loss) {
			// Lost samples are invisible to the analysis; warn the operator
			// and keep going.
			d.logger.Warn(err.Error(), slog.Int("lost", loss.Lost), slog.Int("corrupted", loss.Corrupted))
			return true
		}

		parseErrors++
		d.logger.Warn(fmt.Sprintf("error parsing samples: %s", err.Error()), slog.String("line", line))

		if parseErrors >= d.parseErrorsThreshold {
			done <- ErrTooManyParseErrors
			return false
		}
		return true
	}, done)
}

// logStderr relays the tool's diagnostics; sigrok-cli and friends print
// progress and warnings there, none of which is fatal by itself.
func (d *Device) logStderr(stderr io.Reader, done chan<- error) {
	scanLines(stderr, func(line string) bool {
		d.logger.Warn(fmt.Sprintf("%s >> %s", d.handler.Device(), line))
		return true
	}, done)
}

// waitCmd reports the tool's exit status. Cancellation is the normal way a
// capture ends and is not an error.
func (d *Device) waitCmd(cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		done <- fmt.Errorf("capture tool exited with error: %w", err)
		return
	}

	done <- nil
}
