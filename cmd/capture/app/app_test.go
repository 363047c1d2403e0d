//go:build !windows

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/embtrace/schedtrace/internal/capture"
	"github.com/embtrace/schedtrace/internal/capture/sigrok"
	"github.com/embtrace/schedtrace/internal/storage"
	"github.com/embtrace/schedtrace/internal/trace"
)

// floodHandler runs a shell script standing in for the capture tool and
// parses its integer sample lines.
type floodHandler struct {
	script string
	index  int
}

func (h *floodHandler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, "sh", "-c", h.script)
}

func (h *floodHandler) Parse(line string, samples chan<- capture.Sample) error {
	v, err := strconv.ParseUint(line, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid line %q: %w", line, err)
	}

	samples <- capture.Sample{Index: h.index, Bits: trace.Sample(v)}
	h.index++
	return nil
}

func (h *floodHandler) Device() string {
	return "flood"
}

func TestCollect_StopsUnderSampleBacklog(t *testing.T) {
	// The tool floods many times the channel capacity. Once the target is
	// reached the parser is still blocked mid-send, so shutdown must keep
	// consuming while the device winds down or Stop never returns.
	ctx := context.Background()

	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "trace_session.sqlite"))
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, "flood", "test-0", 1000, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	config := &Config{
		Capture: sigrok.Config{Driver: sigrok.DriverDemo, SampleRate: 1000, Channels: 1, Duration: 0.1},
		Storage: StorageConfig{MaxBatchSize: 50},
	}

	// Five times the channel capacity: the parser is still blocked mid-send
	// when the collector reaches its target.
	handler := &floodHandler{script: fmt.Sprintf("yes 1 | head -n %d", 5*samplesChanCap)}
	device := capture.NewDevice("test-0", handler)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan error, 1)
	go func() {
		done <- collect(ctx, device, store, sessionID, config, logger)
	}()

	select {
	case err = <-done:
		if err != nil {
			t.Fatalf("collecting: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("collect did not return with a sample backlog pending")
	}

	samples, err := store.ReadAllSamples(ctx, sessionID)
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if len(samples) < config.Capture.NumSamples() {
		t.Errorf("expected at least %d stored samples, got %d", config.Capture.NumSamples(), len(samples))
	}
}

func TestCollect_InterruptFlushesBatch(t *testing.T) {
	// Cancellation mid-capture must still drain and persist what the parser
	// already produced.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "trace_session.sqlite"))
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, "flood", "test-0", 1000, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	config := &Config{
		Capture: sigrok.Config{Driver: sigrok.DriverDemo, SampleRate: 1000, Channels: 1, Duration: 60},
		Storage: StorageConfig{MaxBatchSize: 1000},
	}

	// The tool emits 100 samples and then hangs, as a stuck device would.
	// exec keeps the pipe in the killed process so cancellation closes it.
	handler := &floodHandler{script: "yes 1 | head -n 100; exec sleep 30"}
	device := capture.NewDevice("test-0", handler)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan error, 1)
	go func() {
		done <- collect(ctx, device, store, sessionID, config, logger)
	}()

	// Give the tool time to emit all 100 lines, then interrupt.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err = <-done:
		if err != nil {
			t.Fatalf("collecting: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("collect did not return after cancellation")
	}

	samples, err := store.ReadAllSamples(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if len(samples) == 0 {
		t.Error("expected the interrupted capture to persist collected samples")
	}
}
