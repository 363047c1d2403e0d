package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/embtrace/schedtrace/internal/capture"
	"github.com/embtrace/schedtrace/internal/capture/sigrok"
	"github.com/embtrace/schedtrace/internal/storage"
	"github.com/embtrace/schedtrace/internal/trace"
)

const (
	storageDir     = "data"
	samplesChanCap = 1024
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	handler, err := sigrok.New(&config.Capture)
	if err != nil {
		return fmt.Errorf("failed to create capture device: %w", err)
	}

	device := capture.NewDevice(config.Capture.Driver, handler, capture.WithLogger(logger))

	sessionID, err := store.CreateSession(ctx, handler.Device(), config.Capture.Driver, config.Capture.SampleRate, &config.Capture)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	logger.Info("capture starting",
		slog.Int64("sessionID", sessionID),
		slog.Float64("sampleRate", config.Capture.SampleRate),
		slog.Float64("duration", config.Capture.Duration),
		slog.Int("channels", config.Capture.Channels))

	return collect(ctx, device, store, sessionID, config, logger)
}

func collect(ctx context.Context, device *capture.Device, store *storage.SqliteStore, sessionID int64, config *Config, logger *slog.Logger) error {
	samples := make(chan capture.Sample, samplesChanCap)

	stopped, err := device.BeginSampling(ctx, samples)
	if err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}

	target := config.Capture.NumSamples()
	keepAll := config.Storage.CSVFile != ""

	var all []trace.Sample
	batch := make([]trace.Sample, 0, config.Storage.MaxBatchSize)
	next := 0 // capture index of the next sample to arrive
	lastDecile := -1

	record := func(s capture.Sample) {
		batch = append(batch, s.Bits)
		if keepAll {
			all = append(all, s.Bits)
		}
		next++
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.StoreSamples(ctx, sessionID, next-len(batch), batch); err != nil {
			return fmt.Errorf("storing samples: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	var captureErr error

collecting:
	for next < target {
		select {
		case <-ctx.Done():
			logger.Info("capture interrupted")
			break collecting

		case err := <-stopped:
			if err != nil {
				captureErr = err
			} else if next < target {
				logger.Warn("capture tool exited early", slog.Int("captured", next), slog.Int("expected", target))
			}
			break collecting

		case s := <-samples:
			record(s)
			if len(batch) == cap(batch) {
				if err := flush(); err != nil {
					return err
				}
			}

			if decile := next * 10 / target; decile != lastDecile {
				lastDecile = decile
				logger.Info("recording...", slog.Int("pct", min(100, decile*10)))
			}
		}
	}

	// Keep consuming while the device winds down: the parser may be blocked
	// mid-send on a full channel and Stop waits for it to exit.
	deviceStopped := make(chan struct{})
	go func() {
		device.Stop()
		close(deviceStopped)
	}()

stopping:
	for {
		select {
		case s := <-samples:
			record(s)
			if len(batch) == cap(batch) {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-deviceStopped:
			break stopping
		}
	}

	// Pick up whatever was still buffered when the device stopped.
drain:
	for {
		select {
		case s := <-samples:
			record(s)
			if len(batch) == cap(batch) {
				if err := flush(); err != nil {
					return err
				}
			}
		default:
			break drain
		}
	}

	if err := flush(); err != nil {
		return err
	}

	logger.Info("capture finished", slog.Int64("sessionID", sessionID), slog.Int("samples", next))

	if keepAll {
		if err := writeCSV(config.Storage.CSVFile, all); err != nil {
			return err
		}
		logger.Info("replay file written", slog.String("path", config.Storage.CSVFile), slog.Int("samples", len(all)))
	}

	return captureErr
}

func writeCSV(path string, samples []trace.Sample) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating replay file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = storage.WriteSamplesCSV(f, samples); err != nil {
		return fmt.Errorf("writing replay file: %w", err)
	}
	return nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dbPath := config.DataDirectory
	if dbPath == "" {
		dbPath = storageDir
	}
	if !filepath.IsAbs(dbPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("invalid storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("trace_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
