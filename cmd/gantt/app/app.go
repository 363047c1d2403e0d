package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/embtrace/schedtrace/internal/sched"
	"github.com/embtrace/schedtrace/internal/storage"
	"github.com/embtrace/schedtrace/internal/trace"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	tasks, err := LoadTaskSet(config.TaskSetPath)
	if err != nil {
		return err
	}

	samples, sampleRate, err := loadSamples(ctx, config, logger)
	if err != nil {
		return err
	}

	analysis := sched.Analyze(samples, sampleRate, tasks)
	logSummary(logger, analysis)

	renderConfig := RenderConfig{
		ShowReleases:  !config.NoReleases,
		ShowDeadlines: !config.NoDeadlines,
	}
	if config.ZoomStart != nil {
		renderConfig.ViewStart = *config.ZoomStart
	}
	if config.ZoomEnd != nil {
		renderConfig.ViewEnd = *config.ZoomEnd
	}

	renderer, err := NewGanttRenderer(renderConfig)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	logger.Info("rendering schedule",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
		))

	img, err := renderer.Render(analysis)
	if err != nil {
		return fmt.Errorf("rendering schedule: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

func loadSamples(ctx context.Context, config *Config, logger *slog.Logger) ([]trace.Sample, float64, error) {
	if config.CSVPath != "" {
		f, err := os.Open(config.CSVPath)
		if err != nil {
			return nil, 0, fmt.Errorf("opening replay file: %w", err)
		}
		defer f.Close()

		samples, err := storage.ReadSamplesCSV(f)
		if err != nil {
			return nil, 0, fmt.Errorf("loading replay file: %w", err)
		}

		logger.Info("replay file loaded",
			slog.String("path", config.CSVPath),
			slog.Int("samples", len(samples)),
			slog.Float64("sampleRate", config.SampleRate))
		return samples, config.SampleRate, nil
	}

	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return nil, 0, fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}

	samples, err := store.ReadAllSamples(ctx, config.SessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("loading samples: %w", err)
	}

	logger.Info("session loaded",
		slog.Int64("sessionID", session.ID),
		slog.String("device", session.DeviceType),
		slog.Int("samples", len(samples)),
		slog.Float64("sampleRate", session.SampleRate))
	return samples, session.SampleRate, nil
}

func logSummary(logger *slog.Logger, a *sched.Analysis) {
	for _, ta := range a.Tasks {
		attrs := []any{
			slog.Int("channel", int(ta.Task.Channel)),
			slog.Int("edges", len(ta.Edges)),
			slog.Int("jobs", len(ta.Intervals)),
			slog.Int("deadlines", len(ta.Deadlines)),
			slog.Int("misses", len(ta.Misses)),
		}
		if len(ta.Misses) > 0 {
			logger.Warn(fmt.Sprintf("%s: %d deadline miss(es)", ta.Task.Name, len(ta.Misses)), attrs...)
		} else {
			logger.Info(ta.Task.Name, attrs...)
		}
	}

	verdict := "yes"
	if !a.Schedulable() {
		verdict = "no"
	}
	logger.Info("schedule analysis",
		slog.Group("stats",
			slog.Float64("duration", a.Duration),
			slog.Float64("utilization", a.Utilization),
			slog.String("edfSchedulable", verdict),
			slog.Int("totalMisses", a.TotalMisses()),
		))
}
