package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/embtrace/schedtrace/internal/capture/sigrok"
	"github.com/embtrace/schedtrace/internal/sched"
	"github.com/embtrace/schedtrace/internal/trace"
)

const defaultBatchSize = 1000

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Capture  sigrok.Config `yaml:"capture"`
	Tasks    []sched.Task  `yaml:"tasks"`
	Storage  StorageConfig `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SlogLevel maps the configured level name onto a slog level, defaulting to
// info for anything unrecognized.
func (s Settings) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
	CSVFile       string `yaml:"csvFile"` // optional replay copy of the raw samples
}

// LoadConfig reads and validates a yaml configuration file.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(p, &c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return err
	}

	if len(c.Tasks) == 0 {
		return errors.New("no tasks configured")
	}

	seen := make(map[trace.Channel]struct{}, len(c.Tasks))
	for i := range c.Tasks {
		t := &c.Tasks[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if int(t.Channel) >= c.Capture.Channels {
			return fmt.Errorf("task %q: channel %d exceeds captured channels (%d)", t.Name, t.Channel, c.Capture.Channels)
		}
		if _, ok := seen[t.Channel]; ok {
			return fmt.Errorf("task %q: duplicate channel %d", t.Name, t.Channel)
		}
		seen[t.Channel] = struct{}{}
	}

	if c.Storage.MaxBatchSize <= 0 {
		c.Storage.MaxBatchSize = defaultBatchSize
	}
	return nil
}
