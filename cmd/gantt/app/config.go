package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/embtrace/schedtrace/internal/sched"
	"github.com/embtrace/schedtrace/internal/trace"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	// defaultSampleRate matches the reference captures; DB sessions carry
	// their own rate and ignore this.
	defaultSampleRate = 10_000.0
)

type ImageFormat string

type Config struct {
	DBPath      string
	CSVPath     string
	SessionID   int64
	TaskSetPath string
	OutputFile  string
	Format      ImageFormat
	SampleRate  float64
	ZoomStart   *float64
	ZoomEnd     *float64
	NoReleases  bool
	NoDeadlines bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:     ImagePNG,
		SampleRate: defaultSampleRate,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat string
	var zoomStart, zoomEnd float64
	flag.StringVar(&c.DBPath, "db", "", "Path to a session database file")
	flag.StringVar(&c.CSVPath, "csv", "", "Path to a CSV replay file (alternative to -db)")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID (database input only)")
	flag.StringVar(&c.TaskSetPath, "c", "", "Path to the task set configuration file")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.Float64Var(&c.SampleRate, "rate", defaultSampleRate, "Sample rate in Hz (CSV input only)")
	flag.Float64Var(&zoomStart, "zoom-start", 0, "Display window start time (seconds)")
	flag.Float64Var(&zoomEnd, "zoom-end", 0, "Display window end time (seconds)")
	flag.BoolVar(&c.NoReleases, "no-releases", false, "Hide release markers")
	flag.BoolVar(&c.NoDeadlines, "no-deadlines", false, "Hide deadline markers")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "zoom-start" {
			c.ZoomStart = &zoomStart
		}
		if f.Name == "zoom-end" {
			c.ZoomEnd = &zoomEnd
		}
	})

	var err error
	switch {
	case c.DBPath == "" && c.CSVPath == "":
		err = errors.New("an input is required: -db or -csv")
	case c.DBPath != "" && c.CSVPath != "":
		err = errors.New("-db and -csv are mutually exclusive")
	case c.DBPath != "" && c.SessionID <= 0:
		err = errors.New("session id is required")
	case c.CSVPath != "" && c.SampleRate <= 0:
		err = errors.New("sample rate must be positive")
	case c.TaskSetPath == "":
		err = errors.New("task set configuration is required")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	default:
		if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
			err = fmt.Errorf("invalid image format: %s", imageFormat)
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

// TaskSet is the analyzed task configuration file.
type TaskSet struct {
	Tasks []sched.Task `yaml:"tasks"`
}

// LoadTaskSet reads and validates a task set yaml file.
func LoadTaskSet(path string) ([]sched.Task, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task set: %w", err)
	}

	var ts TaskSet
	if err = yaml.Unmarshal(p, &ts); err != nil {
		return nil, fmt.Errorf("parsing task set: %w", err)
	}
	if len(ts.Tasks) == 0 {
		return nil, errors.New("no tasks configured")
	}

	seen := make(map[trace.Channel]struct{}, len(ts.Tasks))
	for i := range ts.Tasks {
		t := &ts.Tasks[i]
		if err = t.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[t.Channel]; ok {
			return nil, fmt.Errorf("task %q: duplicate channel %d", t.Name, t.Channel)
		}
		seen[t.Channel] = struct{}{}
	}

	return ts.Tasks, nil
}
