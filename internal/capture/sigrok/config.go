package sigrok

import (
	"fmt"
	"math"
)

const (
	// MaxChannels is the widest bitmask the trace model can carry
	MaxChannels = 32

	// DriverFX2LAFW is the default driver, generic Cypress FX2 logic analyzers
	DriverFX2LAFW = "fx2lafw"
	// DriverDemo is the sigrok demo driver, useful for dry runs without hardware
	DriverDemo = "demo"
)

// Config is the `sigrok-cli` acquisition configuration
type Config struct {
	// Driver selects the sigrok hardware driver, e.g. "fx2lafw"
	Driver string `yaml:"driver" json:"driver"`

	// Conn is an optional driver connection spec (e.g. "1.42" for a USB
	// bus.address), appended to the driver as driver:conn=...
	Conn string `yaml:"conn" json:"conn"`

	// SampleRate is the acquisition rate in Hz
	SampleRate float64 `yaml:"sampleRate" json:"sampleRate"`

	// Channels is the number of digital lines to record, D0..D(n-1).
	// Channel k of the analysis reads bit k of every sample.
	Channels int `yaml:"channels" json:"channels"`

	// Duration of the capture in seconds
	Duration float64 `yaml:"duration" json:"duration"`
}

func (c *Config) Validate() error {
	if c.Driver == "" {
		c.Driver = DriverFX2LAFW
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sigrok.Config: sample rate must be positive: %f", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > MaxChannels {
		return fmt.Errorf("sigrok.Config: channels must be between 1 and %d: %d", MaxChannels, c.Channels)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("sigrok.Config: duration must be positive: %f", c.Duration)
	}
	return nil
}

// NumSamples returns the expected length of the capture in samples.
func (c *Config) NumSamples() int {
	return int(math.Round(c.SampleRate * c.Duration))
}

// Args builds the command line arguments for `sigrok-cli`.
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	driver := c.Driver
	if c.Conn != "" {
		driver = fmt.Sprintf("%s:conn=%s", driver, c.Conn)
	}

	channels := ""
	for i := 0; i < c.Channels; i++ {
		if i > 0 {
			channels += ","
		}
		channels += fmt.Sprintf("D%d", i)
	}

	return []string{
		"-d", driver,
		"--config", fmt.Sprintf("samplerate=%d", int64(c.SampleRate)),
		"--channels", channels,
		"--samples", fmt.Sprintf("%d", c.NumSamples()),
		"-O", "csv",
	}, nil
}
