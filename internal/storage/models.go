package storage

import "time"

// Session represents one recorded capture session. Only the raw sample
// sequence is persisted; edges, intervals and the periodic model are derived
// and recomputed from the samples on every analysis run.
type Session struct {
	ID         int64     `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`               // When the capture began
	DeviceType string    `json:"deviceType"`              // Capture device type (e.g. "sigrok")
	DeviceID   string    `json:"deviceID"`                // Identifier of the specific device
	SampleRate float64   `json:"sampleRate"`              // Acquisition rate in Hz
	Config     *string   `json:"config,omitempty"`        // Optional device configuration in JSON format
}
