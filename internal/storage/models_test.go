package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSessionJSON(t *testing.T) {
	config := `{"channels":3}`
	session := Session{
		ID:         1,
		StartTime:  time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
		DeviceType: "sigrok",
		DeviceID:   "fx2lafw-0",
		SampleRate: 10_000,
		Config:     &config,
	}

	p, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}

	// The config payload is a plain JSON string, not double-encoded.
	if !strings.Contains(string(p), `"config":"{\"channels\":3}"`) {
		t.Errorf("unexpected config encoding: %s", p)
	}

	var decoded Session
	if err = json.Unmarshal(p, &decoded); err != nil {
		t.Fatalf("unmarshaling: %v", err)
	}
	if decoded.Config == nil || *decoded.Config != config {
		t.Errorf("config did not round-trip: %v", decoded.Config)
	}

	// A session without stored device config omits the field entirely.
	session.Config = nil
	if p, err = json.Marshal(session); err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	if strings.Contains(string(p), "config") {
		t.Errorf("expected config to be omitted, got %s", p)
	}
}
