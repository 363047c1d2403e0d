package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/embtrace/schedtrace/internal/trace"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store := NewSqliteStore(filepath.Join(t.TempDir(), "trace_session.sqlite"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return store
}

func TestSqliteStore_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateSession(ctx, "sigrok", "fx2lafw-0", 10_000, `{"channels":3}`)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive session id, got %d", id)
	}

	sess, err := store.Session(ctx, id)
	if err != nil {
		t.Fatalf("reading session: %v", err)
	}
	if sess.ID != id || sess.DeviceType != "sigrok" || sess.DeviceID != "fx2lafw-0" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.SampleRate != 10_000 {
		t.Errorf("expected sample rate 10000, got %f", sess.SampleRate)
	}
	if sess.Config == nil || *sess.Config != `{"channels":3}` {
		t.Errorf("unexpected session config: %v", sess.Config)
	}
	if sess.StartTime.IsZero() || time.Since(sess.StartTime) > time.Hour {
		t.Errorf("implausible session start time: %v", sess.StartTime)
	}
}

func TestSqliteStore_SessionConfigVariants(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// A JSON-serializable value is marshaled on the way in.
	id, err := store.CreateSession(ctx, "sigrok", "dev-0", 1000, map[string]int{"channels": 2})
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	sess, err := store.Session(ctx, id)
	if err != nil {
		t.Fatalf("reading session: %v", err)
	}
	if sess.Config == nil || *sess.Config != `{"channels":2}` {
		t.Errorf("unexpected marshaled config: %v", sess.Config)
	}

	// nil config stays NULL.
	id, err = store.CreateSession(ctx, "sigrok", "dev-1", 1000, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	if sess, err = store.Session(ctx, id); err != nil {
		t.Fatalf("reading session: %v", err)
	}
	if sess.Config != nil {
		t.Errorf("expected nil config, got %q", *sess.Config)
	}
}

func TestSqliteStore_SamplesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateSession(ctx, "sigrok", "dev-0", 1000, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	samples := make([]trace.Sample, 1000)
	for i := range samples {
		samples[i] = trace.Sample(i % 7)
	}

	// Batches stored out of capture order still read back ordered by index.
	if err = store.StoreSamples(ctx, id, 500, samples[500:]); err != nil {
		t.Fatalf("storing second batch: %v", err)
	}
	if err = store.StoreSamples(ctx, id, 0, samples[:500]); err != nil {
		t.Fatalf("storing first batch: %v", err)
	}

	got, err := store.ReadAllSamples(ctx, id)
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestSqliteStore_SamplesIsolatedBySession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.CreateSession(ctx, "sigrok", "dev-0", 1000, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	second, err := store.CreateSession(ctx, "sigrok", "dev-0", 1000, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	if err = store.StoreSamples(ctx, first, 0, []trace.Sample{1, 2, 3}); err != nil {
		t.Fatalf("storing samples: %v", err)
	}
	if err = store.StoreSamples(ctx, second, 0, []trace.Sample{9}); err != nil {
		t.Fatalf("storing samples: %v", err)
	}

	got, err := store.ReadAllSamples(ctx, second)
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if len(got) != 1 || got[0] != 9 {
		t.Errorf("expected [9], got %v", got)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
}

func TestSqliteStore_EmptyBatch(t *testing.T) {
	store := newTestStore(t)

	if err := store.StoreSamples(context.Background(), 1, 0, nil); err != nil {
		t.Errorf("expected empty batch to be a no-op, got %v", err)
	}
}

func TestSqliteStore_CloseIsIdempotent(t *testing.T) {
	store := NewSqliteStore(filepath.Join(t.TempDir(), "trace_session.sqlite"))

	if _, err := store.CreateSession(context.Background(), "sigrok", "dev-0", 1000, nil); err != nil {
		t.Fatalf("creating session: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
