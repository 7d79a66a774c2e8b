package idempotency

import (
	"path/filepath"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func openTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "idem.db"), time.Hour)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return s.WithClock(c.now), c
}

func TestSaveAndLookup(t *testing.T) {
	s, _ := openTestStore(t)
	key := Key("u1", "POST /api/transactions", "abc")

	if _, ok, err := s.Lookup(key); ok || err != nil {
		t.Fatalf("Lookup on empty store = %v, %v", ok, err)
	}

	first := Response{Status: 201, ContentType: "application/json", Body: []byte(`{"id":"t1"}`)}
	if _, stored, err := s.Save(key, first); !stored || err != nil {
		t.Fatalf("Save() = %v, %v", stored, err)
	}

	kept, stored, err := s.Save(key, Response{Status: 201, Body: []byte(`{"id":"t2"}`)})
	if err != nil || stored {
		t.Fatalf("second Save() stored=%v err=%v", stored, err)
	}
	if string(kept.Body) != `{"id":"t1"}` {
		t.Errorf("second Save kept %s, want first body", kept.Body)
	}

	got, ok, err := s.Lookup(key)
	if !ok || err != nil || got.Status != 201 || string(got.Body) != `{"id":"t1"}` {
		t.Errorf("Lookup() = %+v, %v, %v", got, ok, err)
	}
}

func TestKeysAreScoped(t *testing.T) {
	s, _ := openTestStore(t)
	_, _, _ = s.Save(Key("u1", "POST /api/loans", "k"), Response{Status: 201})

	for _, key := range []string{Key("u2", "POST /api/loans", "k"), Key("u1", "POST /api/transactions", "k")} {
		if _, ok, _ := s.Lookup(key); ok {
			t.Errorf("Lookup(%q) leaked another scope's response", key)
		}
	}
}

func TestExpiry(t *testing.T) {
	s, c := openTestStore(t)
	_, _, _ = s.Save("old", Response{Status: 201})
	c.t = c.t.Add(30 * time.Minute)
	_, _, _ = s.Save("new", Response{Status: 201})
	c.t = c.t.Add(45 * time.Minute)

	if _, ok, _ := s.Lookup("old"); ok {
		t.Error("expired response returned")
	}
	if _, stored, _ := s.Save("old", Response{Status: 200}); !stored {
		t.Error("expired slot was not reusable")
	}
	c.t = c.t.Add(2 * time.Hour)
	if n := s.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
}

func TestRevocationsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idem.db")
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	c := &clock{t: base}

	s, err := Open(path, time.Hour)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if err := s.WithClock(c.now).Revoke("sess-1", base.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	s, err = Open(path, time.Hour)
	if err != nil {
		t.Fatalf("reopen = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	s.WithClock(c.now)

	tests := []struct {
		name  string
		id    string
		after time.Duration
		want  bool
	}{
		{"revoked id", "sess-1", 0, true},
		{"unknown id", "sess-2", 0, false},
		{"revoked until expiry", "sess-1", time.Hour, true},
		{"past expiry", "sess-1", time.Hour + time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = base.Add(tt.after)
			got, err := s.Revoked(tt.id)
			if err != nil {
				t.Fatalf("Revoked() = %v", err)
			}
			if got != tt.want {
				t.Errorf("Revoked(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}

	c.t = base.Add(2 * time.Hour)
	if n := s.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
}
