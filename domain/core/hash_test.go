package core

import (
	"testing"
	"time"
)

func TestContentHashStable(t *testing.T) {
	a := NewContentHash([]byte("scan"))
	b := NewContentHash([]byte("scan"))
	if a != b {
		t.Errorf("expected equal hashes, got %s and %s", a, b)
	}
	if len(a.String()) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a.String()))
	}
	if a.Short() != a.String()[:12] {
		t.Errorf("unexpected short form %q", a.Short())
	}
	if NewContentHash([]byte("other")) == a {
		t.Error("different content produced the same hash")
	}
}

func TestSeedDeterministic(t *testing.T) {
	if Seed([]byte("x")) != Seed([]byte("x")) {
		t.Error("seed must be stable for equal input")
	}
	if Seed([]byte("x")) == Seed([]byte("y")) {
		t.Error("seed collision for distinct short inputs")
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(90 * time.Minute)
	if got := c.Now().Time(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("expected %v, got %v", start.Add(90*time.Minute), got)
	}
	if !NewTimestamp(start).Before(c.Now()) {
		t.Error("start should be before advanced clock")
	}
}
