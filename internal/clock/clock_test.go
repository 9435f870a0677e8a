package clock

import (
	"testing"
	"time"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("expected 90s since start, got %v", got)
	}

	later := start.Add(time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Set did not take effect")
	}
}

func TestTickingClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTickingClock(start, time.Second)

	first := c.Now()
	second := c.Now()
	if !first.Equal(start) {
		t.Errorf("first tick should be the start time, got %v", first)
	}
	if second.Sub(first) != time.Second {
		t.Errorf("expected one second between ticks, got %v", second.Sub(first))
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != Real {
		t.Error("nil clock should fall back to Real")
	}
	m := NewMockClock(time.Unix(0, 0))
	if Or(m) != m {
		t.Error("non-nil clock should be returned unchanged")
	}
}
