package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since should never be negative for a real clock")
	}
}

func TestMockClock(t *testing.T) {
	base := time.Date(2017, 10, 24, 10, 54, 34, 0, time.UTC)
	c := NewMockClock(base)

	if !c.Now().Equal(base) {
		t.Fatalf("Now() = %v, want %v", c.Now(), base)
	}

	c.Advance(1500 * time.Millisecond)
	if got := c.Since(base); got != 1500*time.Millisecond {
		t.Errorf("Since() = %v, want 1.5s", got)
	}

	later := base.Add(time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Set() did not move clock: %v", c.Now())
	}
}
