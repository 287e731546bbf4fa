package timeutil

import (
	"testing"
	"time"
)

func TestMockClock_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2025, 12, 24, 18, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(100 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired before advance")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired too early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-ch:
		if !got.Equal(start.Add(100 * time.Millisecond)) {
			t.Errorf("fired with %v", got)
		}
	default:
		t.Fatal("did not fire at deadline")
	}
	if c.Waiters() != 0 {
		t.Errorf("Waiters = %d, want 0", c.Waiters())
	}
}

func TestMockClock_ZeroDurationImmediate(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should be ready")
	}
	if got := c.Since(time.Unix(0, 0)); got != 0 {
		t.Errorf("Since = %v", got)
	}
}
