package clock

import (
	"testing"
	"time"
)

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	ms := Millis(ts)
	if got := FromMillis(ms); !got.Equal(ts) {
		t.Errorf("FromMillis(Millis(t)) = %v, want %v", got, ts)
	}
}

func TestManualClock(t *testing.T) {
	start := time.UnixMilli(1000)
	c := NewManual(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(1500 * time.Millisecond)
	if got := Millis(c.Now()); got != 2500 {
		t.Errorf("after Advance, millis = %d, want 2500", got)
	}

	c.Set(time.UnixMilli(42))
	if got := Millis(c.Now()); got != 42 {
		t.Errorf("after Set, millis = %d, want 42", got)
	}
}
