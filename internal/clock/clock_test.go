package clock

import (
	"math"
	"testing"
	"time"
)

const ms = time.Millisecond

func TestClockAdvanceScalesBySpeed(t *testing.T) {
	c := New(0)
	if got := c.Advance(100*ms, 1.5, Unbounded); got != 150*ms {
		t.Fatalf("song time = %v, want 150ms", got)
	}
	if got := c.Advance(100*ms, 0, Unbounded); got != 150*ms {
		t.Fatalf("zero speed moved clock to %v", got)
	}
	if got := c.Advance(100*ms, -1, Unbounded); got != 150*ms {
		t.Fatalf("negative speed moved clock to %v", got)
	}
	if got := c.Advance(100*ms, math.NaN(), Unbounded); got != 150*ms {
		t.Fatalf("NaN speed moved clock to %v", got)
	}
}

func TestClockClampsToMaxAllowed(t *testing.T) {
	c := New(0)
	if got := c.Advance(time.Second, 1, 0); got != 0 {
		t.Fatalf("stalled clock moved to %v", got)
	}
	if got := c.Advance(time.Second, 1, 40*ms); got != 40*ms {
		t.Fatalf("song time = %v, want 40ms", got)
	}
	if got := c.Advance(time.Second, 1, -5*ms); got != 40*ms {
		t.Fatalf("negative limit moved clock to %v", got)
	}
}

func TestClockLeadInIsNotGated(t *testing.T) {
	c := New(time.Second)
	if got := c.Advance(600*ms, 1, 0); got != 0 {
		t.Fatalf("song time during lead-in = %v, want 0", got)
	}
	if !c.InLeadIn() {
		t.Fatalf("expected lead-in to be running")
	}
	if got := c.VisualTime(0); got != -400*ms {
		t.Fatalf("visual time = %v, want -400ms", got)
	}
	// 400ms of lead-in left; the remaining 200ms is gated to zero.
	if got := c.Advance(600*ms, 1, 0); got != 0 {
		t.Fatalf("song time = %v, want 0", got)
	}
	if c.InLeadIn() {
		t.Fatalf("lead-in should have elapsed")
	}
	if got := c.Advance(100*ms, 1, Unbounded); got != 100*ms {
		t.Fatalf("song time = %v, want 100ms", got)
	}
}

func TestClockPauseIsIdempotent(t *testing.T) {
	c := New(0)
	c.Advance(10*ms, 1, Unbounded)
	c.Pause()
	c.Pause()
	if got := c.Advance(time.Hour, 1, Unbounded); got != 10*ms {
		t.Fatalf("paused clock moved to %v", got)
	}
	c.Resume()
	if got := c.Advance(5*ms, 1, Unbounded); got != 15*ms {
		t.Fatalf("resume reinjected time: %v", got)
	}
}

func TestClockSeekToFractionClamps(t *testing.T) {
	c := New(3 * time.Second)
	total := 10 * time.Second
	cases := []struct {
		f    float64
		want time.Duration
	}{
		{0.5, 5 * time.Second},
		{-1, 0},
		{2, total},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		c.SeekToFraction(tc.f, total)
		if got := c.SongTime(); got != tc.want {
			t.Errorf("seek %v: song time = %v, want %v", tc.f, got, tc.want)
		}
		if c.InLeadIn() {
			t.Errorf("seek %v left clock inside lead-in", tc.f)
		}
	}
}

func TestClockOffsetOnlyAffectsVisualTime(t *testing.T) {
	c := New(0)
	c.Advance(time.Second, 1, Unbounded)
	if got := c.VisualTime(-250 * ms); got != 750*ms {
		t.Fatalf("visual time = %v, want 750ms", got)
	}
	if got := c.TimeWithoutLeadIn(); got != time.Second {
		t.Fatalf("time without lead-in = %v, want 1s", got)
	}
}

func TestClockStepReportsUsedTime(t *testing.T) {
	c := New(100 * ms)
	if used := c.Step(250*ms, 50*ms); used != 150*ms {
		t.Fatalf("used = %v, want 150ms (100ms lead-in + 50ms song)", used)
	}
	if got := c.SongTime(); got != 50*ms {
		t.Fatalf("song time = %v, want 50ms", got)
	}
	c.Pause()
	if used := c.Step(time.Second, Unbounded); used != 0 {
		t.Fatalf("paused step used %v", used)
	}
	if got := Scale(time.Second, 0.5); got != 500*ms {
		t.Fatalf("Scale = %v, want 500ms", got)
	}
}
