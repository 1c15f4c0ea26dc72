package clock

import (
	"math"
	"time"

	"github.com/cbegin/keyfall-go/internal/xmath"
)

// Unbounded is the advance limit meaning "no limit".
const Unbounded time.Duration = math.MaxInt64

// Clock converts wall-clock deltas into song time. The running counter
// includes the lead-in; song time is the counter minus the lead-in.
type Clock struct {
	leadIn  time.Duration
	running time.Duration
	paused  bool
}

func New(leadIn time.Duration) *Clock {
	return &Clock{leadIn: xmath.Floor(leadIn, 0)}
}

// Advance moves the clock by wall*speed. The lead-in is consumed without
// limit; time past it is clamped to maxAllowed. Paused clocks and speeds
// of zero or less do not move. Returns the committed song time.
func (c *Clock) Advance(wall time.Duration, speed float64, maxAllowed time.Duration) time.Duration {
	c.Step(Scale(wall, speed), maxAllowed)
	return c.SongTime()
}

// Step moves the clock by d of already scaled time, with the same lead-in
// and maxAllowed rules as Advance, and reports how much of d it used.
func (c *Clock) Step(d, maxAllowed time.Duration) time.Duration {
	if c.paused || d <= 0 {
		return 0
	}
	var used time.Duration
	if c.running < c.leadIn {
		pre := min(d, c.leadIn-c.running)
		c.running += pre
		d -= pre
		used += pre
	}
	d = min(d, xmath.Floor(maxAllowed, 0))
	if d > 0 {
		c.running = addSat(c.running, d)
		used += d
	}
	return used
}

func (c *Clock) Pause()       { c.paused = true }
func (c *Clock) Resume()      { c.paused = false }
func (c *Clock) Paused() bool { return c.paused }

// SeekTo places the clock at song time t with the lead-in already elapsed.
func (c *Clock) SeekTo(t time.Duration) {
	c.running = addSat(c.leadIn, xmath.Floor(t, 0))
}

// SeekToFraction seeks to f of total. f is clamped to [0,1]; NaN seeks to 0.
func (c *Clock) SeekToFraction(f float64, total time.Duration) time.Duration {
	t := time.Duration(xmath.Unit(f) * float64(total))
	c.SeekTo(t)
	return t
}

// SongTime is the committed song time, never negative.
func (c *Clock) SongTime() time.Duration {
	return xmath.Floor(c.running-c.leadIn, 0)
}

// TimeWithoutLeadIn is what renderers use to place notes.
func (c *Clock) TimeWithoutLeadIn() time.Duration { return c.SongTime() }

// VisualTime is the signed render time: negative during the lead-in so
// notes can be shown approaching before song time zero.
func (c *Clock) VisualTime(offset time.Duration) time.Duration {
	return c.running - c.leadIn + offset
}

func (c *Clock) LeadIn() time.Duration { return c.leadIn }

// InLeadIn reports whether the lead-in has not fully elapsed yet.
func (c *Clock) InLeadIn() bool { return c.running < c.leadIn }

// Scale converts a wall-clock delta into song time at speed. Non-positive
// deltas and speeds, and NaN, give zero.
func Scale(wall time.Duration, speed float64) time.Duration {
	if wall <= 0 || !(speed > 0) {
		return 0
	}
	f := float64(wall) * speed
	if f >= float64(Unbounded) {
		return Unbounded
	}
	return time.Duration(f)
}

func addSat(a, b time.Duration) time.Duration {
	if b > 0 && a > Unbounded-b {
		return Unbounded
	}
	return a + b
}
