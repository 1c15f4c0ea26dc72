package keyfall

import (
	"math"
	"sync"
	"time"

	"github.com/cbegin/keyfall-go/internal/xmath"
)

// ConfigValues is a point-in-time copy of the playback settings.
type ConfigValues struct {
	Speed     float64       // speed multiplier, never below 0
	Offset    time.Duration // added to render time only
	LeadIn    time.Duration // visual head start before song time 0
	PlayAlong bool
	Loop      bool // restart at the end; ignored while play-along is on
}

func DefaultConfigValues() ConfigValues {
	return ConfigValues{Speed: 1, LeadIn: 3 * time.Second}
}

// Config is the host-owned settings handle shared by the input handlers and
// the tick path. Every write is a single short critical section.
type Config struct {
	mu sync.RWMutex
	v  ConfigValues
}

// NewConfig floors negative values at zero. A non-finite speed falls back
// to the default.
func NewConfig(v ConfigValues) *Config {
	if !finite(v.Speed) {
		v.Speed = DefaultConfigValues().Speed
	}
	v.Speed = xmath.Floor(v.Speed, 0)
	v.LeadIn = xmath.Floor(v.LeadIn, 0)
	return &Config{v: v}
}

func (c *Config) Snapshot() ConfigValues {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// AdjustSpeed adds delta to the speed multiplier, flooring at zero, and
// returns the new value. There is no upper bound. Non-finite deltas and
// results are ignored.
func (c *Config) AdjustSpeed(delta float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if speed := c.v.Speed + delta; finite(speed) {
		c.v.Speed = xmath.Floor(speed, 0)
	}
	return c.v.Speed
}

// SetSpeed sets the speed multiplier, flooring at zero. NaN and infinities
// are ignored.
func (c *Config) SetSpeed(speed float64) {
	if !finite(speed) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Speed = xmath.Floor(speed, 0)
}

// AdjustOffset shifts the render offset by delta, unbounded both ways.
func (c *Config) AdjustOffset(delta time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Offset += delta
	return c.v.Offset
}

func (c *Config) SetPlayAlong(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.PlayAlong = enabled
}

func (c *Config) SetLoop(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Loop = enabled
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
