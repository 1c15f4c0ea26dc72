package keyfall

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestNewConfigFloorsNegativeValues(t *testing.T) {
	cfg := NewConfig(ConfigValues{Speed: -1, LeadIn: -time.Second})
	v := cfg.Snapshot()
	if v.Speed != 0 || v.LeadIn != 0 {
		t.Fatalf("config = %+v, want speed and lead-in floored at 0", v)
	}
	if d := DefaultConfigValues(); d.Speed != 1 || d.LeadIn != 3*time.Second {
		t.Fatalf("defaults = %+v", d)
	}
}

func TestConfigOffsetIsUnbounded(t *testing.T) {
	cfg := NewConfig(DefaultConfigValues())
	cfg.AdjustOffset(-time.Hour)
	if got := cfg.AdjustOffset(-time.Hour); got != -2*time.Hour {
		t.Fatalf("offset = %v, want -2h", got)
	}
}

func TestConfigConcurrentWriters(t *testing.T) {
	cfg := NewConfig(DefaultConfigValues())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cfg.AdjustOffset(time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			_ = cfg.Snapshot()
		}()
	}
	wg.Wait()
	if got := cfg.Snapshot().Offset; got != 50*time.Millisecond {
		t.Fatalf("offset = %v, want 50ms", got)
	}
}

func TestConfigIgnoresNonFiniteSpeed(t *testing.T) {
	cfg := NewConfig(DefaultConfigValues())
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := cfg.AdjustSpeed(bad); got != 1 {
			t.Fatalf("AdjustSpeed(%v) = %v, want 1", bad, got)
		}
		cfg.SetSpeed(bad)
	}
	if got := cfg.AdjustSpeed(0.5); got != 1.5 {
		t.Fatalf("speed after non-finite input then +0.5 = %v, want 1.5", got)
	}
	if got := NewConfig(ConfigValues{Speed: math.NaN()}).Snapshot().Speed; got != 1 {
		t.Fatalf("NewConfig(NaN) speed = %v, want 1", got)
	}
	if got := NewConfig(ConfigValues{Speed: math.Inf(1)}).Snapshot().Speed; got != 1 {
		t.Fatalf("NewConfig(+Inf) speed = %v, want 1", got)
	}
}
