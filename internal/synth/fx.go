package synth

import "math"

// lfo is a triangle oscillator returning values in [-depth, depth].
type lfo struct {
	depth  float64
	rateHz float64
	phase  float64
}

func (o *lfo) sample(sampleRate float64) float64 {
	if o.depth == 0 || o.rateHz == 0 || sampleRate == 0 {
		return 0
	}
	var w float64
	if o.phase < 0.5 {
		w = 4*o.phase - 1
	} else {
		w = 3 - 4*o.phase
	}
	o.phase += o.rateHz / sampleRate
	for o.phase >= 1 {
		o.phase--
	}
	return w * o.depth
}

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain runs effects in order.
type Chain []Effector

func (c Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c Chain) Reset() {
	for _, e := range c {
		e.Reset()
	}
}

// Room is a small Schroeder reverb: four parallel combs into two allpasses.
type Room struct {
	combs [4]delayLine
	aps   [2]delayLine
	wet   float32
}

type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

// NewRoom builds a reverb. size scales the delay lengths, decay sets the
// comb feedback and wet the mix; all are in 0..1.
func NewRoom(sampleRate int, size, decay, wet float32) *Room {
	base := int(float32(sampleRate) * clamp32(size, 0, 1) * 0.05)
	if base < 16 {
		base = 16
	}
	fb := clamp32(decay, 0, 0.95)
	r := &Room{wet: clamp32(wet, 0, 1)}
	for i, ratio := range [4]int{1000, 1117, 1271, 1437} {
		r.combs[i] = delayLine{buf: make([]float32, base*ratio/1000), fb: fb}
	}
	for i, ratio := range [2]int{347, 213} {
		r.aps[i] = delayLine{buf: make([]float32, max(base*ratio/1000, 1)), fb: 0.5}
	}
	return r
}

func (r *Room) Process(l, rr float32) (float32, float32) {
	in := (l + rr) * 0.5
	var acc float32
	for i := range r.combs {
		d := &r.combs[i]
		out := d.buf[d.pos]
		d.buf[d.pos] = in + out*d.fb
		d.advance()
		acc += out
	}
	acc *= 0.25
	for i := range r.aps {
		d := &r.aps[i]
		held := d.buf[d.pos]
		d.buf[d.pos] = acc + held*d.fb
		d.advance()
		acc = held - acc
	}
	return l*(1-r.wet) + acc*r.wet, rr*(1-r.wet) + acc*r.wet
}

func (r *Room) Reset() {
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.aps {
		clear(r.aps[i].buf)
		r.aps[i].pos = 0
	}
}

func (d *delayLine) advance() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

// Limiter keeps dense chords from clipping with a tanh knee above
// threshold.
type Limiter struct {
	threshold float32
}

func NewLimiter(threshold float32) *Limiter {
	return &Limiter{threshold: clamp32(threshold, 0.1, 0.99)}
}

func (m *Limiter) Process(l, r float32) (float32, float32) {
	return m.shape(l), m.shape(r)
}

func (m *Limiter) shape(x float32) float32 {
	a := float32(math.Abs(float64(x)))
	if a <= m.threshold {
		return x
	}
	head := 1 - m.threshold
	over := float32(math.Tanh(float64((a - m.threshold) / head)))
	y := m.threshold + over*head
	if x < 0 {
		return -y
	}
	return y
}

func (m *Limiter) Reset() {}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
