package synth

import (
	"math"
	"sync/atomic"
)

const twoPi = math.Pi * 2

// Params shapes the two-operator piano voice.
type Params struct {
	Polyphony    int
	ModMul       float64 // modulator frequency ratio
	ModIndex     float64 // modulation depth at full envelope
	AttackSec    float64
	DecaySec     float64
	SustainLvl   float64
	ReleaseSec   float64
	MasterGain   float64
	VelocityAmp  float64 // how much velocity scales loudness, 0..1
	VibratoDepth float64 // semitones
	VibratoHz    float64
	LPFCutoff    float64 // Hz, 0 disables
}

func DefaultParams() Params {
	return Params{
		Polyphony:    48,
		ModMul:       1.0,
		ModIndex:     1.2,
		AttackSec:    0.004,
		DecaySec:     0.9,
		SustainLvl:   0.35,
		ReleaseSec:   0.25,
		MasterGain:   0.35,
		VelocityAmp:  0.8,
		VibratoDepth: 0.03,
		VibratoHz:    5.5,
		LPFCutoff:    9000,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	id       int
	key      int
	freq     float64
	velocity float64
	pan      float64
	env      float64
	state    envState
	carrier  float64
	mod      float64
	age      int
}

// Engine is a polyphonic voice allocator. It is not safe for concurrent
// use; Sink serializes access to it.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	clock      int
	masterGain uint64
	vibrato    lfo
	lpfAlpha   float64
	lpfL, lpfR float64
}

func New(sampleRate int, params Params) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = 48
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
		vibrato:    lfo{depth: params.VibratoDepth, rateHz: params.VibratoHz},
	}
	for i := range e.voices {
		e.voices[i].state = envOff
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	return e
}

// NoteOn starts a voice and returns its id. Keys are panned across the
// stereo field from low to high.
func (e *Engine) NoteOn(key, velocity int) int {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	e.clock++
	e.voices[slot] = voice{
		id:       id,
		key:      key,
		freq:     keyToFreq(key),
		velocity: clamp(float64(velocity)/127.0, 0, 1),
		pan:      clamp((float64(key)-64)/64, -1, 1) * 0.6,
		state:    envAttack,
		age:      e.clock,
	}
	return id
}

// NoteOff moves the voice with id into its release stage.
func (e *Engine) NoteOff(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.id == id && v.state != envOff && v.state != envRelease {
			v.state = envRelease
			return
		}
	}
}

// ReleaseAll puts every sounding voice into release.
func (e *Engine) ReleaseAll() {
	for i := range e.voices {
		if e.voices[i].state != envOff {
			e.voices[i].state = envRelease
		}
	}
}

func (e *Engine) SetMasterGain(gain float64) {
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) MasterGain() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

// ActiveVoiceCount counts voices still audible, release tails included.
func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].state != envOff {
			n++
		}
	}
	return n
}

func (e *Engine) RenderFrame() (float32, float32) {
	sr := e.sampleRate
	vib := math.Pow(2, e.vibrato.sample(sr)/12)
	var l, r float64
	for i := range e.voices {
		v := &e.voices[i]
		if v.state == envOff {
			continue
		}
		e.stepEnvelope(v)
		f := v.freq * vib
		v.mod += twoPi * f * e.params.ModMul / sr
		if v.mod > twoPi {
			v.mod -= twoPi
		}
		v.carrier += twoPi * f / sr
		if v.carrier > twoPi {
			v.carrier -= twoPi
		}
		// Brightness follows the envelope so the attack is the richest part.
		idx := e.params.ModIndex * v.env
		s := math.Sin(v.carrier + idx*math.Sin(v.mod))
		amp := v.env * (1 - e.params.VelocityAmp + e.params.VelocityAmp*v.velocity)
		out := s * amp
		l += out * (1 - v.pan) * 0.5
		r += out * (1 + v.pan) * 0.5
	}
	if e.lpfAlpha > 0 {
		e.lpfL += e.lpfAlpha * (l - e.lpfL)
		e.lpfR += e.lpfAlpha * (r - e.lpfR)
		l, r = e.lpfL, e.lpfR
	}
	g := e.MasterGain()
	return float32(l * g), float32(r * g)
}

func (e *Engine) stepEnvelope(v *voice) {
	sr := e.sampleRate
	p := e.params
	switch v.state {
	case envAttack:
		v.env += 1 / math.Max(p.AttackSec*sr, 1)
		if v.env >= 1 {
			v.env = 1
			v.state = envDecay
		}
	case envDecay:
		v.env -= (1 - p.SustainLvl) / math.Max(p.DecaySec*sr, 1)
		if v.env <= p.SustainLvl {
			v.env = p.SustainLvl
			v.state = envSustain
		}
	case envSustain:
		// Piano strings keep fading while held.
		v.env *= 1 - 1/math.Max(4*sr, 1)
	case envRelease:
		v.env -= 1 / math.Max(p.ReleaseSec*sr, 1)
		if v.env <= 0 {
			v.env = 0
			v.state = envOff
		}
	}
}

// stealVoice returns a free slot, or the oldest releasing voice, or the
// oldest voice overall.
func (e *Engine) stealVoice() int {
	oldest, oldestRel := -1, -1
	for i := range e.voices {
		v := &e.voices[i]
		switch {
		case v.state == envOff:
			return i
		case v.state == envRelease:
			if oldestRel < 0 || v.age < e.voices[oldestRel].age {
				oldestRel = i
			}
		default:
			if oldest < 0 || v.age < e.voices[oldest].age {
				oldest = i
			}
		}
	}
	if oldestRel >= 0 {
		return oldestRel
	}
	return oldest
}

func keyToFreq(key int) float64 {
	return 440 * math.Pow(2, float64(key-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
