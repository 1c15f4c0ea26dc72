package synth

import (
	"sync"
	"time"

	"github.com/cbegin/keyfall-go/internal/song"
)

// Voices is the voice allocator a Sink drives. *Engine implements it.
type Voices interface {
	NoteOn(key, velocity int) int
	NoteOff(id int)
	ReleaseAll()
	RenderFrame() (float32, float32)
	ActiveVoiceCount() int
	SetMasterGain(gain float64)
}

// Sink turns dispatched song events and live key presses into audio. It is
// fed from the frame loop and drained from the audio thread.
type Sink struct {
	mu     sync.Mutex
	voices Voices
	fx     Chain
	queue  []song.Event
	held   [song.NumKeys][]int
	live   [song.NumKeys]int // voice id + 1, 0 when the key is up
	gain   float64
}

type SinkOption func(*Sink)

// WithEffects replaces the default room reverb and limiter.
func WithEffects(fx ...Effector) SinkOption {
	return func(s *Sink) {
		s.fx = Chain(fx)
	}
}

func WithVoices(v Voices) SinkOption {
	return func(s *Sink) {
		s.voices = v
	}
}

func NewSink(sampleRate int, opts ...SinkOption) *Sink {
	params := DefaultParams()
	s := &Sink{
		voices: New(sampleRate, params),
		fx:     Chain{NewRoom(sampleRate, 0.6, 0.7, 0.18), NewLimiter(0.8)},
		gain:   params.MasterGain,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Consume queues events for the next audio buffer.
func (s *Sink) Consume(_ time.Duration, events []song.Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, events...)
	s.mu.Unlock()
}

// Reset silences everything the song started.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	for k := range s.held {
		for _, id := range s.held[k] {
			s.voices.NoteOff(id)
		}
		s.held[k] = nil
	}
}

// Live sounds a key pressed by the player, independent of the song.
func (s *Sink) Live(key song.Key, velocity uint8, down bool) {
	if key >= song.NumKeys {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := s.live[key]; id > 0 {
		s.voices.NoteOff(id - 1)
		s.live[key] = 0
	}
	if down {
		s.live[key] = s.voices.NoteOn(int(key), velocityOr(velocity)) + 1
	}
}

// SetVolume scales the master gain; 1 is the default level.
func (s *Sink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices.SetMasterGain(s.gain * clamp(v, 0, 2))
}

// Idle reports whether nothing is queued or still sounding.
func (s *Sink) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && s.voices.ActiveVoiceCount() == 0
}

// Process renders interleaved stereo frames into dst.
func (s *Sink) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.queue {
		s.apply(ev)
	}
	s.queue = s.queue[:0]
	for i := 0; i+1 < len(dst); i += 2 {
		l, r := s.voices.RenderFrame()
		if len(s.fx) > 0 {
			l, r = s.fx.Process(l, r)
		}
		dst[i], dst[i+1] = l, r
	}
}

func (s *Sink) apply(ev song.Event) {
	if ev.Key >= song.NumKeys {
		return
	}
	held := s.held[ev.Key]
	switch ev.Kind {
	case song.NoteOn:
		s.held[ev.Key] = append(held, s.voices.NoteOn(int(ev.Key), velocityOr(ev.Velocity)))
	case song.NoteOff:
		if len(held) == 0 {
			return
		}
		// Seek releases (negative track) silence every voice on the key.
		n := 1
		if ev.Track < 0 {
			n = len(held)
		}
		for _, id := range held[:n] {
			s.voices.NoteOff(id)
		}
		s.held[ev.Key] = held[n:]
	}
}

func velocityOr(v uint8) int {
	if v == 0 {
		return 100
	}
	return int(v)
}
