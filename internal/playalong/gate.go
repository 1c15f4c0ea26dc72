// Package playalong decides whether playback may advance while the user is
// asked to hold the keys of the next chord.
package playalong

import (
	"time"

	"github.com/cbegin/keyfall-go/internal/clock"
	"github.com/cbegin/keyfall-go/internal/song"
)

// Requirement is the set of keys struck at the next pending NoteOn instant.
type Requirement struct {
	At   time.Duration
	Keys []song.Key
}

func (r Requirement) Empty() bool { return len(r.Keys) == 0 }

// Contains reports whether key is required.
func (r Requirement) Contains(key song.Key) bool {
	for _, k := range r.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Gate is stateless apart from the play-along flag it is handed on each call.
type Gate struct{}

// RequiredKeys builds the requirement for the next NoteOn instant. It is
// always empty when play-along is disabled.
func (Gate) RequiredKeys(enabled bool, at time.Duration, keys []song.Key) Requirement {
	if !enabled || len(keys) == 0 {
		return Requirement{}
	}
	return Requirement{At: at, Keys: keys}
}

// Satisfied reports whether every required key is effectively pressed.
func (Gate) Satisfied(req Requirement, state *KeyState) bool {
	for _, k := range req.Keys {
		if !state.Pressed(k) {
			return false
		}
	}
	return true
}

// MaxAllowedAdvance limits how far song time may move this tick. With
// nothing required, or everything required held, it is unbounded. Otherwise
// the clock may only run up to the requirement instant, which is a hard
// stall once it is there.
func (g Gate) MaxAllowedAdvance(committed time.Duration, req Requirement, state *KeyState) time.Duration {
	if req.Empty() || g.Satisfied(req, state) {
		return clock.Unbounded
	}
	if req.At <= committed {
		return 0
	}
	return req.At - committed
}
