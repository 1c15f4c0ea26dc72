package playalong

import (
	"github.com/cbegin/keyfall-go/internal/song"
)

// Source identifies who is pressing a key. Sources never overwrite each
// other's state.
type Source uint8

const (
	SourceUser     Source = iota // live MIDI keyboard
	SourceKeyboard               // computer keyboard standing in for piano keys
	SourceMouse                  // clicks on the on-screen keyboard
	SourceFile                   // automatic playback of the song
	numSources
)

func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceKeyboard:
		return "keyboard"
	case SourceMouse:
		return "mouse"
	case SourceFile:
		return "file"
	default:
		return "unknown"
	}
}

// KeyState holds one bit per (key, source). A key is effectively pressed
// when any of its bits is set.
type KeyState struct {
	bits [song.NumKeys]uint8
}

// Press records the latest state reported by source for key. Unknown
// sources and out-of-range keys are ignored.
func (s *KeyState) Press(src Source, key song.Key, down bool) {
	if src >= numSources || key >= song.NumKeys {
		return
	}
	if down {
		s.bits[key] |= 1 << src
	} else {
		s.bits[key] &^= 1 << src
	}
}

// Pressed reports whether any source holds key.
func (s *KeyState) Pressed(key song.Key) bool {
	return key < song.NumKeys && s.bits[key] != 0
}

func (s *KeyState) PressedBy(key song.Key, src Source) bool {
	return key < song.NumKeys && src < numSources && s.bits[key]&(1<<src) != 0
}

// Clear releases every key held by src.
func (s *KeyState) Clear(src Source) {
	for k := range s.bits {
		s.bits[k] &^= 1 << src
	}
}

// PressedKeys lists effectively pressed keys in ascending order.
func (s *KeyState) PressedKeys() []song.Key {
	var keys []song.Key
	for k, b := range s.bits {
		if b != 0 {
			keys = append(keys, song.Key(k))
		}
	}
	return keys
}
