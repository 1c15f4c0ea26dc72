package keyfall

import (
	"time"

	intplay "github.com/cbegin/keyfall-go/internal/playalong"
	intsong "github.com/cbegin/keyfall-go/internal/song"
	"github.com/cbegin/keyfall-go/internal/xmath"
)

// Device independent names for the control keys. Letter and digit keys use
// their upper-case character ("A", "7").
const (
	KeySpace  = "Space"
	KeyUp     = "Up"
	KeyDown   = "Down"
	KeyLeft   = "Left"
	KeyRight  = "Right"
	KeyMinus  = "Minus"
	KeyPlus   = "Plus"
	KeyEquals = "Equals"
	KeyEscape = "Escape"
)

// KeyEvent is a computer keyboard key going down or up.
type KeyEvent struct {
	Name  string
	Down  bool
	Shift bool
}

type MouseAction int

const (
	MousePress MouseAction = iota
	MouseRelease
	MouseMove
)

// MouseEvent is a left-button pointer event. X is the pointer position as a
// fraction of the window width; InProgressBar tells whether it landed on the
// seek bar.
type MouseEvent struct {
	Action        MouseAction
	X             float64
	InProgressBar bool
}

// KeyMap maps computer keyboard key names to piano keys.
type KeyMap map[string]intsong.Key

// DefaultKeyMap lays an octave and a half starting at middle C over the
// home row, with the black keys on the row above.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		"A": 60, "W": 61, "S": 62, "E": 63, "D": 64, "F": 65, "T": 66,
		"G": 67, "Y": 68, "H": 69, "U": 70, "J": 71, "K": 72, "O": 73,
		"L": 74, "P": 75,
	}
}

const (
	speedStep       = 0.1
	speedStepShift  = 0.5
	offsetStep      = 10 * time.Millisecond
	offsetStepShift = 100 * time.Millisecond
	rewindRate      = 2.0 // song seconds per wall second
)

type rewindKind int

const (
	rewindNone rewindKind = iota
	rewindKeyboard
	rewindMouse
)

type rewindState struct {
	kind      rewindKind
	rate      float64
	wasPaused bool
}

// KeyboardInput forwards a computer keyboard event. Mapped keys act as piano
// keys; Space, the arrows and -/+ control playback. It reports whether the
// key was used.
func (c *Controller) KeyboardInput(ev KeyEvent) bool {
	if key, ok := c.keyMap[ev.Name]; ok {
		c.PressKey(intplay.SourceKeyboard, key, ev.Down)
		return true
	}
	switch ev.Name {
	case KeyLeft, KeyRight:
		c.mu.Lock()
		defer c.mu.Unlock()
		if ev.Down {
			rate := rewindRate
			if ev.Shift {
				rate *= 2
			}
			if ev.Name == KeyLeft {
				rate = -rate
			}
			c.startRewind(rewindKeyboard, rate)
		} else if c.rewind.kind == rewindKeyboard {
			c.stopRewind()
		}
		return true
	}
	// Settings change on release, like the rest of the app's shortcuts.
	if ev.Down {
		return false
	}
	switch ev.Name {
	case KeySpace:
		c.PauseResume()
	case KeyUp, KeyDown:
		amount := speedStep
		if ev.Shift {
			amount = speedStepShift
		}
		if ev.Name == KeyDown {
			amount = -amount
		}
		c.AdjustSpeed(amount)
	case KeyMinus, KeyPlus, KeyEquals:
		amount := offsetStep
		if ev.Shift {
			amount = offsetStepShift
		}
		if ev.Name == KeyMinus {
			amount = -amount
		}
		c.AdjustOffset(amount)
	default:
		return false
	}
	return true
}

// MouseInput scrubs when the progress bar is pressed: playback pauses, song
// time follows the pointer and resumes on release if it was running.
func (c *Controller) MouseInput(ev MouseEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Action {
	case MousePress:
		if !ev.InProgressBar || c.rewind.kind != rewindNone {
			return
		}
		c.startRewind(rewindMouse, 0)
		c.scrubTo(ev.X)
	case MouseMove:
		if c.rewind.kind == rewindMouse {
			c.scrubTo(ev.X)
		}
	case MouseRelease:
		if c.rewind.kind == rewindMouse {
			c.stopRewind()
		}
	}
}

// MIDIInput forwards a note from a live MIDI keyboard.
func (c *Controller) MIDIInput(on bool, key intsong.Key) {
	c.PressKey(intplay.SourceUser, key, on)
}

// ReleaseSource lifts every key held by src, e.g. when a device goes away.
func (c *Controller) ReleaseSource(src intplay.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys.Clear(src)
}

// Rewinding reports whether a keyboard or mouse scrub is in progress.
func (c *Controller) Rewinding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rewind.kind != rewindNone
}

func (c *Controller) scrubTo(x float64) {
	t := time.Duration(xmath.Unit(x) * float64(c.song.Duration()))
	c.queueOffs(c.seekLocked(t))
}

func (c *Controller) startRewind(kind rewindKind, rate float64) {
	if c.rewind.kind != rewindNone {
		return
	}
	c.rewind = rewindState{kind: kind, rate: rate, wasPaused: c.clock.Paused()}
	c.pauseLocked()
}

func (c *Controller) stopRewind() {
	r := c.rewind
	c.rewind = rewindState{}
	if !r.wasPaused {
		c.resumeLocked()
	}
}

// applyRewind moves song time while a rewind key is held.
func (c *Controller) applyRewind(wall time.Duration) {
	if c.rewind.kind != rewindKeyboard || wall <= 0 {
		return
	}
	delta := time.Duration(c.rewind.rate * float64(wall))
	t := xmath.Clamp(c.clock.SongTime()+delta, 0, c.song.Duration())
	c.queueOffs(c.seekLocked(t))
}
