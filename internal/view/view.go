// Package view holds the renderer's screen math and the state it keeps
// between frames. It does not draw; cmd/keyfall paints what it computes.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/cbegin/keyfall-go"
	"github.com/cbegin/keyfall-go/internal/song"
)

// Piano range shown on screen.
const (
	FirstKey song.Key = 21  // A0
	LastKey  song.Key = 108 // C8
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// KeyName spells a key with octave, middle C being C4.
func KeyName(k song.Key) string {
	return fmt.Sprintf("%s%d", noteNames[int(k)%12], int(k)/12-1)
}

func IsBlack(k song.Key) bool {
	switch k % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// Keyboard maps keys to horizontal spans across a given width.
type Keyboard struct {
	First, Last song.Key
	Width       float64
	whiteW      float64
	whiteIndex  [song.NumKeys]int
}

func NewKeyboard(first, last song.Key, width float64) Keyboard {
	kb := Keyboard{First: first, Last: last, Width: width}
	n := 0
	for k := first; k <= last && k < song.NumKeys; k++ {
		kb.whiteIndex[k] = n
		if !IsBlack(k) {
			n++
		}
	}
	if n > 0 {
		kb.whiteW = width / float64(n)
	}
	return kb
}

// WhiteWidth is the width of one white key.
func (kb Keyboard) WhiteWidth() float64 { return kb.whiteW }

// Span returns the left edge and width of key k. Black keys are narrower
// and sit on the boundary between their white neighbours.
func (kb Keyboard) Span(k song.Key) (x, w float64, ok bool) {
	if k < kb.First || k > kb.Last || kb.whiteW == 0 {
		return 0, 0, false
	}
	if !IsBlack(k) {
		return float64(kb.whiteIndex[k]) * kb.whiteW, kb.whiteW, true
	}
	w = kb.whiteW * 0.6
	return float64(kb.whiteIndex[k])*kb.whiteW - w/2, w, true
}

// KeyAt returns the key under x. Black keys win when upper is set, that is
// when the pointer is within the black keys' length.
func (kb Keyboard) KeyAt(x float64, upper bool) (song.Key, bool) {
	if x < 0 || x >= kb.Width || kb.whiteW == 0 {
		return 0, false
	}
	if upper {
		for k := kb.First; k <= kb.Last; k++ {
			if !IsBlack(k) {
				continue
			}
			if bx, bw, _ := kb.Span(k); x >= bx && x < bx+bw {
				return k, true
			}
		}
	}
	for k := kb.First; k <= kb.Last; k++ {
		if IsBlack(k) {
			continue
		}
		if wx, ww, _ := kb.Span(k); x >= wx && x < wx+ww {
			return k, true
		}
	}
	return 0, false
}

// Waterfall projects song time onto the falling-notes area. Notes fall
// towards Bottom, the top edge of the keyboard; the note being played at
// the visual time touches it.
type Waterfall struct {
	Top, Bottom     float64
	PixelsPerSecond float64
}

// Project returns the vertical extent of a note at visual time now.
// visible is false when the note is entirely above or below the area.
func (wf Waterfall) Project(n song.Note, now time.Duration) (y0, y1 float64, visible bool) {
	y1 = wf.Bottom - (n.Start-now).Seconds()*wf.PixelsPerSecond
	y0 = wf.Bottom - (n.End-now).Seconds()*wf.PixelsPerSecond
	if y1 < wf.Top || y0 > wf.Bottom {
		return 0, 0, false
	}
	return max(y0, wf.Top), min(y1, wf.Bottom), true
}

// Lights tracks which keys the song is sounding, for the keyboard
// highlight. It is a playback consumer and is reset at the end of a song.
type Lights struct {
	count [song.NumKeys]int
	track [song.NumKeys]int
}

func (l *Lights) Consume(_ time.Duration, events []song.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case song.NoteOn:
			l.count[ev.Key]++
			l.track[ev.Key] = ev.Track
		case song.NoteOff:
			if ev.Track < 0 {
				l.count[ev.Key] = 0
			} else if l.count[ev.Key] > 0 {
				l.count[ev.Key]--
			}
		}
	}
}

func (l *Lights) Reset() {
	l.count = [song.NumKeys]int{}
}

// Lit reports whether the song is sounding k and the track that started it.
func (l *Lights) Lit(k song.Key) (int, bool) {
	if k >= song.NumKeys || l.count[k] == 0 {
		return 0, false
	}
	return l.track[k], true
}

// Toast is a short message shown over the waterfall for a while.
type Toast struct {
	Text  string
	Until time.Time
}

const ToastDuration = 1500 * time.Millisecond

// Show replaces the toast with the message for n.
func (t *Toast) Show(n keyfall.Notice, now time.Time) {
	t.Say(NoticeText(n), now)
}

// Say shows a plain message.
func (t *Toast) Say(text string, now time.Time) {
	t.Text = text
	t.Until = now.Add(ToastDuration)
}

// Current returns the text to display at now.
func (t *Toast) Current(now time.Time) string {
	if now.Before(t.Until) {
		return t.Text
	}
	return ""
}

func (t *Toast) Clear() { *t = Toast{} }

// NoticeText is the user-facing message for a playback notice.
func NoticeText(n keyfall.Notice) string {
	switch n.Kind {
	case keyfall.NoticeSpeed:
		return fmt.Sprintf("Speed %.2fx", n.Speed)
	case keyfall.NoticeOffset:
		return fmt.Sprintf("Offset %+dms", n.Offset.Milliseconds())
	case keyfall.NoticePaused:
		return "Paused"
	case keyfall.NoticeWaiting:
		names := make([]string, len(n.Keys))
		for i, k := range n.Keys {
			names[i] = KeyName(k)
		}
		return "Play " + strings.Join(names, " ")
	case keyfall.NoticeEnded:
		return "End of song"
	case keyfall.NoticeLooped:
		return "Looping"
	}
	return ""
}

// Clock formats a song position as m:ss.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
