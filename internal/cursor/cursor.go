package cursor

import (
	"sort"
	"time"

	"github.com/cbegin/keyfall-go/internal/song"
)

// Cursor walks a song's events, handing out each one exactly once until the
// next Reseek.
type Cursor struct {
	events   []song.Event
	index    int
	sounding [song.NumKeys]int
}

func New(s *song.Song) *Cursor {
	return &Cursor{events: s.Events()}
}

// EventsDue returns every undispatched event with Time <= t, in order.
func (c *Cursor) EventsDue(t time.Duration) []song.Event {
	return c.EventsDueUntil(t, nil)
}

// EventsDueUntil is EventsDue, but stops before the first event hold
// reports true for. That event and everything after it stay pending.
func (c *Cursor) EventsDueUntil(t time.Duration, hold func(song.Event) bool) []song.Event {
	start := c.index
	end := start
	for end < len(c.events) && c.events[end].Time <= t {
		if hold != nil && hold(c.events[end]) {
			break
		}
		end++
	}
	if end == start {
		return nil
	}
	due := make([]song.Event, end-start)
	copy(due, c.events[start:end])
	for _, ev := range due {
		c.track(ev)
	}
	c.index = end
	return due
}

func (c *Cursor) track(ev song.Event) {
	switch ev.Kind {
	case song.NoteOn:
		c.sounding[ev.Key]++
	case song.NoteOff:
		if c.sounding[ev.Key] > 0 {
			c.sounding[ev.Key]--
		}
	}
}

// Reseek moves the cursor to the first event at or after t. Events exactly
// at t are left pending, so a chord starting on the seek target is struck
// by the next EventsDue(t) instead of being skipped. It returns a synthesized NoteOff, stamped t, for
// every key that was sounding before the seek or whose note spans t, so
// nothing is left rendered as held. Afterwards no key is sounding.
func (c *Cursor) Reseek(t time.Duration) []song.Event {
	if t < 0 {
		t = 0
	}
	idx := sort.Search(len(c.events), func(i int) bool { return c.events[i].Time >= t })

	var open [song.NumKeys]int
	for _, ev := range c.events[:idx] {
		switch ev.Kind {
		case song.NoteOn:
			open[ev.Key]++
		case song.NoteOff:
			if open[ev.Key] > 0 {
				open[ev.Key]--
			}
		}
	}
	var offs []song.Event
	for k := 0; k < song.NumKeys; k++ {
		if c.sounding[k] > 0 || open[k] > 0 {
			offs = append(offs, song.Event{Time: t, Kind: song.NoteOff, Key: song.Key(k), Track: -1})
		}
	}
	c.index = idx
	c.sounding = [song.NumKeys]int{}
	return offs
}

// Lookahead returns the next pending event.
func (c *Cursor) Lookahead() (song.Event, bool) {
	if c.index >= len(c.events) {
		return song.Event{}, false
	}
	return c.events[c.index], true
}

// NextNoteOns returns the time of the earliest pending NoteOn and the keys
// struck at that instant, ascending and without duplicates.
func (c *Cursor) NextNoteOns() (time.Duration, []song.Key, bool) {
	i := c.index
	for i < len(c.events) && c.events[i].Kind != song.NoteOn {
		i++
	}
	if i >= len(c.events) {
		return 0, nil, false
	}
	at := c.events[i].Time
	var seen [song.NumKeys]bool
	var keys []song.Key
	for ; i < len(c.events) && c.events[i].Time == at; i++ {
		ev := c.events[i]
		if ev.Kind == song.NoteOn && !seen[ev.Key] {
			seen[ev.Key] = true
			keys = append(keys, ev.Key)
		}
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	return at, keys, true
}

// Sounding reports whether key has a dispatched NoteOn without its NoteOff.
func (c *Cursor) Sounding(key song.Key) bool {
	return key < song.NumKeys && c.sounding[key] > 0
}

// SoundingKeys lists the sounding keys in ascending order.
func (c *Cursor) SoundingKeys() []song.Key {
	var keys []song.Key
	for k, n := range c.sounding {
		if n > 0 {
			keys = append(keys, song.Key(k))
		}
	}
	return keys
}

func (c *Cursor) Index() int { return c.index }

// Done reports whether every event has been dispatched.
func (c *Cursor) Done() bool { return c.index >= len(c.events) }
