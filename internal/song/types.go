package song

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Key is a MIDI key number, 0..127.
type Key uint8

const NumKeys = 128

type Kind int

const (
	NoteOn Kind = iota + 1
	NoteOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "on"
	case NoteOff:
		return "off"
	default:
		return "unknown"
	}
}

type Event struct {
	Time     time.Duration
	Kind     Kind
	Key      Key
	Track    int
	Channel  uint8
	Velocity uint8
}

// Note is a convenience description of a held key, expanded into a
// NoteOn/NoteOff pair by FromNotes.
type Note struct {
	Key      Key
	Start    time.Duration
	End      time.Duration
	Track    int
	Velocity uint8
}

var (
	ErrEmptyDuration = errors.New("song duration must be positive")
	ErrNotAscending  = errors.New("events are not in ascending time order")
	ErrNegativeTime  = errors.New("event time is negative")
	ErrKeyRange      = errors.New("event key out of range")
	ErrBadKind       = errors.New("event kind must be note on or note off")
)

// Song is an immutable, time ascending event list.
type Song struct {
	events   []Event
	duration time.Duration
	tracks   int
}

// New validates events and returns a Song owning a copy of them. Events that
// share a timestamp are reordered so note offs come before note ons; any
// other ordering problem is rejected.
func New(events []Event) (*Song, error) {
	for i, ev := range events {
		if ev.Time < 0 {
			return nil, fmt.Errorf("event %d: %w", i, ErrNegativeTime)
		}
		if ev.Key >= NumKeys {
			return nil, fmt.Errorf("event %d key %d: %w", i, ev.Key, ErrKeyRange)
		}
		if ev.Kind != NoteOn && ev.Kind != NoteOff {
			return nil, fmt.Errorf("event %d: %w", i, ErrBadKind)
		}
		if i > 0 && ev.Time < events[i-1].Time {
			return nil, fmt.Errorf("event %d at %v after %v: %w", i, ev.Time, events[i-1].Time, ErrNotAscending)
		}
	}
	if len(events) == 0 || events[len(events)-1].Time <= 0 {
		return nil, ErrEmptyDuration
	}
	own := make([]Event, len(events))
	copy(own, events)
	sort.SliceStable(own, func(i, j int) bool {
		if own[i].Time != own[j].Time {
			return own[i].Time < own[j].Time
		}
		return own[i].Kind == NoteOff && own[j].Kind == NoteOn
	})
	tracks := 0
	for _, ev := range own {
		if ev.Track+1 > tracks {
			tracks = ev.Track + 1
		}
	}
	return &Song{events: own, duration: own[len(own)-1].Time, tracks: tracks}, nil
}

// FromNotes expands notes into events, orders them by time and builds a Song.
func FromNotes(notes []Note) (*Song, error) {
	events := make([]Event, 0, len(notes)*2)
	for _, n := range notes {
		if n.End <= n.Start {
			return nil, fmt.Errorf("note %d ends at %v, not after start %v: %w", n.Key, n.End, n.Start, ErrNotAscending)
		}
		vel := n.Velocity
		if vel == 0 {
			vel = 100
		}
		events = append(events,
			Event{Time: n.Start, Kind: NoteOn, Key: n.Key, Track: n.Track, Velocity: vel},
			Event{Time: n.End, Kind: NoteOff, Key: n.Key, Track: n.Track},
		)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return New(events)
}

// Events returns the event list. Callers must not modify it.
func (s *Song) Events() []Event { return s.events }

func (s *Song) Len() int { return len(s.events) }

// Duration is the time of the last event.
func (s *Song) Duration() time.Duration { return s.duration }

func (s *Song) Tracks() int { return s.tracks }

// Notes pairs each NoteOn with the next NoteOff of the same key and track,
// first in first out. NoteOns never closed end at the song duration.
func (s *Song) Notes() []Note {
	type slot struct {
		track int
		key   Key
	}
	open := make(map[slot][]int)
	notes := make([]Note, 0, len(s.events)/2)
	for _, ev := range s.events {
		k := slot{ev.Track, ev.Key}
		switch ev.Kind {
		case NoteOn:
			open[k] = append(open[k], len(notes))
			notes = append(notes, Note{Key: ev.Key, Start: ev.Time, End: s.duration, Track: ev.Track, Velocity: ev.Velocity})
		case NoteOff:
			if q := open[k]; len(q) > 0 {
				notes[q[0]].End = ev.Time
				open[k] = q[1:]
			}
		}
	}
	return notes
}
