package song

import (
	"errors"
	"testing"
	"time"
)

const ms = time.Millisecond

func TestNewOrdersNoteOffBeforeNoteOnAtSameTime(t *testing.T) {
	s, err := New([]Event{
		{Time: 0, Kind: NoteOn, Key: 60},
		{Time: 500 * ms, Kind: NoteOn, Key: 60},
		{Time: 500 * ms, Kind: NoteOff, Key: 60},
		{Time: 900 * ms, Kind: NoteOff, Key: 60},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	evs := s.Events()
	if evs[1].Kind != NoteOff || evs[2].Kind != NoteOn {
		t.Fatalf("tie order = %v,%v, want off,on", evs[1].Kind, evs[2].Kind)
	}
	if s.Duration() != 900*ms {
		t.Fatalf("duration = %v, want 900ms", s.Duration())
	}
}

func TestNewRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name   string
		events []Event
		want   error
	}{
		{"empty", nil, ErrEmptyDuration},
		{"zero duration", []Event{{Time: 0, Kind: NoteOn, Key: 1}}, ErrEmptyDuration},
		{"descending", []Event{{Time: 2 * ms, Kind: NoteOn, Key: 1}, {Time: ms, Kind: NoteOff, Key: 1}}, ErrNotAscending},
		{"negative", []Event{{Time: -ms, Kind: NoteOn, Key: 1}, {Time: ms, Kind: NoteOff, Key: 1}}, ErrNegativeTime},
		{"key", []Event{{Time: ms, Kind: NoteOn, Key: 200}}, ErrKeyRange},
		{"kind", []Event{{Time: ms, Key: 3}}, ErrBadKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.events)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	in := []Event{{Time: 0, Kind: NoteOn, Key: 60}, {Time: ms, Kind: NoteOff, Key: 60}}
	s, err := New(in)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	in[0].Key = 10
	if s.Events()[0].Key != 60 {
		t.Fatalf("song shares caller slice")
	}
}

func TestFromNotes(t *testing.T) {
	s, err := FromNotes([]Note{
		{Key: 64, Start: 250 * ms, End: 750 * ms, Track: 1},
		{Key: 60, Start: 0, End: 500 * ms},
	})
	if err != nil {
		t.Fatalf("from notes: %v", err)
	}
	want := []struct {
		at   time.Duration
		kind Kind
		key  Key
	}{
		{0, NoteOn, 60},
		{250 * ms, NoteOn, 64},
		{500 * ms, NoteOff, 60},
		{750 * ms, NoteOff, 64},
	}
	for i, w := range want {
		ev := s.Events()[i]
		if ev.Time != w.at || ev.Kind != w.kind || ev.Key != w.key {
			t.Fatalf("event %d = %+v, want %+v", i, ev, w)
		}
	}
	if s.Tracks() != 2 {
		t.Fatalf("tracks = %d, want 2", s.Tracks())
	}
	if _, err := FromNotes([]Note{{Key: 1, Start: ms, End: ms}}); !errors.Is(err, ErrNotAscending) {
		t.Fatalf("zero length note err = %v", err)
	}
}

func TestNotesPairsFirstInFirstOut(t *testing.T) {
	s, err := FromNotes([]Note{
		{Key: 60, Start: 0, End: 500 * ms, Velocity: 90},
		{Key: 60, Start: 200 * ms, End: 800 * ms},
	})
	if err != nil {
		t.Fatalf("from notes: %v", err)
	}
	notes := s.Notes()
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(notes))
	}
	if notes[0].End != 500*ms || notes[1].End != 800*ms {
		t.Fatalf("ends = %v, %v; want 500ms, 800ms", notes[0].End, notes[1].End)
	}
	if notes[0].Velocity != 90 || notes[1].Velocity != 100 {
		t.Fatalf("velocities = %d, %d", notes[0].Velocity, notes[1].Velocity)
	}

	s, err = New([]Event{
		{Time: 0, Kind: NoteOn, Key: 60},
		{Time: 500 * ms, Kind: NoteOn, Key: 62},
		{Time: time.Second, Kind: NoteOff, Key: 60},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := s.Notes()[1]; got.Key != 62 || got.End != time.Second {
		t.Fatalf("dangling note = %+v, want it closed at the song end", got)
	}
}
