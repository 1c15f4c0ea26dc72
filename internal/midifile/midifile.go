// Package midifile loads Standard MIDI Files into songs.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/keyfall-go/internal/song"
)

// DrumChannel is the General MIDI percussion channel (10, zero based).
const DrumChannel = 9

var ErrNoNotes = errors.New("midifile: file has no notes")

// Options filter what is kept from the file.
type Options struct {
	Tracks    []int // keep only these track numbers; empty keeps all
	SkipDrums bool  // drop the percussion channel
}

// Info summarizes a loaded file.
type Info struct {
	Tracks    int
	Notes     int
	Unmatched int // note offs without a note on, and note ons never closed
}

// Load reads the file at path.
func Load(path string, opts Options) (*song.Song, Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("midifile: read %q: %w", path, err)
	}
	s, info, err := Read(bytes.NewReader(data), opts)
	if err != nil {
		return nil, info, fmt.Errorf("midifile: %q: %w", path, err)
	}
	return s, info, nil
}

// Read decodes an SMF stream. Overlapping notes on the same key are
// matched first in, first out; notes still open at the end of the file are
// closed shortly after the last event.
func Read(r io.Reader, opts Options) (s *song.Song, info Info, err error) {
	// The smf decoder can panic on malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			s = nil
			err = fmt.Errorf("midifile: malformed file: %v", rec)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, info, fmt.Errorf("midifile: read: %w", err)
	}
	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, info, fmt.Errorf("midifile: parse: %w", err)
	}
	info.Tracks = len(parsed.Tracks)

	keep := func(track int, ch uint8) bool {
		if opts.SkipDrums && ch == DrumChannel {
			return false
		}
		if len(opts.Tracks) == 0 {
			return true
		}
		for _, t := range opts.Tracks {
			if t == track {
				return true
			}
		}
		return false
	}

	var events []song.Event
	var last time.Duration
	tr := smf.ReadTracksFrom(bytes.NewReader(data)).Do(func(te smf.TrackEvent) {
		at := time.Duration(te.AbsMicroSeconds) * time.Microsecond
		var ch, key, vel uint8
		switch {
		case te.Message.GetNoteStart(&ch, &key, &vel):
			if !keep(te.TrackNo, ch) {
				return
			}
			events = append(events, song.Event{Time: at, Kind: song.NoteOn, Key: song.Key(key), Track: te.TrackNo, Channel: ch, Velocity: vel})
		case te.Message.GetNoteEnd(&ch, &key):
			if !keep(te.TrackNo, ch) {
				return
			}
			events = append(events, song.Event{Time: at, Kind: song.NoteOff, Key: song.Key(key), Track: te.TrackNo, Channel: ch})
		default:
			return
		}
		last = max(last, at)
	})
	if err := tr.Error(); err != nil {
		return nil, info, fmt.Errorf("midifile: tracks: %w", err)
	}

	// Tracks are delivered one after another; merge them into time order.
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	events, info.Unmatched = pairNotes(events, last)
	for _, ev := range events {
		if ev.Kind == song.NoteOn {
			info.Notes++
		}
	}
	if info.Notes == 0 {
		return nil, info, ErrNoNotes
	}
	s, err = song.New(events)
	if err != nil {
		return nil, info, err
	}
	return s, info, nil
}

// tailGap is how long after the last event notes left open are released.
const tailGap = 100 * time.Millisecond

// pairNotes drops note offs that close nothing and zero-length notes, and
// releases notes left open just after end, so every key is eventually
// released.
func pairNotes(events []song.Event, end time.Duration) ([]song.Event, int) {
	type voiceKey struct {
		track int
		ch    uint8
		key   song.Key
	}
	open := map[voiceKey][]int{}
	drop := make([]bool, len(events))
	unmatched := 0
	for i, ev := range events {
		k := voiceKey{ev.Track, ev.Channel, ev.Key}
		switch ev.Kind {
		case song.NoteOn:
			open[k] = append(open[k], i)
		case song.NoteOff:
			q := open[k]
			if len(q) == 0 {
				unmatched++
				drop[i] = true
				continue
			}
			if events[q[0]].Time == ev.Time {
				drop[q[0]], drop[i] = true, true
			}
			open[k] = q[1:]
		}
	}
	out := make([]song.Event, 0, len(events))
	for i, ev := range events {
		if !drop[i] {
			out = append(out, ev)
		}
	}
	var tails []song.Event
	for k, q := range open {
		for range q {
			unmatched++
			tails = append(tails, song.Event{Time: end + tailGap, Kind: song.NoteOff, Key: k.key, Track: k.track, Channel: k.ch})
		}
	}
	sort.Slice(tails, func(i, j int) bool { return tails[i].Key < tails[j].Key })
	return append(out, tails...), unmatched
}
