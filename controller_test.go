package keyfall

import (
	"testing"
	"time"

	intplay "github.com/cbegin/keyfall-go/internal/playalong"
	intsong "github.com/cbegin/keyfall-go/internal/song"
)

const ms = time.Millisecond

type recorder struct {
	times  []time.Duration
	events []intsong.Event
	resets int
}

func (r *recorder) Consume(t time.Duration, events []intsong.Event) {
	r.times = append(r.times, t)
	r.events = append(r.events, events...)
}

func (r *recorder) Reset() { r.resets++ }

func on(key intsong.Key, at time.Duration) intsong.Event {
	return intsong.Event{Time: at, Kind: intsong.NoteOn, Key: key, Velocity: 100}
}

func off(key intsong.Key, at time.Duration) intsong.Event {
	return intsong.Event{Time: at, Kind: intsong.NoteOff, Key: key}
}

func newTestController(t *testing.T, v ConfigValues, events ...intsong.Event) (*Controller, *recorder) {
	t.Helper()
	s, err := intsong.New(events)
	if err != nil {
		t.Fatalf("new song: %v", err)
	}
	rec := &recorder{}
	c, err := New(s, NewConfig(v), WithConsumers(rec), WithSessionID("test"))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c, rec
}

func values(playAlong bool) ConfigValues {
	return ConfigValues{Speed: 1, PlayAlong: playAlong}
}

func assertEvents(t *testing.T, got []intsong.Event, want ...intsong.Event) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].Key != want[i].Key || got[i].Time != want[i].Time {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func drainNotices(ch <-chan Notice) []Notice {
	var out []Notice
	for {
		select {
		case n := <-ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

func hasNotice(ns []Notice, kind NoticeKind) bool {
	for _, n := range ns {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func TestNewRejectsNilArguments(t *testing.T) {
	s, err := intsong.New([]intsong.Event{on(60, 0), off(60, 10*ms)})
	if err != nil {
		t.Fatalf("new song: %v", err)
	}
	if _, err := New(nil, NewConfig(DefaultConfigValues())); err != ErrNilSong {
		t.Fatalf("err = %v, want ErrNilSong", err)
	}
	if _, err := New(s, nil); err != ErrNilConfig {
		t.Fatalf("err = %v, want ErrNilConfig", err)
	}
}

func TestTickDispatchesFreelyWithoutPlayAlong(t *testing.T) {
	c, rec := newTestController(t, values(false), on(60, 0), off(60, 500*ms))
	due, ok := c.Tick(600 * ms)
	if !ok {
		t.Fatalf("tick reported song finished")
	}
	assertEvents(t, due, on(60, 0), off(60, 500*ms))
	if got := c.SongTime(); got != 600*ms {
		t.Fatalf("song time = %v, want 600ms", got)
	}
	assertEvents(t, rec.events, on(60, 0), off(60, 500*ms))
}

func TestPlayAlongWaitsForRequiredKeys(t *testing.T) {
	c, _ := newTestController(t, values(true), on(60, 0), off(60, 500*ms))
	notices := c.Watch()

	due, ok := c.Tick(600 * ms)
	if !ok || len(due) != 0 {
		t.Fatalf("blocked tick = %v, %v; want no events", due, ok)
	}
	if got := c.SongTime(); got != 0 {
		t.Fatalf("song time = %v, want 0", got)
	}
	if !c.Waiting() {
		t.Fatalf("controller should be waiting on key 60")
	}
	req := c.Requirement()
	if req.At != 0 || len(req.Keys) != 1 || req.Keys[0] != 60 {
		t.Fatalf("requirement = %+v, want key 60 at 0", req)
	}
	ns := drainNotices(notices)
	if !hasNotice(ns, NoticeWaiting) {
		t.Fatalf("notices = %+v, want a waiting notice", ns)
	}

	c.MIDIInput(true, 60)
	due, ok = c.Tick(600 * ms)
	if !ok {
		t.Fatalf("tick reported song finished")
	}
	assertEvents(t, due, on(60, 0), off(60, 500*ms))
	if got := c.SongTime(); got != 600*ms {
		t.Fatalf("song time = %v, want 600ms", got)
	}
	if c.Waiting() {
		t.Fatalf("controller still waiting after key was held")
	}
}

func TestPlayAlongDoesNotSkipChordsOnLargeDelta(t *testing.T) {
	c, _ := newTestController(t, values(true),
		on(60, 0), off(60, 100*ms), on(64, 200*ms), off(64, 300*ms))
	c.PressKey(intplay.SourceUser, 60, true)

	due, _ := c.Tick(time.Second)
	assertEvents(t, due, on(60, 0), off(60, 100*ms))
	if got := c.SongTime(); got != 200*ms {
		t.Fatalf("song time = %v, want to stop at the next chord (200ms)", got)
	}
	if !c.Requirement().Contains(64) {
		t.Fatalf("requirement = %+v, want key 64", c.Requirement())
	}

	c.KeyboardInput(KeyEvent{Name: "D", Down: true}) // key 64
	due, _ = c.Tick(time.Second)
	assertEvents(t, due, on(64, 200*ms), off(64, 300*ms))
}

func TestLeadInDelaysFirstEvents(t *testing.T) {
	v := values(false)
	v.LeadIn = time.Second
	c, _ := newTestController(t, v, on(60, 0), off(60, 500*ms))

	due, _ := c.Tick(600 * ms)
	if len(due) != 0 {
		t.Fatalf("events during lead-in: %+v", due)
	}
	if got := c.VisualTime(); got != -400*ms {
		t.Fatalf("visual time = %v, want -400ms", got)
	}
	due, _ = c.Tick(600 * ms)
	assertEvents(t, due, on(60, 0))
	if got := c.SongTime(); got != 200*ms {
		t.Fatalf("song time = %v, want 200ms", got)
	}
}

func TestPauseFreezesPlayback(t *testing.T) {
	c, _ := newTestController(t, values(false), on(60, 0), off(60, 500*ms))
	notices := c.Watch()
	c.Tick(100 * ms)
	c.Pause()
	c.Pause()
	due, ok := c.Tick(time.Second)
	if !ok || len(due) != 0 {
		t.Fatalf("paused tick = %v, %v; want no events", due, ok)
	}
	if got := c.SongTime(); got != 100*ms {
		t.Fatalf("song time = %v, want 100ms", got)
	}
	paused := 0
	for _, n := range drainNotices(notices) {
		if n.Kind == NoticePaused {
			paused++
		}
	}
	if paused != 1 {
		t.Fatalf("paused notices = %d, want 1", paused)
	}
	c.PauseResume()
	if c.Paused() {
		t.Fatalf("PauseResume did not resume")
	}
	due, _ = c.Tick(400 * ms)
	assertEvents(t, due, off(60, 500*ms))
}

func TestSeekReleasesSoundingKeys(t *testing.T) {
	c, rec := newTestController(t, values(false),
		on(60, 0), off(60, time.Second), on(62, 2*time.Second), off(62, 3*time.Second))
	c.Tick(500 * ms)
	if !c.PressedBy(60, intplay.SourceFile) {
		t.Fatalf("key 60 should be held by the file")
	}

	c.Seek(2 * time.Second)
	if c.Pressed(60) {
		t.Fatalf("seek left key 60 pressed")
	}
	due, _ := c.Tick(0)
	assertEvents(t, due, off(60, 2*time.Second), on(62, 2*time.Second))
	if due[0].Track != -1 {
		t.Fatalf("implicit note off track = %d, want -1", due[0].Track)
	}
	if !c.PressedBy(62, intplay.SourceFile) {
		t.Fatalf("key 62 should be held by the file")
	}
	if got := rec.times[len(rec.times)-1]; got != 2*time.Second {
		t.Fatalf("consumer time = %v, want 2s", got)
	}
}

func TestSeekToFractionClamps(t *testing.T) {
	c, _ := newTestController(t, values(false), on(60, 0), off(60, time.Second))
	c.SeekToFraction(0.25)
	if got := c.SongTime(); got != 250*ms {
		t.Fatalf("song time = %v, want 250ms", got)
	}
	c.SeekToFraction(7)
	if got := c.Percentage(); got != 1 {
		t.Fatalf("percentage = %v, want 1", got)
	}
	c.SeekToFraction(-1)
	if got := c.SongTime(); got != 0 {
		t.Fatalf("song time = %v, want 0", got)
	}
	// Key 60 spanned both earlier seek targets; one release is queued.
	due, _ := c.Tick(0)
	assertEvents(t, due, off(60, 250*ms), on(60, 0))
}

func TestSongEndReturnsFalseAndResets(t *testing.T) {
	c, rec := newTestController(t, values(false), on(60, 0), off(60, 100*ms))
	notices := c.Watch()
	if _, ok := c.Tick(200 * ms); !ok {
		t.Fatalf("tick dispatching the last events reported finished")
	}
	due, ok := c.Tick(10 * ms)
	if ok || due != nil {
		t.Fatalf("tick after end = %v, %v; want nil, false", due, ok)
	}
	if rec.resets != 1 {
		t.Fatalf("resets = %d, want 1", rec.resets)
	}
	if !c.Finished() {
		t.Fatalf("controller should be finished")
	}
	if !hasNotice(drainNotices(notices), NoticeEnded) {
		t.Fatalf("missing end notice")
	}
	c.Tick(10 * ms)
	if hasNotice(drainNotices(notices), NoticeEnded) {
		t.Fatalf("end notice sent twice")
	}
}

func TestLoopRestartsWithoutPlayAlong(t *testing.T) {
	v := values(false)
	v.Loop = true
	c, _ := newTestController(t, v, on(60, 0), off(60, 100*ms))
	c.Tick(200 * ms)
	if _, ok := c.Tick(10 * ms); !ok {
		t.Fatalf("looping song reported finished")
	}
	if got := c.SongTime(); got != 0 {
		t.Fatalf("song time after loop = %v, want 0", got)
	}
	due, _ := c.Tick(0)
	assertEvents(t, due, on(60, 0))

	c.Config().SetPlayAlong(true)
	c.PressKey(intplay.SourceUser, 60, true)
	c.Tick(time.Second)
	if _, ok := c.Tick(10 * ms); ok {
		t.Fatalf("song looped while play-along was on")
	}
}

func TestConsumersReceiveRenderTime(t *testing.T) {
	v := values(false)
	v.Offset = 250 * ms
	c, rec := newTestController(t, v, on(60, 0), off(60, time.Second))
	c.Tick(100 * ms)
	if got := rec.times[0]; got != 350*ms {
		t.Fatalf("render time = %v, want 350ms", got)
	}
	if got := c.TimeWithoutLeadIn(); got != 100*ms {
		t.Fatalf("time without lead-in = %v, want 100ms", got)
	}
}

func TestAdjustSpeedFloorsAtZero(t *testing.T) {
	c, _ := newTestController(t, values(false), on(60, 0), off(60, time.Second))
	notices := c.Watch()
	if got := c.AdjustSpeed(-5); got != 0 {
		t.Fatalf("speed = %v, want 0", got)
	}
	c.Tick(time.Second)
	if got := c.SongTime(); got != 0 {
		t.Fatalf("song time at speed 0 = %v, want 0", got)
	}
	c.AdjustSpeed(2)
	c.Tick(100 * ms)
	if got := c.SongTime(); got != 200*ms {
		t.Fatalf("song time = %v, want 200ms", got)
	}
	if !hasNotice(drainNotices(notices), NoticeSpeed) {
		t.Fatalf("missing speed notice")
	}
}

func TestDisablingPlayAlongReleasesStall(t *testing.T) {
	c, _ := newTestController(t, values(true), on(60, 0), off(60, 500*ms))
	c.Tick(100 * ms)
	if !c.Waiting() {
		t.Fatalf("expected a stall on key 60")
	}
	c.SetPlayAlong(false)
	if c.Waiting() || !c.Requirement().Empty() {
		t.Fatalf("stall survived disabling play-along")
	}
	due, _ := c.Tick(600 * ms)
	assertEvents(t, due, on(60, 0), off(60, 500*ms))

	st := c.State()
	if st.Time != 600*ms || st.Config.PlayAlong || st.Percentage != 1 {
		t.Fatalf("state = %+v", st)
	}
}
