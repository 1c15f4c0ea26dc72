package liveinput

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	inputs  []string
	onNote  func(on bool, key, vel uint8)
	onErr   func(error)
	opened  []string
	stopped int
	closed  bool
	failOn  string
}

func (f *fakeDriver) Inputs() ([]string, error) { return f.inputs, nil }

func (f *fakeDriver) Listen(name string, onNote func(bool, uint8, uint8), onErr func(error)) (func(), error) {
	if name == f.failOn {
		return nil, errors.New("busy")
	}
	f.opened = append(f.opened, name)
	f.onNote, f.onErr = onNote, onErr
	return func() { f.stopped++ }, nil
}

func (f *fakeDriver) Close() error {
	f.closed = true
	return nil
}

func next(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	default:
		t.Fatalf("no event queued")
		return Event{}
	}
}

func TestPickPrefersPatternsInOrder(t *testing.T) {
	inputs := []string{"USB Keystation", "Novation Launchkey MIDI", "Roland FP-30"}
	name, ok := Pick(inputs, []string{"launchkey", "roland"})
	assert.True(t, ok)
	assert.Equal(t, "Novation Launchkey MIDI", name)

	_, ok = Pick(inputs, nil)
	assert.False(t, ok, "ambiguous inputs without preference")

	name, ok = Pick([]string{"Digital Piano"}, nil)
	assert.True(t, ok)
	assert.Equal(t, "Digital Piano", name)
}

func TestWatcherConnectsAndForwardsNotes(t *testing.T) {
	drv := &fakeDriver{inputs: []string{"Midi Through Port-0", "Digital Piano"}}
	w := NewWatcher(drv)
	now := time.Now()
	w.Poll(now)

	require.Equal(t, []string{"Digital Piano"}, drv.opened)
	assert.Equal(t, "Digital Piano", w.Device())
	assert.Equal(t, Connected, next(t, w).Kind)

	drv.onNote(true, 60, 90)
	drv.onNote(false, 60, 0)
	ev := next(t, w)
	assert.Equal(t, Event{Kind: NoteOn, Key: 60, Velocity: 90, Device: "Digital Piano"}, ev)
	assert.Equal(t, NoteOff, next(t, w).Kind)
}

func TestWatcherDropsVanishedDevice(t *testing.T) {
	drv := &fakeDriver{inputs: []string{"Digital Piano"}}
	w := NewWatcher(drv, WithRescan(time.Second))
	now := time.Now()
	w.Poll(now)
	next(t, w)

	drv.inputs = nil
	w.Poll(now.Add(100 * time.Millisecond))
	assert.Equal(t, "Digital Piano", w.Device(), "rescan ran before the interval elapsed")

	w.Poll(now.Add(2 * time.Second))
	assert.Empty(t, w.Device())
	assert.Equal(t, 1, drv.stopped)
	assert.Equal(t, Disconnected, next(t, w).Kind)

	drv.inputs = []string{"Digital Piano"}
	w.Poll(now.Add(2*time.Second + time.Millisecond))
	assert.Equal(t, "Digital Piano", w.Device(), "should reconnect immediately after a loss")
}

func TestWatcherConnectFailureIsRetried(t *testing.T) {
	drv := &fakeDriver{inputs: []string{"Digital Piano"}, failOn: "Digital Piano"}
	w := NewWatcher(drv)
	now := time.Now()
	w.Poll(now)
	assert.Empty(t, w.Device())

	drv.failOn = ""
	w.Poll(now.Add(DefaultRescan))
	assert.Equal(t, "Digital Piano", w.Device())

	require.NoError(t, w.Close())
	assert.True(t, drv.closed)
	assert.Empty(t, w.Device())
}
