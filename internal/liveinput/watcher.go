// Package liveinput connects to a MIDI keyboard and reports what the player
// presses. Devices may come and go while the program runs.
package liveinput

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var ErrNoDriver = errors.New("liveinput: MIDI input is not available in this build")

// Driver lists and opens MIDI inputs. The cgo build uses rtmidi.
type Driver interface {
	Inputs() ([]string, error)
	// Listen opens the named input and calls onNote for every note start
	// and end until stop is called. onErr reports a lost device.
	Listen(name string, onNote func(on bool, key, velocity uint8), onErr func(error)) (stop func(), err error)
	Close() error
}

type EventKind int

const (
	NoteOn EventKind = iota
	NoteOff
	Connected
	Disconnected
)

type Event struct {
	Kind     EventKind
	Key      uint8
	Velocity uint8
	Device   string
}

// DefaultExcluded are virtual or system ports never picked automatically.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

const DefaultRescan = time.Second

type Option func(*Watcher)

// WithPreferred sets name fragments picked first, in order.
func WithPreferred(patterns ...string) Option {
	return func(w *Watcher) { w.preferred = patterns }
}

func WithExcluded(patterns ...string) Option {
	return func(w *Watcher) { w.excluded = patterns }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

func WithRescan(d time.Duration) Option {
	return func(w *Watcher) { w.rescan = d }
}

// Watcher keeps one input connected, reconnecting when devices are
// plugged in or removed. Events are delivered on a buffered channel and
// dropped when the reader falls behind.
type Watcher struct {
	mu        sync.Mutex
	drv       Driver
	preferred []string
	excluded  []string
	rescan    time.Duration
	log       *slog.Logger
	stop      func()
	selected  string
	lastScan  time.Time
	events    chan Event
}

func NewWatcher(drv Driver, opts ...Option) *Watcher {
	w := &Watcher{
		drv:      drv,
		excluded: DefaultExcluded,
		rescan:   DefaultRescan,
		log:      slog.Default(),
		events:   make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Events() <-chan Event { return w.events }

// Device is the connected input name, empty when none.
func (w *Watcher) Device() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected
}

// Run polls for devices until ctx is done, then disconnects.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.rescan)
	defer t.Stop()
	w.Poll(time.Now())
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return ctx.Err()
		case now := <-t.C:
			w.Poll(now)
		}
	}
}

// Poll rescans when the rescan interval has passed: it drops a vanished
// device and connects to the best candidate when idle.
func (w *Watcher) Poll(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.lastScan.IsZero() && now.Sub(w.lastScan) < w.rescan {
		return
	}
	w.lastScan = now

	inputs := w.listInputs()
	if w.selected != "" {
		for _, name := range inputs {
			if name == w.selected {
				return
			}
		}
		w.log.Warn("midi device disappeared", "device", w.selected)
		w.disconnect()
		w.lastScan = time.Time{}
		return
	}
	name, ok := Pick(inputs, w.preferred)
	if !ok {
		return
	}
	if err := w.connect(name); err != nil {
		w.log.Error("midi connect failed", "device", name, "err", err)
	}
}

// Close disconnects the current device and closes the driver.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected != "" {
		w.disconnect()
	}
	return w.drv.Close()
}

func (w *Watcher) listInputs() []string {
	all, err := w.drv.Inputs()
	if err != nil {
		w.log.Error("midi list inputs failed", "err", err)
		return nil
	}
	var names []string
	for _, name := range all {
		if MatchesAny(name, w.excluded) {
			w.log.Debug("midi input excluded", "device", name)
			continue
		}
		names = append(names, name)
	}
	return names
}

func (w *Watcher) connect(name string) error {
	stop, err := w.drv.Listen(name, func(on bool, key, vel uint8) {
		kind := NoteOff
		if on {
			kind = NoteOn
		}
		w.send(Event{Kind: kind, Key: key, Velocity: vel, Device: name})
	}, func(listenErr error) {
		w.log.Warn("midi listener error", "device", name, "err", listenErr)
		// The driver calls this from its own goroutine.
		go func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.selected == name {
				w.disconnect()
				w.lastScan = time.Time{}
			}
		}()
	})
	if err != nil {
		return fmt.Errorf("listen %q: %w", name, err)
	}
	w.stop = stop
	w.selected = name
	w.log.Info("midi connected", "device", name)
	w.send(Event{Kind: Connected, Device: name})
	return nil
}

func (w *Watcher) disconnect() {
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	name := w.selected
	w.selected = ""
	w.send(Event{Kind: Disconnected, Device: name})
}

func (w *Watcher) send(ev Event) {
	select {
	case w.events <- ev:
	default:
		// Channel full; drop event
	}
}

// Pick chooses an input: the first match of the preferred patterns in
// order, or the only input when there is exactly one.
func Pick(inputs, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range inputs {
			if containsFold(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

// MatchesAny reports whether name contains any pattern, ignoring case.
func MatchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsFold(name, pat) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
