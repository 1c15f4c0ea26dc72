package keyfall

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	intclock "github.com/cbegin/keyfall-go/internal/clock"
	intcursor "github.com/cbegin/keyfall-go/internal/cursor"
	intplay "github.com/cbegin/keyfall-go/internal/playalong"
	intsong "github.com/cbegin/keyfall-go/internal/song"
	"github.com/cbegin/keyfall-go/internal/xmath"
)

// Consumer receives every tick's render time and due events. Renderers
// implement it independently; the controller knows nothing else about them.
type Consumer interface {
	Consume(t time.Duration, events []intsong.Event)
}

// Resetter is implemented by consumers that want to drop all highlighting
// when playback reaches the end of the song.
type Resetter interface {
	Reset()
}

type NoticeKind int

const (
	NoticeSpeed NoticeKind = iota
	NoticeOffset
	NoticePaused
	NoticeResumed
	NoticeSeeked
	NoticeWaiting // play-along stalled on Keys
	NoticeEnded
	NoticeLooped
)

// Notice carries user-visible feedback from Watch().
type Notice struct {
	Kind   NoticeKind
	Speed  float64
	Offset time.Duration
	Time   time.Duration
	Keys   []intsong.Key
}

type Option func(*controllerConfig)

type controllerConfig struct {
	consumers []Consumer
	logger    *slog.Logger
	keyMap    KeyMap
	sessionID string
}

func defaultControllerConfig() controllerConfig {
	return controllerConfig{logger: slog.Default(), keyMap: DefaultKeyMap()}
}

func WithConsumers(consumers ...Consumer) Option {
	return func(cfg *controllerConfig) {
		cfg.consumers = append(cfg.consumers, consumers...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *controllerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithKeyMap replaces the computer-keyboard to piano-key mapping.
func WithKeyMap(m KeyMap) Option {
	return func(cfg *controllerConfig) {
		cfg.keyMap = m
	}
}

// WithSessionID tags log lines; a random id is used otherwise.
func WithSessionID(id string) Option {
	return func(cfg *controllerConfig) {
		cfg.sessionID = id
	}
}

var (
	ErrNilSong   = errors.New("song must not be nil")
	ErrNilConfig = errors.New("config must not be nil")
)

// Controller owns song time for one loaded song. All methods are safe to
// call from input callbacks and the frame loop; they serialize on one mutex
// and none of them blocks.
type Controller struct {
	mu        sync.Mutex
	song      *intsong.Song
	cfg       *Config
	clock     *intclock.Clock
	cursor    *intcursor.Cursor
	gate      intplay.Gate
	keys      intplay.KeyState
	req       intplay.Requirement
	pending   []intsong.Event // implicit note offs from seeks, sent on the next tick
	waiting   bool
	ended     bool
	rewind    rewindState
	keyMap    KeyMap
	consumers []Consumer
	log       *slog.Logger
	sessionID string
	eventCh   chan Notice
	eventChMu sync.Mutex
}

func New(s *intsong.Song, cfg *Config, opts ...Option) (*Controller, error) {
	if s == nil {
		return nil, ErrNilSong
	}
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cc := defaultControllerConfig()
	for _, opt := range opts {
		opt(&cc)
	}
	if cc.sessionID == "" {
		cc.sessionID = uuid.NewString()
	}
	values := cfg.Snapshot()
	c := &Controller{
		song:      s,
		cfg:       cfg,
		clock:     intclock.New(values.LeadIn),
		cursor:    intcursor.New(s),
		keyMap:    cc.keyMap,
		consumers: cc.consumers,
		log:       cc.logger.With("session", cc.sessionID),
		sessionID: cc.sessionID,
	}
	c.refreshRequirement(values.PlayAlong)
	c.log.Info("song loaded", "events", s.Len(), "duration", s.Duration(), "lead_in", values.LeadIn)
	return c, nil
}

func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) Config() *Config { return c.cfg }

func (c *Controller) Song() *intsong.Song { return c.song }

// Tick advances playback by a wall-clock delta and returns the events that
// became due, in order. It returns false once the song has finished and
// nothing was dispatched, telling renderers to reset to idle.
func (c *Controller) Tick(wall time.Duration) ([]intsong.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.cfg.Snapshot()
	c.applyRewind(wall)

	due := c.pending
	c.pending = nil
	if !c.clock.Paused() {
		due = append(due, c.advance(intclock.Scale(wall, cfg.Speed), cfg)...)
	}

	if c.cursor.Done() && len(due) == 0 {
		if cfg.Loop && !cfg.PlayAlong && !c.clock.Paused() {
			due = c.seekLocked(0)
			c.releaseFile(due)
			c.log.Debug("song looped")
			c.sendEvent(Notice{Kind: NoticeLooped})
			c.deliver(due)
			return due, true
		}
		if !c.ended {
			c.ended = true
			c.log.Info("song ended", "time", c.clock.SongTime())
			c.sendEvent(Notice{Kind: NoticeEnded, Time: c.clock.SongTime()})
		}
		c.keys.Clear(intplay.SourceFile)
		for _, cs := range c.consumers {
			if r, ok := cs.(Resetter); ok {
				r.Reset()
			}
		}
		return nil, false
	}
	c.ended = false
	c.deliver(due)
	return due, true
}

// advance spends budget of song time, stopping at every requirement
// instant so a large delta can never skip a chord the user has not played.
func (c *Controller) advance(budget time.Duration, cfg ConfigValues) []intsong.Event {
	due := c.dispatchDue(cfg.PlayAlong)
	for budget > 0 {
		committed := c.clock.SongTime()
		limit := c.gate.MaxAllowedAdvance(committed, c.req, &c.keys)
		if !c.req.Empty() && c.req.At > committed {
			limit = min(limit, c.req.At-committed)
		}
		used := c.clock.Step(budget, limit)
		if used == 0 {
			break
		}
		budget -= used
		due = append(due, c.dispatchDue(cfg.PlayAlong)...)
	}
	c.noteWaiting()
	return due
}

// dispatchDue hands out the events due at the current song time. While the
// gate is closed the required NoteOns, and anything after them, stay
// pending. Nothing is due until the lead-in has elapsed.
func (c *Controller) dispatchDue(playAlong bool) []intsong.Event {
	c.refreshRequirement(playAlong)
	if c.clock.InLeadIn() {
		return nil
	}
	var hold func(intsong.Event) bool
	if !c.req.Empty() && !c.gate.Satisfied(c.req, &c.keys) {
		at := c.req.At
		hold = func(ev intsong.Event) bool {
			return ev.Kind == intsong.NoteOn && ev.Time >= at
		}
	}
	batch := c.cursor.EventsDueUntil(c.clock.SongTime(), hold)
	for _, ev := range batch {
		c.keys.Press(intplay.SourceFile, ev.Key, ev.Kind == intsong.NoteOn)
	}
	c.refreshRequirement(playAlong)
	return batch
}

func (c *Controller) refreshRequirement(playAlong bool) {
	at, keys, ok := c.cursor.NextNoteOns()
	if !ok {
		c.req = intplay.Requirement{}
		return
	}
	c.req = c.gate.RequiredKeys(playAlong, at, keys)
}

func (c *Controller) noteWaiting() {
	waiting := !c.req.Empty() && !c.clock.InLeadIn() &&
		c.req.At <= c.clock.SongTime() && !c.gate.Satisfied(c.req, &c.keys)
	if waiting == c.waiting {
		return
	}
	c.waiting = waiting
	if waiting {
		c.log.Debug("waiting for keys", "time", c.req.At, "keys", c.req.Keys)
		c.sendEvent(Notice{Kind: NoticeWaiting, Time: c.req.At, Keys: c.req.Keys})
	} else {
		c.log.Debug("play-along released", "time", c.clock.SongTime())
	}
}

func (c *Controller) deliver(events []intsong.Event) {
	t := c.clock.VisualTime(c.cfg.Snapshot().Offset)
	for _, cs := range c.consumers {
		cs.Consume(t, events)
	}
}

func (c *Controller) releaseFile(offs []intsong.Event) {
	for _, ev := range offs {
		c.keys.Press(intplay.SourceFile, ev.Key, false)
	}
}

func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseLocked()
}

func (c *Controller) pauseLocked() {
	if c.clock.Paused() {
		return
	}
	c.clock.Pause()
	c.sendEvent(Notice{Kind: NoticePaused, Time: c.clock.SongTime()})
}

func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumeLocked()
}

func (c *Controller) resumeLocked() {
	if !c.clock.Paused() {
		return
	}
	c.clock.Resume()
	c.sendEvent(Notice{Kind: NoticeResumed, Time: c.clock.SongTime()})
}

func (c *Controller) PauseResume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock.Paused() {
		c.resumeLocked()
	} else {
		c.pauseLocked()
	}
}

func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Paused()
}

// SeekToFraction jumps to f of the song, clamped to [0,1]. Keys left
// sounding are released on the next tick.
func (c *Controller) SeekToFraction(f float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Duration(xmath.Unit(f) * float64(c.song.Duration()))
	c.queueOffs(c.seekLocked(t))
}

// Seek jumps to song time t, clamped to the song.
func (c *Controller) Seek(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueOffs(c.seekLocked(xmath.Clamp(t, 0, c.song.Duration())))
}

func (c *Controller) seekLocked(t time.Duration) []intsong.Event {
	c.clock.SeekTo(t)
	offs := c.cursor.Reseek(t)
	c.refreshRequirement(c.cfg.Snapshot().PlayAlong)
	c.ended = false
	c.waiting = false
	c.log.Debug("seek", "time", t, "released", len(offs))
	c.sendEvent(Notice{Kind: NoticeSeeked, Time: t})
	return offs
}

// queueOffs merges seek releases into the pending batch, one per key.
func (c *Controller) queueOffs(offs []intsong.Event) {
	c.releaseFile(offs)
	var queued [intsong.NumKeys]bool
	for _, ev := range c.pending {
		queued[ev.Key] = true
	}
	for _, ev := range offs {
		if !queued[ev.Key] {
			c.pending = append(c.pending, ev)
		}
	}
}

func (c *Controller) AdjustSpeed(delta float64) float64 {
	speed := c.cfg.AdjustSpeed(delta)
	c.sendEvent(Notice{Kind: NoticeSpeed, Speed: speed})
	return speed
}

func (c *Controller) AdjustOffset(delta time.Duration) time.Duration {
	offset := c.cfg.AdjustOffset(delta)
	c.sendEvent(Notice{Kind: NoticeOffset, Offset: offset})
	return offset
}

// SetPlayAlong turns play-along on or off. Turning it off releases any
// stall immediately.
func (c *Controller) SetPlayAlong(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetPlayAlong(enabled)
	c.refreshRequirement(enabled)
	c.noteWaiting()
	c.log.Info("play-along changed", "enabled", enabled)
}

// PressKey records a key state change from one input source.
func (c *Controller) PressKey(src intplay.Source, key intsong.Key, down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys.Press(src, key, down)
}

// Pressed reports whether any source holds key.
func (c *Controller) Pressed(key intsong.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys.Pressed(key)
}

func (c *Controller) PressedBy(key intsong.Key, src intplay.Source) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys.PressedBy(key, src)
}

// Requirement returns the keys the user must hold for the next chord; empty
// when play-along is off.
func (c *Controller) Requirement() intplay.Requirement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

// Waiting reports whether playback is stalled on the current requirement.
func (c *Controller) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

func (c *Controller) SongTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.SongTime()
}

func (c *Controller) TimeWithoutLeadIn() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.TimeWithoutLeadIn()
}

// VisualTime is the time renderers map to pixels: negative during the
// lead-in and shifted by the playback offset.
func (c *Controller) VisualTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.VisualTime(c.cfg.Snapshot().Offset)
}

// Percentage is song progress in [0,1].
func (c *Controller) Percentage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return xmath.Unit(float64(c.clock.SongTime()) / float64(c.song.Duration()))
}

// Finished reports whether every event has been dispatched.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.Done()
}

// State is a consistent snapshot for status displays.
type State struct {
	Time       time.Duration
	Visual     time.Duration
	Duration   time.Duration
	Percentage float64
	Paused     bool
	Waiting    bool
	Finished   bool
	Config     ConfigValues
	Required   intplay.Requirement
	Pressed    []intsong.Key
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg := c.cfg.Snapshot()
	return State{
		Time:       c.clock.SongTime(),
		Visual:     c.clock.VisualTime(cfg.Offset),
		Duration:   c.song.Duration(),
		Percentage: xmath.Unit(float64(c.clock.SongTime()) / float64(c.song.Duration())),
		Paused:     c.clock.Paused(),
		Waiting:    c.waiting,
		Finished:   c.cursor.Done(),
		Config:     cfg,
		Required:   c.req,
		Pressed:    c.keys.PressedKeys(),
	}
}

// Watch returns a channel of notices: settings changes, pause, seek,
// play-along stalls and the end of the song. The channel is buffered
// (cap 16) and notices are dropped when it is full. Only the most recent
// Watch channel receives notices.
func (c *Controller) Watch() <-chan Notice {
	ch := make(chan Notice, 16)
	c.eventChMu.Lock()
	c.eventCh = ch
	c.eventChMu.Unlock()
	return ch
}

func (c *Controller) sendEvent(n Notice) {
	c.eventChMu.Lock()
	ch := c.eventCh
	c.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- n:
		default:
			// Channel full; drop notice
		}
	}
}
