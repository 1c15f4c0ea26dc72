package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"github.com/cbegin/keyfall-go"
	"github.com/cbegin/keyfall-go/internal/audio"
	"github.com/cbegin/keyfall-go/internal/liveinput"
	"github.com/cbegin/keyfall-go/internal/playalong"
	"github.com/cbegin/keyfall-go/internal/remote"
	"github.com/cbegin/keyfall-go/internal/settings"
	"github.com/cbegin/keyfall-go/internal/song"
	"github.com/cbegin/keyfall-go/internal/synth"
	"github.com/cbegin/keyfall-go/internal/view"
)

func init() {
	playbackFlags(playCmd)
	playCmd.Flags().Int("sample-rate", 48000, "audio sample rate")
	playCmd.Flags().String("remote", "", "serve the HTTP remote control on this address")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <file.mid>",
	Short: "Open the falling-notes player",
	Long: `Open the falling-notes player.

Keys:
  Space          pause / resume
  Up / Down      speed +/- 0.1 (shift: 0.5)
  - / +          offset -/+ 10ms (shift: 100ms)
  Left / Right   rewind / fast forward while held (shift: faster)
  A W S E D ...  play piano keys from the computer keyboard
  Esc            quit

Click or drag the bar at the top to seek.`,
	Args: exactArgs(1, "<file.mid>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		sng, _, err := loadSong(args[0], s)
		if err != nil {
			return err
		}
		g, err := newGame(cmd.Context(), filepath.Base(args[0]), sng, s)
		if err != nil {
			return err
		}
		defer g.Close()

		ebiten.SetWindowSize(windowW, windowH)
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
		ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
		ebiten.SetWindowTitle(fmt.Sprintf("keyfall - %s", g.title))
		if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
			return err
		}
		return nil
	},
}

type game struct {
	title   string
	ctl     *keyfall.Controller
	notices <-chan keyfall.Notice
	notes   []song.Note
	keyMap  keyfall.KeyMap
	lights  *view.Lights
	toast   view.Toast

	sink   *synth.Sink
	output *audio.Output

	midi   *liveinput.Watcher
	device string
	remote *remote.Server

	cancel      context.CancelFunc
	logSettings func(func())

	last      time.Time
	mouseDown bool
	mouseX    int
	mouseKey  int // piano key held with the mouse, -1 when none

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(parent context.Context, title string, sng *song.Song, s settings.Settings) (*game, error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sessionID := uuid.NewString()
	log := logger.With("session", sessionID)

	sink := synth.NewSink(s.SampleRate)
	sink.SetVolume(s.Volume)
	lights := &view.Lights{}
	km := keyMap(s)
	ctl, err := keyfall.New(sng, keyfall.NewConfig(configValues(s)),
		keyfall.WithConsumers(sink, lights),
		keyfall.WithLogger(logger),
		keyfall.WithKeyMap(km),
		keyfall.WithSessionID(sessionID),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	g := &game{
		title:       title,
		ctl:         ctl,
		notices:     ctl.Watch(),
		notes:       sng.Notes(),
		keyMap:      km,
		lights:      lights,
		sink:        sink,
		cancel:      cancel,
		logSettings: debounce.New(500 * time.Millisecond),
		mouseKey:    -1,
		textCache:   make(map[string]*ebiten.Image, 256),
		viewW:       windowW,
		viewH:       windowH,
	}

	out, err := audio.NewOutput(s.SampleRate, sink, 40*time.Millisecond)
	if err != nil {
		log.Warn("audio disabled", "err", err)
	} else {
		g.output = out
		out.Play()
	}

	if drv, err := liveinput.NewDriver(); err != nil {
		log.Warn("midi input disabled", "err", err)
	} else {
		opts := []liveinput.Option{liveinput.WithLogger(log), liveinput.WithPreferred(s.MIDI.Preferred...)}
		if len(s.MIDI.Excluded) > 0 {
			opts = append(opts, liveinput.WithExcluded(s.MIDI.Excluded...))
		}
		g.midi = liveinput.NewWatcher(drv, opts...)
		go g.midi.Run(ctx)
	}

	if s.Remote.Addr != "" {
		g.remote = remote.New(g.status, remote.WithLogger(log), remote.WithAllowedOrigins(s.Remote.AllowedOrigins...))
		go func() {
			if err := g.remote.ListenAndServe(ctx, s.Remote.Addr); err != nil {
				log.Error("remote stopped", "err", err)
			}
		}()
	}
	return g, nil
}

func (g *game) Close() {
	g.cancel()
	if g.output != nil {
		_ = g.output.Close()
	}
}

func (g *game) Update() error {
	now := time.Now()
	if g.last.IsZero() {
		g.last = now
	}
	wall := now.Sub(g.last)
	g.last = now

	if !g.handleKeys() {
		return ebiten.Termination
	}
	g.handleMouse()
	g.pollMIDI()
	g.pollRemote()

	g.ctl.Tick(wall)
	g.pollNotices(now)
	return nil
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

// pollNotices turns playback notices into toasts and log lines.
func (g *game) pollNotices(now time.Time) {
	for {
		select {
		case n := <-g.notices:
			switch n.Kind {
			case keyfall.NoticeSpeed, keyfall.NoticeOffset:
				cfg := g.ctl.Config().Snapshot()
				g.logSettings(func() {
					logger.Info("settings changed", "speed", cfg.Speed, "offset", cfg.Offset)
				})
			case keyfall.NoticeResumed, keyfall.NoticeSeeked:
				g.toast.Clear()
				continue
			case keyfall.NoticeWaiting:
				// Drawn from the requirement while it lasts.
				continue
			}
			g.toast.Show(n, now)
		default:
			return
		}
	}
}

func (g *game) pollMIDI() {
	if g.midi == nil {
		return
	}
	for {
		select {
		case ev := <-g.midi.Events():
			switch ev.Kind {
			case liveinput.NoteOn, liveinput.NoteOff:
				on := ev.Kind == liveinput.NoteOn
				g.ctl.MIDIInput(on, song.Key(ev.Key))
				g.sink.Live(song.Key(ev.Key), ev.Velocity, on)
			case liveinput.Connected:
				g.device = ev.Device
				g.toast.Say("Connected "+ev.Device, time.Now())
			case liveinput.Disconnected:
				g.device = ""
				g.ctl.ReleaseSource(playalong.SourceUser)
				g.toast.Say("Disconnected "+ev.Device, time.Now())
			}
		default:
			return
		}
	}
}

func (g *game) pollRemote() {
	if g.remote == nil {
		return
	}
	for {
		select {
		case c := <-g.remote.Commands():
			remote.Apply(c, g.ctl)
		default:
			return
		}
	}
}

// status is called from the remote's HTTP goroutines.
func (g *game) status() remote.Status {
	st := g.ctl.State()
	req := make([]int, len(st.Required.Keys))
	for i, k := range st.Required.Keys {
		req[i] = int(k)
	}
	return remote.Status{
		Session:    g.ctl.SessionID(),
		Song:       g.title,
		Seconds:    st.Time.Seconds(),
		Duration:   st.Duration.Seconds(),
		Percentage: st.Percentage,
		Paused:     st.Paused,
		Waiting:    st.Waiting,
		Finished:   st.Finished,
		Speed:      st.Config.Speed,
		OffsetMS:   st.Config.Offset.Milliseconds(),
		PlayAlong:  st.Config.PlayAlong,
		Required:   req,
	}
}
