package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbegin/keyfall-go"
	"github.com/cbegin/keyfall-go/internal/midifile"
	"github.com/cbegin/keyfall-go/internal/settings"
	"github.com/cbegin/keyfall-go/internal/song"
)

var (
	debug        bool
	settingsPath string
	tracks       []int
)

// logger is shared by every subcommand; initLogger replaces it once flags
// are parsed.
var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:   "keyfall",
	Short: "Falling-notes piano player with play-along",
	Long: `keyfall plays a MIDI file as a falling-notes waterfall over a piano
keyboard. In play-along mode the song waits until you press the keys of
the next chord on a MIDI keyboard or the computer keyboard.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(debug)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging with source locations")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "settings file (default: user config dir)")
	rootCmd.PersistentFlags().IntSliceVar(&tracks, "track", nil, "only use these track numbers")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// loadSettings reads the settings file and applies the flags the user set
// on cmd over it.
func loadSettings(cmd *cobra.Command) (settings.Settings, error) {
	path := settingsPath
	if path == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			logger.Warn("no user config dir, using defaults", "err", err)
			return applyFlags(cmd, settings.Default())
		}
		path = p
	}
	s, err := settings.Load(path)
	if err != nil {
		return s, err
	}
	logger.Debug("settings loaded", "path", path)
	return applyFlags(cmd, s)
}

func applyFlags(cmd *cobra.Command, s settings.Settings) (settings.Settings, error) {
	f := cmd.Flags()
	if f.Changed("speed") {
		s.Speed, _ = f.GetFloat64("speed")
	}
	if f.Changed("offset") {
		s.Offset, _ = f.GetDuration("offset")
	}
	if f.Changed("lead-in") {
		s.LeadIn, _ = f.GetDuration("lead-in")
	}
	if f.Changed("play-along") {
		s.PlayAlong, _ = f.GetBool("play-along")
	}
	if f.Changed("loop") {
		s.Loop, _ = f.GetBool("loop")
	}
	if f.Changed("sample-rate") {
		s.SampleRate, _ = f.GetInt("sample-rate")
	}
	if f.Changed("skip-drums") {
		s.MIDI.SkipDrums, _ = f.GetBool("skip-drums")
	}
	if f.Changed("remote") {
		s.Remote.Addr, _ = f.GetString("remote")
	}
	return s, s.Validate()
}

// playbackFlags registers the flags that override playback settings.
func playbackFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("speed", 1, "playback speed multiplier")
	f.Duration("offset", 0, "visual offset added to song time")
	f.Duration("lead-in", settings.Default().LeadIn, "silence before the first note")
	f.Bool("play-along", false, "wait for the required keys before each chord")
	f.Bool("loop", false, "restart at the end of the song")
	f.Bool("skip-drums", false, "ignore the percussion channel")
}

func loadSong(path string, s settings.Settings) (*song.Song, midifile.Info, error) {
	sng, info, err := midifile.Load(path, midifile.Options{Tracks: tracks, SkipDrums: s.MIDI.SkipDrums})
	if err != nil {
		return nil, info, err
	}
	logger.Debug("midi file parsed", "path", path, "tracks", info.Tracks, "notes", info.Notes)
	if info.Unmatched > 0 {
		logger.Warn("unmatched note events", "count", info.Unmatched)
	}
	return sng, info, nil
}

func configValues(s settings.Settings) keyfall.ConfigValues {
	return keyfall.ConfigValues{
		Speed:     s.Speed,
		Offset:    s.Offset,
		LeadIn:    s.LeadIn,
		PlayAlong: s.PlayAlong,
		Loop:      s.Loop,
	}
}

// keyMap merges the settings key map over the default layout.
func keyMap(s settings.Settings) keyfall.KeyMap {
	m := keyfall.DefaultKeyMap()
	for name, key := range s.KeyMap {
		m[name] = song.Key(key)
	}
	return m
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s %s", cmd.CommandPath(), usage)
		}
		return nil
	}
}
