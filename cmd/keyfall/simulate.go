package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbegin/keyfall-go"
	"github.com/cbegin/keyfall-go/internal/playalong"
	"github.com/cbegin/keyfall-go/internal/song"
	"github.com/cbegin/keyfall-go/internal/view"
)

var (
	simStep     time.Duration
	simAutoplay bool
	simReaction time.Duration
)

func init() {
	playbackFlags(simulateCmd)
	simulateCmd.Flags().DurationVar(&simStep, "step", 16*time.Millisecond, "wall time per tick")
	simulateCmd.Flags().BoolVar(&simAutoplay, "autoplay", false, "press the required keys when play-along waits")
	simulateCmd.Flags().DurationVar(&simReaction, "reaction", 250*time.Millisecond, "autoplay delay before pressing")
	rootCmd.AddCommand(simulateCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <file.mid>",
	Short: "Run playback headless and print every dispatched event",
	Args:  exactArgs(1, "<file.mid>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if s.Speed <= 0 {
			return errors.New("simulate needs a positive speed")
		}
		if s.PlayAlong && !simAutoplay {
			return errors.New("play-along would wait forever; add --autoplay")
		}
		sng, _, err := loadSong(args[0], s)
		if err != nil {
			return err
		}
		cfg := keyfall.NewConfig(configValues(s))
		// A looping song never ends.
		cfg.SetLoop(false)
		ctl, err := keyfall.New(sng, cfg, keyfall.WithLogger(logger))
		if err != nil {
			return err
		}
		wall := simulate(cmd.OutOrStdout(), ctl, simStep, simAutoplay, simReaction)
		fmt.Fprintf(cmd.OutOrStdout(), "finished after %v wall time\n", wall)
		return nil
	},
}

// simulate ticks ctl until the song ends and returns the wall time spent.
// With autoplay the required keys are pressed reaction after a stall begins
// and released when the next one begins.
func simulate(out io.Writer, ctl *keyfall.Controller, step time.Duration, autoplay bool, reaction time.Duration) time.Duration {
	var (
		wall    time.Duration
		stalled time.Duration
		held    []song.Key
	)
	for {
		events, ok := ctl.Tick(step)
		wall += step
		for _, ev := range events {
			fmt.Fprintf(out, "%10.3fs  %-3s %-4s track %d\n", ev.Time.Seconds(), ev.Kind, view.KeyName(ev.Key), ev.Track)
		}
		if !ok {
			return wall
		}
		if !autoplay || !ctl.Waiting() {
			stalled = 0
			continue
		}
		stalled += step
		if stalled < reaction {
			continue
		}
		for _, k := range held {
			ctl.PressKey(playalong.SourceKeyboard, k, false)
		}
		held = ctl.Requirement().Keys
		for _, k := range held {
			ctl.PressKey(playalong.SourceKeyboard, k, true)
		}
		fmt.Fprintf(out, "%10.3fs  played %v after %v\n", ctl.SongTime().Seconds(), keyList(held), stalled)
		stalled = 0
	}
}

func keyList(keys []song.Key) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = view.KeyName(k)
	}
	return names
}
