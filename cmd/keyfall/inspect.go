package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cbegin/keyfall-go/internal/song"
	"github.com/cbegin/keyfall-go/internal/view"
)

func init() {
	playbackFlags(inspectCmd)
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Print a summary of a MIDI file",
	Args:  exactArgs(1, "<file.mid>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		sng, info, err := loadSong(args[0], s)
		if err != nil {
			return err
		}
		inspect(cmd, sng, info.Tracks, info.Unmatched)
		return nil
	},
}

func inspect(cmd *cobra.Command, s *song.Song, trackCount, unmatched int) {
	notes := s.Notes()
	perTrack := make(map[int]int)
	lo, hi := song.Key(song.NumKeys-1), song.Key(0)
	for _, n := range notes {
		perTrack[n.Track]++
		lo = min(lo, n.Key)
		hi = max(hi, n.Key)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "duration:  %v\n", s.Duration())
	fmt.Fprintf(out, "tracks:    %d\n", trackCount)
	fmt.Fprintf(out, "notes:     %d\n", len(notes))
	if len(notes) > 0 {
		fmt.Fprintf(out, "range:     %s - %s\n", view.KeyName(lo), view.KeyName(hi))
	}
	if unmatched > 0 {
		fmt.Fprintf(out, "unmatched: %d\n", unmatched)
	}
	ids := make([]int, 0, len(perTrack))
	for id := range perTrack {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "  track %2d: %d notes\n", id, perTrack[id])
	}
}
