package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/keyfall-go"
)

var renderOut string

func init() {
	playbackFlags(renderCmd)
	renderCmd.Flags().Int("sample-rate", 48000, "output sample rate")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output WAV path (default: input name with .wav)")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <file.mid>",
	Short: "Render a MIDI file through the monitor synth to a WAV file",
	Args:  exactArgs(1, "<file.mid>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		sng, _, err := loadSong(args[0], s)
		if err != nil {
			return err
		}
		samples, err := keyfall.Render(sng, keyfall.RenderOptions{
			SampleRate: s.SampleRate,
			Speed:      s.Speed,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		out := renderOut
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".wav"
		}
		if err := writeWAVFile(out, samples, s.SampleRate); err != nil {
			return err
		}
		logger.Info("wrote wav", "path", out, "seconds", float64(len(samples)/2)/float64(s.SampleRate))
		return nil
	},
}

func writeWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := keyfall.WriteWAV(w, samples, sampleRate, 2); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	return f.Close()
}
