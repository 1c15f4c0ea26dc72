package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbegin/keyfall-go/internal/liveinput"
)

func init() {
	rootCmd.AddCommand(devicesCmd)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List MIDI inputs and the one play would pick",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		drv, err := liveinput.NewDriver()
		if err != nil {
			return err
		}
		defer drv.Close()
		inputs, err := drv.Inputs()
		if err != nil {
			return fmt.Errorf("list inputs: %w", err)
		}
		excluded := s.MIDI.Excluded
		if len(excluded) == 0 {
			excluded = liveinput.DefaultExcluded
		}
		var candidates []string
		for _, name := range inputs {
			if !liveinput.MatchesAny(name, excluded) {
				candidates = append(candidates, name)
			}
		}
		pick, _ := liveinput.Pick(candidates, s.MIDI.Preferred)
		out := cmd.OutOrStdout()
		if len(inputs) == 0 {
			fmt.Fprintln(out, "no MIDI inputs")
			return nil
		}
		for _, name := range inputs {
			mark := " "
			switch {
			case name == pick:
				mark = "*"
			case liveinput.MatchesAny(name, excluded):
				mark = "-"
			}
			fmt.Fprintf(out, "%s %s\n", mark, name)
		}
		return nil
	},
}
