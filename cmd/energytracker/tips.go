package main

import (
	"fmt"

	"github.com/jgoulah/energytracker/internal/tracker"
	"github.com/spf13/cobra"
)

var tipsCmd = &cobra.Command{
	Use:   "tips",
	Short: "List the energy-saving tips per device type",
	Long:  `Displays the built-in tip for each known device type and the fallback used for everything else.`,
	Args:  cobra.NoArgs,
	RunE:  runTips,
}

func init() {
	rootCmd.AddCommand(tipsCmd)
}

func runTips(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "----------------------------------------")
	fmt.Fprintf(out, "%-16s  %s\n", "Device", "Tip")
	fmt.Fprintln(out, "----------------------------------------")
	for _, t := range tracker.Tips() {
		fmt.Fprintf(out, "%-16s  %s\n", t.DeviceType, t.Tip)
	}
	fmt.Fprintln(out, "----------------------------------------")
	fmt.Fprintf(out, "%-16s  %s\n", "(other)", tracker.FallbackTip)

	return nil
}
