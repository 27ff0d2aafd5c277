// Command timeline inspects the NDJSON event timelines and step logs that a
// reactor run leaves behind.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "timeline",
		Short: "Inspect reactor timelines",
		Long: `timeline reads the event timeline and step logs written by a reactor run.

It summarizes event counts, flattens events to CSV and fits the ripple
decay rate used by dynamic ripple adjustment.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newSummarizeCmd(),
		newCSVCmd(),
		newCalibrateCmd(),
	)
	return rootCmd
}
