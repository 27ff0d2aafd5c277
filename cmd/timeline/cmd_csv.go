package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/vortex/telemetry"
)

func newCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv <timeline.ndjson>",
		Short: "Flatten a timeline into timeline.csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := telemetry.ReadEventsFile(args[0])
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("out")
			if dir == "" {
				dir = filepath.Dir(args[0])
			}

			om, err := telemetry.NewOutputManager(dir)
			if err != nil {
				return err
			}
			if err := om.WriteTimeline(events); err != nil {
				om.Close()
				return err
			}
			if err := om.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", len(events), filepath.Join(dir, "timeline.csv"))
			return nil
		},
	}
	cmd.Flags().String("out", "", "Output directory (default: next to the timeline)")
	return cmd
}
