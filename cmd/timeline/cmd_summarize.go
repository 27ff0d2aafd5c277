package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/vortex/telemetry"
)

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <timeline.ndjson>",
		Short: "Count events by kind and status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := telemetry.ReadEventsFile(args[0])
			if err != nil {
				return err
			}
			s := telemetry.SummarizeTimeline(events)
			s.Path = args[0]

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}

			fmt.Fprintf(out, "%s: %d events\n", s.Path, s.Total)
			if s.FirstTS != nil && s.LastTS != nil {
				fmt.Fprintf(out, "span: %s .. %s\n", s.FirstTS.Format(time.RFC3339), s.LastTS.Format(time.RFC3339))
			}
			kinds := make([]telemetry.Kind, 0, len(s.Counts))
			for k := range s.Counts {
				kinds = append(kinds, k)
			}
			slices.Sort(kinds)
			for _, k := range kinds {
				fmt.Fprintf(out, "  %-28s %d\n", k, s.Counts[k])
			}
			if s.WmaxMin != nil && s.WmaxMax != nil {
				fmt.Fprintf(out, "wmax: %.4g .. %.4g\n", *s.WmaxMin, *s.WmaxMax)
			}
			return nil
		},
	}
}
