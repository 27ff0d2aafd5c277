package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/vortex/feasibility"
	"github.com/pthm-cable/vortex/telemetry"
)

// calibration is the JSON output of the calibrate command.
type calibration struct {
	Path    string  `json:"path"`
	Samples int     `json:"samples"`
	Alpha   float64 `json:"alpha"`
}

func newCalibrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate <steps.csv>",
		Short: "Fit the ripple decay rate from a step log",
		Long: `calibrate reads the time_s and ripple columns of a steps.csv file and fits
ripple ~ exp(-alpha*t) through the first and last rows. The result can be
used as b_field.adjust_alpha.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			times, ripples, err := readRippleSeries(args[0])
			if err != nil {
				return err
			}
			c := calibration{
				Path:    args[0],
				Samples: len(times),
				Alpha:   feasibility.FitDecayAlpha(times, ripples),
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alpha = %.6g (%d samples)\n", c.Alpha, c.Samples)
			return nil
		},
	}
}

// readRippleSeries loads the time and ripple columns of a steps.csv file.
func readRippleSeries(path string) (times, ripples []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening step log: %w", err)
	}
	defer f.Close()

	var rows []telemetry.StepRecord
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	times = make([]float64, len(rows))
	ripples = make([]float64, len(rows))
	for i, r := range rows {
		times[i] = r.TimeS
		ripples[i] = r.Ripple
	}
	return times, ripples, nil
}
