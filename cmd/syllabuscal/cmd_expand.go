package main

import (
	"errors"

	"github.com/spf13/cobra"

	"syllabuscal/internal/model"
	"syllabuscal/internal/recurrence"
)

var rangeFlags struct {
	start string
	end   string
}

var expandOutput string

func init() {
	rootCmd.AddCommand(expandCmd, detectCmd)
	addRangeFlags(expandCmd)
	expandCmd.Flags().StringVarP(&expandOutput, "output", "o", "", "write the result here instead of stdout")
	detectCmd.Flags().StringVarP(&expandOutput, "output", "o", "", "write the result here instead of stdout")
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rangeFlags.start, "start", "", "first day of the expansion range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&rangeFlags.end, "end", "", "last day of the expansion range (YYYY-MM-DD)")
}

// expansionRange resolves --start/--end, falling back to the span the
// events themselves cover. ok is false when there is nothing to expand.
func expansionRange(events []model.Event) (rng recurrence.Range, ok bool, err error) {
	switch {
	case rangeFlags.start != "" && rangeFlags.end != "":
		rng, err = recurrence.NewRange(rangeFlags.start, rangeFlags.end)
		return rng, err == nil, err
	case rangeFlags.start == "" && rangeFlags.end == "":
		rng, ok = recurrence.Cover(events)
		return rng, ok, nil
	default:
		return rng, false, errors.New("--start and --end must be given together")
	}
}

func readEvents(path string) ([]model.Event, error) {
	body, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return model.DecodeEvents(body)
}

var expandCmd = &cobra.Command{
	Use:   "expand <events.json>",
	Short: "Replace every series with its individual occurrences",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readEvents(args[0])
		if err != nil {
			return err
		}
		rng, ok, err := expansionRange(events)
		if err != nil {
			return err
		}
		if ok {
			events = recurrence.Expand(events, rng)
		}
		return writeResult(expandOutput, model.Result{Events: events})
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect <events.json>",
	Short: "Collapse weekly groups of canonical events into series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		events, err := readEvents(args[0])
		if err != nil {
			return err
		}
		events = recurrence.Detect(events, a.PipelineOptions().RecurrencePolicy)
		return writeResult(expandOutput, model.Result{Events: events})
	},
}
