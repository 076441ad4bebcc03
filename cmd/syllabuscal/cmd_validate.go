package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"syllabuscal/internal/validate"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <events.json>",
	Short: "Report problems with canonical events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readEvents(args[0])
		if err != nil {
			return err
		}
		problems := validate.Events(events)
		if len(problems) == 0 {
			fmt.Fprintf(os.Stdout, "%d events, no problems\n", len(events))
			return nil
		}

		keys := make([]string, 0, len(problems))
		for k := range problems {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, p := range problems[k] {
				fmt.Fprintf(os.Stdout, "%s: %s\n", k, p)
			}
		}
		return fmt.Errorf("%d of %d events have problems", len(problems), len(events))
	},
}
