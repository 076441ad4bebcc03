package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"syllabuscal/internal/export"
	"syllabuscal/internal/ics"
	appLog "syllabuscal/internal/log"
	"syllabuscal/internal/model"
	"syllabuscal/internal/recurrence"
)

var exportFlags struct {
	format string
	expand bool
	output string
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.format, "format", "f", "", "ics or json (default: from --output, else ics)")
	f.BoolVar(&exportFlags.expand, "expand", false, "expand series into occurrences first")
	f.StringVarP(&exportFlags.output, "output", "o", "", "output file; \"-\" for stdout (default: the configured filename)")
	addRangeFlags(exportCmd)

	importCmd.Flags().StringVarP(&importOutput, "output", "o", "", "write the events here instead of stdout")
}

func exportFormat() (string, error) {
	format := strings.ToLower(exportFlags.format)
	if format == "" {
		switch strings.ToLower(filepath.Ext(exportFlags.output)) {
		case ".json":
			format = "json"
		default:
			format = "ics"
		}
	}
	if format != "ics" && format != "json" {
		return "", fmt.Errorf("unknown export format %q", exportFlags.format)
	}
	return format, nil
}

var exportCmd = &cobra.Command{
	Use:   "export <events.json>",
	Short: "Write canonical events as an iCalendar or JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := exportFormat()
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		events, err := readEvents(args[0])
		if err != nil {
			return err
		}
		if exportFlags.expand {
			rng, ok, err := expansionRange(events)
			if err != nil {
				return err
			}
			if ok {
				events = recurrence.Expand(events, rng)
			}
		}

		var (
			data []byte
			name string
		)
		switch format {
		case "json":
			if data, err = export.JSON(events); err != nil {
				return err
			}
			name = export.JSONFilename
		default:
			doc, err := ics.Serialize(events, a.ExportOptions())
			if err != nil {
				return err
			}
			data, name = doc.Data, doc.Filename
		}

		out := exportFlags.output
		if out == "" {
			out = name
		}
		appLog.Debug("exporting", "format", format, "events", len(events), "output", out)
		return writeOutput(out, data)
	},
}

var importOutput string

var importCmd = &cobra.Command{
	Use:   "import <calendar.ics>",
	Short: "Read an iCalendar document back into canonical events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		body, err := readInput(args[0])
		if err != nil {
			return err
		}
		events, err := ics.ParseDocument(body, a.Location)
		if err != nil {
			return err
		}
		return writeResult(importOutput, model.Result{Events: events})
	},
}
