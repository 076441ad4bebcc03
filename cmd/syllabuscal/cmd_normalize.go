package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"syllabuscal/internal/export"
	appLog "syllabuscal/internal/log"
	"syllabuscal/internal/model"
	"syllabuscal/internal/pipeline"
)

var normalizeFlags struct {
	collapse bool
	infer    bool
	output   string
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	f := normalizeCmd.Flags()
	f.BoolVar(&normalizeFlags.collapse, "collapse", false, "collapse weekly groups into series")
	f.BoolVar(&normalizeFlags.infer, "infer", true, "infer routine sessions (defaults to inference.enabled)")
	f.StringVarP(&normalizeFlags.output, "output", "o", "", "write the result here instead of stdout")
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>...",
	Short: "Normalize raw extraction records into canonical events",
	Long: "Reads one or more raw extraction JSON files (\"-\" for stdin), normalizes\n" +
		"every record and prints the merged result with its warnings.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		opts := a.PipelineOptions()
		opts.Collapse = normalizeFlags.collapse
		if cmd.Flags().Changed("infer") {
			opts.Infer = normalizeFlags.infer
		}

		inputs := make([]pipeline.Input, 0, len(args))
		for _, path := range args {
			body, err := readInput(path)
			if err != nil {
				return err
			}
			raws, err := model.DecodeRawEvents(body)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			name := filepath.Base(path)
			if path == "-" {
				name = "stdin"
			}
			inputs = append(inputs, pipeline.Input{Name: name, Raw: raws})
		}

		res, err := pipeline.ProcessSources(cmd.Context(), inputs, opts)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			appLog.Warn(w)
		}
		return writeResult(normalizeFlags.output, res)
	},
}

func writeResult(path string, res model.Result) error {
	data, err := export.Result(res)
	if err != nil {
		return err
	}
	return writeOutput(path, data)
}
