// Package pipeline wires the normalization, inference and recurrence
// stages together.
package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"syllabuscal/internal/infer"
	"syllabuscal/internal/model"
	"syllabuscal/internal/normalize"
	"syllabuscal/internal/recurrence"
)

// Options selects and tunes the stages.
type Options struct {
	Normalize normalize.Options

	// Infer enables the routine-session gap fill.
	Infer       bool
	InferPolicy infer.Policy

	// Collapse runs the recurrence detector on the merged events.
	Collapse         bool
	RecurrencePolicy recurrence.Policy

	// MaxConcurrent bounds ProcessSources; zero means one input at a time.
	MaxConcurrent int
}

// Input is one extraction result, typically one uploaded file.
type Input struct {
	Name string
	Raw  []model.RawEvent
}

// Run takes raw records through normalize, optional inference and optional
// collapse.
func Run(raws []model.RawEvent, opts Options) model.Result {
	res := flat(raws, opts)
	if opts.Collapse {
		res.Events = recurrence.Detect(res.Events, opts.RecurrencePolicy)
	}
	return res
}

func flat(raws []model.RawEvent, opts Options) model.Result {
	res := normalize.New(opts.Normalize).Normalize(raws)
	if opts.Infer {
		res = infer.RoutineSessions(res, opts.InferPolicy)
	}
	return res
}

// ProcessSources normalizes (and optionally infers) every input
// concurrently, then merges them in input order before the detector runs,
// so same-title grouping sees every file. Each event is stamped with its
// input name and each warning is prefixed with it.
//
// The stages never fail; an error is returned only if ctx is cancelled.
func ProcessSources(ctx context.Context, inputs []Input, opts Options) (model.Result, error) {
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}

	parts := make([]model.Result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parts[i] = stamp(flat(in.Raw, opts), in.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Result{}, fmt.Errorf("pipeline: %w", err)
	}

	merged := Merge(parts...)
	if opts.Collapse {
		merged.Events = recurrence.Detect(merged.Events, opts.RecurrencePolicy)
	}
	return merged, nil
}

// Merge concatenates results in argument order.
func Merge(parts ...model.Result) model.Result {
	var out model.Result
	out.Events = make([]model.Event, 0)
	for _, p := range parts {
		out.Events = append(out.Events, p.Events...)
		out.Warnings = append(out.Warnings, p.Warnings...)
	}
	return out
}

func stamp(res model.Result, name string) model.Result {
	if name == "" {
		return res
	}
	events := make([]model.Event, len(res.Events))
	for i, ev := range res.Events {
		if ev.SourceFile == "" {
			ev.SourceFile = name
		}
		events[i] = ev
	}
	warnings := make([]string, len(res.Warnings))
	for i, w := range res.Warnings {
		warnings[i] = name + ": " + w
	}
	return model.Result{Events: events, Warnings: warnings}
}
