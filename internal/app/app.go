// Package app turns a loaded Config into the option structs and long-lived
// components the CLI and the HTTP server share.
package app

import (
	"context"
	"net/http"
	"time"

	"syllabuscal/internal/config"
	"syllabuscal/internal/feed"
	"syllabuscal/internal/ics"
	"syllabuscal/internal/infer"
	"syllabuscal/internal/metrics"
	"syllabuscal/internal/normalize"
	"syllabuscal/internal/pipeline"
	"syllabuscal/internal/recurrence"
	"syllabuscal/internal/source"
)

type App struct {
	Config   *config.Config
	Location *time.Location
	Feed     *feed.Feed
	Metrics  *metrics.Metrics

	// Now is the clock handed to every stage; tests pin it.
	Now func() time.Time
}

// New resolves the configured timezone and builds the feed.
func New(cfg *config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Location: loc, Now: time.Now, Metrics: metrics.New()}
	fetcher := source.NewFetcher(cfg.CacheDir, &http.Client{Timeout: 15 * time.Second})
	a.Feed = feed.New(fetcher, Sources(cfg), a.PipelineOptions(), a.ExportOptions())
	return a, nil
}

// PipelineOptions maps the normalize, inference and recurrence sections.
// Collapse is left off; callers opt in.
func (a *App) PipelineOptions() pipeline.Options {
	c := a.Config
	ip := infer.DefaultPolicy()
	ip.MinSessions = c.Inference.MinSessions
	ip.MinWeekdayHits = c.Inference.MinWeekdayHits

	return pipeline.Options{
		Normalize: normalize.Options{
			Now:              a.clock,
			Location:         a.Location,
			PastRolloverDays: c.Normalization.PastRolloverDays,
			MaxTitleLength:   c.Normalization.MaxTitleLength,
		},
		Infer:       c.Inference.Enabled,
		InferPolicy: ip,
		RecurrencePolicy: recurrence.Policy{
			MinOccurrences: c.Recurrence.MinOccurrences,
			PeriodDays:     c.Recurrence.PeriodDays,
			DriftDays:      c.Recurrence.DriftDays,
		},
		MaxConcurrent: c.MaxConcurrent,
	}
}

// ExportOptions maps the export section.
func (a *App) ExportOptions() ics.Options {
	e := a.Config.Export
	return ics.Options{
		Location:        a.Location,
		DefaultStart:    e.DefaultStart,
		DefaultDuration: e.DefaultDuration(),
		ProductID:       e.ProductID,
		CalendarName:    e.CalendarName,
		Filename:        e.Filename,
		Now:             a.clock,
	}
}

// RefreshFeed rebuilds the feed and records the outcome in Metrics.
func (a *App) RefreshFeed(ctx context.Context) (*feed.Snapshot, error) {
	start := time.Now()
	snap, err := a.Feed.Refresh(ctx)
	if err != nil {
		a.Metrics.ObserveRefresh(time.Since(start), 0, 0, a.clock(), err)
		return nil, err
	}
	a.Metrics.ObserveRefresh(time.Since(start), len(snap.Result.Events), len(snap.Result.Warnings), snap.BuiltAt, nil)
	return snap, nil
}

func (a *App) clock() time.Time {
	return a.Now()
}

// Sources converts the configured sources, skipping entries with neither
// a path nor a URL.
func Sources(cfg *config.Config) []source.Source {
	out := make([]source.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if s.Path == "" && s.URL == "" {
			continue
		}
		id := s.ID
		if id == "" {
			id = s.Label()
		}
		out = append(out, source.Source{ID: id, Name: s.Label(), URL: s.URL, Path: s.Path})
	}
	return out
}
