// Package feed keeps the current calendar built from the configured
// sources.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"syllabuscal/internal/ics"
	appLog "syllabuscal/internal/log"
	"syllabuscal/internal/model"
	"syllabuscal/internal/pipeline"
	"syllabuscal/internal/source"
)

var ErrNotReady = errors.New("feed: no snapshot built yet")

// Fetcher is the part of source.Fetcher the feed needs.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []source.Source) ([]source.Payload, []error)
}

// Snapshot is one successful build.
type Snapshot struct {
	Result   model.Result `json:"result"`
	Calendar ics.Document `json:"-"`
	BuiltAt  time.Time    `json:"builtAt"`
	// Sources counts the payloads that made it into the build.
	Sources int `json:"sources"`
}

// Feed rebuilds a Snapshot on demand and serves the latest one.
type Feed struct {
	fetcher  Fetcher
	sources  []source.Source
	pipeline pipeline.Options
	export   ics.Options
	now      func() time.Time

	buildMu sync.Mutex // serializes Refresh

	mu      sync.RWMutex
	current *Snapshot
}

// New creates a Feed. Collapse is forced on so the published calendar
// carries series rather than one VEVENT per occurrence.
func New(fetcher Fetcher, sources []source.Source, popts pipeline.Options, eopts ics.Options) *Feed {
	popts.Collapse = true
	now := eopts.Now
	if now == nil {
		now = time.Now
	}
	return &Feed{
		fetcher:  fetcher,
		sources:  sources,
		pipeline: popts,
		export:   eopts,
		now:      now,
	}
}

// Refresh fetches every source and rebuilds the snapshot. Fetch and decode
// failures become warnings; only a calendar generation failure (or a
// cancelled ctx) fails the refresh, in which case the previous snapshot
// stays in place.
func (f *Feed) Refresh(ctx context.Context) (*Snapshot, error) {
	f.buildMu.Lock()
	defer f.buildMu.Unlock()

	started := f.now()
	payloads, fetchErrs := f.fetcher.FetchAll(ctx, f.sources)

	var warnings []string
	for _, err := range fetchErrs {
		warnings = append(warnings, err.Error())
	}

	inputs := make([]pipeline.Input, 0, len(payloads))
	for _, p := range payloads {
		raws, err := p.Decode()
		if err != nil {
			appLog.Error("feed: decode failed", err, "id", p.Source.ID)
			warnings = append(warnings, err.Error())
			continue
		}
		inputs = append(inputs, pipeline.Input{Name: label(p.Source), Raw: raws})
	}

	res, err := pipeline.ProcessSources(ctx, inputs, f.pipeline)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	res = model.Result{Events: res.Events}.WithWarnings(append(warnings, res.Warnings...)...)

	doc, err := ics.Serialize(res.Events, f.export)
	if err != nil {
		appLog.Error("feed: calendar generation failed; keeping previous snapshot", err)
		return nil, fmt.Errorf("feed: %w", err)
	}

	snap := &Snapshot{
		Result:   res,
		Calendar: doc,
		BuiltAt:  f.now(),
		Sources:  len(inputs),
	}
	f.mu.Lock()
	f.current = snap
	f.mu.Unlock()

	appLog.Info("feed refreshed",
		"sources", len(inputs),
		"events", len(res.Events),
		"warnings", len(res.Warnings),
		"took", f.now().Sub(started).String(),
	)
	return snap, nil
}

// Current returns the latest snapshot, or ErrNotReady before the first
// successful Refresh.
func (f *Feed) Current() (*Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return nil, ErrNotReady
	}
	return f.current, nil
}

func label(s source.Source) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
