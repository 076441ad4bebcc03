package recurrence

import (
	"errors"
	"fmt"
	"time"

	"syllabuscal/internal/model"
)

var ErrInvalidRange = errors.New("recurrence: range end is before range start")

// Range is an inclusive span of calendar dates.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange parses two YYYY-MM-DD bounds.
func NewRange(start, end string) (Range, error) {
	s, err := model.ParseDate(start)
	if err != nil {
		return Range{}, fmt.Errorf("recurrence: range start: %w", err)
	}
	e, err := model.ParseDate(end)
	if err != nil {
		return Range{}, fmt.Errorf("recurrence: range end: %w", err)
	}
	if e.Before(s) {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: s, End: e}, nil
}

// Cover returns the smallest range spanning every event date and every
// series' until date. ok is false when events holds no parseable date.
func Cover(events []model.Event) (rng Range, ok bool) {
	extend := func(s string) {
		d, err := model.ParseDate(s)
		if err != nil {
			return
		}
		if !ok || d.Before(rng.Start) {
			rng.Start = d
		}
		if !ok || d.After(rng.End) {
			rng.End = d
		}
		ok = true
	}
	for _, ev := range events {
		extend(ev.Date)
		if ev.Recurrence != nil && ev.Recurrence.Until != "" {
			extend(ev.Recurrence.Until)
		}
	}
	return rng, ok
}

// Expand replaces every weekly series with its occurrences inside rng.
// Other events, including series of a frequency this package does not
// produce, pass through unchanged.
func Expand(events []model.Event, rng Range) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Recurrence == nil || ev.Recurrence.Frequency != model.FrequencyWeekly {
			out = append(out, ev)
			continue
		}
		out = append(out, Occurrences(ev, rng)...)
	}
	return out
}

// Occurrences lists the dated instances of series within rng.
//
// A day qualifies when it lies between the first occurrence and until,
// its weekday is in byDay, and the number of whole weeks since the first
// occurrence is a multiple of the interval. An empty byDay means the
// weekday of the first occurrence.
func Occurrences(series model.Event, rng Range) []model.Event {
	rec := series.Recurrence
	if rec == nil {
		return nil
	}
	first, err := series.Day()
	if err != nil {
		return nil
	}

	interval := rec.EffectiveInterval()
	until := rng.End
	if rec.Until != "" {
		if u, err := model.ParseDate(rec.Until); err == nil {
			until = u
		}
	}

	byDay := rec.ByDay
	if len(byDay) == 0 {
		byDay = []model.Weekday{model.WeekdayOf(first)}
	}
	days := model.Recurrence{ByDay: byDay}

	start := rng.Start
	if start.Before(first) {
		start = first
	}

	var out []model.Event
	for d := start; !d.After(rng.End); d = d.AddDate(0, 0, 1) {
		if d.After(until) {
			break
		}
		weeks := daysBetween(first, d) / 7
		if weeks%interval != 0 {
			continue
		}
		if !days.HasDay(model.WeekdayOf(d)) {
			continue
		}

		date := model.FormatDate(d)
		occ := series
		occ.ID = OccurrenceID(series.ID, date)
		occ.Date = date
		occ.OriginalID = series.ID
		occ.Recurrence = nil
		out = append(out, occ)
	}
	return out
}
