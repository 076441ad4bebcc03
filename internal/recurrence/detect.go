// Package recurrence collapses weekly-spaced events into series and expands
// series back into dated occurrences.
package recurrence

import (
	"sort"
	"time"

	"syllabuscal/internal/model"
)

// Policy controls when a same-title group counts as a weekly series.
type Policy struct {
	// MinOccurrences is the smallest group that may be collapsed.
	MinOccurrences int
	// PeriodDays is the expected gap between consecutive occurrences.
	PeriodDays int
	// DriftDays is the tolerated deviation from PeriodDays per gap.
	DriftDays int
}

// DefaultPolicy is three or more occurrences, seven days apart, ±1 day.
func DefaultPolicy() Policy {
	return Policy{MinOccurrences: 3, PeriodDays: 7, DriftDays: 1}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MinOccurrences <= 0 {
		p.MinOccurrences = d.MinOccurrences
	}
	if p.PeriodDays <= 0 {
		p.PeriodDays = d.PeriodDays
	}
	if p.DriftDays < 0 {
		p.DriftDays = d.DriftDays
	}
	return p
}

// Detect replaces every group of same-title, weekly-spaced events with a
// single series event. Groups that are too small or irregular pass through
// untouched. Output keeps the order in which titles first appear.
//
// Events that already are series or expanded occurrences are never grouped.
func Detect(events []model.Event, policy Policy) []model.Event {
	policy = policy.withDefaults()

	type slot struct {
		events []model.Event
		fixed  bool
	}
	var slots []*slot
	byTitle := make(map[string]*slot)

	for _, ev := range events {
		if ev.IsSeries() || ev.IsOccurrence() {
			slots = append(slots, &slot{events: []model.Event{ev}, fixed: true})
			continue
		}
		s, ok := byTitle[ev.Title]
		if !ok {
			s = &slot{}
			byTitle[ev.Title] = s
			slots = append(slots, s)
		}
		s.events = append(s.events, ev)
	}

	out := make([]model.Event, 0, len(events))
	for _, s := range slots {
		if s.fixed || len(s.events) < policy.MinOccurrences {
			out = append(out, s.events...)
			continue
		}
		if series, ok := collapse(s.events, policy); ok {
			out = append(out, series)
			continue
		}
		out = append(out, sortedByDate(s.events)...)
	}
	return out
}

// collapse returns the series for group, or false if any gap falls outside
// the tolerated window.
func collapse(group []model.Event, policy Policy) (model.Event, bool) {
	sorted := sortedByDate(group)

	days := make([]time.Time, len(sorted))
	for i, ev := range sorted {
		d, err := ev.Day()
		if err != nil {
			return model.Event{}, false
		}
		days[i] = d
	}

	for i := 1; i < len(days); i++ {
		gap := daysBetween(days[i-1], days[i])
		if abs(gap-policy.PeriodDays) > policy.DriftDays {
			return model.Event{}, false
		}
	}

	var seen [7]bool
	for _, d := range days {
		seen[model.WeekdayOf(d)] = true
	}
	var byDay []model.Weekday
	for wd, ok := range seen {
		if ok {
			byDay = append(byDay, model.Weekday(wd))
		}
	}

	series := sorted[0]
	series.Recurrence = &model.Recurrence{
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		ByDay:     byDay,
		Until:     sorted[len(sorted)-1].Date,
	}
	return series, true
}

func sortedByDate(events []model.Event) []model.Event {
	out := append([]model.Event(nil), events...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// daysBetween counts whole calendar days from a to b. Both are UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
