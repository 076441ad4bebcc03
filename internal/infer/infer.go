// Package infer reconstructs routine class sessions a syllabus leaves out.
package infer

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"syllabuscal/internal/model"
)

const (
	InferredTitle   = "Lecture / Session"
	InferredNotes   = "Inferred session (pattern fill)"
	InferredTypeRaw = "inferred"
)

// Policy holds the evidence thresholds for gap filling.
type Policy struct {
	// MinSessions is the fewest session events needed before any
	// weekday pattern is trusted.
	MinSessions int
	// MinWeekdayHits is how many sessions a weekday needs to be dominant.
	MinWeekdayHits int
	NewID          func() string
}

// DefaultPolicy returns the thresholds used when none are configured.
func DefaultPolicy() Policy {
	return Policy{
		MinSessions:    3,
		MinWeekdayHits: 2,
		NewID:          uuid.NewString,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MinSessions <= 0 {
		p.MinSessions = d.MinSessions
	}
	if p.MinWeekdayHits <= 0 {
		p.MinWeekdayHits = d.MinWeekdayHits
	}
	if p.NewID == nil {
		p.NewID = d.NewID
	}
	return p
}

// RoutineSessions fills every dominant-weekday date between the first and
// last observed session that has no session yet. The input is returned
// as-is when there is not enough evidence for a pattern.
func RoutineSessions(in model.Result, policy Policy) model.Result {
	policy = policy.withDefaults()

	var sessionDays []string
	existing := make(map[string]bool)
	for _, ev := range in.Events {
		if ev.Type != model.TypeSession {
			continue
		}
		if _, err := model.ParseDate(ev.Date); err != nil {
			continue
		}
		sessionDays = append(sessionDays, ev.Date)
		existing[ev.Date] = true
	}
	if len(sessionDays) < policy.MinSessions {
		return in
	}
	sort.Strings(sessionDays)

	var counts [7]int
	for _, d := range sessionDays {
		t, _ := model.ParseDate(d)
		counts[model.WeekdayOf(t)]++
	}
	var dominant [7]bool
	anyDominant := false
	for wd, c := range counts {
		if c >= policy.MinWeekdayHits {
			dominant[wd] = true
			anyDominant = true
		}
	}
	if !anyDominant {
		return in
	}

	first, _ := model.ParseDate(sessionDays[0])
	last, _ := model.ParseDate(sessionDays[len(sessionDays)-1])

	var inferred []model.Event
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !dominant[model.WeekdayOf(d)] {
			continue
		}
		iso := model.FormatDate(d)
		if existing[iso] {
			continue
		}
		existing[iso] = true
		inferred = append(inferred, model.Event{
			ID:              policy.NewID(),
			Title:           InferredTitle,
			Date:            iso,
			Type:            model.TypeSession,
			Notes:           InferredNotes,
			OriginalTypeRaw: InferredTypeRaw,
		})
	}

	events := make([]model.Event, 0, len(in.Events)+len(inferred))
	events = append(events, in.Events...)
	events = append(events, inferred...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date < events[j].Date
	})

	out := model.Result{Events: events, Warnings: in.Warnings}
	if len(inferred) > 0 {
		out = out.WithWarnings(fmt.Sprintf("Added %d inferred session(s) to fill schedule gaps.", len(inferred)))
	}
	return out
}
