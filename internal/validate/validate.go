// Package validate checks single events as they are edited.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"syllabuscal/internal/model"
)

const (
	MsgTitleRequired  = "Title is required"
	MsgDateRequired   = "Date is required"
	MsgDateInvalid    = "Date is invalid"
	MsgStartInvalid   = "Start time invalid"
	MsgEndInvalid     = "End time invalid"
	MsgEndBeforeStart = "End time is before start time"
)

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Event returns the human-readable problems with ev, or nil when there are
// none. It never modifies ev.
func Event(ev model.Event) []string {
	var problems []string

	if strings.TrimSpace(ev.Title) == "" {
		problems = append(problems, MsgTitleRequired)
	}

	dateOK := false
	switch {
	case strings.TrimSpace(ev.Date) == "":
		problems = append(problems, MsgDateRequired)
	default:
		if _, err := model.ParseDate(ev.Date); err != nil {
			problems = append(problems, MsgDateInvalid)
		} else {
			dateOK = true
		}
	}

	startOK := ev.StartTime == "" || clockRe.MatchString(ev.StartTime)
	if !startOK {
		problems = append(problems, MsgStartInvalid)
	}
	endOK := ev.EndTime == "" || clockRe.MatchString(ev.EndTime)
	if !endOK {
		problems = append(problems, MsgEndInvalid)
	}
	// Zero-padded HH:MM compares correctly as a string.
	if startOK && endOK && ev.StartTime != "" && ev.EndTime != "" && ev.EndTime < ev.StartTime {
		problems = append(problems, MsgEndBeforeStart)
	}

	if ev.Type != "" && !ev.Type.Valid() {
		problems = append(problems, fmt.Sprintf("Type %q is unknown", ev.Type))
	}

	if ev.Recurrence != nil {
		if ev.IsOccurrence() {
			problems = append(problems, "Occurrence must not carry a recurrence")
		}
		problems = append(problems, recurrenceProblems(ev, *ev.Recurrence, dateOK)...)
	}
	return problems
}

func recurrenceProblems(ev model.Event, r model.Recurrence, dateOK bool) []string {
	var problems []string

	if !strings.EqualFold(r.Frequency, model.FrequencyWeekly) {
		problems = append(problems, fmt.Sprintf("Recurrence frequency %q is unsupported", r.Frequency))
	}
	if r.Interval < 0 {
		problems = append(problems, "Recurrence interval must be positive")
	}
	for _, d := range r.ByDay {
		if !d.Valid() {
			problems = append(problems, fmt.Sprintf("Recurrence weekday %d is unknown", int(d)))
		}
	}

	if r.Until != "" {
		until, err := model.ParseDate(r.Until)
		if err != nil {
			problems = append(problems, "Recurrence end date is invalid")
		} else if dateOK {
			if first, _ := ev.Day(); until.Before(first) {
				problems = append(problems, "Recurrence ends before it starts")
			}
		}
	}

	if dateOK && len(r.ByDay) > 0 {
		first, _ := ev.Day()
		if !r.HasDay(model.WeekdayOf(first)) {
			problems = append(problems, "Series date does not fall on one of its weekdays")
		}
	}
	return problems
}

// Events validates every event and returns the problems keyed by event id.
// Events without problems are absent from the map.
func Events(events []model.Event) map[string][]string {
	out := make(map[string][]string)
	for i, ev := range events {
		p := Event(ev)
		if len(p) == 0 {
			continue
		}
		key := ev.ID
		if key == "" {
			key = fmt.Sprintf("#%d", i)
		}
		out[key] = append(out[key], p...)
	}
	return out
}
