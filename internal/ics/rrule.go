package ics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"syllabuscal/internal/model"
)

var (
	ErrInvalidRecurrence    = errors.New("ics: invalid recurrence rule")
	ErrUnsupportedFrequency = errors.New("ics: unsupported recurrence frequency")
)

const untilLayout = "20060102T150405Z"

// FormatRule renders r as an RRULE value for a DTSTART in UTC:
//
//	FREQ=WEEKLY;INTERVAL=<n>[;BYDAY=<codes>][;UNTIL=<YYYYMMDD>T235959Z]
//
// The result is checked with rrule-go before it is returned, so anything
// FormatRule emits can be read back by ParseRule.
func FormatRule(r model.Recurrence) (string, error) {
	return formatRule(r, time.UTC, 0)
}

// formatRule renders r for a DTSTART whose own calendar date lies shift days
// after the event's date in loc. BYDAY is moved by shift; UNTIL is the last
// second of the until day in loc, written in UTC.
func formatRule(r model.Recurrence, loc *time.Location, shift int) (string, error) {
	if !strings.EqualFold(r.Frequency, model.FrequencyWeekly) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, r.Frequency)
	}
	if r.Interval < 0 {
		return "", fmt.Errorf("%w: interval %d", ErrInvalidRecurrence, r.Interval)
	}

	var b strings.Builder
	b.WriteString("FREQ=WEEKLY;INTERVAL=")
	b.WriteString(strconv.Itoa(r.EffectiveInterval()))

	if len(r.ByDay) > 0 {
		days := make([]model.Weekday, 0, len(r.ByDay))
		for _, d := range r.ByDay {
			if !d.Valid() {
				return "", fmt.Errorf("%w: weekday %d", ErrInvalidRecurrence, int(d))
			}
			days = append(days, shiftWeekday(d, shift))
		}
		if shift != 0 {
			sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		}
		b.WriteString(";BYDAY=")
		b.WriteString(strings.Join(model.WeekdayCodes(days), ","))
	}

	if r.Until != "" {
		until, err := model.ParseDate(r.Until)
		if err != nil {
			return "", fmt.Errorf("%w: until %q", ErrInvalidRecurrence, r.Until)
		}
		y, m, d := until.Date()
		last := time.Date(y, m, d, 23, 59, 59, 0, loc)
		b.WriteString(";UNTIL=")
		b.WriteString(last.UTC().Format(untilLayout))
	}

	out := b.String()
	if _, err := rrule.StrToROption(out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	return out, nil
}

// ParseRule reads an RRULE value back into the internal form. Only weekly
// rules are accepted; COUNT and the finer BY* parts are ignored.
func ParseRule(s string) (model.Recurrence, error) {
	return parseRule(s, time.UTC, 0)
}

// parseRule is the inverse of formatRule: BYDAY is moved by shift days and
// UNTIL is read as a date in loc.
func parseRule(s string, loc *time.Location, shift int) (model.Recurrence, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return model.Recurrence{}, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	if opt.Freq != rrule.WEEKLY {
		return model.Recurrence{}, fmt.Errorf("%w: %s", ErrUnsupportedFrequency, opt.Freq)
	}

	out := model.Recurrence{
		Frequency: model.FrequencyWeekly,
		Interval:  opt.Interval,
	}
	if out.Interval <= 0 {
		out.Interval = 1
	}

	seen := make(map[model.Weekday]bool)
	for _, wd := range opt.Byweekday {
		// rrule-go numbers Monday as 0.
		d := shiftWeekday(model.Weekday((wd.Day()+1)%7), shift)
		if !seen[d] {
			seen[d] = true
			out.ByDay = append(out.ByDay, d)
		}
	}
	sort.Slice(out.ByDay, func(i, j int) bool { return out.ByDay[i] < out.ByDay[j] })

	if !opt.Until.IsZero() {
		out.Until = model.FormatDate(opt.Until.In(loc))
	}
	return out, nil
}

func shiftWeekday(d model.Weekday, shift int) model.Weekday {
	return model.Weekday(((int(d)+shift)%7 + 7) % 7)
}

// dayShift counts calendar days from b's date to a's date, each read in its
// own location.
func dayShift(a, b time.Time) int {
	return int(model.CivilDate(a).Sub(model.CivilDate(b)).Hours() / 24)
}
