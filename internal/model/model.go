package model

import "time"

// DateLayout is the canonical calendar-date form carried by Event.Date.
const DateLayout = "2006-01-02"

// TimeLayout is the canonical wall-clock form carried by Event.StartTime / EndTime.
const TimeLayout = "15:04"

// FrequencyWeekly is the only recurrence frequency the pipeline produces.
const FrequencyWeekly = "weekly"

// Event is the canonical unit flowing through the pipeline.
//
// An Event with Recurrence set is a collapsed series, not a calendar
// occurrence. An Event with OriginalID set is an expanded occurrence of the
// series with that id and never carries a Recurrence of its own.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Date is YYYY-MM-DD. On a series it is the first occurrence.
	Date      string    `json:"date"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	Type      EventType `json:"type"`

	OriginalTypeRaw string `json:"originalTypeRaw,omitempty"`
	Notes           string `json:"notes,omitempty"`
	SourceFile      string `json:"sourceFile,omitempty"`

	Recurrence *Recurrence `json:"recurrence,omitempty"`
	OriginalID string      `json:"originalId,omitempty"`
}

// Recurrence is the internal weekly recurrence rule attached to a series.
type Recurrence struct {
	Frequency string `json:"frequency"`
	// Interval defaults to 1 when zero.
	Interval int       `json:"interval,omitempty"`
	ByDay    []Weekday `json:"byDay,omitempty"`
	// Until is YYYY-MM-DD, inclusive. Empty means open-ended.
	Until string `json:"until,omitempty"`
}

// IsSeries reports whether e is a collapsed recurring series.
func (e Event) IsSeries() bool {
	return e.Recurrence != nil
}

// IsOccurrence reports whether e was produced by expanding a series.
func (e Event) IsOccurrence() bool {
	return e.OriginalID != ""
}

// Day parses e.Date as a civil date at UTC midnight.
func (e Event) Day() (time.Time, error) {
	return ParseDate(e.Date)
}

// EffectiveInterval returns the interval with the default of 1 applied.
func (r Recurrence) EffectiveInterval() int {
	if r.Interval <= 0 {
		return 1
	}
	return r.Interval
}

// HasDay reports whether wd is one of the rule's weekdays.
func (r Recurrence) HasDay(wd Weekday) bool {
	for _, d := range r.ByDay {
		if d == wd {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of r.
func (r *Recurrence) Clone() *Recurrence {
	if r == nil {
		return nil
	}
	out := *r
	out.ByDay = append([]Weekday(nil), r.ByDay...)
	return &out
}

// Result is what every pipeline stage hands to the next: the events plus
// the ordered, human-readable warnings accumulated so far.
type Result struct {
	Events   []Event  `json:"events"`
	Warnings []string `json:"warnings,omitempty"`
}

// WithWarnings returns a copy of r with msgs appended. The receiver's
// warning slice is never written to.
func (r Result) WithWarnings(msgs ...string) Result {
	if len(msgs) == 0 {
		return r
	}
	out := Result{Events: r.Events}
	out.Warnings = make([]string, 0, len(r.Warnings)+len(msgs))
	out.Warnings = append(out.Warnings, r.Warnings...)
	out.Warnings = append(out.Warnings, msgs...)
	return out
}

// ParseDate parses a YYYY-MM-DD string into a civil date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders t's calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// CivilDate truncates t to its calendar date at UTC midnight, using t's own
// location to decide which day it is.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
