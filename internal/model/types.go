package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType is the closed set of event categories. Unknown labels resolve
// to TypeOther.
type EventType string

const (
	TypeSession    EventType = "session"
	TypeAssignment EventType = "assignment"
	TypeExam       EventType = "exam"
	TypeProject    EventType = "project"
	TypeHoliday    EventType = "holiday"
	TypeDeadline   EventType = "deadline"
	TypeQuiz       EventType = "quiz"
	TypeReading    EventType = "reading"
	TypeOther      EventType = "other"
)

// EventTypes lists every category in declaration order.
var EventTypes = []EventType{
	TypeSession, TypeAssignment, TypeExam, TypeProject, TypeHoliday,
	TypeDeadline, TypeQuiz, TypeReading, TypeOther,
}

// ParseEventType maps an exact category name onto the enum. ok is false
// (and TypeOther returned) when s names no category.
func ParseEventType(s string) (t EventType, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, et := range EventTypes {
		if string(et) == s {
			return et, true
		}
	}
	return TypeOther, false
}

// Valid reports whether t is one of the declared categories.
func (t EventType) Valid() bool {
	for _, et := range EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

func (t *EventType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("event type: %w", err)
	}
	*t, _ = ParseEventType(s)
	return nil
}

// Weekday is a day-of-week index, 0=Sunday, rendered as a two-letter code.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// WeekdayOf returns the weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

// ParseWeekday maps a two-letter code (case-insensitive) onto a Weekday.
func ParseWeekday(code string) (Weekday, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, c := range weekdayCodes {
		if c == code {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday code %q", code)
}

// Valid reports whether wd is within SU..SA.
func (wd Weekday) Valid() bool {
	return wd >= Sunday && wd <= Saturday
}

func (wd Weekday) String() string {
	if !wd.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(wd))
	}
	return weekdayCodes[wd]
}

// Time converts wd to the standard library weekday.
func (wd Weekday) Time() time.Weekday {
	return time.Weekday(wd)
}

func (wd Weekday) MarshalText() ([]byte, error) {
	if !wd.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(wd))
	}
	return []byte(weekdayCodes[wd]), nil
}

func (wd *Weekday) UnmarshalText(b []byte) error {
	v, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*wd = v
	return nil
}

// WeekdayCodes renders days as their two-letter codes, in the given order.
func WeekdayCodes(days []Weekday) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}
