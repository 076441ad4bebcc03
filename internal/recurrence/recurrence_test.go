package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"syllabuscal/internal/model"
)

func ev(id, title, date string) model.Event {
	return model.Event{ID: id, Title: title, Date: date, Type: model.TypeSession}
}

func dates(events []model.Event) string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Date)
	}
	return strings.Join(out, ",")
}

func mustRange(t *testing.T, start, end string) Range {
	t.Helper()
	rng, err := NewRange(start, end)
	if err != nil {
		t.Fatalf("NewRange(%s, %s): %v", start, end, err)
	}
	return rng
}

func weeklyLectures() []model.Event {
	return []model.Event{
		ev("a", "Lecture", "2025-09-03"),
		ev("b", "Lecture", "2025-09-10"),
		ev("c", "Lecture", "2025-09-17"),
	}
}

func TestDetectCollapsesWeeklyGroup(t *testing.T) {
	out := Detect(weeklyLectures(), DefaultPolicy())

	if len(out) != 1 {
		t.Fatalf("expected one series, got %d events", len(out))
	}
	s := out[0]
	if s.ID != "a" || s.Date != "2025-09-03" {
		t.Errorf("series should be based on the earliest event, got %s/%s", s.ID, s.Date)
	}
	if s.Recurrence == nil {
		t.Fatal("missing recurrence")
	}
	r := s.Recurrence
	if r.Frequency != model.FrequencyWeekly || r.Interval != 1 {
		t.Errorf("unexpected rule: %+v", r)
	}
	if got := strings.Join(model.WeekdayCodes(r.ByDay), ","); got != "WE" {
		t.Errorf("byDay = %s, want WE", got)
	}
	if r.Until != "2025-09-17" {
		t.Errorf("until = %s, want 2025-09-17", r.Until)
	}
}

func TestDetectToleratesOneDayDrift(t *testing.T) {
	in := []model.Event{
		ev("1", "Lab", "2025-09-15"), // Mon
		ev("2", "Lab", "2025-09-01"), // Mon
		ev("3", "Lab", "2025-09-09"), // Tue, +8
	}
	out := Detect(in, DefaultPolicy())

	if len(out) != 1 || out[0].Recurrence == nil {
		t.Fatalf("expected collapse, got %+v", out)
	}
	if out[0].ID != "2" {
		t.Errorf("expected earliest as base, got %s", out[0].ID)
	}
	if got := strings.Join(model.WeekdayCodes(out[0].Recurrence.ByDay), ","); got != "MO,TU" {
		t.Errorf("byDay = %s, want MO,TU", got)
	}
}

func TestDetectPassesThroughIrregularGroups(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Event
	}{
		{
			name: "two week gap",
			in: []model.Event{
				ev("1", "Lecture", "2025-09-17"),
				ev("2", "Lecture", "2025-09-03"),
				ev("3", "Lecture", "2025-10-01"),
			},
		},
		{
			name: "duplicate date",
			in: []model.Event{
				ev("1", "Lecture", "2025-09-03"),
				ev("2", "Lecture", "2025-09-03"),
				ev("3", "Lecture", "2025-09-10"),
			},
		},
		{
			name: "too few",
			in: []model.Event{
				ev("1", "Lecture", "2025-09-03"),
				ev("2", "Lecture", "2025-09-10"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Detect(tt.in, DefaultPolicy())
			if len(out) != len(tt.in) {
				t.Fatalf("expected %d events, got %d", len(tt.in), len(out))
			}
			for _, e := range out {
				if e.Recurrence != nil {
					t.Errorf("event %s should not carry recurrence", e.ID)
				}
			}
		})
	}
}

func TestDetectKeepsTitleOrderAndUngroupables(t *testing.T) {
	series := ev("s", "Seminar", "2025-09-01")
	series.Recurrence = &model.Recurrence{Frequency: model.FrequencyWeekly, ByDay: []model.Weekday{model.Monday}}
	occ := ev("s-2025-09-08", "Seminar", "2025-09-08")
	occ.OriginalID = "s"

	in := []model.Event{
		{ID: "x", Title: "Midterm", Date: "2025-10-01", Type: model.TypeExam},
		ev("a", "Lecture", "2025-09-03"),
		series,
		ev("b", "Lecture", "2025-09-10"),
		occ,
		ev("c", "Lecture", "2025-09-17"),
		{ID: "y", Title: "Midterm", Date: "2025-09-20", Type: model.TypeExam},
	}
	out := Detect(in, DefaultPolicy())

	var ids []string
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	if got := strings.Join(ids, ","); got != "x,y,a,s,s-2025-09-08" {
		t.Errorf("order = %s", got)
	}
	if out[2].Recurrence == nil {
		t.Error("Lecture group should have collapsed")
	}
	if out[4].Recurrence != nil {
		t.Error("occurrence must never gain a recurrence")
	}
}

func TestDetectPolicyOverride(t *testing.T) {
	in := []model.Event{
		ev("1", "Office hours", "2025-09-02"),
		ev("2", "Office hours", "2025-09-16"),
	}
	out := Detect(in, Policy{MinOccurrences: 2, PeriodDays: 14, DriftDays: 0})
	if len(out) != 1 || out[0].Recurrence == nil {
		t.Fatalf("expected biweekly collapse with custom policy, got %+v", out)
	}
}

func TestExpandDetectedSeries(t *testing.T) {
	series := Detect(weeklyLectures(), DefaultPolicy())
	rng := mustRange(t, "2025-09-01", "2025-09-24")

	out := Expand(series, rng)

	// until is the last observed date, so nothing past 09-17.
	if got := dates(out); got != "2025-09-03,2025-09-10,2025-09-17" {
		t.Fatalf("dates = %s", got)
	}

	// Open-ended, the same series continues to the end of the range.
	open := series[0]
	open.Recurrence = open.Recurrence.Clone()
	open.Recurrence.Until = ""
	out = Expand([]model.Event{open}, rng)
	if got := dates(out); got != "2025-09-03,2025-09-10,2025-09-17,2025-09-24" {
		t.Fatalf("open-ended dates = %s", got)
	}

	seen := make(map[string]bool)
	for _, o := range out {
		if o.OriginalID != "a" {
			t.Errorf("originalId = %q, want a", o.OriginalID)
		}
		if o.Recurrence != nil {
			t.Errorf("occurrence %s carries a recurrence", o.ID)
		}
		if seen[o.ID] {
			t.Errorf("duplicate id %s", o.ID)
		}
		seen[o.ID] = true
	}
	if out[3].ID != "a-2025-09-24" {
		t.Errorf("id = %s, want a-2025-09-24", out[3].ID)
	}
	if open.Recurrence.Until != "" || series[0].Recurrence.Until != "2025-09-17" {
		t.Error("expansion must not mutate its input")
	}
}

func TestExpandBiweekly(t *testing.T) {
	s := ev("bw", "Studio", "2025-09-01") // Monday
	s.Recurrence = &model.Recurrence{
		Frequency: model.FrequencyWeekly,
		Interval:  2,
		ByDay:     []model.Weekday{model.Monday},
		Until:     "2025-10-27",
	}
	out := Expand([]model.Event{s}, mustRange(t, "2025-08-01", "2025-12-31"))
	want := "2025-09-01,2025-09-15,2025-09-29,2025-10-13,2025-10-27"
	if got := dates(out); got != want {
		t.Errorf("dates = %s, want %s", got, want)
	}
}

func TestExpandBiweeklyMultipleDays(t *testing.T) {
	s := ev("bw", "Studio", "2025-09-01") // Monday
	s.Recurrence = &model.Recurrence{
		Frequency: model.FrequencyWeekly,
		Interval:  2,
		ByDay:     []model.Weekday{model.Monday, model.Wednesday},
	}
	out := Expand([]model.Event{s}, mustRange(t, "2025-09-01", "2025-09-30"))
	want := "2025-09-01,2025-09-03,2025-09-15,2025-09-17,2025-09-29"
	if got := dates(out); got != want {
		t.Errorf("dates = %s, want %s", got, want)
	}
}

func TestExpandEmptyByDayUsesFirstWeekday(t *testing.T) {
	s := ev("t", "Tutorial", "2025-09-04") // Thursday
	s.Recurrence = &model.Recurrence{Frequency: model.FrequencyWeekly, Until: "2025-09-18"}
	out := Expand([]model.Event{s}, mustRange(t, "2025-09-01", "2025-09-30"))
	if got := dates(out); got != "2025-09-04,2025-09-11,2025-09-18" {
		t.Errorf("dates = %s", got)
	}
}

func TestExpandClipsToRangeAndPassesThrough(t *testing.T) {
	s := ev("a", "Lecture", "2025-09-03")
	s.Recurrence = &model.Recurrence{Frequency: model.FrequencyWeekly, ByDay: []model.Weekday{model.Wednesday}, Until: "2025-12-31"}
	exam := model.Event{ID: "x", Title: "Final", Date: "2026-01-15", Type: model.TypeExam}

	out := Expand([]model.Event{exam, s}, mustRange(t, "2025-09-15", "2025-10-01"))

	if got := dates(out); got != "2026-01-15,2025-09-17,2025-09-24,2025-10-01" {
		t.Errorf("dates = %s", got)
	}
	if out[0].ID != "x" || out[0].OriginalID != "" {
		t.Errorf("non-series event altered: %+v", out[0])
	}
}

func TestExpandIsIdempotent(t *testing.T) {
	series := Detect(weeklyLectures(), DefaultPolicy())
	rng := mustRange(t, "2025-09-01", "2025-09-30")

	first := Expand(series, rng)
	second := Expand(series, rng)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("id %d differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestDetectThenExpandCoversOriginals(t *testing.T) {
	var flat []model.Event
	for i, d := range []string{"2025-09-01", "2025-09-08", "2025-09-15", "2025-09-22", "2025-09-29"} {
		flat = append(flat, ev(fmt.Sprintf("mon-%d", i), "Lecture A", d))
	}
	for i, d := range []string{"2025-09-04", "2025-09-11", "2025-09-18"} {
		flat = append(flat, ev(fmt.Sprintf("thu-%d", i), "Lab", d))
	}
	flat = append(flat,
		model.Event{ID: "m", Title: "Midterm", Date: "2025-09-20", Type: model.TypeExam},
		model.Event{ID: "p", Title: "Project", Date: "2025-09-02", Type: model.TypeProject},
		model.Event{ID: "p2", Title: "Project", Date: "2025-09-25", Type: model.TypeProject},
	)

	collapsed := Detect(flat, DefaultPolicy())
	if len(collapsed) != 5 {
		t.Fatalf("expected 2 series + 3 singles, got %d", len(collapsed))
	}

	rng, ok := Cover(flat)
	if !ok {
		t.Fatal("Cover found no dates")
	}
	expanded := Expand(collapsed, rng)

	have := make(map[string]bool)
	for _, e := range expanded {
		have[e.Title+"@"+e.Date] = true
	}
	for _, e := range flat {
		if !have[e.Title+"@"+e.Date] {
			t.Errorf("lost %s on %s", e.Title, e.Date)
		}
	}
	if len(expanded) != len(flat) {
		t.Errorf("expected exact round trip for perfectly weekly input: %d vs %d", len(expanded), len(flat))
	}
}

func TestApplyOccurrenceEdit(t *testing.T) {
	collapsed := Detect(weeklyLectures(), DefaultPolicy())
	occs := Expand(collapsed, mustRange(t, "2025-09-01", "2025-09-30"))

	edited := occs[1]
	edited.Title = "Lecture (room 101)"
	edited.StartTime = "10:00"
	edited.Notes = "moved"

	out, err := ApplyOccurrenceEdit(collapsed, edited)
	if err != nil {
		t.Fatalf("ApplyOccurrenceEdit: %v", err)
	}
	if len(out) != len(collapsed) {
		t.Fatalf("series count changed: %d -> %d", len(collapsed), len(out))
	}
	s := out[0]
	if s.Title != "Lecture (room 101)" || s.StartTime != "10:00" || s.Notes != "moved" {
		t.Errorf("edit not written back: %+v", s)
	}
	if s.Date != "2025-09-03" || s.Recurrence == nil || s.Recurrence.Until != "2025-09-17" {
		t.Errorf("series schedule changed: %+v", s)
	}
	if collapsed[0].Title != "Lecture" {
		t.Error("input slice was modified")
	}

	moved := occs[1]
	moved.Date = "2025-09-11"
	if _, err := ApplyOccurrenceEdit(collapsed, moved); !errors.Is(err, ErrDateChanged) {
		t.Errorf("expected ErrDateChanged, got %v", err)
	}

	orphan := occs[1]
	orphan.OriginalID = "missing"
	if _, err := ApplyOccurrenceEdit(collapsed, orphan); !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("expected ErrSeriesNotFound, got %v", err)
	}

	if _, err := ApplyOccurrenceEdit(collapsed, weeklyLectures()[0]); !errors.Is(err, ErrNotOccurrence) {
		t.Errorf("expected ErrNotOccurrence, got %v", err)
	}
}

func TestNewRange(t *testing.T) {
	if _, err := NewRange("2025-09-10", "2025-09-01"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := NewRange("9/1", "2025-09-01"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := NewRange("2025-09-01", "2025-09-01"); err != nil {
		t.Errorf("single-day range rejected: %v", err)
	}
}
