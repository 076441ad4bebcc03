package ics

import (
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/teambition/rrule-go"

	"syllabuscal/internal/model"
	"syllabuscal/internal/recurrence"
)

var fixedNow = func() time.Time { return time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC) }

func scenarioSeries() model.Event {
	collapsed := recurrence.Detect([]model.Event{
		{ID: "lec", Title: "Lecture", Date: "2025-09-03", Type: model.TypeSession, OriginalTypeRaw: "Lecture"},
		{ID: "lec2", Title: "Lecture", Date: "2025-09-10", Type: model.TypeSession},
		{ID: "lec3", Title: "Lecture", Date: "2025-09-17", Type: model.TypeSession},
	}, recurrence.DefaultPolicy())
	return collapsed[0]
}

func TestFormatRule(t *testing.T) {
	tests := []struct {
		name    string
		in      model.Recurrence
		want    string
		wantErr error
	}{
		{
			name: "full",
			in:   model.Recurrence{Frequency: "weekly", Interval: 2, ByDay: []model.Weekday{model.Monday, model.Wednesday}, Until: "2025-12-12"},
			want: "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;UNTIL=20251212T235959Z",
		},
		{
			name: "defaults interval",
			in:   model.Recurrence{Frequency: "weekly", ByDay: []model.Weekday{model.Sunday}},
			want: "FREQ=WEEKLY;INTERVAL=1;BYDAY=SU",
		},
		{
			name: "bare",
			in:   model.Recurrence{Frequency: "weekly"},
			want: "FREQ=WEEKLY;INTERVAL=1",
		},
		{
			name:    "daily",
			in:      model.Recurrence{Frequency: "daily"},
			wantErr: ErrUnsupportedFrequency,
		},
		{
			name:    "negative interval",
			in:      model.Recurrence{Frequency: "weekly", Interval: -1},
			wantErr: ErrInvalidRecurrence,
		},
		{
			name:    "bad weekday",
			in:      model.Recurrence{Frequency: "weekly", ByDay: []model.Weekday{9}},
			wantErr: ErrInvalidRecurrence,
		},
		{
			name:    "bad until",
			in:      model.Recurrence{Frequency: "weekly", Until: "12/12/2025"},
			wantErr: ErrInvalidRecurrence,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatRule(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v (%q)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatRule: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRule(t *testing.T) {
	got, err := ParseRule("FREQ=WEEKLY;INTERVAL=3;BYDAY=WE,MO,WE;UNTIL=20251212T235959Z")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if got.Frequency != model.FrequencyWeekly || got.Interval != 3 || got.Until != "2025-12-12" {
		t.Errorf("unexpected rule: %+v", got)
	}
	if codes := strings.Join(model.WeekdayCodes(got.ByDay), ","); codes != "MO,WE" {
		t.Errorf("byDay = %s, want MO,WE", codes)
	}

	if _, err := ParseRule("FREQ=DAILY;INTERVAL=1"); !errors.Is(err, ErrUnsupportedFrequency) {
		t.Errorf("expected ErrUnsupportedFrequency, got %v", err)
	}
	if _, err := ParseRule("INTERVAL=1"); !errors.Is(err, ErrInvalidRecurrence) {
		t.Errorf("expected ErrInvalidRecurrence, got %v", err)
	}
}

func TestRuleRoundTrip(t *testing.T) {
	rules := []model.Recurrence{
		*scenarioSeries().Recurrence,
		{Frequency: "weekly", Interval: 2, ByDay: []model.Weekday{model.Tuesday, model.Thursday}},
		{Frequency: "weekly", Interval: 1, ByDay: []model.Weekday{model.Sunday, model.Saturday}, Until: "2026-01-31"},
	}
	for _, in := range rules {
		s, err := FormatRule(in)
		if err != nil {
			t.Fatalf("FormatRule(%+v): %v", in, err)
		}
		out, err := ParseRule(s)
		if err != nil {
			t.Fatalf("ParseRule(%q): %v", s, err)
		}
		if out.Frequency != in.Frequency || out.EffectiveInterval() != in.EffectiveInterval() || out.Until != in.Until {
			t.Errorf("%q: got %+v, want %+v", s, out, in)
		}
		if a, b := strings.Join(model.WeekdayCodes(out.ByDay), ","), strings.Join(model.WeekdayCodes(in.ByDay), ","); a != b {
			t.Errorf("%q: byDay %s, want %s", s, a, b)
		}
	}
}

func TestSerializeSeries(t *testing.T) {
	doc, err := Serialize([]model.Event{scenarioSeries()}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if doc.Filename != "syllabus-events.ics" || doc.ContentType != "text/calendar" {
		t.Errorf("unexpected document metadata: %s %s", doc.Filename, doc.ContentType)
	}

	body := string(doc.Data)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"METHOD:PUBLISH",
		"UID:lec",
		"DTSTART:20250903T090000Z",
		"DTEND:20250903T100000Z",
		"SUMMARY:Lecture",
		"CATEGORIES:session",
		"RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=WE;UNTIL=20250917T235959Z",
		"X-SYLLABUS-ORIGINAL-TYPE:Lecture",
		"END:VCALENDAR",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %q:\n%s", want, body)
		}
	}
	if strings.Count(body, "BEGIN:VEVENT") != 1 {
		t.Errorf("a series must serialize as one VEVENT")
	}
}

func TestSerializeTimesInLocation(t *testing.T) {
	est := time.FixedZone("UTC-05", -5*60*60)
	events := []model.Event{
		{ID: "a", Title: "Lab", Date: "2025-09-04", StartTime: "14:00", EndTime: "15:30", Type: model.TypeSession},
		{ID: "b", Title: "Lab", Date: "2025-09-05", StartTime: "14:00", EndTime: "13:00", Type: model.TypeSession},
		{ID: "c", Title: "Due", Date: "2025-09-06", StartTime: "25:00", Type: model.TypeDeadline},
	}
	doc, err := Serialize(events, Options{Location: est, Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	body := string(doc.Data)
	for _, want := range []string{
		"DTSTART:20250904T190000Z",
		"DTEND:20250904T203000Z",
		// end before start falls back to the default duration
		"DTSTART:20250905T190000Z",
		"DTEND:20250905T200000Z",
		// unreadable start falls back to the default start
		"DTSTART:20250906T140000Z",
		"DTEND:20250906T150000Z",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestSerializeFailsAtomically(t *testing.T) {
	good := model.Event{ID: "ok", Title: "Quiz", Date: "2025-09-04", Type: model.TypeQuiz}
	badRule := scenarioSeries()
	badRule.Recurrence.Frequency = "monthly"

	doc, err := Serialize([]model.Event{good, badRule}, Options{Now: fixedNow})
	if !errors.Is(err, ErrUnsupportedFrequency) {
		t.Fatalf("expected ErrUnsupportedFrequency, got %v", err)
	}
	if doc.Data != nil {
		t.Error("partial document returned on failure")
	}

	badDate := model.Event{ID: "x", Title: "?", Date: "sometime"}
	if _, err := Serialize([]model.Event{good, badDate}, Options{Now: fixedNow}); err == nil {
		t.Error("expected error for undated event")
	}

	if _, err := Serialize(nil, Options{DefaultStart: "noon"}); err == nil {
		t.Error("expected error for bad default start")
	}
}

func TestParseDocumentRoundTrip(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	series := scenarioSeries()
	series.StartTime = "10:30"
	series.EndTime = "11:45"
	series.Notes = "Room 204; bring laptop, charger"
	series.SourceFile = "syllabus.pdf"

	occ := model.Event{
		ID: "lec-2025-09-10", Title: "Lecture", Date: "2025-09-10", StartTime: "23:30",
		Type: model.TypeSession, OriginalID: "lec",
	}
	exam := model.Event{ID: "mid", Title: "Midterm", Date: "2025-10-15", StartTime: "09:00", Type: model.TypeExam}

	doc, err := Serialize([]model.Event{series, occ, exam}, Options{Location: loc, Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := ParseDocument(doc.Data, loc)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	s := got[0]
	if s.ID != "lec" || s.Title != "Lecture" || s.Date != "2025-09-03" || s.StartTime != "10:30" || s.EndTime != "11:45" {
		t.Errorf("series fields: %+v", s)
	}
	if s.Notes != series.Notes || s.SourceFile != "syllabus.pdf" || s.OriginalTypeRaw != "Lecture" || s.Type != model.TypeSession {
		t.Errorf("series metadata: %+v", s)
	}
	if s.Recurrence == nil {
		t.Fatal("recurrence lost")
	}
	if s.Recurrence.Until != "2025-09-17" || s.Recurrence.EffectiveInterval() != 1 ||
		strings.Join(model.WeekdayCodes(s.Recurrence.ByDay), ",") != "WE" {
		t.Errorf("recurrence: %+v", s.Recurrence)
	}

	// The default-duration end crosses midnight in KST, so no end time comes back.
	if got[1].Date != "2025-09-10" || got[1].StartTime != "23:30" || got[1].EndTime != "" || got[1].OriginalID != "lec" {
		t.Errorf("occurrence: %+v", got[1])
	}
	if got[2].Type != model.TypeExam || got[2].Recurrence != nil {
		t.Errorf("exam: %+v", got[2])
	}
}

func TestParseDocumentSkipsBrokenEvents(t *testing.T) {
	body := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"SUMMARY:no uid",
		"DTSTART:20250903T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:holiday-1",
		"SUMMARY:Fall break",
		"CATEGORIES:holiday",
		"DTSTART;VALUE=DATE:20251013",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:weird",
		"SUMMARY:Unknown category",
		"CATEGORIES:party",
		"DTSTART:20251020T120000Z",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	got, err := ParseDocument([]byte(body), nil)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if got[0].Date != "2025-10-13" || got[0].StartTime != "" || got[0].Type != model.TypeHoliday {
		t.Errorf("all-day event: %+v", got[0])
	}
	if got[1].Type != model.TypeOther || got[1].StartTime != "12:00" {
		t.Errorf("unknown category event: %+v", got[1])
	}

	if _, err := ParseDocument(nil, nil); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
	if _, err := ParseDocument([]byte("SUMMARY:x\r\n"), nil); err == nil {
		t.Error("expected error for a document without VCALENDAR")
	}
}

// ruleDates runs the RRULE of the first VEVENT in doc through rrule-go from
// dtstart and returns the occurrence dates as seen in loc.
func ruleDates(t *testing.T, doc []byte, dtstart time.Time, loc *time.Location) []string {
	t.Helper()
	var value string
	for _, line := range strings.Split(string(doc), "\r\n") {
		if strings.HasPrefix(line, "RRULE:") {
			value = strings.TrimPrefix(line, "RRULE:")
			break
		}
	}
	if value == "" {
		t.Fatalf("no RRULE in document:\n%s", doc)
	}
	opt, err := rrule.StrToROption(value)
	if err != nil {
		t.Fatalf("StrToROption(%q): %v", value, err)
	}
	opt.Dtstart = dtstart
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, tm := range rule.All() {
		out = append(out, tm.In(loc).Format(model.DateLayout))
	}
	return out
}

func TestSerializeNamedZoneKeepsLocalWeekday(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}
	series := scenarioSeries()
	series.StartTime = "18:00"
	series.EndTime = "19:15"

	doc, err := Serialize([]model.Event{series}, Options{Location: la, Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	body := string(doc.Data)
	for _, want := range []string{
		"X-WR-TIMEZONE:America/Los_Angeles",
		"DTSTART;TZID=America/Los_Angeles:20250903T180000",
		"DTEND;TZID=America/Los_Angeles:20250903T191500",
		"RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=WE;UNTIL=20250918T065959Z",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %q:\n%s", want, body)
		}
	}

	dates := ruleDates(t, doc.Data, time.Date(2025, 9, 3, 18, 0, 0, 0, la), la)
	if got := strings.Join(dates, ","); got != "2025-09-03,2025-09-10,2025-09-17" {
		t.Errorf("rrule occurrences = %s", got)
	}

	got, err := ParseDocument(doc.Data, la)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(got) != 1 || got[0].Date != "2025-09-03" || got[0].StartTime != "18:00" || got[0].EndTime != "19:15" {
		t.Fatalf("round trip: %+v", got)
	}
	rec := got[0].Recurrence
	if rec == nil || rec.Until != "2025-09-17" || strings.Join(model.WeekdayCodes(rec.ByDay), ",") != "WE" {
		t.Errorf("round trip recurrence: %+v", rec)
	}
}

func TestSerializeUnnamedZoneShiftsWeekday(t *testing.T) {
	zone := time.FixedZone("UTC-07", -7*60*60)
	series := scenarioSeries()
	series.StartTime = "18:00"
	series.Recurrence.ByDay = []model.Weekday{model.Monday, model.Wednesday}

	doc, err := Serialize([]model.Event{series}, Options{Location: zone, Now: fixedNow})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	body := string(doc.Data)
	for _, want := range []string{
		"DTSTART:20250904T010000Z",
		"RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=TU,TH;UNTIL=20250918T065959Z",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "X-WR-TIMEZONE") || strings.Contains(body, "TZID=") {
		t.Errorf("unnamed zone written as TZID:\n%s", body)
	}

	dates := ruleDates(t, doc.Data, time.Date(2025, 9, 4, 1, 0, 0, 0, time.UTC), zone)
	if got := strings.Join(dates, ","); got != "2025-09-03,2025-09-08,2025-09-10,2025-09-15,2025-09-17" {
		t.Errorf("rrule occurrences = %s", got)
	}

	got, err := ParseDocument(doc.Data, zone)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(got) != 1 || got[0].Date != "2025-09-03" || got[0].StartTime != "18:00" {
		t.Fatalf("round trip: %+v", got)
	}
	rec := got[0].Recurrence
	if rec == nil || rec.Until != "2025-09-17" || strings.Join(model.WeekdayCodes(rec.ByDay), ",") != "MO,WE" {
		t.Errorf("round trip recurrence: %+v", rec)
	}
}

// The expander and rrule-go must agree on which days a weekly rule hits.
func TestExpandMatchesRRule(t *testing.T) {
	series := scenarioSeries()
	series.Recurrence.Until = "2025-12-10"
	series.Recurrence.ByDay = []model.Weekday{model.Monday, model.Wednesday}

	rng, err := recurrence.NewRange("2025-09-01", "2025-12-31")
	if err != nil {
		t.Fatal(err)
	}
	var ours []string
	for _, o := range recurrence.Expand([]model.Event{series}, rng) {
		ours = append(ours, o.Date)
	}

	s, err := FormatRule(*series.Recurrence)
	if err != nil {
		t.Fatal(err)
	}
	opt, err := rrule.StrToROption(s)
	if err != nil {
		t.Fatal(err)
	}
	opt.Dtstart = time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		t.Fatal(err)
	}
	var theirs []string
	for _, tm := range rule.All() {
		theirs = append(theirs, tm.Format(model.DateLayout))
	}

	if strings.Join(ours, ",") != strings.Join(theirs, ",") {
		t.Errorf("expander and rrule disagree:\n ours   %v\n theirs %v", ours, theirs)
	}
}
