package infer

import (
	"fmt"
	"strings"
	"testing"

	"syllabuscal/internal/model"
)

func session(date string) model.Event {
	return model.Event{ID: "s-" + date, Title: "Lecture", Date: date, Type: model.TypeSession}
}

func testPolicy() Policy {
	n := 0
	p := DefaultPolicy()
	p.NewID = func() string {
		n++
		return fmt.Sprintf("inf-%d", n)
	}
	return p
}

func TestRoutineSessionsFillsDominantWeekdays(t *testing.T) {
	// Mondays and Wednesdays, with 09-10 (Wed) and 09-15 (Mon) missing.
	in := model.Result{
		Events: []model.Event{
			session("2025-09-01"),
			session("2025-09-03"),
			session("2025-09-08"),
			{ID: "exam", Title: "Midterm", Date: "2025-09-12", Type: model.TypeExam},
			session("2025-09-17"),
		},
		Warnings: []string{"earlier"},
	}

	out := RoutineSessions(in, testPolicy())

	var inferred []string
	for _, ev := range out.Events {
		if ev.OriginalTypeRaw == InferredTypeRaw {
			inferred = append(inferred, ev.Date)
			if ev.Title != InferredTitle || ev.Type != model.TypeSession || ev.Notes != InferredNotes {
				t.Errorf("unexpected inferred event shape: %+v", ev)
			}
		}
	}
	want := []string{"2025-09-10", "2025-09-15"}
	if strings.Join(inferred, ",") != strings.Join(want, ",") {
		t.Fatalf("inferred %v, want %v", inferred, want)
	}

	for i := 1; i < len(out.Events); i++ {
		if out.Events[i-1].Date > out.Events[i].Date {
			t.Fatalf("events not sorted at %d: %s > %s", i, out.Events[i-1].Date, out.Events[i].Date)
		}
	}

	if len(out.Warnings) != 2 || out.Warnings[0] != "earlier" {
		t.Fatalf("warnings: %v", out.Warnings)
	}
	if out.Warnings[1] != "Added 2 inferred session(s) to fill schedule gaps." {
		t.Errorf("unexpected warning: %s", out.Warnings[1])
	}
	if len(in.Warnings) != 1 {
		t.Errorf("input warnings mutated: %v", in.Warnings)
	}
}

func TestRoutineSessionsNeedsEvidence(t *testing.T) {
	tests := []struct {
		name   string
		events []model.Event
	}{
		{
			name:   "fewer than three sessions",
			events: []model.Event{session("2025-09-01"), session("2025-09-15")},
		},
		{
			name: "no weekday repeats",
			events: []model.Event{
				session("2025-09-01"), // Mon
				session("2025-09-09"), // Tue
				session("2025-09-17"), // Wed
			},
		},
		{
			name: "non-session events do not count",
			events: []model.Event{
				{Title: "HW", Date: "2025-09-01", Type: model.TypeAssignment},
				{Title: "HW", Date: "2025-09-08", Type: model.TypeAssignment},
				{Title: "HW", Date: "2025-09-15", Type: model.TypeAssignment},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := model.Result{Events: tt.events}
			out := RoutineSessions(in, testPolicy())
			if len(out.Events) != len(tt.events) || len(out.Warnings) != 0 {
				t.Fatalf("expected pass-through, got %d events, warnings %v", len(out.Events), out.Warnings)
			}
		})
	}
}

func TestRoutineSessionsStaysWithinObservedRange(t *testing.T) {
	in := model.Result{Events: []model.Event{
		session("2025-09-02"), // Tue
		session("2025-09-09"),
		session("2025-09-23"),
	}}

	out := RoutineSessions(in, testPolicy())

	if len(out.Events) != 4 {
		t.Fatalf("expected exactly one gap fill, got %d events", len(out.Events))
	}
	if out.Events[2].Date != "2025-09-16" || out.Events[2].ID != "inf-1" {
		t.Errorf("unexpected fill: %+v", out.Events[2])
	}
	if out.Events[0].Date != "2025-09-02" || out.Events[3].Date != "2025-09-23" {
		t.Errorf("range grew: %s..%s", out.Events[0].Date, out.Events[3].Date)
	}
}

func TestRoutineSessionsNoGapsStillSorts(t *testing.T) {
	in := model.Result{Events: []model.Event{
		session("2025-09-16"),
		session("2025-09-02"),
		session("2025-09-09"),
	}}

	out := RoutineSessions(in, testPolicy())

	if len(out.Warnings) != 0 {
		t.Fatalf("no fills expected, got %v", out.Warnings)
	}
	if out.Events[0].Date != "2025-09-02" || out.Events[2].Date != "2025-09-16" {
		t.Errorf("expected sorted output, got %s,%s,%s", out.Events[0].Date, out.Events[1].Date, out.Events[2].Date)
	}
}

func TestRoutineSessionsCustomThreshold(t *testing.T) {
	in := model.Result{Events: []model.Event{
		session("2025-09-01"),
		session("2025-09-08"),
		session("2025-09-22"),
	}}
	p := testPolicy()
	p.MinWeekdayHits = 4

	out := RoutineSessions(in, p)
	if len(out.Events) != 3 {
		t.Fatalf("threshold ignored: %d events", len(out.Events))
	}
}
