package recurrence

import (
	"errors"
	"strings"

	"syllabuscal/internal/model"
)

var (
	ErrNotOccurrence  = errors.New("recurrence: event is not an expanded occurrence")
	ErrSeriesNotFound = errors.New("recurrence: series not found")
	ErrDateChanged    = errors.New("recurrence: occurrence date cannot be edited")
)

// OccurrenceID is the id of the occurrence of seriesID on date: the series
// id, a hyphen, and the YYYY-MM-DD date. It depends on nothing else, so
// expanding the same series twice yields the same ids.
func OccurrenceID(seriesID, date string) string {
	return seriesID + "-" + date
}

// OccurrenceDate recovers the date encoded in an occurrence id.
func OccurrenceDate(seriesID, occurrenceID string) (string, bool) {
	date, ok := strings.CutPrefix(occurrenceID, seriesID+"-")
	if !ok {
		return "", false
	}
	if _, err := model.ParseDate(date); err != nil {
		return "", false
	}
	return date, true
}

// ApplyOccurrenceEdit writes the editable fields of an edited occurrence
// back onto its series and returns the updated collapsed list. The input
// slice is not modified and no series is ever added.
func ApplyOccurrenceEdit(collapsed []model.Event, edited model.Event) ([]model.Event, error) {
	if !edited.IsOccurrence() {
		return nil, ErrNotOccurrence
	}

	idx := -1
	for i, ev := range collapsed {
		if ev.ID == edited.OriginalID && ev.IsSeries() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrSeriesNotFound
	}

	if date, ok := OccurrenceDate(edited.OriginalID, edited.ID); ok && date != edited.Date {
		return nil, ErrDateChanged
	}

	out := append([]model.Event(nil), collapsed...)
	series := out[idx]
	series.Recurrence = series.Recurrence.Clone()
	series.Title = edited.Title
	series.StartTime = edited.StartTime
	series.EndTime = edited.EndTime
	series.Type = edited.Type
	series.Notes = edited.Notes
	out[idx] = series
	return out, nil
}
