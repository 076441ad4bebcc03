package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "syllabuscal/internal/log"
	"syllabuscal/internal/model"
)

var ErrEmptyDocument = errors.New("ics: empty document")

// ParseDocument reads a calendar produced by Serialize (or any calendar
// with weekly rules) back into canonical events.
//
//   - Instants are converted to loc (UTC when nil) before the date and
//     wall-clock times are taken.
//   - All-day events (VALUE=DATE or a bare YYYYMMDD) carry no times.
//   - An RRULE becomes a Recurrence; RELATED-TO becomes OriginalID.
//   - A VEVENT that cannot be read is logged and skipped; the rest of the
//     document is still returned.
func ParseDocument(body []byte, loc *time.Location) ([]model.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyDocument
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	events := make([]model.Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "uid", comp.Id(), "err", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Notes = p.Value
	}

	out.Type = model.TypeOther
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		// CATEGORIES may hold a list; the first known category wins.
		for _, c := range strings.Split(p.Value, ",") {
			if t, ok := model.ParseEventType(c); ok {
				out.Type = t
				break
			}
		}
	}
	if p := ve.GetProperty(PropertyOriginalType); p != nil {
		out.OriginalTypeRaw = p.Value
	}
	if p := ve.GetProperty(PropertySource); p != nil {
		out.SourceFile = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRelatedTo); p != nil {
		out.OriginalID = p.Value
	}

	// Days between the DTSTART date the rule was written against and the
	// date kept on the event.
	shift := 0
	if isAllDay(ve.GetProperty(ical.ComponentPropertyDtStart)) {
		day, err := ve.GetAllDayStartAt()
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.Date = day.Format(model.DateLayout)
	} else {
		raw, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		start := raw.In(loc)
		shift = dayShift(start, raw)
		out.Date = start.Format(model.DateLayout)
		out.StartTime = start.Format(model.TimeLayout)

		if end, err := ve.GetEndAt(); err == nil {
			end = end.In(loc)
			if model.FormatDate(end) == out.Date && end.After(start) {
				out.EndTime = end.Format(model.TimeLayout)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		rec, err := parseRule(p.Value, loc, shift)
		if err != nil {
			return out, err
		}
		out.Recurrence = &rec
	}

	return out, nil
}

func isAllDay(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
