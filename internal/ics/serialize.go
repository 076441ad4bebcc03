// Package ics renders canonical events as an iCalendar document and reads
// such documents back.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"syllabuscal/internal/model"
)

const (
	DefaultFilename  = "syllabus-events.ics"
	ContentType      = "text/calendar"
	DefaultProductID = "-//syllabuscal//Syllabus Calendar//EN"
	DefaultStart     = "09:00"
	DefaultDuration  = 60 * time.Minute

	// PropertyOriginalType carries Event.OriginalTypeRaw.
	PropertyOriginalType = ical.ComponentProperty("X-SYLLABUS-ORIGINAL-TYPE")
	// PropertySource carries Event.SourceFile.
	PropertySource = ical.ComponentProperty("X-SYLLABUS-SOURCE")
)

const (
	clockLayout = model.DateLayout + " " + model.TimeLayout
	localLayout = "20060102T150405"
)

// Options controls document generation. Zero values fall back to the
// package defaults, UTC and time.Now.
type Options struct {
	Location        *time.Location
	DefaultStart    string
	DefaultDuration time.Duration
	ProductID       string
	CalendarName    string
	Filename        string
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DefaultStart == "" {
		o.DefaultStart = DefaultStart
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = DefaultDuration
	}
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.Filename == "" {
		o.Filename = DefaultFilename
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Document is a generated calendar file.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Serialize renders events, collapsed or expanded, as one VCALENDAR. A
// series becomes a single VEVENT with an RRULE. Any invalid event or rule
// fails the whole document; no partial output is returned.
func Serialize(events []model.Event, opts Options) (Document, error) {
	opts = opts.withDefaults()
	if _, err := time.Parse(model.TimeLayout, opts.DefaultStart); err != nil {
		return Document{}, fmt.Errorf("ics: default start %q: %w", opts.DefaultStart, err)
	}

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	if opts.CalendarName != "" {
		cal.SetXWRCalName(opts.CalendarName)
	}
	if tzid, ok := zoneID(opts.Location); ok {
		cal.SetXWRTimezone(tzid)
	}

	stamp := opts.Now()
	for _, ev := range events {
		if err := addEvent(cal, ev, opts, stamp); err != nil {
			return Document{}, err
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return Document{}, fmt.Errorf("ics: serialize: %w", err)
	}
	return Document{
		Filename:    opts.Filename,
		ContentType: ContentType,
		Data:        buf.Bytes(),
	}, nil
}

func addEvent(cal *ical.Calendar, ev model.Event, opts Options, stamp time.Time) error {
	start, end, err := eventSpan(ev, opts)
	if err != nil {
		return fmt.Errorf("ics: event %q: %w", ev.ID, err)
	}

	// A zone with an IANA name is written as TZID plus local wall time, so
	// BYDAY keeps the event's own weekdays. Otherwise the instants go out in
	// UTC and BYDAY follows the UTC date of DTSTART.
	tzid, named := zoneID(opts.Location)
	if named && !sameOffsets(tzid, start, end) {
		named = false
	}
	shift := 0
	if !named {
		shift = dayShift(start.UTC(), start)
	}

	var rule string
	if ev.Recurrence != nil {
		rule, err = formatRule(*ev.Recurrence, opts.Location, shift)
		if err != nil {
			return fmt.Errorf("ics: event %q: %w", ev.ID, err)
		}
	}

	uid := ev.ID
	if uid == "" {
		uid = uuid.NewString()
	}

	vev := cal.AddEvent(uid)
	vev.SetDtStampTime(stamp)
	if named {
		vev.SetProperty(ical.ComponentPropertyDtStart, start.Format(localLayout), ical.WithTZID(tzid))
		vev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localLayout), ical.WithTZID(tzid))
	} else {
		vev.SetStartAt(start)
		vev.SetEndAt(end)
	}
	vev.SetSummary(ev.Title)
	if ev.Notes != "" {
		vev.SetDescription(ev.Notes)
	}
	if ev.Type != "" {
		vev.AddCategory(string(ev.Type))
	}
	if rule != "" {
		vev.AddRrule(rule)
	}
	if ev.OriginalID != "" {
		vev.SetProperty(ical.ComponentPropertyRelatedTo, ev.OriginalID)
	}
	if ev.OriginalTypeRaw != "" {
		vev.SetProperty(PropertyOriginalType, ev.OriginalTypeRaw)
	}
	if ev.SourceFile != "" {
		vev.SetProperty(PropertySource, ev.SourceFile)
	}
	return nil
}

var errBadDate = errors.New("date is not YYYY-MM-DD")

// eventSpan resolves the start and end instants of ev in opts.Location.
// A missing or unreadable start time uses the default start. An end time is
// honoured only when it falls after the start; otherwise the default
// duration applies.
func eventSpan(ev model.Event, opts Options) (start, end time.Time, err error) {
	if _, err := model.ParseDate(ev.Date); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", errBadDate, ev.Date)
	}

	start, err = time.ParseInLocation(clockLayout, ev.Date+" "+ev.StartTime, opts.Location)
	if ev.StartTime == "" || err != nil {
		start, err = time.ParseInLocation(clockLayout, ev.Date+" "+opts.DefaultStart, opts.Location)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	end = start.Add(opts.DefaultDuration)
	if ev.EndTime != "" {
		if e, perr := time.ParseInLocation(clockLayout, ev.Date+" "+ev.EndTime, opts.Location); perr == nil && e.After(start) {
			end = e
		}
	}
	return start, end, nil
}

// zoneID returns the IANA name of loc when readers can resolve it. UTC and
// Local are reported as unnamed.
func zoneID(loc *time.Location) (string, bool) {
	name := loc.String()
	switch name {
	case "", "UTC", "Local":
		return "", false
	}
	if _, err := time.LoadLocation(name); err != nil {
		return "", false
	}
	return name, true
}

// sameOffsets reports whether the zone database agrees with the instants'
// own offsets, which a fixed zone sharing a database name may not.
func sameOffsets(tzid string, ts ...time.Time) bool {
	db, err := time.LoadLocation(tzid)
	if err != nil {
		return false
	}
	for _, t := range ts {
		_, want := t.Zone()
		if _, got := t.In(db).Zone(); got != want {
			return false
		}
	}
	return true
}
