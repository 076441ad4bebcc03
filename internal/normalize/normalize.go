// Package normalize turns loosely-typed records from the extraction model
// into canonical events.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"syllabuscal/internal/model"
)

const (
	DefaultPastRolloverDays = 30
	DefaultMaxTitleLength   = 120

	untitled = "Untitled"
)

var timeRe = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})$`)

// Options controls a Normalizer. Zero values take the defaults above,
// time.Now, time.UTC and random UUIDs.
type Options struct {
	Now      func() time.Time
	Location *time.Location
	NewID    func() string

	// PastRolloverDays: a year-less slash date further in the past than
	// this is moved to next year.
	PastRolloverDays int
	MaxTitleLength   int
}

// Normalizer converts raw records into canonical events.
type Normalizer struct {
	opts Options
}

// New returns a Normalizer with defaults applied to opts.
func New(opts Options) *Normalizer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.PastRolloverDays <= 0 {
		opts.PastRolloverDays = DefaultPastRolloverDays
	}
	if opts.MaxTitleLength <= 0 {
		opts.MaxTitleLength = DefaultMaxTitleLength
	}
	return &Normalizer{opts: opts}
}

// Normalize converts every record it can date. Undated or undatable records
// are dropped and reported in a single aggregate warning.
func (n *Normalizer) Normalize(raws []model.RawEvent) model.Result {
	dates := newDateParser(n.opts.Now().In(n.opts.Location), n.opts.PastRolloverDays)

	events := make([]model.Event, 0, len(raws))
	skipped := 0

	for _, raw := range raws {
		ev, ok := n.normalizeOne(raw, dates)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}

	// Every emitted date must already be ISO; this only guards against a
	// parser regression.
	valid := events[:0]
	for _, ev := range events {
		if isoDateRe.MatchString(ev.Date) {
			valid = append(valid, ev)
		}
	}

	res := model.Result{Events: valid}
	if skipped > 0 {
		res = res.WithWarnings(fmt.Sprintf(
			"Skipped %d item(s) with missing/invalid date (model produced entries without a concrete date).", skipped))
	}
	return res
}

func (n *Normalizer) normalizeOne(raw model.RawEvent, dates *dateParser) (model.Event, bool) {
	rawDate, ok := raw.Date.Value()
	if !ok {
		return model.Event{}, false
	}
	date, ok := dates.parse(rawDate)
	if !ok {
		return model.Event{}, false
	}

	title, ok := raw.Title.Value()
	if !ok {
		title = untitled
	}
	title = truncateTitle(title, n.opts.MaxTitleLength)

	ev := model.Event{
		ID:    n.opts.NewID(),
		Title: title,
		Date:  date,
	}

	if rawType, ok := raw.Type.Value(); ok {
		ev.Type = MapType(rawType)
		ev.OriginalTypeRaw = rawType
	} else {
		ev.Type = MapType(title)
	}

	if v, ok := raw.StartTime.Value(); ok {
		ev.StartTime, _ = NormalizeTime(v)
	}
	if v, ok := raw.EndTime.Value(); ok {
		ev.EndTime, _ = NormalizeTime(v)
	}
	if v, ok := raw.Notes.Value(); ok {
		ev.Notes = v
	}

	return ev, true
}

// NormalizeTime zero-pads H:MM / HH:MM (and H:M) to HH:MM. Anything else,
// including out-of-range clock values, is rejected.
func NormalizeTime(s string) (string, bool) {
	m := timeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func truncateTitle(s string, limit int) string {
	r := []rune(s)
	if len(r) > limit {
		r = r[:limit]
	}
	return strings.TrimSpace(string(r))
}
