package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"

	"syllabuscal/internal/model"
)

var (
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?$`)

	weekdayPrefixRe = regexp.MustCompile(`(?i)^(monday|tuesday|tues|tue|wednesday|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat|sunday|sun|mon)\.?\s*,?\s+`)
	naturalDateRe   = regexp.MustCompile(`(?i)^(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:,\s*(\d{4}|\d{2}))?$`)
)

var monthNames = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// freeTextLayouts are tried before falling back to the natural-language
// parser.
var freeTextLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// dateParser resolves free-form date strings into YYYY-MM-DD.
type dateParser struct {
	now          time.Time // in the configured location
	rolloverDays int
	when         *when.Parser
}

func newDateParser(now time.Time, rolloverDays int) *dateParser {
	// Only the English rules: the shared slash rule reads 9/3 day-first.
	w := when.New(nil)
	w.Add(en.All...)
	return &dateParser{
		now:          now,
		rolloverDays: rolloverDays,
		when:         w,
	}
}

// parse strips a leading weekday and then tries, in order: ISO, slash form,
// "Month D[, YYYY]" and generic free text. An ISO- or slash-shaped string
// that names no real day fails outright. ok is false when nothing matched.
func (p *dateParser) parse(raw string) (string, bool) {
	s := strings.TrimSpace(weekdayPrefixRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	switch {
	case s == "":
		return "", false
	case isoDateRe.MatchString(s):
		return parseISODate(s)
	case slashDateRe.MatchString(s):
		return p.parseSlashDate(s)
	}
	if d, ok := p.parseNaturalDate(s); ok {
		return d, true
	}
	return p.parseFreeText(s)
}

func parseISODate(s string) (string, bool) {
	if !isoDateRe.MatchString(s) {
		return "", false
	}
	if _, err := model.ParseDate(s); err != nil {
		return "", false
	}
	return s, true
}

// parseSlashDate handles M/D, M/D/YY and M/D/YYYY. A year-less date more
// than rolloverDays in the past is assumed to mean next year.
func (p *dateParser) parseSlashDate(s string) (string, bool) {
	m := slashDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])

	year := p.now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}

	dt, ok := civilDate(year, month, day)
	if !ok {
		return "", false
	}

	if m[3] == "" {
		today := model.CivilDate(p.now)
		cutoff := today.AddDate(0, 0, -p.rolloverDays)
		if dt.Before(cutoff) {
			if next, ok := civilDate(year+1, month, day); ok {
				dt = next
			}
		}
	}
	return model.FormatDate(dt), true
}

// parseNaturalDate handles "Month D" and "Month D, YYYY". The weekday prefix
// is already stripped. Unlike the slash form there is no past-date rollover.
func (p *dateParser) parseNaturalDate(s string) (string, bool) {
	m := naturalDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	month := monthNames[strings.ToLower(m[1])]
	day, _ := strconv.Atoi(m[2])

	year := p.now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}

	dt, ok := civilDate(year, int(month), day)
	if !ok {
		return "", false
	}
	return model.FormatDate(dt), true
}

func (p *dateParser) parseFreeText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range freeTextLayouts {
		if t, err := time.ParseInLocation(layout, s, p.now.Location()); err == nil {
			return model.FormatDate(t), true
		}
	}

	// A partial match would date the record from a fragment of the text.
	r, err := p.when.Parse(s, p.now)
	if err != nil || r == nil || r.Index != 0 || len(r.Text) != len(s) {
		return "", false
	}
	return model.FormatDate(r.Time.In(p.now.Location())), true
}

// civilDate builds a UTC-midnight date, rejecting out-of-range components
// instead of letting time.Date normalize them (2/30 is not March 2).
func civilDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
