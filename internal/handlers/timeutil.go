package handlers

import (
	"strings"
	"time"

	"github.com/lojf/kidstudio/internal/apperr"
)

const isoDate = "2006-01-02"

// parseDay reads a calendar day, "2006-01-02" or RFC 3339. Empty input is
// the zero time so required-field checks report it.
func parseDay(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(isoDate, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, apperr.Validation(field, "invalid_date")
}

func parseDayPtr(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDay(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseMoment reads an event start. Times without an offset are wall clock
// in loc.
func parseMoment(field, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", isoDate} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation(field, "invalid_datetime")
}

// dayRange turns from/to query days in loc into a half-open UTC window;
// to is inclusive. Missing bounds stay nil.
func dayRange(from, to string, loc *time.Location) (*time.Time, *time.Time, error) {
	var lo, hi *time.Time
	if strings.TrimSpace(from) != "" {
		d, err := time.ParseInLocation(isoDate, strings.TrimSpace(from), loc)
		if err != nil {
			return nil, nil, apperr.Validation("from", "invalid_date")
		}
		d = d.UTC()
		lo = &d
	}
	if strings.TrimSpace(to) != "" {
		d, err := time.ParseInLocation(isoDate, strings.TrimSpace(to), loc)
		if err != nil {
			return nil, nil, apperr.Validation("to", "invalid_date")
		}
		d = d.AddDate(0, 0, 1).UTC()
		hi = &d
	}
	return lo, hi, nil
}

func fmtISODate(d time.Time) string {
	return d.UTC().Format(isoDate)
}

// fmtLocal renders an event time on the studio clock, e.g. "2024-01-03 13:00".
func fmtLocal(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}
