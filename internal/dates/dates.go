// Package dates converts between the DD/MM/YYYY form used while an order is
// being edited and the YYYY-MM-DD form that is persisted.
package dates

import (
	"errors"
	"strings"
	"time"
)

const (
	DisplayLayout = "02/01/2006"
	ISOLayout     = "2006-01-02"

	// Accepts single-digit day and month as well as zero-padded ones.
	displayParseLayout = "2/1/2006"
)

var ErrInvalidDate = errors.New("invalid date, use DD/MM/YYYY")

// ParseDisplay parses a DD/MM/YYYY string into a date at midnight in loc.
// An ISO date is accepted too, since drafts come back from storage in that form.
func ParseDisplay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(displayParseLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(ISOLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}

// ToISO converts a display date to YYYY-MM-DD, rejecting anything unparsable.
func ToISO(display string) (string, error) {
	t, err := ParseDisplay(display, time.UTC)
	if err != nil {
		return "", err
	}
	return t.Format(ISOLayout), nil
}

// FromISO converts a persisted YYYY-MM-DD date back to DD/MM/YYYY.
func FromISO(iso string) (string, error) {
	t, err := time.Parse(ISOLayout, strings.TrimSpace(iso))
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(DisplayLayout), nil
}

// Day truncates t to its calendar date in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// BeforeDay reports whether d falls on a calendar day strictly before ref.
// Time of day is ignored on both sides.
func BeforeDay(d, ref time.Time, loc *time.Location) bool {
	return Day(d, loc).Before(Day(ref, loc))
}
