package verification

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnparseableDate is returned when no layout accepts the input.
var ErrUnparseableDate = errors.New("unparseable date")

var (
	ordinalSuffix = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)
	yearOnly      = regexp.MustCompile(`^\d{4}$`)
	spaces        = regexp.MustCompile(`\s+`)
)

// Explicit layouts are tried before the generic parser so day-first spoken
// forms ("25 March 1986") are not misread. Numeric forms read month-first and
// fall back to day-first only when the month-first reading is impossible.
// Month-year forms resolve to day 1.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"01-02-2006",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"January 2006",
	"Jan 2006",
	"2006-01",
}

func normalizeDate(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, " of ", " ")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// ParseDate leniently parses a calendar date. The result is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	n := normalizeDate(s)
	if n == "" || yearOnly.MatchString(n) {
		return time.Time{}, ErrUnparseableDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, n); err == nil {
			return dateOnly(t), nil
		}
	}
	t, err := dateparse.ParseIn(n, time.UTC, dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return time.Time{}, ErrUnparseableDate
	}
	return dateOnly(t), nil
}

// SameDate reports whether both inputs parse to the same calendar date.
// Any parse failure is a mismatch.
func SameDate(a, b string) bool {
	ta, err := ParseDate(a)
	if err != nil {
		return false
	}
	tb, err := ParseDate(b)
	if err != nil {
		return false
	}
	return ta.Equal(tb)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
