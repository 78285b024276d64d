package task

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// invalidDateLabel is shown for dates that cannot be parsed.
const invalidDateLabel = "--/--"

// ParseDate parses an ISO calendar date. Full RFC 3339 timestamps are
// accepted and reduced to their calendar date as written, with no time zone
// conversion.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	d, err := time.Parse(DateLayout, s)
	if err == nil {
		return d, nil
	}
	ts, tsErr := time.Parse(time.RFC3339, s)
	if tsErr != nil {
		return time.Time{}, err
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatDate renders an ISO date as zero-padded month/day, e.g. "03/05".
func FormatDate(s string) string {
	d, err := ParseDate(s)
	if err != nil {
		return invalidDateLabel
	}
	return d.Format("01/02")
}
