// Package timerange turns user-supplied sync bounds into an absolute
// [since, until) instant pair.
package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BoundError reports an unparseable bound or an inverted range. The CLI maps
// it to the usage exit code.
type BoundError struct {
	Bound  string
	Reason string
}

func (e *BoundError) Error() string {
	if e.Bound == "" {
		return "invalid time range: " + e.Reason
	}
	return fmt.Sprintf("invalid time bound %q: %s", e.Bound, e.Reason)
}

var relUnits = map[byte]time.Duration{
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseBound parses a single bound:
//
//   - date-only "2026-02-01" (midnight UTC)
//   - RFC 3339 date-time, with or without zone offset (zoneless is UTC)
//   - signed relative offset "+7d", "-12h", "+30m", "-1w" from now
func ParseBound(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &BoundError{Bound: s, Reason: "empty"}
	}

	if s[0] == '+' || s[0] == '-' {
		if len(s) < 3 {
			return time.Time{}, &BoundError{Bound: s, Reason: "relative offset needs a count and a unit (m/h/d/w)"}
		}
		unit, ok := relUnits[s[len(s)-1]]
		if !ok {
			return time.Time{}, &BoundError{Bound: s, Reason: "unknown unit (use m, h, d or w)"}
		}
		digits := s[1 : len(s)-1]
		for i := 0; i < len(digits); i++ {
			if digits[i] < '0' || digits[i] > '9' {
				return time.Time{}, &BoundError{Bound: s, Reason: "bad offset count"}
			}
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return time.Time{}, &BoundError{Bound: s, Reason: "bad offset count"}
		}
		d := time.Duration(n) * unit
		if s[0] == '-' {
			d = -d
		}
		return now.Add(d), nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Location() == time.UTC || layout != time.RFC3339 {
				return t.UTC(), nil
			}
			return t, nil
		}
	}
	return time.Time{}, &BoundError{Bound: s, Reason: "not a date, RFC 3339 date-time, or relative offset"}
}

// Resolve computes the [since, until) window. Empty bounds fall back to
// now-lookbackDays / now+lookaheadDays.
func Resolve(since, until string, now time.Time, lookbackDays, lookaheadDays int) (time.Time, time.Time, error) {
	start := now.AddDate(0, 0, -lookbackDays)
	end := now.AddDate(0, 0, lookaheadDays)

	if since != "" {
		t, err := ParseBound(since, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if until != "" {
		t, err := ParseBound(until, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, &BoundError{
			Reason: fmt.Sprintf("until must be after since (got %s -> %s)",
				start.Format(time.RFC3339), end.Format(time.RFC3339)),
		}
	}
	return start, end, nil
}
