// ABOUTME: Opening-hours evaluation in the venue's own timezone
// ABOUTME: Half-open [open, close) windows with midnight wraparound

package geofence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)


// ParseClock parses an "HH:MM" (or "HH:MM:SS") time of day into minutes past midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// IsOpen reports whether now falls inside [opening, closing). now must already be
// expressed in the venue's timezone; only its wall clock is read.
//
// Empty opening or closing means no schedule is configured and the venue is open.
func IsOpen(opening, closing string, now time.Time) (bool, error) {
	if opening == "" || closing == "" {
		return true, nil
	}
	openMin, err := ParseClock(opening)
	if err != nil {
		return false, err
	}
	closeMin, err := ParseClock(closing)
	if err != nil {
		return false, err
	}
	return withinWindow(openMin, closeMin, now.Hour()*60+now.Minute()), nil
}

func withinWindow(openMin, closeMin, nowMin int) bool {
	switch {
	case openMin == closeMin:
		return true
	case openMin < closeMin:
		return nowMin >= openMin && nowMin < closeMin
	default:
		// wraps past midnight
		return nowMin >= openMin || nowMin < closeMin
	}
}

// Hours is a venue's daily schedule anchored to its timezone.
type Hours struct {
	Open     string
	Close    string
	Location *time.Location
}

// NewHours resolves the IANA timezone name. An empty name means UTC.
func NewHours(opening, closing, timezone string) (Hours, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return Hours{}, fmt.Errorf("loading timezone %q: %w", timezone, err)
		}
	}
	return Hours{Open: opening, Close: closing, Location: loc}, nil
}

// OpenAt converts t into the venue timezone and evaluates the window.
func (h Hours) OpenAt(t time.Time) (bool, error) {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	return IsOpen(h.Open, h.Close, t.In(loc))
}

// Describe renders the window for customer-facing messages, e.g. "09:00–22:00".
func (h Hours) Describe() string {
	opening, closing := h.Open, h.Close
	if opening == "" {
		opening = "??:??"
	}
	if closing == "" {
		closing = "??:??"
	}
	return opening + "–" + closing
}
